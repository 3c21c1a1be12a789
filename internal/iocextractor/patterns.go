// Package iocextractor implements the IOC Extractor (spec §4.C): nine
// concurrent typed-pattern scanners over raw content and parsed events,
// merged into one deduplicated, confidence-scored indicator list.
package iocextractor

import "regexp"

var (
	ipv4RE = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`)
	ipv6RE = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{1,4}:){2,7}[0-9A-Fa-f]{1,4}\b|::1\b`)
	domainRE = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,24}\b`)
	urlRE   = regexp.MustCompile(`\b(?:https?|ftps?)://[^\s"'<>]+`)
	emailRE = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,24}\b`)

	md5RE    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
	sha1RE   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	sha256RE = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	sha512RE = regexp.MustCompile(`\b[a-fA-F0-9]{128}\b`)

	filePathWindowsRE = regexp.MustCompile(`\b[A-Za-z]:\\(?:[^\\/:*?"<>|\r\n]+\\)*[^\\/:*?"<>|\r\n]+`)
	filePathPosixRE   = regexp.MustCompile(`(?:/[a-zA-Z0-9._-]+){2,}`)

	registryKeyRE = regexp.MustCompile(`\bHK(?:EY_)?[A-Z_]*\\[^\s"']+`)

	bitcoinAddressRE  = regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`)
	ethereumAddressRE = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	cveRE             = regexp.MustCompile(`\bCVE-\d{4}-\d{4,7}\b`)

	// portRE matches an explicit "port <n>" mention, the form network and
	// firewall logs use ("destination port 4444", "port: 31337"), rather
	// than every bare ":<n>" suffix on an address, which would fire on
	// ordinary timestamps and version strings.
	portRE = regexp.MustCompile(`(?i)\bport\s*[:=]?\s*(\d{1,5})\b`)
)

// knownC2Ports lists ports commonly associated with remote-access
// trojans and reverse shells (Metasploit's default 4444, NetBus 12345,
// Back Orifice 31337/54320, Sub7 1243/27374, IRC-based C2 6667/6697).
// A mention of one of these bumps maliciousCtx independent of any
// keyword match in the surrounding text.
var knownC2Ports = map[string]bool{
	"4444": true, "31337": true, "54320": true, "1243": true,
	"27374": true, "6667": true, "6697": true, "12345": true,
}

var falsePositiveIPv4 = map[string]bool{
	"0.0.0.0":         true,
	"255.255.255.255": true,
}

func isRFC1918(ip string) bool {
	switch {
	case len(ip) >= 3 && ip[:3] == "10.":
		return true
	case len(ip) >= 8 && ip[:8] == "192.168.":
		return true
	default:
		return false
	}
}

func isRFC1918OrLoopback(ip string) bool {
	if isRFC1918(ip) {
		return true
	}
	if len(ip) >= 3 && ip[:3] == "127" {
		return true
	}
	// 172.16.0.0 - 172.31.255.255
	if len(ip) > 4 && ip[:4] == "172." {
		var second int
		for i := 4; i < len(ip) && ip[i] != '.'; i++ {
			second = second*10 + int(ip[i]-'0')
		}
		return second >= 16 && second <= 31
	}
	return false
}

var whitelistTLDs = map[string]bool{
	"local": true, "internal": true, "lan": true, "example": true, "test": true, "invalid": true,
}

var suspiciousDirTokens = []string{
	`\temp\`, `\appdata\`, `\windows\system32\`, `\programdata\`,
	"/tmp/", "/var/tmp/", "/dev/shm/",
}

var executableExtensions = []string{
	".exe", ".dll", ".bat", ".cmd", ".ps1", ".vbs", ".scr", ".sh", ".js", ".jar",
}

var autorunRegistryTokens = []string{
	`\run\`, `\runonce\`, `\winlogon\`, `\services\`,
}

var maliciousKeywords = []string{
	"malware", "trojan", "backdoor", "ransomware", "exploit", "payload",
	"c2", "command and control", "exfiltrate", "beacon", "shellcode",
}

var documentationKeywords = []string{
	"example", "documentation", "sample", "placeholder", "test only", "dummy",
}

var riskyTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true, "xyz": true, "top": true,
}
