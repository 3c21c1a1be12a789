package iocextractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"forensiq/pkg/types"
)

// Config tunes extraction thresholds and whitelists (spec §4.C).
type Config struct {
	ConfidenceThreshold int      // default 30; IOCs below this are dropped
	DomainWhitelist     []string // whole-domain whitelist, including parents
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 30}
}

// scanFunc is one of the nine concurrent extractor classes. Each scans
// raw content first, then every event's raw text, message, and
// string-valued fields, and returns its own findings independently;
// merging happens centrally under the dedup set's mutex (spec §4.C).
type scanFunc func(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC

// Extract runs the nine extractor classes in parallel and returns the
// deduplicated, confidence-filtered, threshold-clamped IOC list in
// dedup-insertion order.
func Extract(ctx context.Context, events []types.LogEvent, raw []byte, cfg Config) []types.IOC {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	now := time.Now().UTC()

	scanners := []scanFunc{
		scanIP,
		scanDomain,
		scanURL,
		scanEmail,
		scanHash,
		scanFilePath,
		scanRegistryKey,
		scanCrypto,
		scanNetworkArtifacts,
	}

	dedup := newDedupSet()
	var wg sync.WaitGroup
	for _, scan := range scanners {
		scan := scan
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			for _, ioc := range scan(raw, events, cfg, now) {
				dedup.merge(ioc)
			}
		}()
	}
	wg.Wait()

	return dedup.results(cfg.ConfidenceThreshold)
}

// textSources enumerates raw content plus every event's raw/message/
// string field text, matching spec §4.C's scan order: "raw_content
// first, then each event's raw text, message, and string-valued fields".
func textSources(raw []byte, events []types.LogEvent) []string {
	sources := make([]string, 0, 1+3*len(events))
	sources = append(sources, string(raw))
	for _, e := range events {
		sources = append(sources, e.Raw, e.Message)
		for _, v := range e.Fields {
			if s, ok := v.(string); ok {
				sources = append(sources, s)
			}
		}
	}
	return sources
}

func scanIP(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range ipv4RE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			if falsePositiveIPv4[val] {
				continue
			}
			adj := confidenceAdjustment{
				maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
				documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
				privateIP: isRFC1918OrLoopback(val),
			}
			out = append(out, newIOC(types.IOCTypeIPv4, val, adj, text, loc[0], loc[1], now))
		}
		for _, loc := range ipv6RE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			if val == "::1" {
				continue
			}
			adj := confidenceAdjustment{
				maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
				documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
			}
			out = append(out, newIOC(types.IOCTypeIPv6, val, adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

func scanDomain(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range domainRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			if !validDomainLabels(val) {
				continue
			}
			tld := domainTLD(val)
			if whitelistTLDs[tld] || isWhitelistedDomain(val, cfg.DomainWhitelist) {
				continue
			}
			adj := confidenceAdjustment{
				maliciousCtx:     containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
				documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
				tldRisk:          riskyTLDs[tld],
			}
			out = append(out, newIOC(types.IOCTypeDomain, strings.ToLower(val), adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

func validDomainLabels(domain string) bool {
	if len(domain) > 253 {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if len(l) == 0 || len(l) > 63 {
			return false
		}
	}
	return true
}

func scanURL(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range urlRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			host := hostFromURL(val)
			if host == "" {
				continue
			}
			if !validDomainLabels(host) && ipv4RE.FindString(host) != host {
				continue
			}
			adj := confidenceAdjustment{
				maliciousCtx:     containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
				documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
			}
			out = append(out, newIOC(types.IOCTypeURL, val, adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

func hostFromURL(url string) string {
	rest := url
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	for i, c := range rest {
		if c == '/' || c == ':' || c == '?' || c == '#' {
			return rest[:i]
		}
	}
	return rest
}

func scanEmail(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range emailRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			at := strings.LastIndex(val, "@")
			if at < 0 {
				continue
			}
			domain := val[at+1:]
			if isWhitelistedDomain(domain, cfg.DomainWhitelist) {
				continue
			}
			adj := confidenceAdjustment{
				maliciousCtx:     containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
				documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
			}
			out = append(out, newIOC(types.IOCTypeEmail, strings.ToLower(val), adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

// scanHash scans for the four hex-hash lengths, longest first so a
// sha512 substring is never also reported as a shorter overlapping hash.
func scanHash(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		out = append(out, scanHashRE(types.IOCTypeSHA512, sha512RE, text, now)...)
		out = append(out, scanHashRE(types.IOCTypeSHA256, sha256RE, text, now)...)
		out = append(out, scanHashRE(types.IOCTypeSHA1, sha1RE, text, now)...)
		out = append(out, scanHashRE(types.IOCTypeMD5, md5RE, text, now)...)
	}
	return out
}

// scanHashRE applies spec §4.C's degenerate-hash rejection: the empty-file
// canonical hash for this algorithm, and repeated 4-char prefixes
// covering more than 75% of the string (a common padding/placeholder
// pattern, not a real file hash).
func scanHashRE(typ types.IOCType, re *regexp.Regexp, text string, now time.Time) []types.IOC {
	var out []types.IOC
	for _, loc := range re.FindAllStringIndex(text, -1) {
		val := strings.ToLower(text[loc[0]:loc[1]])
		if emptyFileHashes[val] || isDegenerateHash(val) {
			continue
		}
		adj := confidenceAdjustment{
			maliciousCtx:     containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
			documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
		}
		out = append(out, newIOC(typ, val, adj, text, loc[0], loc[1], now))
	}
	return out
}

var emptyFileHashes = map[string]bool{
	"d41d8cd98f00b204e9800998ecf8427e":                                 true, // md5("")
	"da39a3ee5e6b4b0d3255bfef95601890afd80709":                         true, // sha1("")
	"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855": true, // sha256("")
	"cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e": true, // sha512("")
}

// isDegenerateHash reports whether a hex string is all one character, or
// a single 4-char prefix repeated to cover more than 75% of the string.
func isDegenerateHash(hex string) bool {
	if len(hex) < 4 {
		return false
	}
	allSame := true
	for i := 1; i < len(hex); i++ {
		if hex[i] != hex[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}
	prefix := hex[:4]
	count := strings.Count(hex, prefix) * 4
	return float64(count)/float64(len(hex)) > 0.75
}

func scanFilePath(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, re := range []*regexp.Regexp{filePathWindowsRE, filePathPosixRE} {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				val := text[loc[0]:loc[1]]
				lower := strings.ToLower(val)
				hasSuspiciousDir := containsAny(lower, suspiciousDirTokens)
				hasExeExt := hasAnySuffix(lower, executableExtensions)
				if !hasSuspiciousDir && !hasExeExt {
					continue
				}
				adj := confidenceAdjustment{
					maliciousCtx:     containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
					documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
				}
				out = append(out, newIOC(types.IOCTypeFilePath, val, adj, text, loc[0], loc[1], now))
			}
		}
	}
	return out
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func scanRegistryKey(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range registryKeyRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			adj := confidenceAdjustment{
				maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), autorunRegistryTokens) ||
					containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
			}
			out = append(out, newIOC(types.IOCTypeRegistryKey, val, adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

func scanCrypto(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range bitcoinAddressRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			adj := confidenceAdjustment{maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords)}
			out = append(out, newIOC(types.IOCTypeBitcoinAddress, val, adj, text, loc[0], loc[1], now))
		}
		for _, loc := range ethereumAddressRE.FindAllStringIndex(text, -1) {
			val := text[loc[0]:loc[1]]
			adj := confidenceAdjustment{maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords)}
			out = append(out, newIOC(types.IOCTypeEthereumAddress, val, adj, text, loc[0], loc[1], now))
		}
	}
	return out
}

// scanNetworkArtifacts is the ninth extractor class: CVE identifiers and
// mentioned network ports, surfaced together as network/vulnerability
// artifacts alongside the eight host-oriented classes above.
func scanNetworkArtifacts(raw []byte, events []types.LogEvent, cfg Config, now time.Time) []types.IOC {
	var out []types.IOC
	for _, text := range textSources(raw, events) {
		for _, loc := range cveRE.FindAllStringIndex(text, -1) {
			val := strings.ToUpper(text[loc[0]:loc[1]])
			adj := confidenceAdjustment{maliciousCtx: containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords)}
			out = append(out, newIOC(types.IOCTypeCVE, val, adj, text, loc[0], loc[1], now))
		}
		out = append(out, scanPorts(text, now)...)
	}
	return out
}

// scanPorts extracts explicit "port <n>" mentions with n in the valid
// 1-65535 range, tagging well-known C2 ports as malicious context
// regardless of surrounding keywords.
func scanPorts(text string, now time.Time) []types.IOC {
	var out []types.IOC
	for _, loc := range portRE.FindAllStringSubmatchIndex(text, -1) {
		numStart, numEnd := loc[2], loc[3]
		num := text[numStart:numEnd]
		port, err := strconv.Atoi(num)
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		adj := confidenceAdjustment{
			maliciousCtx:     knownC2Ports[num] || containsAny(contextWindow(text, loc[0], loc[1]), maliciousKeywords),
			documentationCtx: containsAny(contextWindow(text, loc[0], loc[1]), documentationKeywords),
		}
		out = append(out, newIOC(types.IOCTypePort, num, adj, text, loc[0], loc[1], now))
	}
	return out
}

func newIOC(typ types.IOCType, rawValue string, adj confidenceAdjustment, text string, start, end int, now time.Time) types.IOC {
	confidence := adj.apply(baseConfidence(typ))
	return types.IOC{
		Value:      canonicalize(string(typ), rawValue),
		Type:       typ,
		Confidence: confidence,
		Context:    contextWindow(text, start, end),
		FirstSeen:  now,
		LastSeen:   now,
		Malicious:  adj.maliciousCtx,
	}
}
