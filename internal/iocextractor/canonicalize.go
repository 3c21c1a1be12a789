package iocextractor

import "strings"

// canonicalize lowercases domain, url, email and hex-hash values per
// spec §4.C's dedup-key canonicalization rule. Other types pass through
// unchanged since their acceptance rules are already case-sensitive or
// case-irrelevant (e.g. bitcoin addresses are case-sensitive by design).
func canonicalize(typ string, value string) string {
	switch typ {
	case "domain", "url", "email", "md5", "sha1", "sha256", "sha512":
		return strings.ToLower(value)
	default:
		return value
	}
}

// contextWindow returns the +/-50 char window around index [start,end)
// within text, clamped to text's bounds.
func contextWindow(text string, start, end int) string {
	const radius = 50
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

func containsAny(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func domainTLD(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) == 0 {
		return ""
	}
	return strings.ToLower(parts[len(parts)-1])
}

// isWhitelistedDomain reports whether domain equals or is a subdomain of
// any entry in whitelist (spec §4.C: "whole-domain in configured
// whitelist (incl. parents)").
func isWhitelistedDomain(domain string, whitelist []string) bool {
	d := strings.ToLower(domain)
	for _, w := range whitelist {
		w = strings.ToLower(w)
		if d == w || strings.HasSuffix(d, "."+w) {
			return true
		}
	}
	return false
}
