package objectpattern

import (
	"regexp"
	"strconv"
	"strings"

	"forensiq/pkg/types"
)

// applyOp evaluates one comparison operator from spec §4.D.4: =, !=,
// contains, like, matches (regex), in (comma list).
func applyOp(op, actual, expected string) bool {
	switch op {
	case "=":
		return strings.EqualFold(actual, expected)
	case "!=":
		return !strings.EqualFold(actual, expected)
	case "contains":
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expected))
	case "like":
		pattern := "^" + regexp.QuoteMeta(expected) + "$"
		pattern = strings.ReplaceAll(pattern, regexp.QuoteMeta("%"), ".*")
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	case "matches":
		re, err := regexp.Compile("(?i)" + expected)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	case "in":
		for _, v := range strings.Split(expected, ",") {
			if strings.EqualFold(strings.TrimSpace(v), actual) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// clauseMatchesEvent dispatches on object_type (spec §4.D.4).
func clauseMatchesEvent(c clause, e types.LogEvent, raw string) bool {
	switch strings.ToLower(c.ObjectType) {
	case "file":
		return matchFileClause(c, e, raw)
	default:
		return matchGenericClause(c, e, raw)
	}
}

// matchFileClause: hash equality (hashes.md5/sha1/sha256), file name
// substring, or numeric size equality against named event fields.
func matchFileClause(c clause, e types.LogEvent, raw string) bool {
	prop := strings.ToLower(c.Property)
	switch {
	case strings.HasPrefix(prop, "hashes."):
		return strings.Contains(strings.ToLower(raw), strings.ToLower(c.Value)) || hashFieldMatches(e, c.Value)
	case prop == "name":
		if v, ok := e.FieldString("name"); ok && applyOp(c.Op, v, c.Value) {
			return true
		}
		return strings.Contains(strings.ToLower(raw), strings.ToLower(c.Value))
	case prop == "size":
		for _, field := range []string{"size", "file_size"} {
			if v, ok := e.FieldString(field); ok {
				if fv, err := strconv.ParseInt(v, 10, 64); err == nil {
					if ev, err := strconv.ParseInt(c.Value, 10, 64); err == nil && fv == ev {
						return true
					}
				}
			}
		}
		return false
	default:
		return matchGenericClause(c, e, raw)
	}
}

func hashFieldMatches(e types.LogEvent, expected string) bool {
	for _, field := range []string{"md5", "sha1", "sha256", "hash"} {
		if v, ok := e.FieldString(field); ok && strings.EqualFold(v, expected) {
			return true
		}
	}
	return false
}

// fieldAliases maps a STIX property path to the event fields that carry
// the same value in this domain (spec §4.D.4).
var fieldAliases = map[string][]string{
	"src_ref.value": {"src_ip", "source_ip"},
	"dst_ref.value": {"dst_ip", "destination_ip"},
	"name":          {"filename", "process_name", "name"},
	"command_line":  {"command_line", "CommandLine"},
	"value":         {"value", "domain", "url", "src_ip", "dst_ip", "source_ip", "destination_ip"},
}

// matchGenericClause resolves the property via fieldAliases against
// event fields first, falling back to a raw-content substring search.
func matchGenericClause(c clause, e types.LogEvent, raw string) bool {
	candidates := fieldAliases[strings.ToLower(c.Property)]
	if candidates == nil {
		candidates = []string{c.Property}
	}
	for _, field := range candidates {
		if v, ok := e.FieldString(field); ok && applyOp(c.Op, v, c.Value) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(raw), strings.ToLower(c.Value))
}
