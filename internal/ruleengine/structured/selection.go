package structured

import (
	"fmt"
	"regexp"
	"strings"
)

// matcher is one compiled field-value match rule (spec §4.D.3): exact
// case-insensitive equality, `*wildcard*` substring, or a leading/
// trailing `*` glob compiled to an anchored regex.
type matcher struct {
	kind    matcherKind
	literal string
	re      *regexp.Regexp
}

type matcherKind int

const (
	matchExact matcherKind = iota
	matchSubstring
	matchGlob
)

func (m matcher) matches(value string) bool {
	switch m.kind {
	case matchExact:
		return strings.EqualFold(m.literal, value)
	case matchSubstring:
		return strings.Contains(strings.ToLower(value), strings.ToLower(m.literal))
	case matchGlob:
		return m.re.MatchString(value)
	}
	return false
}

func compileMatcher(raw string) matcher {
	hasPrefix := strings.HasPrefix(raw, "*")
	hasSuffix := strings.HasSuffix(raw, "*")

	switch {
	case hasPrefix && hasSuffix && len(raw) > 1:
		return matcher{kind: matchSubstring, literal: strings.Trim(raw, "*")}
	case hasPrefix || hasSuffix:
		pattern := "^" + regexp.QuoteMeta(raw) + "$"
		pattern = strings.ReplaceAll(pattern, regexp.QuoteMeta("*"), ".*")
		return matcher{kind: matchGlob, re: regexp.MustCompile("(?i)" + pattern)}
	default:
		return matcher{kind: matchExact, literal: raw}
	}
}

// fieldRule is one field → matcher-list entry within a selection. A list
// value matches if any element matches (spec §4.D.3).
type fieldRule struct {
	field    string
	matchers []matcher
}

// selection is a compiled `<selection-name>: <criteria>` entry: true iff
// every field rule matches at least one of its matchers.
type selection []fieldRule

func compileSelection(criteria interface{}) (selection, error) {
	m, ok := asStringKeyedMap(criteria)
	if !ok {
		return nil, fmt.Errorf("criteria is not a field mapping")
	}
	var sel selection
	for field, value := range m {
		matchers, err := compileFieldValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		sel = append(sel, fieldRule{field: field, matchers: matchers})
	}
	return sel, nil
}

func compileFieldValue(value interface{}) ([]matcher, error) {
	switch v := value.(type) {
	case string:
		return []matcher{compileMatcher(v)}, nil
	case []interface{}:
		out := make([]matcher, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list element %v is not a string", item)
			}
			out = append(out, compileMatcher(s))
		}
		return out, nil
	case int, bool, float64:
		return []matcher{compileMatcher(fmt.Sprintf("%v", v))}, nil
	default:
		return nil, fmt.Errorf("unsupported field value type %T", value)
	}
}

// asStringKeyedMap normalizes yaml.v2's map[interface{}]interface{}
// decode result to map[string]interface{}.
func asStringKeyedMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// matchesEvent reports whether every field rule in sel matches the
// resolved field value from the given resolver.
func (sel selection) matchesEvent(resolve func(field string) (string, bool)) bool {
	if len(sel) == 0 {
		return false
	}
	for _, fr := range sel {
		value, ok := resolve(fr.field)
		if !ok {
			return false
		}
		matched := false
		for _, m := range fr.matchers {
			if m.matches(value) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
