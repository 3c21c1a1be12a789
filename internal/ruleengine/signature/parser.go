package signature

import (
	"fmt"
	"regexp"
	"strings"
)

// stringDef is one named string declaration from a strings: block.
type stringDef struct {
	Name    string // without the leading $
	Pattern string
	IsRegex bool
	re      *regexp.Regexp // compiled iff IsRegex
}

// parsedRule is the tokenized form spec §4.D.2 describes: name, a meta
// map, the named string list, and the condition kept as raw text.
type parsedRule struct {
	Name      string
	Meta      map[string]string
	Strings   []stringDef
	Condition string
}

var ruleHeaderRE = regexp.MustCompile(`(?s)rule\s+(\w+)\s*\{(.*)\}\s*$`)
var metaEntryRE = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
var stringEntryRE = regexp.MustCompile(`\$(\w+)\s*=\s*(?:"((?:[^"\\]|\\.)*)"|/((?:[^/\\]|\\.)*)/)`)

// parseRule tokenizes rule content into its three sections. It does not
// validate the condition expression's semantics, only that a condition:
// section is present — condition evaluation happens at match time.
func parseRule(content string) (*parsedRule, error) {
	m := ruleHeaderRE.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("signature: content does not match `rule NAME { ... }`")
	}
	name, body := m[1], m[2]

	meta := map[string]string{}
	if section := extractSection(body, "meta"); section != "" {
		for _, sm := range metaEntryRE.FindAllStringSubmatch(section, -1) {
			meta[sm[1]] = sm[2]
		}
	}

	var strs []stringDef
	if section := extractSection(body, "strings"); section != "" {
		matches := stringEntryRE.FindAllStringSubmatch(section, -1)
		rawMatches := stringEntryRE.FindAllString(section, -1)
		for i, sm := range matches {
			sd := stringDef{Name: sm[1]}
			// Distinguish literal vs regex by which delimiter the raw
			// match actually used, since an empty literal ("") and an
			// empty regex (//) both produce empty submatch groups.
			if strings.Contains(rawMatches[i], `= "`) {
				sd.Pattern = sm[2]
				sd.IsRegex = false
			} else {
				sd.Pattern = sm[3]
				sd.IsRegex = true
				re, err := regexp.Compile("(?im)" + sd.Pattern)
				if err != nil {
					return nil, fmt.Errorf("signature: string $%s: invalid regex: %w", sd.Name, err)
				}
				sd.re = re
			}
			strs = append(strs, sd)
		}
	}

	condition := strings.TrimSpace(extractSection(body, "condition"))
	if condition == "" {
		return nil, fmt.Errorf("signature: rule %q missing condition section", name)
	}

	return &parsedRule{Name: name, Meta: meta, Strings: strs, Condition: condition}, nil
}

// extractSection pulls the text of `label: <rest until next top-level
// label or end>` out of body. Sections in this dialect subset never
// nest, so a simple label-to-next-label scan is sufficient.
func extractSection(body, label string) string {
	idx := strings.Index(body, label+":")
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(label)+1:]
	for _, next := range []string{"meta:", "strings:", "condition:"} {
		if next == label+":" {
			continue
		}
		if nidx := strings.Index(rest, next); nidx >= 0 {
			rest = rest[:nidx]
		}
	}
	return strings.TrimSpace(rest)
}
