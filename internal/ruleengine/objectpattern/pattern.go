package objectpattern

import (
	"fmt"
	"regexp"
	"strings"
)

// clause is one `[object:property OP value]` term (spec §4.D.4).
type clause struct {
	ObjectType string
	Property   string
	Op         string
	Value      string
}

var clauseRE = regexp.MustCompile(`^\[\s*([\w-]+):([\w.]+)\s*(=|!=|contains|like|matches|in)\s*(.+?)\s*\]$`)

// compilePattern splits pattern on top-level ` AND ` / ` OR ` and parses
// each bracketed clause. Splitting is top-level only: this dialect
// subset does not support parenthesized sub-expressions (spec §4.D.4).
func compilePattern(pattern string) ([]clause, []string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil, fmt.Errorf("empty pattern")
	}

	parts, operators := splitTopLevel(pattern)
	clauses := make([]clause, 0, len(parts))
	for _, part := range parts {
		c, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return nil, nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, operators, nil
}

func splitTopLevel(pattern string) (parts []string, operators []string) {
	remaining := pattern
	for {
		andIdx := strings.Index(remaining, " AND ")
		orIdx := strings.Index(remaining, " OR ")
		switch {
		case andIdx < 0 && orIdx < 0:
			parts = append(parts, remaining)
			return
		case andIdx >= 0 && (orIdx < 0 || andIdx < orIdx):
			parts = append(parts, remaining[:andIdx])
			operators = append(operators, "AND")
			remaining = remaining[andIdx+len(" AND "):]
		default:
			parts = append(parts, remaining[:orIdx])
			operators = append(operators, "OR")
			remaining = remaining[orIdx+len(" OR "):]
		}
	}
}

func parseClause(raw string) (clause, error) {
	m := clauseRE.FindStringSubmatch(raw)
	if m == nil {
		return clause{}, fmt.Errorf("clause %q does not match [object:property OP value]", raw)
	}
	value := strings.Trim(m[4], `'"`)
	return clause{ObjectType: m[1], Property: m[2], Op: m[3], Value: value}, nil
}

// evaluateClauses folds clause results left to right with the stored
// boolean connectors, matching the dialect's documented no-precedence
// evaluation (spec §4.D.4's pattern split already establishes the
// left-to-right order; this applies it to boolean combination too, the
// same approach spec §4.D.3 uses for its condition language).
func evaluateClauses(results []bool, operators []string) bool {
	if len(results) == 0 {
		return false
	}
	value := results[0]
	for i, op := range operators {
		if op == "AND" {
			value = value && results[i+1]
		} else {
			value = value || results[i+1]
		}
	}
	return value
}
