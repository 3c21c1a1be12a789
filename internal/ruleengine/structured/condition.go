package structured

import "strings"

// hasAmbiguousPrecedence reports whether condition mixes `and` and `or`
// without this dialect's subset supporting explicit grouping to
// disambiguate them. Per the redesign decision recorded in DESIGN.md,
// this is a validation error (RULE_CONDITION_AMBIGUOUS) rather than a
// silently-resolved left-to-right scan.
func hasAmbiguousPrecedence(condition string) bool {
	hasAnd, hasOr := false, false
	for _, tok := range strings.Fields(condition) {
		switch strings.ToLower(tok) {
		case "and":
			hasAnd = true
		case "or":
			hasOr = true
		}
	}
	return hasAnd && hasOr
}

// evaluateCondition evaluates a boolean expression over selection names
// with `and`, `or`, `not`, left to right with no operator precedence
// beyond source order (spec §4.D.3's documented limitation). Unknown
// selection names evaluate false.
func evaluateCondition(condition string, results map[string]bool) bool {
	tokens := strings.Fields(condition)
	if len(tokens) == 0 {
		return false
	}

	pos := 0
	operand := func() bool {
		negate := false
		for pos < len(tokens) && strings.EqualFold(tokens[pos], "not") {
			negate = true
			pos++
		}
		if pos >= len(tokens) {
			return false
		}
		v := results[tokens[pos]]
		pos++
		if negate {
			return !v
		}
		return v
	}

	value := operand()
	for pos < len(tokens) {
		op := strings.ToLower(tokens[pos])
		pos++
		switch op {
		case "and":
			value = value && operand()
		case "or":
			value = value || operand()
		default:
			// Unrecognized token in a left-to-right scan; skip it rather
			// than aborting the whole condition.
		}
	}
	return value
}
