package objectpattern

import (
	"context"
	"fmt"
	"time"

	"forensiq/pkg/types"
)

// Processor evaluates ObjectPattern (STIX-like) rules.
type Processor struct{}

// New creates an ObjectPattern Processor.
func New() *Processor { return &Processor{} }

// Validate parses content and reports structural problems.
func (p *Processor) Validate(content string) (errs []string, warnings []string) {
	compiled, err := parseRule(content)
	if err != nil {
		return []string{err.Error()}, nil
	}
	if len(compiled.clauses) == 0 {
		warnings = append(warnings, "indicator pattern contains no clauses")
	}
	if compiled.indicator.ValidUntil.IsZero() {
		warnings = append(warnings, "indicator has no valid_until; treated as never expiring")
	}
	return nil, warnings
}

// Compile parses rule.Content into a STIX indicator plus its compiled
// clause pattern.
func (p *Processor) Compile(rule *types.Rule) (any, error) {
	return parseRule(rule.Content)
}

// Evaluate gates on the indicator's validity window, then matches every
// clause against each event (and raw content), folding clause results
// with the pattern's AND/OR connectors (spec §4.D.4).
func (p *Processor) Evaluate(ctx context.Context, compiled any, events []types.LogEvent, raw []byte) (*types.RuleMatch, error) {
	rule, ok := compiled.(*compiledRule)
	if !ok {
		return nil, fmt.Errorf("objectpattern: compiled value is not a *compiledRule")
	}

	if !withinValidityWindow(rule.indicator) {
		return &types.RuleMatch{MatchCount: 0, Confidence: 0}, nil
	}

	rawText := string(raw)
	var details []types.MatchDetail
	for _, e := range events {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results := make([]bool, len(rule.clauses))
		for i, c := range rule.clauses {
			results[i] = clauseMatchesEvent(c, e, rawText)
		}
		if !evaluateClauses(results, rule.operators) {
			continue
		}
		details = append(details, types.MatchDetail{
			Line:    e.LineNumber,
			Context: e.Raw,
			Fields:  map[string]any{"indicator_id": rule.indicator.ID},
		})
	}

	matchCount := len(details)
	confidence := confidenceFor(matchCount, rule.indicator.ValidUntil)

	return &types.RuleMatch{
		MatchCount: matchCount,
		Confidence: confidence,
		Details:    details,
	}, nil
}

// withinValidityWindow skips evaluation entirely once the indicator has
// expired or has not yet become valid (spec §4.D.4).
func withinValidityWindow(ind stixIndicator) bool {
	now := time.Now()
	if !ind.ValidFrom.IsZero() && now.Before(ind.ValidFrom) {
		return false
	}
	if !ind.ValidUntil.IsZero() && now.After(ind.ValidUntil) {
		return false
	}
	return true
}

// confidenceFor is min(1, matches/5) decayed toward 0.1 as the indicator
// approaches its valid_until, per spec §4.D.4.
func confidenceFor(matchCount int, validUntil time.Time) float64 {
	base := float64(matchCount) / 5
	if base > 1 {
		base = 1
	}
	if base == 0 || validUntil.IsZero() {
		return base
	}
	remaining := time.Until(validUntil)
	if remaining <= 0 {
		return 0
	}
	const decayWindow = 30 * 24 * time.Hour
	decay := float64(remaining) / float64(decayWindow)
	if decay > 1 {
		decay = 1
	}
	if decay < 0.1 {
		decay = 0.1
	}
	return base * decay
}
