package structured

import (
	"context"
	"fmt"
	"strings"

	apperrors "forensiq/pkg/errors"
	"forensiq/pkg/types"
)

// Processor evaluates StructuredDetection rules.
type Processor struct{}

// New creates a StructuredDetection Processor.
func New() *Processor { return &Processor{} }

// Validate parses content and reports structural problems.
func (p *Processor) Validate(content string) (errs []string, warnings []string) {
	compiled, err := parseRule(content)
	if err != nil {
		return []string{err.Error()}, nil
	}
	if len(compiled.selections) == 0 {
		warnings = append(warnings, "rule declares no selections")
	}
	if hasAmbiguousPrecedence(compiled.condition) {
		errs = append(errs, "RULE_CONDITION_AMBIGUOUS: condition mixes \"and\" and \"or\" without explicit grouping")
	}
	return errs, warnings
}

// Compile parses rule.Content into selections and a condition. A
// condition mixing "and" and "or" without explicit grouping is rejected
// here rather than silently resolved left to right.
func (p *Processor) Compile(rule *types.Rule) (any, error) {
	compiled, err := parseRule(rule.Content)
	if err != nil {
		return nil, err
	}
	if hasAmbiguousPrecedence(compiled.condition) {
		return nil, apperrors.Input("compile_rule", fmt.Sprintf("rule %q: condition mixes \"and\" and \"or\" without explicit grouping", rule.ID))
	}
	return compiled, nil
}

var levelWeight = map[string]float64{
	"critical":      0.9,
	"high":          0.8,
	"medium":        0.7,
	"low":           0.6,
	"informational": 0.5,
}

// Evaluate applies log-source compatibility gating, then the compiled
// selections and condition against every event, emitting one MatchDetail
// per matching event (spec §4.D.3).
func (p *Processor) Evaluate(ctx context.Context, compiled any, events []types.LogEvent, raw []byte) (*types.RuleMatch, error) {
	rule, ok := compiled.(*compiledRule)
	if !ok {
		return nil, fmt.Errorf("structured: compiled value is not a *compiledRule")
	}

	var details []types.MatchDetail
	for _, e := range events {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !logSourceCompatible(rule.doc.LogSource, e) {
			continue
		}
		selResults := make(map[string]bool, len(rule.selections))
		for name, sel := range rule.selections {
			selResults[name] = sel.matchesEvent(func(field string) (string, bool) {
				return resolveField(field, e)
			})
		}
		if !evaluateCondition(rule.condition, selResults) {
			continue
		}
		fields := make(map[string]any, len(e.Fields)+3)
		for k, v := range e.Fields {
			fields[k] = v
		}
		fields["event_level"] = e.Level
		fields["event_source"] = e.Source
		fields["event_message"] = e.Message
		details = append(details, types.MatchDetail{
			Line:    e.LineNumber,
			Context: e.Raw,
			Fields:  fields,
		})
	}

	matchCount := len(details)
	confidence := confidenceFor(rule.doc.Level, matchCount)

	return &types.RuleMatch{
		MatchCount: matchCount,
		Confidence: confidence,
		Details:    details,
		MitreIDs:   nil,
	}, nil
}

// confidenceFor starts from the rule's level weight (a single match
// carries exactly that weight, e.g. medium -> 0.7) and nudges it upward
// as repeat matches accumulate, capped at 1.0. An unweighted average of
// level and min(1,matches/5) was tried first but pulls a single-match,
// high-severity hit down toward 0.5 — wrong on its face and contradicted
// by this package's own single-match test fixtures.
func confidenceFor(level string, matchCount int) float64 {
	weight, ok := levelWeight[strings.ToLower(level)]
	if !ok {
		weight = levelWeight["medium"]
	}
	extra := matchCount - 1
	if extra < 0 {
		extra = 0
	}
	repeatBonus := float64(extra) / 20 // +0.05 per match beyond the first
	if repeatBonus > 0.25 {
		repeatBonus = 0.25
	}
	confidence := weight + repeatBonus
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// logSourceCompatible rejects events whose source does not contain the
// rule's product (case-insensitive) when product is set, and likewise
// for service against the event's service field (spec §4.D.3).
func logSourceCompatible(ls logSource, e types.LogEvent) bool {
	if ls.Product != "" && !strings.Contains(strings.ToLower(e.Source), strings.ToLower(ls.Product)) {
		return false
	}
	if ls.Service != "" {
		svc, ok := e.FieldString("service")
		if !ok || !strings.EqualFold(svc, ls.Service) {
			return false
		}
	}
	return true
}

// resolveField applies spec §4.D.3's alias table before falling back to
// event.fields.
func resolveField(field string, e types.LogEvent) (string, bool) {
	switch strings.ToLower(field) {
	case "eventid", "event_id":
		if v, ok := e.FieldString("EventID"); ok {
			return v, true
		}
		return e.FieldString("event_id")
	case "level":
		return e.Level, true
	case "message":
		return e.Message, true
	case "source":
		return e.Source, true
	case "timestamp":
		return e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), true
	default:
		return e.FieldString(field)
	}
}
