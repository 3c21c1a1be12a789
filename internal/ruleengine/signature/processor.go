// Package signature implements the SignaturePattern (YARA-like) rule
// processor (spec §4.D.2): literal and regex string matching over raw
// content and per-event text, with a minimal `any of them` / `all of
// them` condition language.
package signature

import (
	"context"
	"fmt"
	"strings"

	"forensiq/pkg/types"
)

// Processor evaluates SignaturePattern rules. It holds no state between
// calls; compiled rules are cached by the dispatcher, not here.
type Processor struct{}

// New creates a SignaturePattern Processor.
func New() *Processor { return &Processor{} }

// Validate tokenizes content, compiling its regex strings, and reports
// structural problems.
func (p *Processor) Validate(content string) (errs []string, warnings []string) {
	parsed, err := parseRule(content)
	if err != nil {
		return []string{err.Error()}, nil
	}
	if len(parsed.Strings) == 0 {
		warnings = append(warnings, "rule declares no strings; condition can never be satisfied")
	}
	return nil, warnings
}

// Compile tokenizes rule.Content and pre-compiles every regex string.
func (p *Processor) Compile(rule *types.Rule) (any, error) {
	return parseRule(rule.Content)
}

// stringHit is one occurrence of a named string somewhere in the scanned corpus.
type stringHit struct {
	name    string
	content string
	offset  int // -1 when line is set instead
	line    int // -1 when offset is set instead
	context string
}

// Evaluate scans raw content and every event's raw text for each named
// string, then applies the condition (spec §4.D.2).
func (p *Processor) Evaluate(ctx context.Context, compiled any, events []types.LogEvent, raw []byte) (*types.RuleMatch, error) {
	parsed, ok := compiled.(*parsedRule)
	if !ok {
		return nil, fmt.Errorf("signature: compiled value is not a *parsedRule")
	}

	hitsByString := make(map[string][]stringHit, len(parsed.Strings))
	rawText := string(raw)

	for _, sd := range parsed.Strings {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		hitsByString[sd.Name] = append(hitsByString[sd.Name], scanRawContent(sd, rawText)...)
		for _, e := range events {
			hitsByString[sd.Name] = append(hitsByString[sd.Name], scanEvent(sd, e)...)
		}
	}

	if !evaluateCondition(parsed.Condition, hitsByString, parsed.Strings) {
		return &types.RuleMatch{MatchCount: 0}, nil
	}

	var details []types.MatchDetail
	total := 0
	for _, sd := range parsed.Strings {
		for _, h := range hitsByString[sd.Name] {
			details = append(details, types.MatchDetail{
				MatchedContent: h.content,
				FileOffset:     h.offset,
				Line:           h.line,
				Context:        h.context,
			})
			total++
		}
	}

	confidence := float64(total) / 10
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &types.RuleMatch{
		MatchCount: total,
		Confidence: confidence,
		Details:    details,
		Metadata:   metaToAny(parsed.Meta),
	}, nil
}

func metaToAny(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func scanRawContent(sd stringDef, rawText string) []stringHit {
	var hits []stringHit
	if sd.IsRegex {
		for _, loc := range sd.re.FindAllStringIndex(rawText, -1) {
			hits = append(hits, stringHit{
				name:    sd.Name,
				content: rawText[loc[0]:loc[1]],
				offset:  loc[0],
				line:    -1,
				context: windowAround(rawText, loc[0], loc[1]),
			})
		}
		return hits
	}
	lower := strings.ToLower(rawText)
	patLower := strings.ToLower(sd.Pattern)
	if patLower == "" {
		return hits
	}
	start := 0
	for {
		idx := strings.Index(lower[start:], patLower)
		if idx < 0 {
			break
		}
		abs := start + idx
		hits = append(hits, stringHit{
			name:    sd.Name,
			content: rawText[abs : abs+len(sd.Pattern)],
			offset:  abs,
			line:    -1,
			context: windowAround(rawText, abs, abs+len(sd.Pattern)),
		})
		start = abs + len(sd.Pattern)
	}
	return hits
}

func scanEvent(sd stringDef, e types.LogEvent) []stringHit {
	var hits []stringHit
	if sd.IsRegex {
		if loc := sd.re.FindStringIndex(e.Raw); loc != nil {
			hits = append(hits, stringHit{
				name:    sd.Name,
				content: e.Raw[loc[0]:loc[1]],
				line:    e.LineNumber,
				offset:  -1,
				context: windowAround(e.Raw, loc[0], loc[1]),
			})
		}
		return hits
	}
	lower := strings.ToLower(e.Raw)
	patLower := strings.ToLower(sd.Pattern)
	if patLower == "" {
		return hits
	}
	if idx := strings.Index(lower, patLower); idx >= 0 {
		hits = append(hits, stringHit{
			name:    sd.Name,
			content: e.Raw[idx : idx+len(sd.Pattern)],
			line:    e.LineNumber,
			offset:  -1,
			context: windowAround(e.Raw, idx, idx+len(sd.Pattern)),
		})
	}
	return hits
}

func windowAround(text string, start, end int) string {
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

// evaluateCondition implements the documented subset from spec §4.D.2:
// "any of them", "all of them", and the fallback "at least one match".
func evaluateCondition(condition string, hits map[string][]stringHit, strs []stringDef) bool {
	cond := strings.ToLower(strings.TrimSpace(condition))
	switch {
	case strings.Contains(cond, "any of them"):
		for _, sd := range strs {
			if len(hits[sd.Name]) > 0 {
				return true
			}
		}
		return false
	case strings.Contains(cond, "all of them"):
		for _, sd := range strs {
			if len(hits[sd.Name]) == 0 {
				return false
			}
		}
		return len(strs) > 0
	default:
		for _, sd := range strs {
			if len(hits[sd.Name]) > 0 {
				return true
			}
		}
		return false
	}
}
