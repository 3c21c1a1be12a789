package objectpattern

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

func sampleIndicator(validUntil string) string {
	return `{
		"type": "indicator",
		"id": "indicator--1234",
		"spec_version": "2.1",
		"pattern_type": "stix",
		"valid_from": "2020-01-01T00:00:00Z",
		"valid_until": "` + validUntil + `",
		"pattern": "[ipv4-addr:value = '203.0.113.9'] OR [domain-name:value contains 'evil.example']"
	}`
}

func futureIndicator() string {
	return sampleIndicator(time.Now().Add(72 * time.Hour).Format(time.RFC3339))
}

func expiredIndicator() string {
	return sampleIndicator(time.Now().Add(-72 * time.Hour).Format(time.RFC3339))
}

func TestObjectPatternMatchesOnClause(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: futureIndicator()})
	require.NoError(t, err)

	events := []types.LogEvent{
		{LineNumber: 1, Raw: "connection observed", Fields: map[string]any{"src_ip": "203.0.113.9"}},
		{LineNumber: 2, Raw: "benign", Fields: map[string]any{"src_ip": "10.0.0.5"}},
	}
	match, err := p.Evaluate(context.Background(), compiled, events, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, match.MatchCount)
	assert.Greater(t, match.Confidence, 0.0)
}

func TestObjectPatternRejectsExpiredIndicator(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: expiredIndicator()})
	require.NoError(t, err)

	events := []types.LogEvent{
		{LineNumber: 1, Raw: "connection observed", Fields: map[string]any{"src_ip": "203.0.113.9"}},
	}
	match, err := p.Evaluate(context.Background(), compiled, events, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, match.MatchCount)
	assert.Equal(t, 0.0, match.Confidence)
}

func TestObjectPatternMatchesViaRawContentFallback(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: futureIndicator()})
	require.NoError(t, err)

	events := []types.LogEvent{{LineNumber: 1, Raw: "dns query to malicious-evil.example observed"}}
	match, err := p.Evaluate(context.Background(), compiled, events, []byte("malicious-evil.example lookup"))
	require.NoError(t, err)
	assert.Equal(t, 1, match.MatchCount)
}

func TestSplitTopLevelAndEvaluateClauses(t *testing.T) {
	parts, ops := splitTopLevel("[a:b = 'x'] AND [c:d = 'y'] OR [e:f = 'z']")
	require.Len(t, parts, 3)
	require.Equal(t, []string{"AND", "OR"}, ops)
	assert.True(t, evaluateClauses([]bool{false, false, true}, ops))
	assert.False(t, evaluateClauses([]bool{true, false, false}, ops))
}

func TestApplyOpVariants(t *testing.T) {
	assert.True(t, applyOp("=", "Foo", "foo"))
	assert.True(t, applyOp("!=", "foo", "bar"))
	assert.True(t, applyOp("contains", "the evil domain", "evil"))
	assert.True(t, applyOp("like", "evil.example", "%.example"))
	assert.True(t, applyOp("matches", "203.0.113.9", `^203\.`))
	assert.True(t, applyOp("in", "bar", "foo,bar,baz"))
}
