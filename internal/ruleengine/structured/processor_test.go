package structured

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

const sampleSigma = `
title: Suspicious Logon
id: a1b2c3
level: high
logsource:
  product: windows
  category: authentication
detection:
  selection:
    EventID: 4625
    message: '*failed logon*'
  condition: selection
`

func event(eventID int, message, source string) types.LogEvent {
	return types.LogEvent{
		LineNumber: 1,
		Raw:        message,
		Timestamp:  time.Now(),
		Source:     source,
		Message:    message,
		Fields:     map[string]any{"EventID": eventID},
	}
}

func TestStructuredMatchesOnSelection(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: sampleSigma})
	require.NoError(t, err)

	events := []types.LogEvent{
		event(4625, "a failed logon attempt occurred", "windows-security"),
		event(4624, "successful logon", "windows-security"),
	}
	match, err := p.Evaluate(context.Background(), compiled, events, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, match.MatchCount)
	assert.InDelta(t, 0.9, match.Confidence, 0.2)
}

const sigmaNoLevelNoProduct = `
title: Failed Logon
id: b2c3d4
detection:
  sel:
    EventID: 4625
  condition: sel
`

// TestStructuredConfidenceDefaultsToMediumLevelWeight pins the spec's
// worked example: a single match against a rule with no explicit level
// (defaulting to medium, weight 0.7) and no logsource product yields
// confidence 0.7 exactly, not an average pulled down toward 0.45.
func TestStructuredConfidenceDefaultsToMediumLevelWeight(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r2", Content: sigmaNoLevelNoProduct})
	require.NoError(t, err)

	events := []types.LogEvent{
		event(4625, "a failed logon attempt occurred", "any-source"),
		event(4624, "successful logon", "any-source"),
	}
	match, err := p.Evaluate(context.Background(), compiled, events, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, match.MatchCount)
	assert.Equal(t, 0.7, match.Confidence)
}

func TestStructuredRejectsIncompatibleLogSource(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: sampleSigma})
	require.NoError(t, err)

	events := []types.LogEvent{event(4625, "a failed logon attempt occurred", "linux-auth")}
	match, err := p.Evaluate(context.Background(), compiled, events, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, match.MatchCount)
}

func TestConditionNotAndOr(t *testing.T) {
	results := map[string]bool{"a": true, "b": false}
	assert.True(t, evaluateCondition("a and not b", results))
	assert.False(t, evaluateCondition("b and a", results))
	assert.True(t, evaluateCondition("b or a", results))
	assert.False(t, evaluateCondition("unknown_selection", results))
}

func TestWildcardSelectionMatching(t *testing.T) {
	sel, err := compileSelection(map[string]interface{}{"message": "*failed logon*"})
	require.NoError(t, err)
	assert.True(t, sel.matchesEvent(func(f string) (string, bool) { return "a failed logon attempt", true }))
	assert.False(t, sel.matchesEvent(func(f string) (string, bool) { return "everything ok", true }))
}
