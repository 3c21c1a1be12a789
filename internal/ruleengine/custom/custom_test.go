package custom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

type stubProcessor struct {
	matchCount int
}

func (s *stubProcessor) Validate(content string) ([]string, []string) { return nil, nil }
func (s *stubProcessor) Compile(rule *types.Rule) (any, error)         { return rule.Content, nil }
func (s *stubProcessor) Evaluate(ctx context.Context, compiled any, events []types.LogEvent, raw []byte) (*types.RuleMatch, error) {
	return &types.RuleMatch{MatchCount: s.matchCount, Confidence: 0.5}, nil
}

func TestCustomRoutesByDialectMetadata(t *testing.T) {
	r := New("")
	r.Register("lua", &stubProcessor{matchCount: 3})

	rule := &types.Rule{ID: "r1", Content: "return true", Metadata: map[string]any{"dialect": "lua"}}
	compiled, err := r.Compile(rule)
	require.NoError(t, err)

	match, err := r.Evaluate(context.Background(), compiled, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, match.MatchCount)
}

func TestCustomUsesFallbackWhenNoDialectTag(t *testing.T) {
	r := New("default")
	r.Register("default", &stubProcessor{matchCount: 1})

	rule := &types.Rule{ID: "r1", Content: "noop"}
	compiled, err := r.Compile(rule)
	require.NoError(t, err)

	match, err := r.Evaluate(context.Background(), compiled, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, match.MatchCount)
}

func TestCustomCompileFailsForUnknownDialect(t *testing.T) {
	r := New("")
	rule := &types.Rule{ID: "r1", Content: "noop", Metadata: map[string]any{"dialect": "wasm"}}
	_, err := r.Compile(rule)
	require.Error(t, err)
}
