package signature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

const sampleRule = `rule SuspiciousPowershell {
  meta:
    author = "test"
  strings:
    $cmd = "powershell -enc"
    $re = /invoke-[a-z]+/
  condition:
    any of them
}`

func TestCompileAndEvaluateMatch(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: sampleRule})
	require.NoError(t, err)

	match, err := p.Evaluate(context.Background(), compiled, nil, []byte("user ran powershell -enc abc123 and invoke-mimikatz"))
	require.NoError(t, err)
	assert.Greater(t, match.MatchCount, 0)
	assert.LessOrEqual(t, match.Confidence, 1.0)
}

func TestEvaluateNoMatch(t *testing.T) {
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r1", Content: sampleRule})
	require.NoError(t, err)

	match, err := p.Evaluate(context.Background(), compiled, nil, []byte("nothing interesting here"))
	require.NoError(t, err)
	assert.Equal(t, 0, match.MatchCount)
}

func TestAllOfThemRequiresEveryString(t *testing.T) {
	rule := `rule NeedsBoth {
  strings:
    $a = "alpha"
    $b = "bravo"
  condition:
    all of them
}`
	p := New()
	compiled, err := p.Compile(&types.Rule{ID: "r2", Content: rule})
	require.NoError(t, err)

	match, err := p.Evaluate(context.Background(), compiled, nil, []byte("alpha only, no bravo term"))
	require.NoError(t, err)
	assert.Equal(t, 0, match.MatchCount)

	match, err = p.Evaluate(context.Background(), compiled, nil, []byte("alpha and bravo both present"))
	require.NoError(t, err)
	assert.Greater(t, match.MatchCount, 0)
}

func TestValidateWarnsOnNoStrings(t *testing.T) {
	p := New()
	_, warnings := p.Validate(`rule Empty { condition: any of them }`)
	assert.NotEmpty(t, warnings)
}

func TestValidateRejectsMalformedRule(t *testing.T) {
	p := New()
	errs, _ := p.Validate(`not a rule at all`)
	assert.NotEmpty(t, errs)
}
