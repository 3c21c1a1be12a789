package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisProgressMonotonic(t *testing.T) {
	a := NewAnalysis("a1", "auth.log", 1024)
	require.NoError(t, a.AdvanceProgress(5, "initialize"))
	require.NoError(t, a.AdvanceProgress(30, "parse"))
	err := a.AdvanceProgress(10, "rewind")
	assert.Error(t, err)
}

func TestAnalysisTerminalTransitionOnce(t *testing.T) {
	a := NewAnalysis("a2", "auth.log", 1024)
	require.NoError(t, a.Finish(StatusCompleted, ""))
	assert.True(t, a.Status.IsTerminal())
	assert.Error(t, a.Finish(StatusFailed, "too late"))
}

func TestAnalysisContentHashFixedAfterFirstWrite(t *testing.T) {
	a := NewAnalysis("a3", "auth.log", 1024)
	hash := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	require.NoError(t, a.SetContentHash(hash))
	require.NoError(t, a.SetContentHash(hash)) // idempotent rewrite of same value is fine
	assert.Error(t, a.SetContentHash("0000000000000000000000000000000000000000000000000000000000000000"[:64]))
}

func TestAnalysisContentHashFormat(t *testing.T) {
	a := NewAnalysis("a4", "auth.log", 1024)
	assert.Error(t, a.SetContentHash("not-a-hash"))
	assert.Error(t, a.SetContentHash("ABCDEF"))
}

func TestSeverityFromScoreThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0, SeverityLow},
		{29.9, SeverityLow},
		{30, SeverityMedium},
		{59.9, SeverityMedium},
		{60, SeverityHigh},
		{79.9, SeverityHigh},
		{80, SeverityCritical},
		{100, SeverityCritical},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SeverityFromScore(c.score), "score=%v", c.score)
	}
}

func TestIOCDedupKeyAndClamp(t *testing.T) {
	i := &IOC{Type: IOCTypeIPv4, Value: "8.8.8.8", Confidence: 150}
	i.ClampConfidence()
	assert.Equal(t, 100, i.Confidence)
	assert.Equal(t, "ipv4\x008.8.8.8", i.DedupKey())
}

func TestTechniqueIDValidationAndNormalization(t *testing.T) {
	tech, err := NewTechnique("t1059.001", "Command and Scripting Interpreter", "execution", "windows", "command execution", 50)
	require.NoError(t, err)
	assert.Equal(t, "T1059.001", tech.ID)

	_, err = NewTechnique("bogus", "name", "execution", "windows", "", 50)
	assert.Error(t, err)
}

func TestTechniqueRaiseConfidenceCapsAt100(t *testing.T) {
	tech, err := NewTechnique("T1059", "name", "execution", "windows", "", 95)
	require.NoError(t, err)
	tech.RaiseConfidence(20)
	assert.Equal(t, 100, tech.Confidence)
}

func TestRuleValidateEmptyContent(t *testing.T) {
	r := &Rule{Name: "demo", Type: RuleTypeSignaturePattern, Content: "   "}
	assert.ErrorContains(t, r.Validate(), "empty")
}

func TestRuleKeyUniquenessComponents(t *testing.T) {
	r1 := &Rule{Name: "demo", Type: RuleTypeSignaturePattern, BuiltIn: true}
	r2 := &Rule{Name: "demo", Type: RuleTypeSignaturePattern, BuiltIn: false}
	assert.NotEqual(t, r1.Key(), r2.Key())
}

func TestFieldsCOWShallowCopyIsolatesWrites(t *testing.T) {
	base := NewFieldsCOWFromMap(map[string]any{"EventID": 4625})
	copyA := base.ShallowCopy()
	copyA.Set("EventID", 4624)

	v, ok := base.Get("EventID")
	require.True(t, ok)
	assert.Equal(t, 4625, v, "writing to the shallow copy must not mutate the original")

	v2, _ := copyA.Get("EventID")
	assert.Equal(t, 4624, v2)
}
