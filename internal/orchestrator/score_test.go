package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"forensiq/pkg/types"
)

// TestComputeThreatScoreMatchesSpecScenarioSix pins spec.md §8 scenario
// 6's worked numbers: one High-severity rule match at confidence 0.8
// with match_count 2, plus two confidence-100 file-hash IOCs that carry
// no malicious context. Rule score 60, IOC score 50, final 55, severity
// medium (55 is below the 60 "high" threshold but above "medium"'s 30).
func TestComputeThreatScoreMatchesSpecScenarioSix(t *testing.T) {
	matches := []types.RuleMatch{
		{Severity: types.SeverityHigh, Confidence: 0.8, MatchCount: 2},
	}
	iocs := []types.IOC{
		{Type: types.IOCTypeSHA256, Confidence: 100, Malicious: false},
		{Type: types.IOCTypeSHA256, Confidence: 100, Malicious: false},
	}

	score := computeThreatScore(matches, iocs)
	assert.Equal(t, 55.0, score)
	assert.Equal(t, types.SeverityMedium, types.SeverityFromScore(score))
}

func TestIsMaliciousDefersToExtractorSignal(t *testing.T) {
	assert.False(t, isMalicious(types.IOC{Confidence: 100, Malicious: false}))
	assert.True(t, isMalicious(types.IOC{Confidence: 10, Malicious: true}))
}

func TestRuleWeightAndIOCWeightSubcomponents(t *testing.T) {
	rw, ok := ruleWeight([]types.RuleMatch{{Severity: types.SeverityHigh, Confidence: 0.8, MatchCount: 2}})
	assert.True(t, ok)
	assert.Equal(t, 60.0, rw)

	iw, ok := iocWeight([]types.IOC{
		{Type: types.IOCTypeSHA256, Confidence: 100},
		{Type: types.IOCTypeSHA256, Confidence: 100},
	})
	assert.True(t, ok)
	assert.Equal(t, 50.0, iw)
}
