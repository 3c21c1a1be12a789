package mitre

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

func TestMapMergesDuplicateTechniquesAcrossMappers(t *testing.T) {
	kb := NewKnowledgeBase()
	m := New(kb)

	in := Input{
		EvidenceText: "attacker used powershell -enc and scheduled task schtasks to persist, then beaconed to c2 server",
		IOCs: []types.IOC{
			{Type: types.IOCTypeDomain, Value: "evil.example"},
		},
		ThreatLevel: types.SeverityHigh,
	}
	result := m.Map(context.Background(), in)
	require.NotEmpty(t, result.Techniques)

	found := false
	for _, tech := range result.Techniques {
		if tech.ID == "T1053" {
			found = true
			assert.Greater(t, tech.Confidence, 55)
		}
	}
	assert.True(t, found, "expected T1053 to be proposed by both the behavior and persistence mappers")
}

func TestIdentifyChainsRequiresTwoOfThree(t *testing.T) {
	techniques := []types.Technique{
		{ID: "T1566.001", Confidence: 80},
		{ID: "T1059.001", Confidence: 80},
	}
	chains := identifyChains(techniques)
	require.Len(t, chains, 1)
	assert.Equal(t, "Phishing -> Execution -> Impact", chains[0].Name)
	assert.InDelta(t, 2.0/3.0, chains[0].Confidence, 0.001)
}

func TestSophisticationScoreAccumulates(t *testing.T) {
	techniques := []types.Technique{
		{ID: "T1059.001", Tactic: "execution", Confidence: 85},
		{ID: "T1071", Tactic: "command-and-control", Confidence: 90},
	}
	score := sophisticationScore(techniques)
	assert.Greater(t, score, 0)
	assert.LessOrEqual(t, score, 100)
}

func TestAttributeGroupsReturnsTopFive(t *testing.T) {
	kb := NewKnowledgeBase()
	techniques := []types.Technique{
		{ID: "T1566.001", Confidence: 80},
		{ID: "T1059.001", Confidence: 70},
		{ID: "T1547", Confidence: 60},
	}
	scores := attributeGroups(kb, techniques)
	require.NotEmpty(t, scores)
	assert.LessOrEqual(t, len(scores), 5)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}
}

func TestKnowledgeBaseRefreshIsIdempotent(t *testing.T) {
	kb := NewKnowledgeBase()
	before, ok := kb.Lookup("T1059.001")
	require.True(t, ok)
	kb.Refresh()
	after, ok := kb.Lookup("T1059.001")
	require.True(t, ok)
	assert.Equal(t, before, after)
}
