package mitre

import (
	"sort"

	"forensiq/pkg/types"
)

// sophisticationScore is +10 per "advanced" technique, +5 per distinct
// tactic, +3 per high-confidence (>=80) technique, capped at 100
// (spec §4.E).
func sophisticationScore(techniques []types.Technique) int {
	score := 0
	tactics := make(map[string]bool)
	for _, t := range techniques {
		tactics[t.Tactic] = true
		if t.Confidence >= 80 {
			score += 3
		}
	}
	for _, t := range techniques {
		if info, ok := seedTechniqueByID(t.ID); ok && info.Advanced {
			score += 10
		}
	}
	score += 5 * len(tactics)
	if score > 100 {
		score = 100
	}
	return score
}

func seedTechniqueByID(id string) (TechniqueInfo, bool) {
	for _, t := range seedTechniques {
		if t.ID == id {
			return t, true
		}
	}
	return TechniqueInfo{}, false
}

// GroupScore is one threat group's attribution score.
type GroupScore struct {
	Name       string
	Score      float64
	Coverage   float64 // fraction of the group's known techniques matched
	MatchedIDs []string
}

// attributeGroups scores each known threat group by the sum of
// matched-technique confidence weighted by the group's coverage
// fraction, returning the top 5 (spec §4.E).
func attributeGroups(kb *KnowledgeBase, techniques []types.Technique) []GroupScore {
	confidenceByID := make(map[string]int, len(techniques))
	for _, t := range techniques {
		confidenceByID[t.ID] = t.Confidence
	}

	var scores []GroupScore
	for _, group := range kb.Groups() {
		if len(group.Techniques) == 0 {
			continue
		}
		var matched []string
		sum := 0
		for _, id := range group.Techniques {
			if conf, ok := confidenceByID[id]; ok {
				matched = append(matched, id)
				sum += conf
			}
		}
		if len(matched) == 0 {
			continue
		}
		coverage := float64(len(matched)) / float64(len(group.Techniques))
		scores = append(scores, GroupScore{
			Name:       group.Name,
			Score:      float64(sum) * coverage,
			Coverage:   coverage,
			MatchedIDs: matched,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if len(scores) > 5 {
		scores = scores[:5]
	}
	return scores
}
