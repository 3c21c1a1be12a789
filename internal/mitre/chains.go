package mitre

import "forensiq/pkg/types"

// ChainPattern is a predefined attack chain: a human-readable label plus
// the technique ids considered its required steps (spec §4.E).
type ChainPattern struct {
	Name              string
	RequiredTechnique []string
}

// ChainMatch is one chain pattern's match result against the merged
// technique set.
type ChainMatch struct {
	Name       string
	Matched    []string
	Required   int
	Confidence float64 // matched/required
}

// chainPatterns are the predefined chains spec §4.E names by example
// ("Phishing -> Execution -> Impact").
var chainPatterns = []ChainPattern{
	{
		Name:              "Phishing -> Execution -> Impact",
		RequiredTechnique: []string{"T1566.001", "T1059.001", "T1486"},
	},
	{
		Name:              "Initial Access -> Persistence -> C2",
		RequiredTechnique: []string{"T1566", "T1547", "T1071"},
	},
	{
		Name:              "Credential Access -> Lateral Movement -> Exfiltration",
		RequiredTechnique: []string{"T1003", "T1021", "T1041"},
	},
}

// identifyChains matches each predefined chain if at least 2 of its 3
// required technique ids are present in techniques (spec §4.E).
func identifyChains(techniques []types.Technique) []ChainMatch {
	present := make(map[string]bool, len(techniques))
	for _, t := range techniques {
		present[t.ID] = true
	}

	var chains []ChainMatch
	for _, pattern := range chainPatterns {
		var matched []string
		for _, id := range pattern.RequiredTechnique {
			if present[id] {
				matched = append(matched, id)
			}
		}
		if len(matched) < 2 {
			continue
		}
		chains = append(chains, ChainMatch{
			Name:       pattern.Name,
			Matched:    matched,
			Required:   len(pattern.RequiredTechnique),
			Confidence: float64(len(matched)) / float64(len(pattern.RequiredTechnique)),
		})
	}
	return chains
}
