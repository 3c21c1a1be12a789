package orchestrator

import "forensiq/pkg/types"

// AnalysisOptions are the per-run knobs spec §4.F names.
type AnalysisOptions struct {
	PreferredParserID     string
	DeepScan              bool // reserved for processor depth
	ExtractIOCs           bool
	CheckExternal         bool // external enrichment sink
	EnableAI              bool
	MapToMitre            bool
	MaxEvents             int // 0 = unbounded
	TimeoutMinutes        int
	IncludeRuleTypes      []types.RuleType
	ExcludeRuleCategories []string
}

// DefaultAnalysisOptions returns spec §4.F's documented defaults.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		DeepScan:       true,
		ExtractIOCs:    true,
		CheckExternal:  false,
		EnableAI:       false,
		MapToMitre:     true,
		MaxEvents:      100_000,
		TimeoutMinutes: 30,
	}
}

func (o AnalysisOptions) ruleIncluded(r *types.Rule) bool {
	if len(o.IncludeRuleTypes) > 0 {
		included := false
		for _, t := range o.IncludeRuleTypes {
			if r.Type == t {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, cat := range o.ExcludeRuleCategories {
		if r.Category == cat {
			return false
		}
	}
	return true
}
