package mitre

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"forensiq/pkg/types"
)

// Input is the evidence bundle every mapper runs against (spec §4.E:
// "(rule_matches, iocs, evidence_text, file_extension, threat_level)").
type Input struct {
	RuleMatches   []types.RuleMatch
	IOCs          []types.IOC
	EvidenceText  string
	FileExtension string
	ThreatLevel   types.Severity
}

// candidate is one evidence mapper's proposal for a technique.
type candidate struct {
	TechniqueID string
	Confidence  int
}

// evidenceMapper is the signature every one of the eight mapper
// functions implements.
type evidenceMapper func(kb *KnowledgeBase, in Input) []candidate

// Mapper runs the eight evidence mappers, merges their proposals
// through the knowledge base, and derives attack chains, sophistication
// score, and threat-group attribution (spec §4.E).
type Mapper struct {
	kb      *KnowledgeBase
	mappers []evidenceMapper
}

// New creates a Mapper backed by the given knowledge base, wiring all
// eight built-in evidence mappers.
func New(kb *KnowledgeBase) *Mapper {
	return &Mapper{
		kb: kb,
		mappers: []evidenceMapper{
			mapFromIOCs,
			mapFromBehavior,
			mapFromArtifacts,
			mapFromFileOps,
			mapFromNetwork,
			mapFromPersistence,
			mapFromEvasion,
			mapFromC2,
		},
	}
}

// Result is everything the MITRE Mapper produces for one analysis
// (spec §4.E's Outputs).
type Result struct {
	Techniques          []types.Technique
	AttackChains        []ChainMatch
	SophisticationScore int
	Attribution         []GroupScore
}

// Map runs all eight evidence mappers, merges candidates by technique
// id (+10 confidence per additional mapper proposing the same id,
// capped at 100), and derives chains/score/attribution from the merged
// set.
func (m *Mapper) Map(ctx context.Context, in Input) Result {
	merged := make(map[string]*types.Technique)
	order := make([]string, 0, 8)

	for _, mapFn := range m.mappers {
		if ctx.Err() != nil {
			break
		}
		for _, c := range mapFn(m.kb, in) {
			info, ok := m.kb.Lookup(c.TechniqueID)
			if !ok {
				continue
			}
			if existing, seen := merged[c.TechniqueID]; seen {
				existing.RaiseConfidence(10)
				continue
			}
			tech, err := types.NewTechnique(info.ID, info.Name, info.Tactic, info.Platform, info.Description, c.Confidence)
			if err != nil {
				continue
			}
			tech.DataSources = info.DataSources
			merged[c.TechniqueID] = tech
			order = append(order, c.TechniqueID)
		}
	}

	techniques := make([]types.Technique, 0, len(merged))
	for _, id := range order {
		if t, ok := merged[id]; ok {
			techniques = append(techniques, *t)
			delete(merged, id)
		}
	}
	sort.SliceStable(techniques, func(i, j int) bool { return techniques[i].Confidence > techniques[j].Confidence })

	return Result{
		Techniques:          techniques,
		AttackChains:        identifyChains(techniques),
		SophisticationScore: sophisticationScore(techniques),
		Attribution:         attributeGroups(m.kb, techniques),
	}
}

func hasExtension(fileExtension string, exts ...string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileExtension), "."))
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(fileExtension, "."))
	}
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func textContainsAny(text string, tokens ...string) bool {
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
