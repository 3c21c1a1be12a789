package ports

import (
	"context"
	"sync"
	"time"

	"forensiq/pkg/errors"
	"forensiq/pkg/types"
)

// MemoryPersistence is an in-memory PersistencePort, grounded on the
// teacher's mutex-guarded stats-collector idiom (internal/dispatcher's
// StatsCollector: one RWMutex protecting one map, read access returning
// deep copies). It is the default store wired by internal/app for local
// runs and tests; a real deployment swaps it for a relational adapter
// without the orchestrator knowing the difference.
type MemoryPersistence struct {
	mu         sync.RWMutex
	analyses   map[string]*types.Analysis
	rules      map[string]*types.Rule
	matches    map[string][]types.RuleMatch
	iocs       map[string][]types.IOC
	techniques map[string][]types.Technique
}

// NewMemoryPersistence creates an empty in-memory persistence port.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		analyses:   make(map[string]*types.Analysis),
		rules:      make(map[string]*types.Rule),
		matches:    make(map[string][]types.RuleMatch),
		iocs:       make(map[string][]types.IOC),
		techniques: make(map[string][]types.Technique),
	}
}

func (m *MemoryPersistence) SaveAnalysis(_ context.Context, a *types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.analyses[a.ID] = &cp
	return nil
}

func (m *MemoryPersistence) LoadAnalysis(_ context.Context, id string) (*types.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, errors.New(errors.CodeResourceNotFound, "persistence", "load_analysis", "analysis "+id+" not found")
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryPersistence) ListAnalyses(_ context.Context, f Filter) ([]*types.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		if f.Status != "" && string(a.Status) != f.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryPersistence) SaveRule(_ context.Context, r *types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *MemoryPersistence) LoadRule(_ context.Context, id string) (*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, errors.New(errors.CodeResourceNotFound, "persistence", "load_rule", "rule "+id+" not found")
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryPersistence) ListRules(_ context.Context, f Filter) ([]*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if f.Type != "" && string(r.Type) != f.Type {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryPersistence) SaveRuleMatches(_ context.Context, analysisID string, matches []types.RuleMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.RuleMatch, len(matches))
	copy(cp, matches)
	m.matches[analysisID] = cp
	return nil
}

func (m *MemoryPersistence) SaveIOCs(_ context.Context, analysisID string, iocs []types.IOC) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.IOC, len(iocs))
	copy(cp, iocs)
	m.iocs[analysisID] = cp
	return nil
}

func (m *MemoryPersistence) SaveTechniques(_ context.Context, analysisID string, techniques []types.Technique) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.Technique, len(techniques))
	copy(cp, techniques)
	m.techniques[analysisID] = cp
	return nil
}

func (m *MemoryPersistence) UpdateRuleStats(_ context.Context, ruleID string, deltaMatches int64, lastMatched bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[ruleID]
	if !ok {
		return errors.New(errors.CodeResourceNotFound, "persistence", "update_rule_stats", "rule "+ruleID+" not found")
	}
	r.MatchCount += deltaMatches
	if lastMatched {
		r.LastMatchedAt = time.Now().UTC()
	}
	return nil
}
