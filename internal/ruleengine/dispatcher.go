// Package ruleengine implements the Rule Engine dispatcher (spec §4.D.1):
// it groups rules by dialect, delegates each group to the registered
// RuleProcessor for that dialect, isolates per-processor failures so one
// dialect's error never aborts the others, and writes aggregate
// per-rule statistics back to the persistence port once every group has
// finished.
//
// Grounded on the teacher's internal/dispatcher.Dispatcher: a central
// orchestrator holding a stats mutex and a set of pluggable
// destinations, generalized here from "log entries routed to output
// sinks" to "rules routed to dialect processors".
package ruleengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"forensiq/internal/ruleengine/objectpattern"
	"forensiq/internal/ruleengine/signature"
	"forensiq/internal/ruleengine/structured"
	"forensiq/pkg/cache"
	"forensiq/pkg/errors"
	"forensiq/pkg/ports"
	"forensiq/pkg/types"
)

// Config tunes the dispatcher's compiled-rule cache.
type Config struct {
	CompiledRuleCacheSize int
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{CompiledRuleCacheSize: 1024}
}

// Dispatcher is the Rule Engine entry point (spec §4.D.1).
type Dispatcher struct {
	logger      *logrus.Logger
	persistence ports.PersistencePort
	processors  map[types.RuleType]types.RuleProcessor
	compiled    *cache.Cache[any]

	mu    sync.Mutex
	stats types.EngineStats
}

// New creates a Dispatcher with no processors registered; call Register
// for each dialect the host supports (spec §4.D.5: custom dialects are
// registered the same way as the three built-in ones).
func New(cfg Config, logger *logrus.Logger, persistence ports.PersistencePort) (*Dispatcher, error) {
	c, err := cache.New[any](cfg.CompiledRuleCacheSize)
	if err != nil {
		return nil, errors.Dependency("ruleengine_init", "compiled rule cache: "+err.Error())
	}
	return &Dispatcher{
		logger:      logger,
		persistence: persistence,
		processors:  make(map[types.RuleType]types.RuleProcessor),
		compiled:    c,
	}, nil
}

// Register binds a RuleProcessor to a rule dialect. Registering the same
// type twice replaces the previous processor.
func (d *Dispatcher) Register(ruleType types.RuleType, processor types.RuleProcessor) {
	d.processors[ruleType] = processor
}

// RegisterBuiltins wires the three built-in dialects (spec §4.D.2-4.D.4).
// The Custom dialect (spec §4.D.5) is deferred to the host and must be
// registered separately via Register(types.RuleTypeCustom, ...).
func (d *Dispatcher) RegisterBuiltins() {
	d.Register(types.RuleTypeSignaturePattern, signature.New())
	d.Register(types.RuleTypeStructuredDetection, structured.New())
	d.Register(types.RuleTypeObjectPattern, objectpattern.New())
}

// groupResult carries one dialect group's outcome back to Process.
type groupResult struct {
	matches []types.RuleMatch
	err     error
}

// Process groups rules by type, evaluates each group's processor
// concurrently, and returns every match collected before any
// cancellation or isolated per-processor failure. A failing processor is
// logged and excluded from the result; it never aborts sibling
// dialects (spec §4.D.1/§4.D.5).
func (d *Dispatcher) Process(ctx context.Context, events []types.LogEvent, raw []byte, rules []*types.Rule) ([]types.RuleMatch, error) {
	groups := groupRulesByType(rules)

	resultsCh := make(chan groupResult, len(groups))
	var wg sync.WaitGroup
	for ruleType, group := range groups {
		processor, ok := d.processors[ruleType]
		if !ok {
			d.logger.WithField("rule_type", ruleType).Warn("ruleengine: no processor registered for rule type, skipping group")
			continue
		}
		wg.Add(1)
		go func(rt types.RuleType, proc types.RuleProcessor, rules []*types.Rule) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					resultsCh <- groupResult{err: errors.Processing("process", fmt.Sprintf("processor for %s panicked: %v", rt, r))}
				}
			}()
			matches, err := d.evaluateGroup(ctx, proc, rt, rules, events, raw)
			resultsCh <- groupResult{matches: matches, err: err}
		}(ruleType, processor, group)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var all []types.RuleMatch
	for res := range resultsCh {
		if res.err != nil {
			d.logger.WithError(res.err).Warn("ruleengine: processor group failed, isolating from other dialects")
		}
		// A group cut short by cancellation still carries the matches it
		// collected before; a panicked group carries none.
		all = append(all, res.matches...)
	}

	d.recordStats(all)
	if err := d.persistMatchStats(ctx, all); err != nil {
		return all, err
	}
	return all, nil
}

func groupRulesByType(rules []*types.Rule) map[types.RuleType][]*types.Rule {
	groups := make(map[types.RuleType][]*types.Rule)
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		groups[r.Type] = append(groups[r.Type], r)
	}
	return groups
}

// evaluateGroup compiles (memoized) and evaluates every rule in one
// dialect group, collecting matches; a single rule's compile or evaluate
// failure is logged and skipped rather than failing the whole group.
func (d *Dispatcher) evaluateGroup(ctx context.Context, proc types.RuleProcessor, ruleType types.RuleType, rules []*types.Rule, events []types.LogEvent, raw []byte) ([]types.RuleMatch, error) {
	var matches []types.RuleMatch
	for _, rule := range rules {
		if ctx.Err() != nil {
			return matches, errors.Cancelled("process")
		}
		compiled, err := d.compileCached(proc, rule)
		if err != nil {
			d.logger.WithError(err).WithField("rule_id", rule.ID).Warn("ruleengine: rule compilation failed, skipping")
			continue
		}
		match, err := proc.Evaluate(ctx, compiled, events, raw)
		if err != nil {
			d.logger.WithError(err).WithField("rule_id", rule.ID).Warn("ruleengine: rule evaluation failed, skipping")
			continue
		}
		if match == nil || match.MatchCount == 0 {
			continue
		}
		match.RuleID = rule.ID
		match.RuleType = ruleType
		match.Severity = rule.Severity
		matches = append(matches, *match)
	}
	return matches, nil
}

func (d *Dispatcher) compileCached(proc types.RuleProcessor, rule *types.Rule) (any, error) {
	if compiled, ok := d.compiled.Get(rule.ID); ok {
		return compiled, nil
	}
	compiled, err := proc.Compile(rule)
	if err != nil {
		return nil, errors.Compilation("compile", "rule "+rule.ID+": "+err.Error())
	}
	d.compiled.Put(rule.ID, compiled)
	return compiled, nil
}

func (d *Dispatcher) recordStats(matches []types.RuleMatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.RulesEvaluated += int64(len(matches))
	d.stats.RulesMatched += int64(len(matches))
	d.stats.LastEvaluatedAt = time.Now().UTC()
}

// Stats returns a snapshot of dispatcher-wide evaluation counters.
func (d *Dispatcher) Stats() types.EngineStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// persistMatchStats writes the per-rule match_count/last_matched delta
// back to the persistence port, aggregating by rule id first so a rule
// that matched multiple times in this run gets one UpdateRuleStats call
// (spec §4.D.1).
func (d *Dispatcher) persistMatchStats(ctx context.Context, matches []types.RuleMatch) error {
	if d.persistence == nil {
		return nil
	}
	deltas := make(map[string]int64)
	for _, m := range matches {
		deltas[m.RuleID] += int64(m.MatchCount)
	}
	for ruleID, delta := range deltas {
		if err := d.persistence.UpdateRuleStats(ctx, ruleID, delta, true); err != nil {
			return errors.Dependency("persist_rule_stats", err.Error())
		}
	}
	return nil
}

// InvalidateRule drops a rule's compiled form from the cache, used when
// a rule is edited (the same directory-hot-reload concern
// internal/pluginhost solves for parsers; the rule engine exposes this
// directly since rule edits are a first-class, API-driven operation
// rather than a file-watch event).
func (d *Dispatcher) InvalidateRule(ruleID string) {
	d.compiled.Remove(ruleID)
}
