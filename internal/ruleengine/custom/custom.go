// Package custom implements the pluggable fourth rule dialect (spec
// §4.D.5): the core only routes rules tagged RuleTypeCustom to whatever
// Processor the host has registered, matching the teacher's
// pkg/types.Processor pluggable-transform interface idiom.
package custom

import (
	"context"
	"fmt"
	"sync"

	"forensiq/pkg/types"
)

// Registry holds host-registered custom processors, keyed by the
// sub-dialect name a rule's metadata declares (e.g. "lua", "wasm").
// The dispatcher registers the Registry itself under RuleTypeCustom;
// the Registry fans out to whichever named implementation a rule asks
// for.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]types.RuleProcessor
	fallback   string
}

// New creates an empty Registry. If fallback is non-empty it names the
// processor used when a rule does not declare a dialect in its
// metadata.
func New(fallback string) *Registry {
	return &Registry{processors: make(map[string]types.RuleProcessor), fallback: fallback}
}

// Register adds or replaces the processor for the given dialect name.
func (r *Registry) Register(name string, processor types.RuleProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[name] = processor
}

// Unregister removes a previously registered dialect.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processors, name)
}

func (r *Registry) resolve(rule *types.Rule) (types.RuleProcessor, error) {
	dialect := r.fallback
	if rule != nil && rule.Metadata != nil {
		if d, ok := rule.Metadata["dialect"].(string); ok && d != "" {
			dialect = d
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[dialect]
	if !ok {
		return nil, fmt.Errorf("custom: no processor registered for dialect %q", dialect)
	}
	return p, nil
}

// Validate resolves a processor purely from content is not possible for
// Custom rules without a rule handle, so Validate reports only that
// content is non-empty; dialect-specific validation happens in Compile
// once the rule (and its metadata) is available.
func (r *Registry) Validate(content string) (errs []string, warnings []string) {
	if content == "" {
		return []string{"custom: rule content is empty"}, nil
	}
	return nil, nil
}

// Compile resolves the named dialect from rule.Metadata["dialect"] (or
// the registry's fallback) and delegates compilation to it.
func (r *Registry) Compile(rule *types.Rule) (any, error) {
	p, err := r.resolve(rule)
	if err != nil {
		return nil, err
	}
	compiled, err := p.Compile(rule)
	if err != nil {
		return nil, err
	}
	return customCompiled{processor: p, inner: compiled}, nil
}

// Evaluate delegates to the processor resolved at Compile time.
func (r *Registry) Evaluate(ctx context.Context, compiled any, events []types.LogEvent, raw []byte) (*types.RuleMatch, error) {
	cc, ok := compiled.(customCompiled)
	if !ok {
		return nil, fmt.Errorf("custom: compiled value is not a custom dialect handle")
	}
	return cc.processor.Evaluate(ctx, cc.inner, events, raw)
}

// customCompiled threads the resolved processor alongside its own
// compiled value, since Evaluate only receives the opaque `compiled` arg.
type customCompiled struct {
	processor types.RuleProcessor
	inner     any
}
