// Package types - interface definitions for pluggable components.
package types

import "context"

// RuleProcessor is the contract every rule dialect (signature, structured,
// object-pattern, or a host-registered custom dialect) implements. The
// dispatcher (internal/ruleengine) groups rules by RuleType and delegates
// each group to the processor registered for that type.
type RuleProcessor interface {
	// Validate performs dialect-specific syntax validation of rule content,
	// returning structured findings without throwing: InputErrors are
	// always data, never exceptions (spec §7).
	Validate(content string) (errs []string, warnings []string)

	// Compile translates rule content into whatever internal form the
	// processor evaluates; the result is opaque to the dispatcher.
	Compile(rule *Rule) (compiled any, err error)

	// Evaluate runs a compiled rule against the event stream and raw
	// content, honoring ctx cancellation at every loop boundary.
	Evaluate(ctx context.Context, compiled any, events []LogEvent, raw []byte) (*RuleMatch, error)
}

// Parser turns a raw blob into an ordered sequence of LogEvents. Concrete
// parsers are produced by the plugin host's sandbox from user-supplied
// source (internal/pluginhost).
type Parser interface {
	Parse(ctx context.Context, raw []byte) (*ParseResult, error)
}
