package orchestrator

import (
	"fmt"

	"forensiq/internal/pluginhost"
)

// ParserEntry binds a loaded plugin-host handle to a selection predicate
// used for content-based dispatch (spec §4.F phase 15).
type ParserEntry struct {
	ID      string
	Handle  pluginhost.Handle
	Matches func(fileName string, sample []byte) bool
}

// ParserRegistry holds the set of loaded parsers an orchestrator run can
// select among.
type ParserRegistry struct {
	entries   []ParserEntry
	defaultID string
}

// NewParserRegistry creates an empty registry. defaultID names the
// parser used when no preferred id is given and no entry's Matches
// predicate fires.
func NewParserRegistry(defaultID string) *ParserRegistry {
	return &ParserRegistry{defaultID: defaultID}
}

// Register adds a parser entry.
func (r *ParserRegistry) Register(entry ParserEntry) {
	r.entries = append(r.entries, entry)
}

// Select resolves a parser handle for this file: preferred id first,
// then the first matching predicate in registration order, then the
// registry's default (spec §4.F: "preferred id or content-based
// dispatch").
func (r *ParserRegistry) Select(preferredID, fileName string, sample []byte) (pluginhost.Handle, string, error) {
	if preferredID != "" {
		for _, e := range r.entries {
			if e.ID == preferredID {
				return e.Handle, e.ID, nil
			}
		}
		return pluginhost.Handle{}, "", fmt.Errorf("orchestrator: preferred parser %q is not registered", preferredID)
	}
	for _, e := range r.entries {
		if e.Matches != nil && e.Matches(fileName, sample) {
			return e.Handle, e.ID, nil
		}
	}
	for _, e := range r.entries {
		if e.ID == r.defaultID {
			return e.Handle, e.ID, nil
		}
	}
	return pluginhost.Handle{}, "", fmt.Errorf("orchestrator: no parser matched %q and no default is registered", fileName)
}
