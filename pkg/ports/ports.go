// Package ports defines the external collaborators the analysis engine
// depends on but does not implement: the relational store, the blob
// store, and the realtime progress channel (spec §6). HTTP controllers,
// authentication, and AI summarization are collaborators too but have no
// port here — they either call into the engine (controllers) or consume
// its output as a pure sink (AI summarization) without the engine calling
// back into them through a narrow interface.
package ports

import (
	"context"
	"io"

	"forensiq/pkg/types"
)

// Filter narrows a List query against the persistence port. Zero-valued
// fields are wildcards.
type Filter struct {
	AnalysisID string
	Type       string
	Status     string
	Limit      int
}

// PersistencePort is the relational-store abstraction every component
// writes its results through. Each phase writes atomically; cross-phase
// consistency beyond monotonic Analysis.Status is not required (spec §6).
type PersistencePort interface {
	SaveAnalysis(ctx context.Context, a *types.Analysis) error
	LoadAnalysis(ctx context.Context, id string) (*types.Analysis, error)
	ListAnalyses(ctx context.Context, f Filter) ([]*types.Analysis, error)

	SaveRule(ctx context.Context, r *types.Rule) error
	LoadRule(ctx context.Context, id string) (*types.Rule, error)
	ListRules(ctx context.Context, f Filter) ([]*types.Rule, error)

	SaveRuleMatches(ctx context.Context, analysisID string, matches []types.RuleMatch) error
	SaveIOCs(ctx context.Context, analysisID string, iocs []types.IOC) error
	SaveTechniques(ctx context.Context, analysisID string, techniques []types.Technique) error

	// UpdateRuleStats applies the dispatcher's aggregate per-rule delta
	// (spec §4.D.1) after one Process() call finishes.
	UpdateRuleStats(ctx context.Context, ruleID string, deltaMatches int64, lastMatched bool) error
}

// BlobStore is the file-storage abstraction. Files are read as UTF-8
// text; non-text artifacts are out of scope (spec §6).
type BlobStore interface {
	List(ctx context.Context, uploadID string) ([]string, error)
	Open(ctx context.Context, uploadID, fileName string) (io.ReadCloser, error)
}

// ProgressKind enumerates the progress-sink message kinds (spec §6).
type ProgressKind string

const (
	ProgressKindProgress  ProgressKind = "progress"
	ProgressKindRuleMatch ProgressKind = "rule_match"
	ProgressKindIOCFound  ProgressKind = "ioc_found"
	ProgressKindCompleted ProgressKind = "completed"
	ProgressKindError     ProgressKind = "error"
)

// ProgressMessage is one event published to a ProgressSink.
type ProgressMessage struct {
	AnalysisID string
	Kind       ProgressKind
	Payload    map[string]any
}

// ProgressSink is the realtime push-channel abstraction. Delivery is
// best-effort and must not block orchestration for more than a small
// bounded duration (spec §6 suggests 1s; see pluginhost/ sandbox-style
// timeout pattern reused here).
type ProgressSink interface {
	Publish(ctx context.Context, msg ProgressMessage) error
}
