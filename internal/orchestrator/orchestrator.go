// Package orchestrator implements the Analysis Orchestrator (spec §4.F):
// a fixed ten-phase pipeline with monotonic progress anchors, wrapping
// the Parser Plugin Host, Rule Engine, IOC Extractor, and MITRE Mapper
// around one analysis. Generalized from the teacher's
// internal/dispatcher.Dispatcher: config, logger, a semaphore gating
// concurrency, and a cancellation token derived per unit of work, here
// one unit of work is one analysis instead of one log entry.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"forensiq/internal/iocextractor"
	"forensiq/internal/mitre"
	"forensiq/internal/pluginhost"
	"forensiq/internal/ruleengine"
	"forensiq/pkg/circuitbreaker"
	"forensiq/pkg/errors"
	"forensiq/pkg/ports"
	"forensiq/pkg/types"
)

// Config tunes process-wide orchestrator behavior.
type Config struct {
	MaxConcurrentAnalyses int
}

// DefaultConfig gates at most 5 concurrent analyses (spec §5).
func DefaultConfig() Config {
	return Config{MaxConcurrentAnalyses: 5}
}

// AISink is the external summarization collaborator (spec §4.F phase
// 90): a pure sink over the finished result, out of scope for this
// core per spec §1. A nil AISink makes phase 90 a no-op progress
// anchor.
type AISink interface {
	Summarize(ctx context.Context, analysisID string, events []types.LogEvent, matches []types.RuleMatch) ([]byte, error)
}

// Orchestrator runs one analysis at a time per Run call, gated process
// wide by a semaphore (spec §5: "task-parallel... gated by a semaphore
// (default 5)").
type Orchestrator struct {
	cfg    Config
	logger *logrus.Logger

	persistence ports.PersistencePort
	blobStore   ports.BlobStore
	progress    ports.ProgressSink
	pluginHost  *pluginhost.Host
	parsers     *ParserRegistry
	rules       *ruleengine.Dispatcher
	mitreMapper *mitre.Mapper
	aiSink      AISink
	tracer      *TracingManager

	sem                chan struct{}
	persistenceBreaker *circuitbreaker.Breaker
	blobBreaker        *circuitbreaker.Breaker
	progressBreaker    *circuitbreaker.Breaker
}

// New wires an Orchestrator. aiSink and tracer may be nil.
func New(
	cfg Config,
	logger *logrus.Logger,
	persistence ports.PersistencePort,
	blobStore ports.BlobStore,
	progress ports.ProgressSink,
	pluginHost *pluginhost.Host,
	parsers *ParserRegistry,
	rules *ruleengine.Dispatcher,
	mitreMapper *mitre.Mapper,
	aiSink AISink,
	tracer *TracingManager,
) *Orchestrator {
	if cfg.MaxConcurrentAnalyses <= 0 {
		cfg.MaxConcurrentAnalyses = 5
	}
	if tracer == nil {
		tracer, _ = NewTracingManager(DefaultTracingConfig())
	}
	return &Orchestrator{
		cfg:                cfg,
		logger:             logger,
		persistence:        persistence,
		blobStore:          blobStore,
		progress:           progress,
		pluginHost:         pluginHost,
		parsers:            parsers,
		rules:              rules,
		mitreMapper:        mitreMapper,
		aiSink:             aiSink,
		tracer:             tracer,
		sem:                make(chan struct{}, cfg.MaxConcurrentAnalyses),
		persistenceBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		blobBreaker:        circuitbreaker.New(circuitbreaker.DefaultConfig()),
		progressBreaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// Run executes one analysis end to end as the fixed ten-anchor pipeline
// (spec §4.F). It acquires the concurrency semaphore for its duration
// and derives a deadline-bound, cancellable context from ctx.
func (o *Orchestrator) Run(ctx context.Context, analysisID, uploadID string, opts AnalysisOptions) (*types.Analysis, error) {
	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		return nil, errors.Cancelled("acquire_analysis_slot")
	}

	timeout := time.Duration(opts.TimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	analysis := types.NewAnalysis(analysisID, "", 0)
	analysis.Status = types.StatusRunning

	if err := o.runPipeline(runCtx, analysis, uploadID, opts); err != nil {
		entry := o.logger.WithError(err).WithField("analysis_id", analysisID)
		if appErr, ok := errors.AsAppError(err); ok {
			for k, v := range appErr.ToMap() {
				entry = entry.WithField(k, v)
			}
			entry = entry.WithField("recoverable", appErr.IsRecoverable())
			if appErr.IsCritical() {
				entry.Error("orchestrator: analysis failed (critical)")
			} else {
				entry.Warn("orchestrator: analysis failed")
			}
		} else {
			entry.Error("orchestrator: analysis failed")
		}
		msg := "cancelled or timed out"
		if runCtx.Err() == nil {
			msg = err.Error()
		}
		_ = analysis.Finish(types.StatusFailed, msg)
		o.savePersist(ctx, analysis)
		o.publish(ctx, analysisID, ports.ProgressKindError, map[string]any{"analysis_id": analysisID, "message": msg})
		return analysis, err
	}

	_ = analysis.Finish(types.StatusCompleted, "")
	o.savePersist(ctx, analysis)
	o.publish(ctx, analysisID, ports.ProgressKindCompleted, map[string]any{
		"analysis_id":     analysisID,
		"progress":        100,
		"threat_score":    analysis.ThreatScore,
		"threat_severity": analysis.ThreatSeverity,
	})
	return analysis, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, analysis *types.Analysis, uploadID string, opts AnalysisOptions) error {
	// Phase 5: initialize, fetch file list from blob store.
	if err := o.advance(ctx, analysis, 5, "initialize"); err != nil {
		return err
	}
	var fileNames []string
	if err := o.blobBreaker.Execute(func() error {
		var err error
		fileNames, err = o.blobStore.List(ctx, uploadID)
		return err
	}); err != nil {
		return errors.Dependency("list_upload", err.Error())
	}
	if len(fileNames) == 0 {
		return errors.Input("list_upload", "upload "+uploadID+" contains no files")
	}
	fileName := fileNames[0]

	// Phase 10: load file, compute size/extension/hash.
	if err := o.advance(ctx, analysis, 10, "load_file"); err != nil {
		return err
	}
	raw, err := o.readFile(ctx, uploadID, fileName)
	if err != nil {
		return err
	}
	analysis.SourceFileName = fileName
	analysis.SourceFileSize = int64(len(raw))
	hash := sha256.Sum256(raw)
	if err := analysis.SetContentHash(hex.EncodeToString(hash[:])); err != nil {
		return errors.Processing("set_content_hash", err.Error())
	}
	ext := extensionOf(fileName)

	// Phase 15: select parser.
	if err := o.advance(ctx, analysis, 15, "select_parser"); err != nil {
		return err
	}
	handle, parserID, err := o.parsers.Select(opts.PreferredParserID, fileName, sampleOf(raw))
	if err != nil {
		return errors.Input("select_parser", err.Error())
	}
	analysis.ParserID = parserID

	// Phase 30: parse into events, truncate to max_events.
	if err := o.advance(ctx, analysis, 30, "parse"); err != nil {
		return err
	}
	result, err := o.pluginHost.Execute(ctx, handle, fileName, raw)
	if err != nil {
		return err
	}
	events := result.Events
	if opts.MaxEvents > 0 && len(events) > opts.MaxEvents {
		events = events[:opts.MaxEvents]
	}
	if eventsBlob, err := json.Marshal(events); err == nil {
		analysis.EventsBlob = eventsBlob
	}

	// Phase 50: dispatch rule engine, persist matches, emit per match.
	if err := o.advance(ctx, analysis, 50, "rule_engine"); err != nil {
		return err
	}
	matches, err := o.runRuleEngine(ctx, analysis, events, raw, opts)
	if err != nil {
		return err
	}

	// Phase 60: extract IOCs, persist, emit per IOC.
	if err := o.advance(ctx, analysis, 60, "extract_iocs"); err != nil {
		return err
	}
	iocs, err := o.runIOCExtraction(ctx, analysis, events, raw, opts)
	if err != nil {
		return err
	}

	// Phase 70: build timeline.
	if err := o.advance(ctx, analysis, 70, "build_timeline"); err != nil {
		return err
	}
	if timelineBlob, err := json.Marshal(buildTimeline(events, matches)); err == nil {
		analysis.TimelineBlob = timelineBlob
	}

	// Phase 80: MITRE mapping.
	if err := o.advance(ctx, analysis, 80, "mitre_mapping"); err != nil {
		return err
	}
	if opts.MapToMitre && o.mitreMapper != nil {
		mitreResult := o.mitreMapper.Map(ctx, mitre.Input{
			RuleMatches:   matches,
			IOCs:          iocs,
			EvidenceText:  string(raw),
			FileExtension: ext,
			ThreatLevel:   analysis.ThreatSeverity,
		})
		if mitreBlob, err := json.Marshal(mitreResult); err == nil {
			analysis.MitreBlob = mitreBlob
		}
		if err := o.savePersistErr(ctx, func() error {
			return o.persistence.SaveTechniques(ctx, analysis.ID, mitreResult.Techniques)
		}); err != nil {
			return err
		}
	}

	// Phase 90: AI summarization.
	if err := o.advance(ctx, analysis, 90, "ai_summarize"); err != nil {
		return err
	}
	if opts.EnableAI && o.aiSink != nil {
		summary, err := o.aiSink.Summarize(ctx, analysis.ID, events, matches)
		if err != nil {
			o.logger.WithError(err).Warn("orchestrator: AI summarization failed, continuing without it")
		} else {
			analysis.AISummary = summary
		}
	}

	// Phase 100: compute threat score + severity, mark Completed (caller
	// finishes the status transition once this returns).
	if err := o.advance(ctx, analysis, 100, "score"); err != nil {
		return err
	}
	score := computeThreatScore(matches, iocs)
	if err := analysis.SetScore(score); err != nil {
		return errors.Processing("set_score", err.Error())
	}
	return nil
}

func (o *Orchestrator) advance(ctx context.Context, analysis *types.Analysis, progress int, phase string) error {
	if ctx.Err() != nil {
		return errors.Cancelled(phase)
	}
	spanCtx, span := o.tracer.StartPhase(ctx, analysis.ID, phase)
	_ = spanCtx
	defer EndPhase(span, nil)

	if err := analysis.AdvanceProgress(progress, phase); err != nil {
		return errors.Processing(phase, err.Error())
	}
	o.savePersist(ctx, analysis)
	o.publish(ctx, analysis.ID, ports.ProgressKindProgress, map[string]any{
		"analysis_id": analysis.ID,
		"progress":    progress,
		"message":     phase,
	})
	return nil
}

func (o *Orchestrator) runRuleEngine(ctx context.Context, analysis *types.Analysis, events []types.LogEvent, raw []byte, opts AnalysisOptions) ([]types.RuleMatch, error) {
	allRules, err := o.persistence.ListRules(ctx, ports.Filter{})
	if err != nil {
		return nil, errors.Dependency("list_rules", err.Error())
	}
	rules := make([]*types.Rule, 0, len(allRules))
	for _, r := range allRules {
		if opts.ruleIncluded(r) {
			rules = append(rules, r)
		}
	}

	matches, err := o.rules.Process(ctx, events, raw, rules)
	if err != nil {
		return matches, err
	}
	if err := o.savePersistErr(ctx, func() error {
		return o.persistence.SaveRuleMatches(ctx, analysis.ID, matches)
	}); err != nil {
		return matches, err
	}
	for _, m := range matches {
		o.publish(ctx, analysis.ID, ports.ProgressKindRuleMatch, map[string]any{
			"rule_id":          m.RuleID,
			"rule_type":        m.RuleType,
			"severity":         m.Severity,
			"match_count":      m.MatchCount,
			"confidence":       m.Confidence,
			"mitre_attack_ids": m.MitreIDs,
		})
	}
	return matches, nil
}

func (o *Orchestrator) runIOCExtraction(ctx context.Context, analysis *types.Analysis, events []types.LogEvent, raw []byte, opts AnalysisOptions) ([]types.IOC, error) {
	if !opts.ExtractIOCs {
		return nil, nil
	}
	iocs := iocextractor.Extract(ctx, events, raw, iocextractor.DefaultConfig())
	if iocsBlob, err := json.Marshal(iocs); err == nil {
		analysis.IOCsBlob = iocsBlob
	}
	if err := o.savePersistErr(ctx, func() error {
		return o.persistence.SaveIOCs(ctx, analysis.ID, iocs)
	}); err != nil {
		return iocs, err
	}
	for _, ioc := range iocs {
		o.publish(ctx, analysis.ID, ports.ProgressKindIOCFound, map[string]any{
			"value":      ioc.Value,
			"type":       ioc.Type,
			"confidence": ioc.Confidence,
			"context":    ioc.Context,
			"first_seen": ioc.FirstSeen,
			"last_seen":  ioc.LastSeen,
		})
	}
	return iocs, nil
}

func (o *Orchestrator) readFile(ctx context.Context, uploadID, fileName string) ([]byte, error) {
	var raw []byte
	err := o.blobBreaker.Execute(func() error {
		reader, err := o.blobStore.Open(ctx, uploadID, fileName)
		if err != nil {
			return err
		}
		defer reader.Close()
		raw, err = io.ReadAll(reader)
		return err
	})
	if err != nil {
		return nil, errors.Dependency("read_file", err.Error())
	}
	return raw, nil
}

func (o *Orchestrator) savePersist(ctx context.Context, analysis *types.Analysis) {
	if err := o.persistenceBreaker.Execute(func() error {
		return o.persistence.SaveAnalysis(ctx, analysis)
	}); err != nil {
		o.logger.WithError(err).WithField("analysis_id", analysis.ID).Warn("orchestrator: save analysis failed")
	}
}

func (o *Orchestrator) savePersistErr(ctx context.Context, fn func() error) error {
	if err := o.persistenceBreaker.Execute(fn); err != nil {
		return errors.Dependency("persist", err.Error())
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, analysisID string, kind ports.ProgressKind, payload map[string]any) {
	if o.progress == nil {
		return
	}
	deadline, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := o.progressBreaker.Execute(func() error {
		return o.progress.Publish(deadline, ports.ProgressMessage{AnalysisID: analysisID, Kind: kind, Payload: payload})
	}); err != nil {
		o.logger.WithError(err).WithField("analysis_id", analysisID).Debug("orchestrator: progress publish failed, continuing")
	}
}

func extensionOf(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return ""
	}
	return ext[1:]
}

func sampleOf(raw []byte) []byte {
	const sampleSize = 4096
	if len(raw) <= sampleSize {
		return raw
	}
	return raw[:sampleSize]
}

// TimelineEntry is one ordered event in the merged timeline (spec §4.F
// phase 70: "ordered merge of events and match timestamps").
type TimelineEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"` // "event" or "rule_match"
	Description string    `json:"description"`
}

func buildTimeline(events []types.LogEvent, matches []types.RuleMatch) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(events)+len(matches))
	for _, e := range events {
		entries = append(entries, TimelineEntry{Timestamp: e.Timestamp, Kind: "event", Description: e.Message})
	}
	now := time.Now().UTC()
	for _, m := range matches {
		entries = append(entries, TimelineEntry{Timestamp: now, Kind: "rule_match", Description: fmt.Sprintf("rule %s matched %d time(s)", m.RuleID, m.MatchCount)})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries
}
