package orchestrator

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"forensiq/internal/mitre"
	"forensiq/internal/pluginhost"
	"forensiq/internal/ruleengine"
	"forensiq/pkg/errors"
	"forensiq/pkg/ports"
	"forensiq/pkg/types"
)

// memBlobStore is a minimal in-memory ports.BlobStore test double, since
// the real BlobStore implementation is disk-backed.
type memBlobStore struct {
	files map[string]map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{files: make(map[string]map[string][]byte)}
}

func (m *memBlobStore) Put(uploadID, fileName string, content []byte) {
	if m.files[uploadID] == nil {
		m.files[uploadID] = make(map[string][]byte)
	}
	m.files[uploadID][fileName] = content
}

func (m *memBlobStore) List(_ context.Context, uploadID string) ([]string, error) {
	names := make([]string, 0, len(m.files[uploadID]))
	for name := range m.files[uploadID] {
		names = append(names, name)
	}
	return names, nil
}

func (m *memBlobStore) Open(_ context.Context, uploadID, fileName string) (io.ReadCloser, error) {
	content, ok := m.files[uploadID][fileName]
	if !ok {
		return nil, errors.ResourceError("open", "file not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// lineParser turns every non-empty line into one LogEvent, flagging
// lines containing "malware.exe" so the rule-engine stage has something
// to match against.
type lineParser struct{}

func (lineParser) Parse(_ context.Context, raw []byte) (*types.ParseResult, error) {
	lines := strings.Split(string(raw), "\n")
	events := make([]types.LogEvent, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		events = append(events, types.LogEvent{LineNumber: i + 1, Raw: l, Message: l})
	}
	return &types.ParseResult{Events: events}, nil
}

func newTestOrchestrator(t *testing.T, progress ports.ProgressSink) (*Orchestrator, *memBlobStore, *ports.MemoryPersistence) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	host, err := pluginhost.New(pluginhost.DefaultConfig(), logger, func(id, source string) (pluginhost.Parser, error) {
		return lineParser{}, nil
	})
	require.NoError(t, err)
	artifact, err := host.Compile("lines", "package main\nfunc Parse() {}")
	require.NoError(t, err)
	handle := host.Load(artifact)

	parsers := NewParserRegistry("lines")
	parsers.Register(ParserEntry{ID: "lines", Handle: handle, Matches: func(string, []byte) bool { return true }})

	persistence := ports.NewMemoryPersistence()
	blobStore := newMemBlobStore()

	rules, err := ruleengine.New(ruleengine.DefaultConfig(), logger, persistence)
	require.NoError(t, err)
	rules.RegisterBuiltins()

	kb := mitre.NewKnowledgeBase()
	kb.Refresh()
	mapper := mitre.New(kb)

	tracer, err := NewTracingManager(DefaultTracingConfig())
	require.NoError(t, err)

	o := New(DefaultConfig(), logger, persistence, blobStore, progress, host, parsers, rules, mapper, nil, tracer)
	return o, blobStore, persistence
}

type capturingSink struct {
	messages []ports.ProgressMessage
}

func (c *capturingSink) Publish(_ context.Context, msg ports.ProgressMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func TestRunAdvancesProgressAnchorsInOrder(t *testing.T) {
	sink := &capturingSink{}
	o, blobStore, _ := newTestOrchestrator(t, sink)
	blobStore.Put("u1", "sample.log", []byte("user admin logged in\ndropped malware.exe to disk\n"))

	analysis, err := o.Run(context.Background(), "a1", "u1", DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, analysis.Status)

	var anchors []int
	for _, m := range sink.messages {
		if m.Kind == ports.ProgressKindProgress {
			anchors = append(anchors, m.Payload["progress"].(int))
		}
	}
	assert.Equal(t, []int{5, 10, 15, 30, 50, 60, 70, 80, 90, 100}, anchors)
}

func TestRunComputesThreatScoreFromMatchesAndIOCs(t *testing.T) {
	o, blobStore, _ := newTestOrchestrator(t, nil)
	blobStore.Put("u2", "sample.log", []byte("beaconing to 203.0.113.9 detected\ndropped malware.exe to disk\n"))

	analysis, err := o.Run(context.Background(), "a2", "u2", DefaultAnalysisOptions())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, analysis.Status)
	assert.GreaterOrEqual(t, analysis.ThreatScore, 0.0)
	assert.LessOrEqual(t, analysis.ThreatScore, 100.0)
}

func TestRunFailsWhenUploadHasNoFiles(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil)
	_, err := o.Run(context.Background(), "a3", "missing-upload", DefaultAnalysisOptions())
	require.Error(t, err)
}

func TestRunRespectsPreferredParserNotFound(t *testing.T) {
	o, blobStore, _ := newTestOrchestrator(t, nil)
	blobStore.Put("u4", "sample.log", []byte("hello\n"))
	opts := DefaultAnalysisOptions()
	opts.PreferredParserID = "does-not-exist"
	_, err := o.Run(context.Background(), "a4", "u4", opts)
	require.Error(t, err)
}

func TestRunPersistsAnalysisAcrossPhases(t *testing.T) {
	o, blobStore, persistence := newTestOrchestrator(t, nil)
	blobStore.Put("u5", "sample.log", []byte("hello world\n"))

	_, err := o.Run(context.Background(), "a5", "u5", DefaultAnalysisOptions())
	require.NoError(t, err)

	loaded, err := persistence.LoadAnalysis(context.Background(), "a5")
	require.NoError(t, err)
	assert.Equal(t, "sample.log", loaded.SourceFileName)
	assert.NotEmpty(t, loaded.ContentHash)
}

func TestBuildTimelineOrdersByTimestamp(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []types.LogEvent{
		{Message: "second", Timestamp: base.Add(time.Minute)},
		{Message: "first", Timestamp: base},
	}
	entries := buildTimeline(events, nil)
	assert.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Description)
}

func TestRuleIncludedFiltersByTypeAndCategory(t *testing.T) {
	opts := AnalysisOptions{
		IncludeRuleTypes:      []types.RuleType{types.RuleTypeSignaturePattern},
		ExcludeRuleCategories: []string{"noisy"},
	}
	included := &types.Rule{Type: types.RuleTypeSignaturePattern, Category: "malware"}
	wrongType := &types.Rule{Type: types.RuleTypeStructuredDetection, Category: "malware"}
	excludedCategory := &types.Rule{Type: types.RuleTypeSignaturePattern, Category: "noisy"}

	assert.True(t, opts.ruleIncluded(included))
	assert.False(t, opts.ruleIncluded(wrongType))
	assert.False(t, opts.ruleIncluded(excludedCategory))
}

func TestParserRegistrySelectFallsBackToDefault(t *testing.T) {
	registry := NewParserRegistry("default")
	registry.Register(ParserEntry{ID: "default", Matches: func(string, []byte) bool { return false }})
	_, id, err := registry.Select("", "file.bin", nil)
	require.NoError(t, err)
	assert.Equal(t, "default", id)
}

func TestParserRegistrySelectUnknownPreferredErrors(t *testing.T) {
	registry := NewParserRegistry("default")
	registry.Register(ParserEntry{ID: "default"})
	_, _, err := registry.Select("missing", "file.bin", nil)
	require.Error(t, err)
}

func TestRunLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("go.opentelemetry.io/otel/sdk/trace.NewBatchSpanProcessor.func1"),
	)

	sink := &capturingSink{}
	orch, blobStore, _ := newTestOrchestrator(t, sink)
	blobStore.Put("up1", "sample.log", []byte("line one\nline two\n"))

	_, err := orch.Run(context.Background(), "analysis-goleak", "up1", AnalysisOptions{
		ExtractIOCs: true, MapToMitre: true, TimeoutMinutes: 1,
	})
	require.NoError(t, err)
}
