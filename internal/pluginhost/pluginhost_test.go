package pluginhost

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"forensiq/pkg/errors"
	"forensiq/pkg/types"
)

// lineCountParser is a trivial test Parser: one LogEvent per non-empty line.
type lineCountParser struct {
	delay time.Duration
}

func (p *lineCountParser) Parse(ctx context.Context, raw []byte) (*types.ParseResult, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
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

func testHost(t *testing.T, compileFn CompileFunc) *Host {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	h, err := New(DefaultConfig(), logger, compileFn)
	require.NoError(t, err)
	return h
}

func TestCompileRejectsDeniedCapability(t *testing.T) {
	h := testHost(t, func(id, source string) (Parser, error) {
		return &lineCountParser{}, nil
	})
	_, err := h.Compile("p1", `package main
import "os/exec"
func Parse() {}`)
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeCompilationFailed, appErr.Code)
}

func TestCompileRejectsOversizedSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityScan.MaxSourceBytes = 10
	h, err := New(cfg, logrus.New(), func(id, source string) (Parser, error) { return &lineCountParser{}, nil })
	require.NoError(t, err)
	_, err = h.Compile("p1", "this source is definitely longer than ten bytes")
	assert.Error(t, err)
}

func TestLoadExecuteAndCache(t *testing.T) {
	h := testHost(t, func(id, source string) (Parser, error) { return &lineCountParser{}, nil })
	artifact, err := h.Compile("p1", "package main\nfunc Parse() {}")
	require.NoError(t, err)
	handle := h.Load(artifact)

	result, err := h.Execute(context.Background(), handle, "sample.log", []byte("a\nb\nc\n"))
	require.NoError(t, err)
	assert.Len(t, result.Events, 3)
	assert.EqualValues(t, 1, h.CacheStats().Inserts)
}

func TestUnloadDropsRegistryAndCache(t *testing.T) {
	h := testHost(t, func(id, source string) (Parser, error) { return &lineCountParser{}, nil })
	artifact, err := h.Compile("p1", "package main")
	require.NoError(t, err)
	handle := h.Load(artifact)
	assert.True(t, h.Unload(handle.ID))
	assert.False(t, h.Unload(handle.ID))

	_, err = h.Execute(context.Background(), handle, "sample.log", []byte("a\n"))
	assert.Error(t, err)
}

func TestExecuteTimeoutSurfacesSandboxError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SandboxLimits.MaxWallClock = 10 * time.Millisecond
	h, err := New(cfg, logrus.New(), nil)
	require.NoError(t, err)
	artifact := &CompiledArtifact{ID: "slow", Parser: &lineCountParser{delay: 200 * time.Millisecond}}
	handle := h.Load(artifact)

	_, err = h.Execute(context.Background(), handle, "slow.log", []byte("a\n"))
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeSandboxTimeout, appErr.Code)
}

func TestBenchmarkAggregatesIterations(t *testing.T) {
	h := testHost(t, func(id, source string) (Parser, error) { return &lineCountParser{}, nil })
	artifact, err := h.Compile("p1", "package main")
	require.NoError(t, err)
	handle := h.Load(artifact)

	stats, err := h.Benchmark(context.Background(), handle, "bench.log", []byte("a\nb\n"), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Iterations)
	assert.Equal(t, 0, stats.Failures)
	assert.GreaterOrEqual(t, stats.MaxWallClock, stats.MinWallClock)
}

func TestExecuteLeavesNoGoroutinesBehindAfterTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.SandboxLimits.MaxWallClock = 10 * time.Millisecond
	h, err := New(cfg, logrus.New(), nil)
	require.NoError(t, err)
	artifact := &CompiledArtifact{ID: "slow", Parser: &lineCountParser{delay: 200 * time.Millisecond}}
	handle := h.Load(artifact)

	_, err = h.Execute(context.Background(), handle, "slow.log", []byte("a\n"))
	require.Error(t, err)

	// Give the abandoned sandboxed goroutine time to observe the
	// timeout and return before goleak snapshots running goroutines.
	time.Sleep(300 * time.Millisecond)
}
