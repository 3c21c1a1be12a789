// Package pluginhost manages user-supplied parser code that turns a raw
// blob into an ordered sequence of LogEvents: static compilation with a
// security scan, a bounded compiled-artifact cache, sandboxed execution,
// and benchmarking. Grounded on the teacher's combination of
// pkg/security (deny-list scanning), pkg/leakdetection (resource
// tracking) and pkg/hotreload (atomic cache invalidation on directory
// change).
package pluginhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"forensiq/pkg/cache"
	"forensiq/pkg/errors"
	"forensiq/pkg/types"
)

// Parser is the compiled, executable form of user-supplied parser
// source. Concrete parsers (e.g. a regex-line parser, a JSON-lines
// parser) satisfy this by wrapping their own logic; the host never
// inspects Parser internals beyond calling Parse.
type Parser interface {
	types.Parser
}

// CompiledArtifact is what compile() produces: the security-cleared,
// registrable unit. ID and Source are retained for benchmarking and
// diagnostics; Parser is the runnable form.
type CompiledArtifact struct {
	ID         string
	Source     string
	Parser     Parser
	CompiledAt time.Time
}

// Handle references a loaded, registered artifact.
type Handle struct {
	ID string
}

// SandboxLimits bounds one execute() call. Defaults match spec.md §4.B.
type SandboxLimits struct {
	MaxMemoryMiB  int
	MaxWallClock  time.Duration
	MaxCPUPercent float64
	MaxThreads    int
}

// DefaultSandboxLimits returns the spec-mandated defaults.
func DefaultSandboxLimits() SandboxLimits {
	return SandboxLimits{
		MaxMemoryMiB:  100,
		MaxWallClock:  30 * time.Second,
		MaxCPUPercent: 50,
		MaxThreads:    10,
	}
}

// Config configures a Host.
type Config struct {
	SecurityScan  SecurityScanConfig
	SandboxLimits SandboxLimits
	CacheSize     int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		SecurityScan:  DefaultSecurityScanConfig(),
		SandboxLimits: DefaultSandboxLimits(),
		CacheSize:     256,
	}
}

// CompileFunc translates already security-cleared source into a runnable
// Parser. The host does not itself know how to interpret parser source
// languages; it is handed a translation function by the caller (e.g. a
// regex-rule-to-Parser compiler, or a Go-plugin loader), keeping the
// security scan and caching machinery independent of parser authoring
// format — the same separation the spec draws between compile()'s
// generic contract and a concrete rule dialect.
type CompileFunc func(id, source string) (Parser, error)

// Host is the Parser Plugin Host (spec §4.B).
type Host struct {
	cfg     Config
	logger  *logrus.Logger
	scanner *SecurityScanner
	compile CompileFunc

	mu       sync.RWMutex
	registry map[string]*CompiledArtifact
	cache    *cache.Cache[*CompiledArtifact]

	sandbox *Sandbox
}

// New creates a Host. compileFn translates cleared source into a Parser;
// passing nil is valid only if callers exclusively use LoadArtifact with
// pre-built Parsers rather than Compile.
func New(cfg Config, logger *logrus.Logger, compileFn CompileFunc) (*Host, error) {
	c, err := cache.New[*CompiledArtifact](cfg.CacheSize)
	if err != nil {
		return nil, errors.Dependency("pluginhost_init", "compiled artifact cache: "+err.Error())
	}
	return &Host{
		cfg:      cfg,
		logger:   logger,
		scanner:  NewSecurityScanner(cfg.SecurityScan),
		compile:  compileFn,
		registry: make(map[string]*CompiledArtifact),
		cache:    c,
		sandbox:  NewSandbox(cfg.SandboxLimits),
	}, nil
}

// Compile runs the security scan then translates source into a runnable
// Parser, without registering it. Compilation failure returns a
// CompilationError whose Metadata carries a "details" slice of
// errors.ValidationDetail (spec §4.B's structured compile error list).
func (h *Host) Compile(id, source string) (*CompiledArtifact, error) {
	if h.compile == nil {
		return nil, errors.Compilation("compile", "no compile function configured for this host")
	}
	if details := h.scanner.Scan(source); len(details) > 0 {
		return nil, errors.Compilation("compile", fmt.Sprintf("parser %q failed security scan", id), details...)
	}
	parser, err := h.compile(id, source)
	if err != nil {
		return nil, errors.Compilation("compile", fmt.Sprintf("parser %q: %v", id, err))
	}
	return &CompiledArtifact{ID: id, Source: source, Parser: parser, CompiledAt: time.Now().UTC()}, nil
}

// Load places a compiled artifact into the registry and cache, replacing
// any existing entry for the same id atomically under the registry's
// mutex (spec §4.B: "a reload replaces the entry atomically").
func (h *Host) Load(artifact *CompiledArtifact) Handle {
	h.mu.Lock()
	h.registry[artifact.ID] = artifact
	h.mu.Unlock()
	h.cache.Put(artifact.ID, artifact)
	return Handle{ID: artifact.ID}
}

// Unload drops the registry entry for id, releasing it for GC. Returns
// false if no such entry existed.
func (h *Host) Unload(id string) bool {
	h.mu.Lock()
	_, ok := h.registry[id]
	delete(h.registry, id)
	h.mu.Unlock()
	if ok {
		h.cache.Remove(id)
	}
	return ok
}

func (h *Host) lookup(handle Handle) (*CompiledArtifact, error) {
	if a, ok := h.cache.Get(handle.ID); ok {
		return a, nil
	}
	h.mu.RLock()
	a, ok := h.registry[handle.ID]
	h.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.CodeResourceNotFound, "pluginhost", "lookup", "no parser registered for id "+handle.ID)
	}
	h.cache.Put(handle.ID, a)
	return a, nil
}

// Execute runs the parser referenced by handle against raw inside the
// sandbox (spec §4.B). Sandbox violations are reported per-execution and
// never evict the registry entry.
func (h *Host) Execute(ctx context.Context, handle Handle, sourceFile string, raw []byte) (*types.ParseResult, error) {
	artifact, err := h.lookup(handle)
	if err != nil {
		return nil, err
	}
	return h.sandbox.Run(ctx, artifact.Parser, sourceFile, raw)
}

// Benchmark runs the parser referenced by handle through the sandbox
// iterations times, in the teacher's stats_collector aggregation style
// (min/max/mean/p95 over a bounded in-memory sample set).
func (h *Host) Benchmark(ctx context.Context, handle Handle, sourceFile string, raw []byte, iterations int) (*BenchmarkStats, error) {
	artifact, err := h.lookup(handle)
	if err != nil {
		return nil, err
	}
	return runBenchmark(ctx, h.sandbox, artifact.Parser, sourceFile, raw, iterations)
}

// InvalidateDirectory drops every cached artifact whose id has the given
// prefix, used by the fsnotify-driven hot reload watcher (reload.go) when
// a rule/parser subdirectory changes.
func (h *Host) InvalidateDirectory(prefix string) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.registry))
	for id := range h.registry {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.cache.Remove(id)
	}
}

// CacheStats exposes the compiled-artifact cache's hit/miss counters.
func (h *Host) CacheStats() cache.Stats {
	return h.cache.Stats()
}
