package app

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"forensiq/internal/builtinparsers"
	"forensiq/internal/metrics"
	"forensiq/internal/mitre"
	"forensiq/internal/orchestrator"
	"forensiq/internal/pluginhost"
	"forensiq/internal/ruleengine"
	"forensiq/internal/ruleengine/custom"
	apperrors "forensiq/pkg/errors"
	"forensiq/pkg/ports"
	"forensiq/pkg/types"

	"github.com/gorilla/mux"
)

// initPersistence wires the relational-store port. Only the in-memory
// implementation ships in this tree (spec §13); a postgres driver is
// the Driver: "postgres" config path's natural home once one exists.
func (a *App) initPersistence() error {
	switch a.config.Persistence.Driver {
	case "memory", "":
		a.persistence = ports.NewMemoryPersistence()
		return nil
	default:
		return fmt.Errorf("persistence driver %q is not implemented by this build", a.config.Persistence.Driver)
	}
}

// initBlobStore wires the file-storage port to a local directory,
// creating it if absent so a fresh deployment doesn't fail on first run.
func (a *App) initBlobStore() error {
	dir := a.config.BlobStore.Directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.WrapError(err, "app", "init_blob_store", fmt.Sprintf("creating blob store directory %q", dir))
	}
	a.blobStore = ports.NewLocalBlobStore(dir)
	return nil
}

// initProgressSink wires the default logging progress sink. A
// push-channel-backed sink belongs to whatever transport the HTTP API
// grows (SSE/websocket); this process only needs delivery to not block
// the orchestrator, which the logging sink already guarantees.
func (a *App) initProgressSink() {
	a.progress = ports.NewLoggingProgressSink(a.logger)
}

// initPluginHost builds the plugin host and registers the fixed set of
// built-in parsers against the plugin-host config translated from YAML.
func (a *App) initPluginHost() error {
	host, err := pluginhost.New(a.config.ToPluginHostConfig(), a.logger, builtinparsers.CompileFunc)
	if err != nil {
		return apperrors.WrapError(err, "app", "init_plugin_host", "initializing plugin host")
	}
	a.pluginHost = host
	a.parsers = orchestrator.NewParserRegistry(a.config.Orchestrator.DefaultParserID)

	if err := a.registerBuiltinParser(builtinparsers.IDJSONLines, func(fileName string, sample []byte) bool {
		trimmed := strings.TrimSpace(string(sample))
		return strings.HasSuffix(strings.ToLower(fileName), ".json") ||
			strings.HasSuffix(strings.ToLower(fileName), ".jsonl") ||
			strings.HasPrefix(trimmed, "{")
	}); err != nil {
		return err
	}
	if err := a.registerBuiltinParser(builtinparsers.IDCSV, func(fileName string, _ []byte) bool {
		return strings.HasSuffix(strings.ToLower(fileName), ".csv")
	}); err != nil {
		return err
	}
	if err := a.registerBuiltinParser(builtinparsers.IDSyslog, func(fileName string, _ []byte) bool {
		lower := strings.ToLower(fileName)
		return strings.Contains(lower, "syslog") || strings.HasSuffix(lower, ".log")
	}); err != nil {
		return err
	}
	return nil
}

// initRuleEngine builds the dispatcher and registers the three built-in
// dialect processors plus the pluggable custom processor.
func (a *App) initRuleEngine() error {
	cfg := ruleengine.DefaultConfig()
	cfg.CompiledRuleCacheSize = a.config.RuleEngine.CompiledRuleCacheSize

	d, err := ruleengine.New(cfg, a.logger, a.persistence)
	if err != nil {
		return apperrors.WrapError(err, "app", "init_rule_engine", "initializing rule engine")
	}
	d.RegisterBuiltins()
	d.Register(types.RuleTypeCustom, custom.New(a.config.RuleEngine.CustomDialectFallback))
	a.ruleDispatch = d
	return nil
}

// initMitre loads the MITRE ATT&CK knowledge base and builds the mapper,
// unless the mitre section of config is disabled.
func (a *App) initMitre() error {
	if !a.config.Mitre.Enabled {
		return nil
	}
	kb := mitre.NewKnowledgeBase()
	kb.Refresh()
	a.mitreKB = kb
	a.mitreMapper = mitre.New(kb)
	return nil
}

// initOrchestrator builds the tracing manager and the orchestrator that
// ties every other component together.
func (a *App) initOrchestrator() error {
	tracer, err := orchestrator.NewTracingManager(a.config.ToTracingConfig())
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	a.tracer = tracer

	a.orchestrator = orchestrator.New(
		a.config.ToOrchestratorConfig(),
		a.logger,
		a.persistence,
		a.blobStore,
		a.progress,
		a.pluginHost,
		a.parsers,
		a.ruleDispatch,
		a.mitreMapper,
		nil, // AI summarization sink: out of scope (spec §1)
		a.tracer,
	)
	return nil
}

// initHTTPServer builds the API router and its HTTP server, bound to
// Server.Host:Server.Port, unless the server section is disabled.
func (a *App) initHTTPServer() {
	if !a.config.Server.Enabled {
		return
	}
	router := mux.NewRouter()
	a.registerHandlers(router)
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:      router,
		ReadTimeout:  parseDurationSafe(a.config.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDurationSafe(a.config.Server.WriteTimeout, 30*time.Second),
	}
}

// initMetricsServer builds the Prometheus metrics server, unless the
// metrics section is disabled.
func (a *App) initMetricsServer() {
	if !a.config.Metrics.Enabled {
		return
	}
	addr := fmt.Sprintf(":%d", a.config.Metrics.Port)
	a.metricsServer = metrics.NewServer(addr, a.config.Metrics.Path, a.logger)
}

func parseDurationSafe(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
