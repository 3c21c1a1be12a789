// Package app wires the analysis engine's collaborators into one
// runnable process: configuration, persistence, blob storage, the
// plugin host, the rule engine, the MITRE mapper, the orchestrator, the
// HTTP API, and the metrics server. Grounded on the teacher's
// internal/app.App: sequential component initialization, an ordered
// Start/Stop lifecycle, and signal-driven Run.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"forensiq/internal/config"
	"forensiq/internal/metrics"
	"forensiq/internal/mitre"
	"forensiq/internal/orchestrator"
	"forensiq/internal/pluginhost"
	"forensiq/internal/ruleengine"
	"forensiq/pkg/ports"
)

// App is the main application instance coordinating the analysis
// engine's components for their full process lifetime.
type App struct {
	config *config.Config
	logger *logrus.Logger

	persistence ports.PersistencePort
	blobStore   ports.BlobStore
	progress    ports.ProgressSink

	pluginHost   *pluginhost.Host
	parsers      *orchestrator.ParserRegistry
	ruleDispatch *ruleengine.Dispatcher
	mitreKB      *mitre.KnowledgeBase
	mitreMapper  *mitre.Mapper
	tracer       *orchestrator.TracingManager
	orchestrator *orchestrator.Orchestrator

	httpServer    *http.Server
	metricsServer *metrics.Server

	ctx        context.Context
	cancel     context.CancelFunc
	configFile string
	wg         sync.WaitGroup
}

// New loads configuration from configFile, validates it, and
// initializes every component the App coordinates. Configuration errors
// fail fast, before any component is constructed.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:     cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		configFile: configFile,
	}

	logger.WithFields(logrus.Fields{
		"server_enabled": cfg.Server.Enabled,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
	}).Info("server configuration loaded")

	if err := a.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return a, nil
}

// initializeComponents performs sequential initialization in dependency
// order: persistence and blob storage first (everything else writes
// through them), then the plugin host and its built-in parsers, then
// the rule engine and MITRE mapper, then the orchestrator that ties
// them together, and finally the HTTP and metrics servers.
func (a *App) initializeComponents() error {
	if err := a.initPersistence(); err != nil {
		return err
	}
	if err := a.initBlobStore(); err != nil {
		return err
	}
	a.initProgressSink()
	if err := a.initPluginHost(); err != nil {
		return err
	}
	if err := a.initRuleEngine(); err != nil {
		return err
	}
	if err := a.initMitre(); err != nil {
		return err
	}
	if err := a.initOrchestrator(); err != nil {
		return err
	}
	a.initHTTPServer()
	a.initMetricsServer()
	return nil
}

// Start begins serving: the metrics server first (independent of
// everything else), then the HTTP API in its own goroutine. The
// orchestrator itself has no background loop to start; it runs one
// analysis per Run() call, invoked from the HTTP layer.
func (a *App) Start() error {
	a.logger.Info("starting forensiq")

	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	if a.httpServer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.logger.WithField("addr", a.httpServer.Addr).Info("starting http server")
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.WithError(err).Error("http server error")
			}
		}()
	}

	a.logger.Info("forensiq started")
	return nil
}

// Stop gracefully shuts down the HTTP and metrics servers, the tracer
// provider, and cancels the root context so any in-flight analysis's
// derived context observes cancellation.
func (a *App) Stop() error {
	a.logger.Info("stopping forensiq")
	a.cancel()

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("failed to stop http server")
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("failed to shutdown tracer")
		}
	}

	a.wg.Wait()
	a.logger.Info("forensiq stopped")
	return nil
}

// Run starts the application and blocks until SIGINT/SIGTERM, then
// performs graceful shutdown.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	a.logger.Info("shutdown signal received")
	return a.Stop()
}

// registerBuiltinParser compiles and loads one built-in parser into the
// plugin host, registering it with the parser registry under a
// content-matching predicate.
func (a *App) registerBuiltinParser(id string, matches func(fileName string, sample []byte) bool) error {
	artifact, err := a.pluginHost.Compile(id, "// built-in, source not user-supplied")
	if err != nil {
		metrics.RecordPluginCompilation(false)
		return fmt.Errorf("compiling built-in parser %q: %w", id, err)
	}
	metrics.RecordPluginCompilation(true)
	handle := a.pluginHost.Load(artifact)
	a.parsers.Register(orchestrator.ParserEntry{ID: id, Handle: handle, Matches: matches})
	return nil
}
