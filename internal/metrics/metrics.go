// Package metrics exposes the Prometheus counters, gauges, and
// histograms the analysis engine's components update as they run.
// Grounded on the teacher's internal/metrics/metrics.go: package-level
// promauto collectors plus a small MetricsServer wrapping promhttp on
// its own listener, restructured from log-shipping throughput/sink
// metrics to analysis/rule-match/IOC/plugin/MITRE metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// AnalysesTotal counts completed/failed analyses by terminal status.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_analyses_total",
			Help: "Total number of analyses run, by terminal status",
		},
		[]string{"status"},
	)

	// AnalysisDuration measures end-to-end Run() wall time.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forensiq_analysis_duration_seconds",
		Help:    "Time spent running one analysis end to end",
		Buckets: prometheus.DefBuckets,
	})

	// AnalysisThreatScore records the final threat score distribution.
	AnalysisThreatScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forensiq_analysis_threat_score",
		Help:    "Distribution of computed threat scores",
		Buckets: []float64{10, 25, 40, 55, 70, 85, 100},
	})

	// ActiveAnalyses tracks in-flight analyses currently holding a
	// semaphore slot.
	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forensiq_active_analyses",
		Help: "Number of analyses currently running",
	})

	// RuleMatchesTotal counts rule matches by dialect and severity.
	RuleMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_rule_matches_total",
			Help: "Total number of rule matches, by rule type and severity",
		},
		[]string{"rule_type", "severity"},
	)

	// RuleEvaluationDuration measures one Dispatcher.Process call.
	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forensiq_rule_evaluation_duration_seconds",
			Help:    "Time spent evaluating one dialect group of rules",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rule_type"},
	)

	// IOCsExtractedTotal counts extracted IOCs by type.
	IOCsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_iocs_extracted_total",
			Help: "Total number of IOCs extracted, by type",
		},
		[]string{"ioc_type"},
	)

	// PluginCompilationsTotal counts Compile() calls by outcome.
	PluginCompilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_plugin_compilations_total",
			Help: "Total number of parser plugin compilations, by outcome",
		},
		[]string{"outcome"}, // "accepted", "rejected"
	)

	// PluginExecutionsTotal counts Execute() calls by outcome.
	PluginExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_plugin_executions_total",
			Help: "Total number of parser plugin executions, by outcome",
		},
		[]string{"outcome"}, // "ok", "timeout", "panic", "error"
	)

	// PluginCacheSize tracks the compiled-artifact cache occupancy.
	PluginCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forensiq_plugin_cache_size",
		Help: "Current number of compiled parser artifacts cached",
	})

	// MitreMappingsTotal counts technique proposals surfaced by the mapper.
	MitreMappingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_mitre_mappings_total",
			Help: "Total number of MITRE ATT&CK techniques mapped from evidence",
		},
		[]string{"tactic"},
	)

	// CircuitBreakerState exposes each named breaker's current state
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forensiq_circuit_breaker_state",
			Help: "Current state of a circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// ErrorsTotal counts AppErrors raised, by component and code.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensiq_errors_total",
			Help: "Total number of errors raised, by component and code",
		},
		[]string{"component", "code"},
	)
)

// RecordAnalysisCompleted records one terminal analysis outcome and its
// duration and threat score.
func RecordAnalysisCompleted(status string, duration time.Duration, threatScore float64) {
	AnalysesTotal.WithLabelValues(status).Inc()
	AnalysisDuration.Observe(duration.Seconds())
	AnalysisThreatScore.Observe(threatScore)
}

// RecordRuleMatch increments the match counter for one rule type/severity pair.
func RecordRuleMatch(ruleType, severity string) {
	RuleMatchesTotal.WithLabelValues(ruleType, severity).Inc()
}

// RecordIOCExtracted increments the IOC counter for one IOC type.
func RecordIOCExtracted(iocType string) {
	IOCsExtractedTotal.WithLabelValues(iocType).Inc()
}

// RecordPluginCompilation increments the compilation outcome counter.
func RecordPluginCompilation(accepted bool) {
	if accepted {
		PluginCompilationsTotal.WithLabelValues("accepted").Inc()
		return
	}
	PluginCompilationsTotal.WithLabelValues("rejected").Inc()
}

// RecordPluginExecution increments the execution outcome counter.
func RecordPluginExecution(outcome string) {
	PluginExecutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordMitreMapping increments the mapping counter for one tactic.
func RecordMitreMapping(tactic string) {
	MitreMappingsTotal.WithLabelValues(tactic).Inc()
}

// SetCircuitBreakerState publishes one breaker's numeric state.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordError increments the error counter for one component/code pair.
func RecordError(component, code string) {
	ErrorsTotal.WithLabelValues(component, code).Inc()
}

// Server wraps promhttp's handler on its own listener, matching the
// teacher's MetricsServer: a thin HTTP server independent of the main
// API server so scraping never competes with request handling.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer builds a metrics HTTP server bound to addr, serving path
// (Prometheus scrape target) and "/health".
func NewServer(addr, path string, logger *logrus.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
	}
}

// Start begins serving in the background; errors other than a clean
// shutdown are logged, not returned, since the caller's main loop does
// not block on the metrics endpoint.
func (s *Server) Start() {
	s.logger.WithField("addr", s.httpServer.Addr).Info("metrics: starting server")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics: server error")
		}
	}()
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("metrics: stopping server")
	return s.httpServer.Shutdown(ctx)
}
