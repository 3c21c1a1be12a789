// Package app HTTP handlers for the analysis API.
package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"forensiq/internal/metrics"
	"forensiq/internal/orchestrator"
	"forensiq/pkg/ports"
	"forensiq/pkg/types"
)

// registerHandlers wires the HTTP API's routes: health, analysis
// submission and lookup, and rule registration. Grounded on the
// teacher's internal/app.registerHandlers: a logging middleware
// wrapping every route, gorilla/mux for path routing.
func (a *App) registerHandlers(router *mux.Router) {
	middleware := a.loggingMiddleware

	router.Handle("/health", middleware(http.HandlerFunc(a.healthHandler))).Methods(http.MethodGet)
	router.Handle("/analyses", middleware(http.HandlerFunc(a.submitAnalysisHandler))).Methods(http.MethodPost)
	router.Handle("/analyses", middleware(http.HandlerFunc(a.listAnalysesHandler))).Methods(http.MethodGet)
	router.Handle("/analyses/{id}", middleware(http.HandlerFunc(a.getAnalysisHandler))).Methods(http.MethodGet)
	router.Handle("/rules", middleware(http.HandlerFunc(a.registerRuleHandler))).Methods(http.MethodPost)
	router.Handle("/rules", middleware(http.HandlerFunc(a.listRulesHandler))).Methods(http.MethodGet)
}

// loggingMiddleware logs method/path/duration/status for every request,
// matching the teacher's per-route middleware wrapper.
func (a *App) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitAnalysisRequest is the JSON body accepted by POST /analyses.
type submitAnalysisRequest struct {
	UploadID              string           `json:"upload_id"`
	PreferredParserID     string           `json:"preferred_parser_id"`
	DeepScan              *bool            `json:"deep_scan"`
	ExtractIOCs           *bool            `json:"extract_iocs"`
	CheckExternal         *bool            `json:"check_external"`
	EnableAI              *bool            `json:"enable_ai"`
	MapToMitre            *bool            `json:"map_to_mitre"`
	MaxEvents             int              `json:"max_events"`
	TimeoutMinutes        int              `json:"timeout_minutes"`
	IncludeRuleTypes      []types.RuleType `json:"include_rule_types"`
	ExcludeRuleCategories []string         `json:"exclude_rule_categories"`
}

func (req submitAnalysisRequest) toOptions() orchestrator.AnalysisOptions {
	opts := orchestrator.DefaultAnalysisOptions()
	opts.PreferredParserID = req.PreferredParserID
	if req.DeepScan != nil {
		opts.DeepScan = *req.DeepScan
	}
	if req.ExtractIOCs != nil {
		opts.ExtractIOCs = *req.ExtractIOCs
	}
	if req.CheckExternal != nil {
		opts.CheckExternal = *req.CheckExternal
	}
	if req.EnableAI != nil {
		opts.EnableAI = *req.EnableAI
	}
	if req.MapToMitre != nil {
		opts.MapToMitre = *req.MapToMitre
	}
	if req.MaxEvents > 0 {
		opts.MaxEvents = req.MaxEvents
	}
	if req.TimeoutMinutes > 0 {
		opts.TimeoutMinutes = req.TimeoutMinutes
	}
	opts.IncludeRuleTypes = req.IncludeRuleTypes
	opts.ExcludeRuleCategories = req.ExcludeRuleCategories
	return opts
}

// submitAnalysisHandler runs one analysis synchronously and returns its
// terminal state. A deployment expecting very large files would instead
// queue this and answer 202 with a status URL; this build runs inline
// since the orchestrator already bounds concurrency with its own
// semaphore, and a caller can poll GET /analyses/{id} for the
// persisted, in-progress record meanwhile.
func (a *App) submitAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	var req submitAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UploadID == "" {
		writeError(w, http.StatusBadRequest, "upload_id is required")
		return
	}

	analysisID := uuid.NewString()
	start := time.Now()
	analysis, err := a.orchestrator.Run(r.Context(), analysisID, req.UploadID, req.toOptions())
	duration := time.Since(start)

	if err != nil {
		metrics.RecordError("orchestrator", "run_failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	metrics.RecordAnalysisCompleted(string(analysis.Status), duration, analysis.ThreatScore)
	writeJSON(w, http.StatusOK, analysis)
}

func (a *App) getAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	analysis, err := a.persistence.LoadAnalysis(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (a *App) listAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.Filter{Status: q.Get("status")}
	analyses, err := a.persistence.ListAnalyses(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

// registerRuleRequest is the JSON body accepted by POST /rules.
type registerRuleRequest struct {
	ID       string         `json:"id"`
	Type     types.RuleType `json:"type"`
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Severity types.Severity `json:"severity"`
	Category string         `json:"category"`
	Tags     []string       `json:"tags"`
}

func (a *App) registerRuleHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	rule := &types.Rule{
		ID:       req.ID,
		Type:     req.Type,
		Name:     req.Name,
		Content:  req.Content,
		Enabled:  true,
		Severity: req.Severity,
		Category: req.Category,
		Tags:     req.Tags,
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.persistence.SaveRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (a *App) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := a.persistence.ListRules(r.Context(), ports.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
