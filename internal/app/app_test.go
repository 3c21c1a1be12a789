package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// disableServerAndMetrics works around applyDefaults forcing both
// sections' Enabled flag to true regardless of the loaded YAML: the
// environment override stage is the only layer that can turn them
// back off, so tests that need no listening sockets go through it.
func disableServerAndMetrics(t *testing.T) {
	t.Helper()
	os.Setenv("FORENSIQ_SERVER_ENABLED", "false")
	os.Setenv("FORENSIQ_METRICS_ENABLED", "false")
	t.Cleanup(func() {
		os.Unsetenv("FORENSIQ_SERVER_ENABLED")
		os.Unsetenv("FORENSIQ_METRICS_ENABLED")
	})
}

func baseTestConfigYAML(blobDir string) string {
	return `
app:
  name: "forensiq-test"
  version: "v0.0.0-test"
  log_level: "error"
  log_format: "text"
persistence:
  driver: "memory"
blob_store:
  directory: "` + blobDir + `"
orchestrator:
  max_concurrent_analyses: 2
  default_timeout_minutes: 1
  default_max_events: 1000
rule_engine:
  compiled_rule_cache_size: 64
plugin_host:
  cache_size: 16
  max_memory_mib: 64
  max_wall_clock: "5s"
ioc_extractor:
  confidence_threshold: 40
mitre:
  enabled: true
`
}

func TestNewInitializesAllComponents(t *testing.T) {
	disableServerAndMetrics(t)
	blobDir := t.TempDir()
	configFile := writeTestConfig(t, baseTestConfigYAML(blobDir))

	application, err := New(configFile)
	require.NoError(t, err)
	require.NotNil(t, application)

	assert.NotNil(t, application.persistence)
	assert.NotNil(t, application.blobStore)
	assert.NotNil(t, application.progress)
	assert.NotNil(t, application.pluginHost)
	assert.NotNil(t, application.parsers)
	assert.NotNil(t, application.ruleDispatch)
	assert.NotNil(t, application.mitreMapper)
	assert.NotNil(t, application.orchestrator)
	assert.Nil(t, application.httpServer, "FORENSIQ_SERVER_ENABLED=false should skip the HTTP server")
	assert.Nil(t, application.metricsServer, "FORENSIQ_METRICS_ENABLED=false should skip the metrics server")

	require.NoError(t, application.Stop())
}

func TestNewRejectsUnknownPersistenceDriver(t *testing.T) {
	blobDir := t.TempDir()
	yaml := baseTestConfigYAML(blobDir)
	configFile := writeTestConfig(t, yaml+"\npersistence:\n  driver: \"mongodb\"\n")

	_, err := New(configFile)
	require.Error(t, err)
}

func TestHealthEndpointServesOK(t *testing.T) {
	blobDir := t.TempDir()
	configFile := writeTestConfig(t, baseTestConfigYAML(blobDir))

	application, err := New(configFile)
	require.NoError(t, err)
	defer application.Stop()

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		application.healthHandler(w, r)
	}))
	defer router.Close()

	resp, err := http.Get(router.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitAnalysisHandlerRunsEndToEnd(t *testing.T) {
	blobDir := t.TempDir()
	configFile := writeTestConfig(t, baseTestConfigYAML(blobDir))

	application, err := New(configFile)
	require.NoError(t, err)
	defer application.Stop()

	uploadDir := filepath.Join(blobDir, "upload-1")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "sample.log"), []byte("auth failure for user root\n"), 0o644))

	body, err := json.Marshal(map[string]any{"upload_id": "upload-1"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	application.submitAnalysisHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAppStartStopLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("go.opentelemetry.io/otel/sdk/trace.NewBatchSpanProcessor.func1"),
	)
	disableServerAndMetrics(t)

	blobDir := t.TempDir()
	configFile := writeTestConfig(t, baseTestConfigYAML(blobDir))

	application, err := New(configFile)
	require.NoError(t, err)
	require.NoError(t, application.Start())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, application.Stop())
}
