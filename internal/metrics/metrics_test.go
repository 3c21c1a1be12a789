package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAnalysisCompletedUpdatesCountersAndHistograms(t *testing.T) {
	before := testutil.ToFloat64(AnalysesTotal.WithLabelValues("completed"))

	RecordAnalysisCompleted("completed", 2*time.Second, 63)

	after := testutil.ToFloat64(AnalysesTotal.WithLabelValues("completed"))
	assert.Equal(t, before+1, after)
}

func TestRecordRuleMatchIncrementsByTypeAndSeverity(t *testing.T) {
	before := testutil.ToFloat64(RuleMatchesTotal.WithLabelValues("signature", "high"))

	RecordRuleMatch("signature", "high")

	after := testutil.ToFloat64(RuleMatchesTotal.WithLabelValues("signature", "high"))
	assert.Equal(t, before+1, after)
}

func TestRecordIOCExtractedIncrementsByType(t *testing.T) {
	before := testutil.ToFloat64(IOCsExtractedTotal.WithLabelValues("ipv4"))

	RecordIOCExtracted("ipv4")

	after := testutil.ToFloat64(IOCsExtractedTotal.WithLabelValues("ipv4"))
	assert.Equal(t, before+1, after)
}

func TestRecordPluginCompilationSplitsAcceptedAndRejected(t *testing.T) {
	beforeAccepted := testutil.ToFloat64(PluginCompilationsTotal.WithLabelValues("accepted"))
	beforeRejected := testutil.ToFloat64(PluginCompilationsTotal.WithLabelValues("rejected"))

	RecordPluginCompilation(true)
	RecordPluginCompilation(false)

	assert.Equal(t, beforeAccepted+1, testutil.ToFloat64(PluginCompilationsTotal.WithLabelValues("accepted")))
	assert.Equal(t, beforeRejected+1, testutil.ToFloat64(PluginCompilationsTotal.WithLabelValues("rejected")))
}

func TestRecordMitreMappingIncrementsByTactic(t *testing.T) {
	before := testutil.ToFloat64(MitreMappingsTotal.WithLabelValues("defense-evasion"))

	RecordMitreMapping("defense-evasion")

	after := testutil.ToFloat64(MitreMappingsTotal.WithLabelValues("defense-evasion"))
	assert.Equal(t, before+1, after)
}

func TestSetCircuitBreakerStatePublishesGaugeValue(t *testing.T) {
	SetCircuitBreakerState("persistence", 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("persistence")))

	SetCircuitBreakerState("persistence", 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("persistence")))
}

func TestRecordErrorIncrementsByComponentAndCode(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("orchestrator", "timeout"))

	RecordError("orchestrator", "timeout")

	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues("orchestrator", "timeout"))
	assert.Equal(t, before+1, after)
}

func TestServerServesMetricsAndHealthEndpoints(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	srv := NewServer(addr, "/metrics", logger)
	require.NotNil(t, srv)
	srv.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}
