package obs

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	tr, shutdown, err := setupTracing(context.Background(), "stdout", "", &buf)
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "catalog.Sell")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "catalog.Sell")
}

func TestSetupTracingNone(t *testing.T) {
	tr, shutdown, err := SetupTracing(context.Background(), "none", "")
	require.NoError(t, err)
	_, span := tr.Start(context.Background(), "noop")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingUnknown(t *testing.T) {
	_, _, err := SetupTracing(context.Background(), "jaeger", "")
	assert.Error(t, err)
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/products", http.StatusOK, 3*time.Millisecond)
	ObserveStock("sell", "ok")
	SetEventBacklog(2)

	rr := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "cafe_http_requests_total"))
	assert.True(t, strings.Contains(body, `cafe_stock_adjustments_total{kind="sell",outcome="ok"}`))
	assert.True(t, strings.Contains(body, "cafe_events_backlog 2"))
}

func TestInitLoggerLevel(t *testing.T) {
	InitLoggerLevel("not-a-level")
	require.NotNil(t, Logger)
	InitLoggerLevel("debug")
	assert.True(t, Logger.Desugar().Core().Enabled(-1))
	InitLogger()
}
