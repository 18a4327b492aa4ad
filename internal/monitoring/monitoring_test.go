package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

func TestRecordRiskMetrics(t *testing.T) {
	RecordRiskMetrics(&contracts.RiskMetrics{
		PortfolioVaR:   0.021,
		LeverageRatio:  0.9,
		SectorExposure: map[string]float64{"IT": 0.4},
	})
	assert.InDelta(t, 0.021, testutil.ToFloat64(portfolioRisk.WithLabelValues("var")), 1e-12)
	assert.InDelta(t, 0.9, testutil.ToFloat64(portfolioRisk.WithLabelValues("leverage")), 1e-12)
	assert.InDelta(t, 0.4, testutil.ToFloat64(sectorExposure.WithLabelValues("IT")), 1e-12)

	RecordRiskMetrics(nil)
}

func TestRecordCounters(t *testing.T) {
	before := testutil.ToFloat64(limitViolations.WithLabelValues(string(risk.LimitMaxDrawdown)))
	RecordViolations([]risk.Violation{{Kind: risk.LimitMaxDrawdown}})
	assert.InDelta(t, before+1, testutil.ToFloat64(limitViolations.WithLabelValues(string(risk.LimitMaxDrawdown))), 1e-12)

	before = testutil.ToFloat64(gateDecisions.WithLabelValues("shadow", "would_block"))
	RecordGate(sizing.GateResult{Mode: sizing.GateModeShadow, WouldBlock: true})
	assert.InDelta(t, before+1, testutil.ToFloat64(gateDecisions.WithLabelValues("shadow", "would_block")), 1e-12)

	before = testutil.ToFloat64(stopOrders.WithLabelValues("stop_loss", "triggered"))
	RecordOrder(contracts.StopLossOrder{Type: contracts.OrderTypeStopLoss, Status: contracts.OrderTriggered})
	assert.InDelta(t, before+1, testutil.ToFloat64(stopOrders.WithLabelValues("stop_loss", "triggered")), 1e-12)

	before = testutil.ToFloat64(errorsTotal.WithLabelValues("refdata"))
	RecordError("refdata")
	assert.InDelta(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("refdata")), 1e-12)

	ObserveDuration("var", time.Now())
}

func TestMetricsHandler(t *testing.T) {
	RecordError("handler_test")

	rec := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stockrisk_errors_total"))
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker("test")
	now := time.Now()

	assert.Equal(t, "healthy", h.Status(now).Status)

	h.MarkEvaluation(now.Add(-48*time.Hour), 0.02)
	assert.Equal(t, "degraded", h.Status(now).Status)

	h.MarkEvaluation(now, 0.03)
	h.SetStoreConnected(true)
	st := h.Status(now)
	assert.Equal(t, "healthy", st.Status)
	assert.InDelta(t, 0.03, st.LastVaR, 1e-12)
	assert.True(t, st.StoreConnected)

	for i := 0; i < 12; i++ {
		h.ReportError("boom")
	}
	st = h.Status(now)
	assert.Equal(t, "unhealthy", st.Status)
	assert.Len(t, st.Errors, 10)

	h.ClearErrors()
	assert.Equal(t, "healthy", h.Status(now).Status)
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	h := NewHealthChecker("v1")
	h.ReportError("db down")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "v1", body.Version)
}
