// Package monitoring exposes Prometheus metrics and a health endpoint for the risk engine.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

var (
	// Risk metrics
	portfolioRisk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stockrisk_portfolio_risk",
			Help: "Latest portfolio risk measures by kind",
		},
		[]string{"measure"},
	)

	sectorExposure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stockrisk_sector_exposure",
			Help: "Portfolio weight per sector",
		},
		[]string{"sector"},
	)

	limitViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockrisk_limit_violations_total",
			Help: "Total number of risk limit violations",
		},
		[]string{"kind"},
	)

	// Sizing metrics
	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockrisk_gate_decisions_total",
			Help: "Risk gate outcomes by mode",
		},
		[]string{"mode", "outcome"},
	)

	// Exit metrics
	stopOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockrisk_stop_orders_total",
			Help: "Stop-loss and take-profit order transitions",
		},
		[]string{"type", "status"},
	)

	calculationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockrisk_calculation_duration_seconds",
			Help:    "Duration of risk engine calculations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockrisk_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(portfolioRisk)
	prometheus.MustRegister(sectorExposure)
	prometheus.MustRegister(limitViolations)
	prometheus.MustRegister(gateDecisions)
	prometheus.MustRegister(stopOrders)
	prometheus.MustRegister(calculationDuration)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordRiskMetrics updates the portfolio risk gauges
func RecordRiskMetrics(m *contracts.RiskMetrics) {
	if m == nil {
		return
	}
	portfolioRisk.WithLabelValues("var").Set(m.PortfolioVaR)
	portfolioRisk.WithLabelValues("expected_shortfall").Set(m.ExpectedShortfall)
	portfolioRisk.WithLabelValues("concentration").Set(m.ConcentrationRisk)
	portfolioRisk.WithLabelValues("correlation").Set(m.CorrelationRisk)
	portfolioRisk.WithLabelValues("liquidity").Set(m.LiquidityRisk)
	portfolioRisk.WithLabelValues("leverage").Set(m.LeverageRatio)

	sectorExposure.Reset()
	for sector, w := range m.SectorExposure {
		sectorExposure.WithLabelValues(sector).Set(w)
	}
}

// RecordViolations counts limit violations by kind
func RecordViolations(violations []risk.Violation) {
	for _, v := range violations {
		limitViolations.WithLabelValues(string(v.Kind)).Inc()
	}
}

// RecordGate counts a gate outcome
func RecordGate(result sizing.GateResult) {
	outcome := "passed"
	switch {
	case result.Blocked:
		outcome = "blocked"
	case result.WouldBlock:
		outcome = "would_block"
	}
	gateDecisions.WithLabelValues(string(result.Mode), outcome).Inc()
}

// RecordOrder counts an order reaching a status
func RecordOrder(order contracts.StopLossOrder) {
	stopOrders.WithLabelValues(string(order.Type), string(order.Status)).Inc()
}

// ObserveDuration records how long an operation took since start
func ObserveDuration(operation string, start time.Time) {
	calculationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
