package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/report"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/internal/strategyconfig"
	"github.com/wonny/stockrisk/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportStore 리스크 평가 저장소 (없으면 저장 생략)
type ReportStore interface {
	SaveRiskReport(ctx context.Context, report portfolio.RiskReport) error
	LatestRiskReport(ctx context.Context) (*portfolio.RiskReport, error)
}

// RiskHandler handles risk measurement endpoints
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	runtime     *strategyconfig.Runtime
	calculator  *risk.Calculator
	engine      *stoploss.Engine
	store       ReportStore
	health      *monitoring.HealthChecker
	profileHash string
	logger      *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(
	rt *strategyconfig.Runtime,
	calc *risk.Calculator,
	engine *stoploss.Engine,
	store ReportStore,
	health *monitoring.HealthChecker,
	log *logger.Logger,
) *RiskHandler {
	hash, err := strategyconfig.Hash(rt.Profile)
	if err != nil {
		log.WithError(err).Warn("Failed to hash risk profile")
	}
	return &RiskHandler{
		runtime:     rt,
		calculator:  calc,
		engine:      engine,
		store:       store,
		health:      health,
		profileHash: hash,
		logger:      log,
	}
}

// MetricsRequest 리스크 지표 요청
type MetricsRequest struct {
	Portfolio        *contracts.Portfolio        `json:"portfolio"`
	AssetReturns     [][]float64                 `json:"asset_returns,omitempty"`
	PortfolioReturns []float64                   `json:"portfolio_returns,omitempty"`
	Covariance       *contracts.CovarianceMatrix `json:"covariance,omitempty"`
	Confidence       float64                     `json:"confidence,omitempty"`
	Persist          bool                        `json:"persist,omitempty"`
}

// MetricsResponse 리스크 지표 응답
type MetricsResponse struct {
	Metrics *contracts.RiskMetrics `json:"metrics"`
	Limits  *risk.LimitCheckResult `json:"limits"`
	Stress  []risk.StressResult    `json:"stress"`
	Gate    sizing.GateResult      `json:"gate"`
	Profile string                 `json:"profile"`
}

// Metrics computes risk metrics, limit checks and stress results
// POST /api/risk/metrics
func (h *RiskHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.evaluate(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).Warn("Risk evaluation failed")
		monitoring.RecordError("risk_metrics")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Report renders the risk evaluation as an xlsx workbook
// POST /api/risk/report
func (h *RiskHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.evaluate(r.Context(), req)
	if err != nil {
		monitoring.RecordError("risk_report")
		respondError(w, statusFor(err), err.Error())
		return
	}

	var buf bytes.Buffer
	rep := &report.RiskReport{
		ProfileID:   resp.Profile,
		GeneratedAt: resp.Metrics.CalculatedAt,
		Portfolio:   req.Portfolio,
		Metrics:     resp.Metrics,
		Limits:      resp.Limits,
		Stress:      resp.Stress,
		Orders:      h.engine.Registry().All(),
	}
	if err := report.NewExcelWriter().Write(rep, &buf); err != nil {
		h.logger.WithError(err).Error("Failed to render risk report")
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	filename := fmt.Sprintf("risk_%s.xlsx", resp.Metrics.CalculatedAt.Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Latest returns the most recently persisted risk report
// GET /api/risk/latest
func (h *RiskHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Risk report store is not configured")
		return
	}

	rep, err := h.store.LatestRiskReport(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest risk report")
		monitoring.RecordError("store")
		respondError(w, http.StatusInternalServerError, "Failed to load risk report")
		return
	}
	if rep == nil {
		respondError(w, http.StatusNotFound, "No risk report yet")
		return
	}

	respondJSON(w, http.StatusOK, rep)
}

// MonteCarloRequest Monte Carlo 요청
type MonteCarloRequest struct {
	PortfolioReturns []float64              `json:"portfolio_returns,omitempty"`
	AssetReturns     [][]float64            `json:"asset_returns,omitempty"`
	Weights          []float64              `json:"weights,omitempty"`
	Config           *risk.MonteCarloConfig `json:"config,omitempty"`
}

// MonteCarlo runs a Monte Carlo VaR simulation
// POST /api/risk/montecarlo
func (h *RiskHandler) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := h.runtime.MonteCarlo
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()
	var (
		result *risk.MonteCarloResult
		err    error
	)
	if len(req.AssetReturns) > 0 {
		result, err = risk.NewMonteCarloSimulator(cfg).SimulateAssets(r.Context(), req.AssetReturns, req.Weights)
	} else {
		result, err = h.calculator.MonteCarlo(r.Context(), req.PortfolioReturns, cfg)
	}
	monitoring.ObserveDuration("monte_carlo", start)
	if err != nil {
		monitoring.RecordError("monte_carlo")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *RiskHandler) evaluate(ctx context.Context, req MetricsRequest) (*MetricsResponse, error) {
	if req.Portfolio == nil {
		return nil, contracts.NewConfigError("api.RiskMetrics", "portfolio", nil, "portfolio is required")
	}
	p := req.Portfolio
	p.Recalculate()

	confidence := req.Confidence
	if confidence == 0 {
		confidence = h.runtime.Confidence
	}

	start := time.Now()
	metrics, err := h.calculator.Calculate(ctx, risk.CalculationInput{
		Portfolio:        p,
		AssetReturns:     req.AssetReturns,
		PortfolioReturns: req.PortfolioReturns,
		Covariance:       req.Covariance,
		Confidence:       confidence,
	})
	monitoring.ObserveDuration("risk_metrics", start)
	if err != nil {
		return nil, err
	}

	limits := risk.CheckLimits(p, metrics, h.runtime.Limits)
	gate := h.runtime.Gate.Check(p, metrics)
	stress := risk.StressTest(p, h.runtime.Scenarios, h.runtime.Limits.MaxDrawdown)

	monitoring.RecordRiskMetrics(metrics)
	monitoring.RecordViolations(limits.Violations)
	monitoring.RecordGate(gate)
	if h.health != nil {
		h.health.MarkEvaluation(metrics.CalculatedAt, metrics.PortfolioVaR)
	}

	if req.Persist && h.store != nil {
		err := h.store.SaveRiskReport(ctx, portfolio.RiskReport{
			Date:        metrics.CalculatedAt,
			ProfileHash: h.profileHash,
			Metrics:     metrics,
			Violations:  limits.Violations,
		})
		if err != nil {
			h.logger.WithError(err).Error("Failed to persist risk report")
			monitoring.RecordError("store")
		}
	}

	return &MetricsResponse{
		Metrics: metrics,
		Limits:  limits,
		Stress:  stress,
		Gate:    gate,
		Profile: h.runtime.Profile.Meta.ProfileID,
	}, nil
}
