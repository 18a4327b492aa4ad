package handlers

import (
	"net/http"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/sizing"
	"github.com/wonny/stockrisk/internal/strategyconfig"
	"github.com/wonny/stockrisk/pkg/logger"
)

// SizingHandler handles position sizing endpoints
// ⭐ 모든 사이징 요청은 Sizer(게이트 선행)를 거침
type SizingHandler struct {
	runtime *strategyconfig.Runtime
	logger  *logger.Logger
}

// NewSizingHandler creates a new sizing handler
func NewSizingHandler(rt *strategyconfig.Runtime, log *logger.Logger) *SizingHandler {
	return &SizingHandler{runtime: rt, logger: log}
}

// KellyRequest Kelly 사이징 요청
type KellyRequest struct {
	Portfolio *contracts.Portfolio   `json:"portfolio"`
	Metrics   *contracts.RiskMetrics `json:"metrics,omitempty"`
	Request   sizing.KellyRequest    `json:"request"`
	History   []sizing.TradeRecord   `json:"history,omitempty"`
}

// KellyResponse Kelly 사이징 응답
type KellyResponse struct {
	Decision contracts.SizingDecision `json:"decision"`
	Advice   sizing.KellyResult       `json:"advice"`
	Summary  string                   `json:"summary"`
}

// Kelly sizes a position with the Kelly criterion
// POST /api/sizing/kelly
func (h *SizingHandler) Kelly(w http.ResponseWriter, r *http.Request) {
	var req KellyRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Request.Symbol == "" || req.Request.Price <= 0 {
		respondError(w, http.StatusBadRequest, "symbol and positive price are required")
		return
	}
	recalculate(req.Portfolio)

	decision := h.runtime.Sizer.SizeKelly(req.Portfolio, req.Metrics, req.Request)

	params := sizing.KellyParams{
		WinRate:      req.Request.WinRate,
		AvgWin:       req.Request.AvgWin,
		AvgLoss:      req.Request.AvgLoss,
		RiskFreeRate: h.runtime.Params.RiskFreeRate,
	}
	if len(req.History) > 0 {
		params = h.runtime.Advisor.ParamsFromHistory(req.History, h.runtime.Params.RiskFreeRate)
	}
	cash := 0.0
	if req.Portfolio != nil {
		cash = req.Portfolio.Cash
	}
	advice := h.runtime.Advisor.Advise(params, req.Request.Price, cash, req.History)

	respondJSON(w, http.StatusOK, KellyResponse{
		Decision: decision,
		Advice:   advice,
		Summary:  sizing.Advice(advice),
	})
}

// VolatilityRequest 변동성 타겟 요청
type VolatilityRequest struct {
	Portfolio *contracts.Portfolio         `json:"portfolio"`
	Metrics   *contracts.RiskMetrics       `json:"metrics,omitempty"`
	Input     sizing.VolatilityTargetInput `json:"input"`
}

// Volatility sizes a position to the volatility target
// POST /api/sizing/volatility
func (h *SizingHandler) Volatility(w http.ResponseWriter, r *http.Request) {
	var req VolatilityRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Input.Symbol == "" || req.Input.CurrentPrice <= 0 {
		respondError(w, http.StatusBadRequest, "symbol and positive current_price are required")
		return
	}
	recalculate(req.Portfolio)

	decision := h.runtime.Sizer.SizeVolatilityTarget(req.Portfolio, req.Metrics, req.Input)
	respondJSON(w, http.StatusOK, decision)
}

// RiskParityRequest 리스크 패리티 요청
// Prices 가 주어지면 목표 비중까지의 주문 목록도 계산
type RiskParityRequest struct {
	Portfolio *contracts.Portfolio     `json:"portfolio"`
	Metrics   *contracts.RiskMetrics   `json:"metrics,omitempty"`
	Request   sizing.RiskParityRequest `json:"request"`
	Prices    map[string]float64       `json:"prices,omitempty"`
}

// RiskParityResponse 리스크 패리티 응답
type RiskParityResponse struct {
	Result *sizing.RiskParityResult `json:"result"`
	Trades []portfolio.Trade        `json:"trades,omitempty"`
}

// RiskParity optimizes risk-parity weights
// POST /api/sizing/risk-parity
func (h *SizingHandler) RiskParity(w http.ResponseWriter, r *http.Request) {
	var req RiskParityRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	recalculate(req.Portfolio)

	if req.Request.Bounds == (sizing.Bounds{}) {
		req.Request.Bounds = h.runtime.Bounds
	}

	result, err := h.runtime.Sizer.OptimizeRiskParity(req.Portfolio, req.Metrics, req.Request)
	if err != nil {
		h.logger.WithError(err).Warn("Risk parity failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	resp := RiskParityResponse{Result: result}
	if req.Portfolio != nil && len(req.Prices) > 0 && !result.Blocked() {
		constraints := portfolio.DefaultConstraints(h.runtime.Limits)
		constraints.LotSize = h.runtime.Params.Lot()

		targets := make(map[string]float64, len(result.Symbols))
		for i, sym := range result.Symbols {
			targets[sym] = result.Weights[i]
		}

		trades, err := portfolio.NewRebalancer(constraints, h.logger).Plan(req.Portfolio, targets, req.Prices)
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		resp.Trades = trades
	}

	respondJSON(w, http.StatusOK, resp)
}

// AdjustRequest 포트폴리오 조정 요청
type AdjustRequest struct {
	Portfolio *contracts.Portfolio   `json:"portfolio"`
	Metrics   *contracts.RiskMetrics `json:"metrics,omitempty"`
	Regime    sizing.MarketRegime    `json:"regime"`
}

// Adjust plans portfolio-level weight adjustments for the market regime
// POST /api/sizing/adjust
func (h *SizingHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Portfolio == nil || len(req.Portfolio.Positions) == 0 {
		respondError(w, http.StatusBadRequest, "portfolio with positions is required")
		return
	}

	// 손익률은 평균단가/현재가로 다시 계산
	for i := range req.Portfolio.Positions {
		pos := &req.Portfolio.Positions[i]
		pos.ApplyPrice(pos.CurrentPrice)
	}
	recalculate(req.Portfolio)

	plan := h.runtime.Sizer.AdjustPortfolio(req.Portfolio, req.Metrics, req.Regime)
	respondJSON(w, http.StatusOK, plan)
}

func recalculate(p *contracts.Portfolio) {
	if p != nil {
		p.Recalculate()
	}
}
