package sizing

import (
	"fmt"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/pkg/logger"
)

// =============================================================================
// Sizer - 게이트 선행 사이징 파사드
// =============================================================================

// KellyRequest Kelly 사이징 입력
type KellyRequest struct {
	Symbol  string  `json:"symbol"`
	WinRate float64 `json:"win_rate"`
	AvgWin  float64 `json:"avg_win"`
	AvgLoss float64 `json:"avg_loss"`
	Price   float64 `json:"price"`
}

// Sizer 포지션 사이저
// ⭐ 모든 사이징 진입점은 게이트를 먼저 통과해야 함 (차단은 덮어쓰지 않음)
type Sizer struct {
	params Params
	gate   *Gate
	parity *RiskParity
	logger *logger.Logger
}

// NewSizer 새 사이저 생성 (parity nil → Newton 최적화기)
func NewSizer(params Params, gate *Gate, parity *RiskParity, log *logger.Logger) *Sizer {
	if log == nil {
		log = logger.Nop()
	}
	if gate == nil {
		gate = NewGate(contracts.DefaultRiskLimits(), GateModeEnforce, log)
	}
	if parity == nil {
		parity = NewRiskParity(nil, nil)
	}
	return &Sizer{params: params, gate: gate, parity: parity, logger: log.Component("sizing")}
}

// Params 사이징 파라미터
func (s *Sizer) Params() Params {
	return s.params
}

// Gate 리스크 게이트
func (s *Sizer) Gate() *Gate {
	return s.gate
}

// SizeKelly Kelly 비중으로 가용 현금에서 매수 수량 계산
// TargetQuantity 는 추가 매수 수량
func (s *Sizer) SizeKelly(p *contracts.Portfolio, metrics *contracts.RiskMetrics, req KellyRequest) contracts.SizingDecision {
	current := currentQuantity(p, req.Symbol)

	gate := s.gate.Check(p, metrics)
	if gate.Blocked {
		return s.gate.Hold(req.Symbol, current, contracts.SizingKelly, gate)
	}

	fraction := KellyFraction(req.WinRate, req.AvgWin, req.AvgLoss, s.params.MaxPositionSize)
	cash := 0.0
	if p != nil {
		cash = p.Cash
	}
	shares := KellyShares(fraction, cash, req.Price, s.params.LotSize)

	decision := contracts.SizingDecision{
		Symbol:         req.Symbol,
		Action:         contracts.ActionHold,
		TargetQuantity: shares,
		TargetValue:    shares * req.Price,
		Method:         contracts.SizingKelly,
	}
	if shares > 0 {
		decision.Action = contracts.ActionBuy
		decision.Reason = fmt.Sprintf("kelly fraction %.2f%%: buy %.0f shares", fraction*100, shares)
	} else {
		decision.Reason = fmt.Sprintf("kelly fraction %.2f%%: no position", fraction*100)
	}

	s.logDecision(decision)
	return decision
}

// SizeVolatilityTarget 변동성 타겟 사이징
func (s *Sizer) SizeVolatilityTarget(p *contracts.Portfolio, metrics *contracts.RiskMetrics, in VolatilityTargetInput) contracts.SizingDecision {
	if in.CurrentQuantity == 0 {
		in.CurrentQuantity = currentQuantity(p, in.Symbol)
	}

	gate := s.gate.Check(p, metrics)
	if gate.Blocked {
		return s.gate.Hold(in.Symbol, in.CurrentQuantity, contracts.SizingVolatility, gate)
	}

	totalValue := 0.0
	if p != nil {
		totalValue = p.TotalValue
	}
	decision := VolatilityTarget(s.params, s.gate.Limits(), totalValue, in)

	s.logDecision(decision)
	return decision
}

// OptimizeRiskParity 리스크 패리티 최적화
// 게이트 차단 시 최적화 없이 현재 비중 유지 (모든 신호 hold)
func (s *Sizer) OptimizeRiskParity(p *contracts.Portfolio, metrics *contracts.RiskMetrics, req RiskParityRequest) (*RiskParityResult, error) {
	if req.PortfolioValue == 0 && p != nil {
		req.PortfolioValue = p.TotalValue
	}
	if req.RebalanceThreshold == 0 {
		req.RebalanceThreshold = s.params.RebalanceThreshold
	}
	if req.RiskFreeRate == 0 {
		req.RiskFreeRate = s.params.RiskFreeRate
	}

	gate := s.gate.Check(p, metrics)
	if gate.Blocked {
		return s.heldParity(req, gate), nil
	}

	result, err := s.parity.Optimize(req)
	if err != nil {
		return nil, err
	}
	result.Gate = &gate

	s.logger.WithFields(map[string]interface{}{
		"optimizer":  result.Convergence.Method,
		"converged":  result.Convergence.Converged,
		"iterations": result.Convergence.Iterations,
		"error":      result.Convergence.FinalError,
		"assets":     len(result.Weights),
	}).Info("Risk parity optimized")

	return result, nil
}

// AdjustPortfolio 포트폴리오 단위 동적 조정 신호
// 게이트 차단 시 위험을 줄이는 매도/청산만 통과, 매수는 Suppressed
func (s *Sizer) AdjustPortfolio(p *contracts.Portfolio, metrics *contracts.RiskMetrics, regime MarketRegime) AdjustmentPlan {
	gate := s.gate.Check(p, metrics)
	adjuster := NewAdjuster(s.params, s.gate.Limits())

	plan := AdjustmentPlan{
		TargetVolatility: adjuster.TargetVolatility(regime),
		Signals:          make([]AdjustmentSignal, 0),
		Gate:             &gate,
	}
	for _, sig := range adjuster.Signals(p, regime) {
		if gate.Blocked && sig.Action == contracts.ActionBuy {
			plan.Suppressed = append(plan.Suppressed, sig)
			continue
		}
		plan.Signals = append(plan.Signals, sig)
	}

	s.logger.WithFields(map[string]interface{}{
		"signals":           len(plan.Signals),
		"suppressed":        len(plan.Suppressed),
		"target_volatility": plan.TargetVolatility,
		"regime":            regime.Volatility,
	}).Info("Portfolio adjustment planned")

	return plan
}

func (s *Sizer) heldParity(req RiskParityRequest, gate GateResult) *RiskParityResult {
	weights := make([]float64, len(req.Assets))
	signals := make([]RebalanceSignal, len(req.Assets))
	for i, a := range req.Assets {
		weights[i] = a.Weight
		signals[i] = RebalanceSignal{
			Symbol:        a.Symbol,
			CurrentWeight: a.Weight,
			TargetWeight:  a.Weight,
			Action:        contracts.ActionHold,
			Reason:        gate.Reason,
		}
	}
	return &RiskParityResult{
		Symbols:          symbolsOf(req.Assets),
		Weights:          weights,
		Convergence:      ConvergenceInfo{Method: s.parity.Optimizer().Name()},
		RebalanceSignals: signals,
		Gate:             &gate,
	}
}

func (s *Sizer) logDecision(d contracts.SizingDecision) {
	s.logger.WithFields(map[string]interface{}{
		"symbol":   d.Symbol,
		"method":   d.Method,
		"action":   d.Action,
		"quantity": d.TargetQuantity,
	}).Debug("Sizing decision")
}

func currentQuantity(p *contracts.Portfolio, symbol string) float64 {
	if p == nil {
		return 0
	}
	if pos, ok := p.GetPosition(symbol); ok {
		return pos.Quantity
	}
	return 0
}
