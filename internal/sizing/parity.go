package sizing

import (
	"fmt"
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/risk"
)

// =============================================================================
// Risk Parity
// =============================================================================

// RiskParityRequest 리스크 패리티 입력
type RiskParityRequest struct {
	Assets             []contracts.Asset           `json:"assets"`
	Covariance         *contracts.CovarianceMatrix `json:"covariance,omitempty"` // nil → HistoricalPrices 로 추정
	Bounds             Bounds                      `json:"bounds"`
	RiskFreeRate       float64                     `json:"risk_free_rate"`
	PortfolioValue     float64                     `json:"portfolio_value"`     // 리밸런싱 금액 기준
	RebalanceThreshold float64                     `json:"rebalance_threshold"` // 0 → 5%
}

// RebalanceSignal 자산별 리밸런싱 신호
type RebalanceSignal struct {
	Symbol        string           `json:"symbol"`
	CurrentWeight float64          `json:"current_weight"`
	TargetWeight  float64          `json:"target_weight"`
	Action        contracts.Action `json:"action"`
	Amount        float64          `json:"amount"`
	Reason        string           `json:"reason"`
}

// RiskParityResult 리스크 패리티 결과
type RiskParityResult struct {
	Symbols              []string          `json:"symbols"`
	Weights              []float64         `json:"weights"`
	RiskContributions    []float64         `json:"risk_contributions"` // 합계 1
	PortfolioVolatility  float64           `json:"portfolio_volatility"`
	PortfolioReturn      float64           `json:"portfolio_return"`
	SharpeRatio          float64           `json:"sharpe_ratio"`
	DiversificationRatio float64           `json:"diversification_ratio"`
	EffectiveAssets      float64           `json:"effective_assets"`
	Convergence          ConvergenceInfo   `json:"convergence"`
	RebalanceSignals     []RebalanceSignal `json:"rebalance_signals"`
	Gate                 *GateResult       `json:"gate,omitempty"`
}

// Blocked 리스크 게이트로 차단되었는지
func (r *RiskParityResult) Blocked() bool {
	return r.Gate != nil && r.Gate.Blocked
}

// RiskParity 리스크 패리티 계산기
type RiskParity struct {
	optimizer Optimizer
	estimator *covariance.Estimator
}

// NewRiskParity 최적화기 지정 (nil → Newton)
func NewRiskParity(optimizer Optimizer, estimator *covariance.Estimator) *RiskParity {
	if optimizer == nil {
		optimizer = NewNewtonOptimizer()
	}
	if estimator == nil {
		estimator = covariance.NewEstimator()
	}
	return &RiskParity{optimizer: optimizer, estimator: estimator}
}

// Optimizer 사용 중인 최적화기
func (rp *RiskParity) Optimizer() Optimizer {
	return rp.optimizer
}

// Optimize 동일 위험 기여 가중치 + 포트폴리오 지표 + 리밸런싱 신호
func (rp *RiskParity) Optimize(req RiskParityRequest) (*RiskParityResult, error) {
	cov, err := rp.prepare(req)
	if err != nil {
		return nil, err
	}

	weights, info := rp.optimizer.Optimize(cov.Matrix, req.Bounds)

	result := &RiskParityResult{
		Symbols:           symbolsOf(req.Assets),
		Weights:           weights,
		RiskContributions: RiskContributionShares(weights, cov.Matrix),
		Convergence:       info,
	}
	rp.fillMetrics(result, req, cov)
	result.RebalanceSignals = RebalanceSignals(req.Assets, weights, req.PortfolioValue, req.RebalanceThreshold)

	return result, nil
}

// prepare 입력 검증 + 공분산 확보
func (rp *RiskParity) prepare(req RiskParityRequest) (*contracts.CovarianceMatrix, error) {
	const op = "sizing.RiskParity"

	n := len(req.Assets)
	if n == 0 {
		return nil, contracts.NewConfigError(op, "assets", contracts.ErrEmptyAssets, "no assets to optimize")
	}
	if err := req.Bounds.Validate(n); err != nil {
		return nil, err
	}

	cov := req.Covariance
	if cov == nil {
		series := make([]covariance.PriceSeries, n)
		for i, a := range req.Assets {
			series[i] = covariance.PriceSeries{Symbol: a.Symbol, Prices: a.HistoricalPrices}
		}
		estimated, err := rp.estimator.Estimate(series)
		if err != nil {
			return nil, fmt.Errorf("estimate covariance: %w", err)
		}
		cov = estimated
	} else {
		// 전달받은 플래그는 신뢰하지 않고 고유값부터 다시 계산
		symbols := cov.Symbols
		if len(symbols) == 0 {
			symbols = symbolsOf(req.Assets)
		}
		rebuilt, err := covariance.FromMatrix(symbols, cov.Matrix)
		if err != nil {
			return nil, err
		}
		cov = rebuilt
	}

	if cov.Size() != n {
		return nil, contracts.NewConfigError(op, "covariance", nil,
			"covariance is %dx%d but %d assets given", cov.Size(), cov.Size(), n)
	}
	if err := cov.RequirePositiveDefinite(); err != nil {
		return nil, err
	}
	return cov, nil
}

// fillMetrics 기대수익률, 변동성, 샤프, 분산화 비율, 유효 자산 수
func (rp *RiskParity) fillMetrics(result *RiskParityResult, req RiskParityRequest, cov *contracts.CovarianceMatrix) {
	w := result.Weights

	result.PortfolioVolatility = risk.PortfolioVolatility(w, cov.Matrix)

	weightedVol := 0.0
	herfindahl := 0.0
	for i, a := range req.Assets {
		result.PortfolioReturn += w[i] * a.ExpectedReturn
		weightedVol += w[i] * cov.Volatility(i)
		herfindahl += w[i] * w[i]
	}

	result.SharpeRatio = safeDiv(result.PortfolioReturn-req.RiskFreeRate, result.PortfolioVolatility)
	result.DiversificationRatio = safeDiv(weightedVol, result.PortfolioVolatility)
	result.EffectiveAssets = safeDiv(1, herfindahl)
}

// RebalanceSignals 현재 비중(Asset.Weight) 대비 목표 비중 신호
// |목표 − 현재| > threshold 일 때만 buy/sell, 금액 = |Δw| × portfolioValue
func RebalanceSignals(assets []contracts.Asset, target []float64, portfolioValue, threshold float64) []RebalanceSignal {
	if threshold <= 0 {
		threshold = 0.05
	}

	signals := make([]RebalanceSignal, 0, len(assets))
	for i, a := range assets {
		if i >= len(target) {
			break
		}
		current := a.Weight
		deviation := target[i] - current

		signal := RebalanceSignal{
			Symbol:        a.Symbol,
			CurrentWeight: current,
			TargetWeight:  target[i],
			Action:        contracts.ActionHold,
			Amount:        math.Abs(deviation) * portfolioValue,
			Reason:        "weight within target band",
		}

		if math.Abs(deviation) > threshold {
			if deviation > 0 {
				signal.Action = contracts.ActionBuy
				signal.Reason = fmt.Sprintf("weight %.2f%% below target %.2f%%", current*100, target[i]*100)
			} else {
				signal.Action = contracts.ActionSell
				signal.Reason = fmt.Sprintf("weight %.2f%% above target %.2f%%", current*100, target[i]*100)
			}
		}
		signals = append(signals, signal)
	}
	return signals
}

func symbolsOf(assets []contracts.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}
