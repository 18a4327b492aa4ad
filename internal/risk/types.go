package risk

import (
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
)

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// DefaultConfidence 기본 신뢰수준
const DefaultConfidence = 0.95

// TradingDaysPerYear 연율화 기준 거래일
const TradingDaysPerYear = 252

// =============================================================================
// VaR/CVaR Types
// =============================================================================

// VaRResult VaR 계산 결과
// - VaR=0.05 → 95% 신뢰수준에서 5% 손실
// - CVaR=0.07 → tail 평균 7% 손실
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"` // Expected Shortfall
}

// =============================================================================
// Calculator Input
// =============================================================================

// CalculationInput 리스크 지표 계산 입력
// AssetReturns는 Portfolio.Positions 순서와 동일해야 함
type CalculationInput struct {
	Portfolio        *contracts.Portfolio
	AssetReturns     [][]float64                 // 종목별 일별 수익률 (오래된 순)
	PortfolioReturns []float64                   // 주어지면 AssetReturns 대신 사용
	Covariance       *contracts.CovarianceMatrix // 없으면 AssetReturns로 추정
	Confidence       float64                     // 0이면 DefaultConfidence
}

// =============================================================================
// Monte Carlo Types
// =============================================================================

// MonteCarloMethod 시뮬레이션 방법
type MonteCarloMethod string

const (
	MethodHistoricalBootstrap MonteCarloMethod = "historical_bootstrap" // 과거 수익률 Bootstrap
	MethodParametricNormal    MonteCarloMethod = "parametric_normal"    // 정규분포 가정
)

// MonteCarloConfig Monte Carlo 시뮬레이션 설정
// ⭐ SSOT: 재현성을 위해 모든 설정을 명시적으로 기록
type MonteCarloConfig struct {
	NumSimulations   int              `json:"num_simulations" yaml:"num_simulations"`
	HoldingPeriod    int              `json:"holding_period" yaml:"holding_period"` // 일
	ConfidenceLevels []float64        `json:"confidence_levels" yaml:"confidence_levels"`
	Method           MonteCarloMethod `json:"method" yaml:"method"`
	Seed             int64            `json:"seed" yaml:"seed"`               // 0=랜덤
	MinSamples       int              `json:"min_samples" yaml:"min_samples"` // fail-closed
}

// DefaultMonteCarloConfig 기본 Monte Carlo 설정
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumSimulations:   10000,
		HoldingPeriod:    5,
		ConfidenceLevels: []float64{0.95, 0.99},
		Method:           MethodHistoricalBootstrap,
		Seed:             0,
		MinSamples:       30,
	}
}

// MonteCarloResult Monte Carlo 시뮬레이션 결과
type MonteCarloResult struct {
	RunID            string           `json:"run_id"`
	Config           MonteCarloConfig `json:"config"`
	InputSampleCount int              `json:"input_sample_count"`
	MeanReturn       float64          `json:"mean_return"`
	StdDev           float64          `json:"std_dev"`
	VaR              []VaRResult      `json:"var"` // ConfidenceLevels 순서
	Percentiles      map[int]float64  `json:"percentiles"`
	CreatedAt        time.Time        `json:"created_at"`
}

// VaRAt 신뢰수준별 결과 조회
func (r *MonteCarloResult) VaRAt(confidence float64) (VaRResult, bool) {
	for _, v := range r.VaR {
		if v.Confidence == confidence {
			return v, true
		}
	}
	return VaRResult{}, false
}

// =============================================================================
// Limit Check Types
// =============================================================================

// LimitKind 한도 종류
type LimitKind string

const (
	LimitMaxDrawdown    LimitKind = "max_drawdown"
	LimitMaxVaR         LimitKind = "max_var"
	LimitMinCashRatio   LimitKind = "min_cash_ratio"
	LimitMaxLeverage    LimitKind = "max_leverage"
	LimitPositionWeight LimitKind = "max_position_weight"
	LimitSectorWeight   LimitKind = "max_sector_weight"
)

// Violation 한도 위반
type Violation struct {
	Kind    LimitKind `json:"kind"`
	Subject string    `json:"subject,omitempty"` // 종목/섹터
	Value   float64   `json:"value"`
	Limit   float64   `json:"limit"`
	Message string    `json:"message"`
}

// LimitCheckResult 리스크 한도 체크 결과
// Violations: 거래 차단 (maxDrawdown → maxVaR → minCashRatio → maxLeverage 순)
// Warnings: 비중 한도 초과 (차단하지 않음)
type LimitCheckResult struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Warnings   []Violation `json:"warnings"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// FirstViolation 첫 차단 사유
func (r *LimitCheckResult) FirstViolation() (Violation, bool) {
	if len(r.Violations) == 0 {
		return Violation{}, false
	}
	return r.Violations[0], true
}

// =============================================================================
// Stress Test Types
// =============================================================================

// Scenario 스트레스 시나리오
// Shocks: 종목별 충격 수익률, "*"는 시장 전체
type Scenario struct {
	Name   string             `json:"name" yaml:"name"`
	Shocks map[string]float64 `json:"shocks" yaml:"shocks"`
}

// StressResult 시나리오별 결과
type StressResult struct {
	Scenario      string  `json:"scenario"`
	ReturnImpact  float64 `json:"return_impact"` // 포트폴리오 수익률 충격
	ValueImpact   float64 `json:"value_impact"`  // 금액 기준
	BreachesLimit bool    `json:"breaches_limit"`
}

// =============================================================================
// Performance Types
// =============================================================================

// PerformanceStats 성과 통계
type PerformanceStats struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"` // 양수
	WinRate          float64 `json:"win_rate"`
	Observations     int     `json:"observations"`
}
