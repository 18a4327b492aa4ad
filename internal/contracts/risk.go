package contracts

import "time"

// RiskLimits 리스크 한도
// ⭐ 평가 1회 동안 불변
type RiskLimits struct {
	MaxPositionWeight float64 `json:"max_position_weight" yaml:"max_position_weight"` // 종목당 최대 비중
	MaxSectorWeight   float64 `json:"max_sector_weight" yaml:"max_sector_weight"`     // 섹터당 최대 비중
	MaxDrawdown       float64 `json:"max_drawdown" yaml:"max_drawdown"`               // 최대 허용 낙폭
	MaxLeverage       float64 `json:"max_leverage" yaml:"max_leverage"`
	MinCashRatio      float64 `json:"min_cash_ratio" yaml:"min_cash_ratio"`
	MaxVaR            float64 `json:"max_var" yaml:"max_var"` // 1일 VaR 상한 (비율)
	StopLossPercent   float64 `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent" yaml:"take_profit_percent"`
}

// DefaultRiskLimits 기본 리스크 한도
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionWeight: 0.20,
		MaxSectorWeight:   0.40,
		MaxDrawdown:       0.20,
		MaxLeverage:       1.0,
		MinCashRatio:      0.05,
		MaxVaR:            0.05,
		StopLossPercent:   0.10,
		TakeProfitPercent: 0.20,
	}
}

// ComponentVaRMethod 구성요소 VaR 산출 방식
type ComponentVaRMethod string

const (
	ComponentVaRAnalytic     ComponentVaRMethod = "analytic"     // 공분산 기반 Euler 분해
	ComponentVaRProportional ComponentVaRMethod = "proportional" // 비중 비례 (공분산 없음)
)

// RiskMetrics 포트폴리오 리스크 지표
// ⭐ SSOT: 리스크 계산 결과는 여기서만
type RiskMetrics struct {
	PortfolioVaR       float64            `json:"portfolio_var"`
	ComponentVaR       []float64          `json:"component_var"` // 포지션 순서
	ExpectedShortfall  float64            `json:"expected_shortfall"`
	ConcentrationRisk  float64            `json:"concentration_risk"` // Herfindahl
	SectorExposure     map[string]float64 `json:"sector_exposure"`
	CorrelationRisk    float64            `json:"correlation_risk"`
	LiquidityRisk      float64            `json:"liquidity_risk"`
	LeverageRatio      float64            `json:"leverage_ratio"`
	Confidence         float64            `json:"confidence"`
	ComponentVaRMethod ComponentVaRMethod `json:"component_var_method"`
	MissingLiquidity   []string           `json:"missing_liquidity,omitempty"`
	CalculatedAt       time.Time          `json:"calculated_at"`
}
