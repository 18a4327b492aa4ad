package strategyconfig

import (
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

// Config는 리스크 프로파일 전체 설정
// ⭐ SSOT: 한도/사이징/청산 규칙은 YAML 프로파일 하나에서
type Config struct {
	Meta       Meta                 `yaml:"meta" json:"meta"`
	Limits     contracts.RiskLimits `yaml:"limits" json:"limits"`
	Sizing     sizing.Params        `yaml:"sizing" json:"sizing"`
	Gate       Gate                 `yaml:"gate" json:"gate"`
	Kelly      Kelly                `yaml:"kelly" json:"kelly"`
	RiskParity RiskParity           `yaml:"risk_parity" json:"risk_parity"`
	VaR        VaR                  `yaml:"var" json:"var"`
	Covariance Covariance           `yaml:"covariance" json:"covariance"`
	Exit       Exit                 `yaml:"exit" json:"exit"`
	Stress     []risk.Scenario      `yaml:"stress_scenarios" json:"stress_scenarios"`
}

// Meta 메타 정보
type Meta struct {
	ProfileID string `yaml:"profile_id" json:"profile_id"`
	Version   string `yaml:"version" json:"version"`
	Timezone  string `yaml:"timezone" json:"timezone"`
}

// Gate 사전 리스크 게이트
type Gate struct {
	Mode string `yaml:"mode" json:"mode"` // enforce, shadow, off
}

// Kelly Kelly 조언기 설정
type Kelly struct {
	MaxFraction      float64 `yaml:"max_fraction" json:"max_fraction"`
	MinSampleSize    int     `yaml:"min_sample_size" json:"min_sample_size"`
	ConservativeBias float64 `yaml:"conservative_bias" json:"conservative_bias"`
}

// RiskParity 리스크 패리티 최적화 설정
type RiskParity struct {
	Optimizer     string        `yaml:"optimizer" json:"optimizer"` // fixed_point, newton
	Bounds        sizing.Bounds `yaml:"bounds" json:"bounds"`
	Tolerance     float64       `yaml:"tolerance" json:"tolerance"`
	MaxIterations int           `yaml:"max_iterations" json:"max_iterations"`
	Damping       float64       `yaml:"damping" json:"damping"` // fixed_point 전용
}

// Optimizer names
const (
	OptimizerFixedPoint = "fixed_point"
	OptimizerNewton     = "newton"
)

// VaR VaR 설정
type VaR struct {
	Confidence float64               `yaml:"confidence" json:"confidence"`
	MonteCarlo risk.MonteCarloConfig `yaml:"monte_carlo" json:"monte_carlo"`
}

// Covariance 공분산 추정 설정
type Covariance struct {
	ReturnType string  `yaml:"return_type" json:"return_type"` // simple, log
	Shrinkage  float64 `yaml:"shrinkage" json:"shrinkage"`     // 0~1
}

// Exit 손절/익절 규칙 (태그 직렬화 형식)
type Exit struct {
	StopLoss   contracts.StopLossSpec   `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit contracts.TakeProfitSpec `yaml:"take_profit" json:"take_profit"`
}

// Default 기본 프로파일 (YAML 에서 생략된 값은 이 값 유지)
func Default() Config {
	return Config{
		Meta: Meta{
			ProfileID: "default",
			Version:   "1",
			Timezone:  "Asia/Seoul",
		},
		Limits: contracts.DefaultRiskLimits(),
		Sizing: sizing.DefaultParams(),
		Gate:   Gate{Mode: string(sizing.GateModeEnforce)},
		Kelly: Kelly{
			MaxFraction:      0.25,
			MinSampleSize:    30,
			ConservativeBias: 0.8,
		},
		RiskParity: RiskParity{
			Optimizer:     OptimizerNewton,
			Bounds:        sizing.DefaultBounds(),
			Tolerance:     1e-6,
			MaxIterations: 1000,
			Damping:       0.5,
		},
		VaR: VaR{
			Confidence: risk.DefaultConfidence,
			MonteCarlo: risk.DefaultMonteCarloConfig(),
		},
		Covariance: Covariance{ReturnType: string(covariance.SimpleReturns)},
		Exit: Exit{
			StopLoss: contracts.StopLossSpec{
				Type:       contracts.StopLossFixed,
				Enabled:    true,
				Percentage: 0.10,
			},
			TakeProfit: contracts.TakeProfitSpec{
				Type:    contracts.TakeProfitLadder,
				Enabled: true,
				Levels: []contracts.TakeProfitLevel{
					{Percentage: 0.10, SellRatio: 0.3},
					{Percentage: 0.20, SellRatio: 0.3},
					{Percentage: 0.30, SellRatio: 0.4},
				},
			},
		},
		Stress: risk.DefaultScenarios(),
	}
}

// ProfileSnapshot 프로파일 스냅샷 (재현성용)
type ProfileSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	ProfileID  string    `json:"profile_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
