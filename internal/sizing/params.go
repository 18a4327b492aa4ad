// Package sizing computes position sizes behind a risk-limit gate.
package sizing

import "math"

// Params 포지션 사이징 파라미터
// ⭐ SSOT: 사이징 기본값은 여기서만
type Params struct {
	RiskFreeRate       float64 `json:"risk_free_rate" yaml:"risk_free_rate"`           // 연율
	TargetVolatility   float64 `json:"target_volatility" yaml:"target_volatility"`     // 연율
	LookbackPeriod     int     `json:"lookback_period" yaml:"lookback_period"`         // 변동성 계산 기간 (일)
	MaxPositionSize    float64 `json:"max_position_size" yaml:"max_position_size"`     // Kelly 상한
	MinPositionSize    float64 `json:"min_position_size" yaml:"min_position_size"`     // 최소 비중
	LotSize            int     `json:"lot_size" yaml:"lot_size"`                       // 매매 단위 (≤0 → 1)
	BaseAllocation     float64 `json:"base_allocation" yaml:"base_allocation"`         // 변동성 타겟 기준 비중
	RebalanceThreshold float64 `json:"rebalance_threshold" yaml:"rebalance_threshold"` // 리밸런싱 비중 밴드
	VolatilityBand     float64 `json:"volatility_band" yaml:"volatility_band"`         // 목표 변동성 대비 허용 편차 (상대)
	VolatilityFloor    float64 `json:"volatility_floor" yaml:"volatility_floor"`       // 국면 조정 후 목표 변동성 하한
	VolatilityCeiling  float64 `json:"volatility_ceiling" yaml:"volatility_ceiling"`   // 국면 조정 후 목표 변동성 상한
}

// DefaultParams 기본 사이징 파라미터
func DefaultParams() Params {
	return Params{
		RiskFreeRate:       0.03,
		TargetVolatility:   0.15,
		LookbackPeriod:     252,
		MaxPositionSize:    0.25,
		MinPositionSize:    0,
		LotSize:            100,
		BaseAllocation:     0.10,
		RebalanceThreshold: 0.05,
		VolatilityBand:     0.10,
		VolatilityFloor:    0.05,
		VolatilityCeiling:  0.30,
	}
}

// Lot 유효 매매 단위
func (p Params) Lot() float64 {
	if p.LotSize <= 0 {
		return 1
	}
	return float64(p.LotSize)
}

// RoundToLot 수량을 매매 단위로 내림
func RoundToLot(quantity float64, lotSize int) float64 {
	lot := float64(lotSize)
	if lotSize <= 0 {
		lot = 1
	}
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0
	}
	return math.Floor(quantity/lot+1e-9) * lot
}

// finite NaN/Inf → 0
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// safeDiv 분모 0이면 0
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}
