package contracts

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Exit Rules (손절/익절 전략)
// ⭐ SSOT: 전략 파라미터는 전략 타입별 구조체에만 존재
// =============================================================================

// StopLossType 손절 전략 태그
type StopLossType string

const (
	StopLossFixed      StopLossType = "fixed"
	StopLossTrailing   StopLossType = "trailing"
	StopLossATR        StopLossType = "atr"
	StopLossVolatility StopLossType = "volatility"
	StopLossTime       StopLossType = "time"
)

// TakeProfitType 익절 전략 태그
type TakeProfitType string

const (
	TakeProfitFixed    TakeProfitType = "fixed"
	TakeProfitLadder   TakeProfitType = "ladder"
	TakeProfitTrailing TakeProfitType = "trailing"
	TakeProfitDynamic  TakeProfitType = "dynamic"
)

// StopLossRule 손절 전략 (sealed)
type StopLossRule interface {
	StopLossType() StopLossType
	sealedStopLoss()
}

// FixedStop 평균단가 대비 고정 비율
type FixedStop struct {
	Percentage float64 `json:"percentage"`
}

// TrailingStop 최고가 대비 비율
type TrailingStop struct {
	Distance float64 `json:"distance"`
}

// ATRStop 현재가 - ATR × 배수
type ATRStop struct {
	Multiplier float64 `json:"multiplier"`
}

// VolatilityStop 현재가 × 변동성 × 배수
type VolatilityStop struct {
	Multiplier float64 `json:"multiplier"`
}

// TimeStop 보유 기간 초과 + 손실 상태
type TimeStop struct {
	LimitDays int `json:"limit_days"`
}

func (FixedStop) StopLossType() StopLossType      { return StopLossFixed }
func (TrailingStop) StopLossType() StopLossType   { return StopLossTrailing }
func (ATRStop) StopLossType() StopLossType        { return StopLossATR }
func (VolatilityStop) StopLossType() StopLossType { return StopLossVolatility }
func (TimeStop) StopLossType() StopLossType       { return StopLossTime }

func (FixedStop) sealedStopLoss()      {}
func (TrailingStop) sealedStopLoss()   {}
func (ATRStop) sealedStopLoss()        {}
func (VolatilityStop) sealedStopLoss() {}
func (TimeStop) sealedStopLoss()       {}

// TakeProfitLevel 익절 단계
type TakeProfitLevel struct {
	Percentage float64 `json:"percentage" yaml:"percentage"` // 평균단가 대비 수익률
	SellRatio  float64 `json:"sell_ratio" yaml:"sell_ratio"` // 매도 비율 (0~1)
	IsExecuted bool    `json:"is_executed" yaml:"is_executed"`
}

// TakeProfitRule 익절 전략 (sealed)
type TakeProfitRule interface {
	TakeProfitType() TakeProfitType
	sealedTakeProfit()
}

// FixedTakeProfit 미체결 첫 단계만 평가
type FixedTakeProfit struct {
	Levels []TakeProfitLevel `json:"levels"`
}

// LadderTakeProfit 도달한 모든 미체결 단계 평가
type LadderTakeProfit struct {
	Levels []TakeProfitLevel `json:"levels"`
}

// TrailingTakeProfit 수익률이 Activation 이상이면 최고가 추적
type TrailingTakeProfit struct {
	Activation float64 `json:"activation"`
	Distance   float64 `json:"distance"`
}

// DynamicTakeProfit 기준 + 변동성 × 배수
type DynamicTakeProfit struct {
	Base                 float64 `json:"base"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
	SellRatio            float64 `json:"sell_ratio"`
}

func (FixedTakeProfit) TakeProfitType() TakeProfitType    { return TakeProfitFixed }
func (LadderTakeProfit) TakeProfitType() TakeProfitType   { return TakeProfitLadder }
func (TrailingTakeProfit) TakeProfitType() TakeProfitType { return TakeProfitTrailing }
func (DynamicTakeProfit) TakeProfitType() TakeProfitType  { return TakeProfitDynamic }

func (FixedTakeProfit) sealedTakeProfit()    {}
func (LadderTakeProfit) sealedTakeProfit()   {}
func (TrailingTakeProfit) sealedTakeProfit() {}
func (DynamicTakeProfit) sealedTakeProfit()  {}

// Dynamic take-profit defaults.
const (
	DefaultDynamicBase                 = 0.10
	DefaultDynamicVolatilityMultiplier = 2.0
	DefaultDynamicSellRatio            = 0.5
)

// StopLossConfig 손절 설정
type StopLossConfig struct {
	Enabled bool
	Rule    StopLossRule
}

// TakeProfitConfig 익절 설정
type TakeProfitConfig struct {
	Enabled bool
	Rule    TakeProfitRule
}

// Active 사용 가능 여부
func (c StopLossConfig) Active() bool {
	return c.Enabled && c.Rule != nil
}

// Active 사용 가능 여부
func (c TakeProfitConfig) Active() bool {
	return c.Enabled && c.Rule != nil
}

// Levels 단계형 전략의 단계 목록 (그 외 nil)
func (c TakeProfitConfig) Levels() []TakeProfitLevel {
	switch r := c.Rule.(type) {
	case FixedTakeProfit:
		return r.Levels
	case LadderTakeProfit:
		return r.Levels
	}
	return nil
}

// MarkLevelExecuted 단계 체결 표시
// 이미 체결됐거나 인덱스가 범위 밖이면 false
func (c TakeProfitConfig) MarkLevelExecuted(index int) bool {
	levels := c.Levels()
	if index < 0 || index >= len(levels) || levels[index].IsExecuted {
		return false
	}
	levels[index].IsExecuted = true
	return true
}

// =============================================================================
// Wire form (JSON/YAML)
// =============================================================================

// StopLossSpec 손절 설정 직렬화 형식
type StopLossSpec struct {
	Type                 StopLossType `json:"type" yaml:"type"`
	Enabled              bool         `json:"enabled" yaml:"enabled"`
	Percentage           float64      `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	TrailingDistance     float64      `json:"trailing_distance,omitempty" yaml:"trailing_distance,omitempty"`
	ATRMultiplier        float64      `json:"atr_multiplier,omitempty" yaml:"atr_multiplier,omitempty"`
	VolatilityMultiplier float64      `json:"volatility_multiplier,omitempty" yaml:"volatility_multiplier,omitempty"`
	TimeLimitDays        int          `json:"time_limit_days,omitempty" yaml:"time_limit_days,omitempty"`
}

// Build 태그에 맞는 전략으로 변환
func (s StopLossSpec) Build() (StopLossConfig, error) {
	var rule StopLossRule
	switch s.Type {
	case StopLossFixed:
		rule = FixedStop{Percentage: s.Percentage}
	case StopLossTrailing:
		rule = TrailingStop{Distance: s.TrailingDistance}
	case StopLossATR:
		rule = ATRStop{Multiplier: s.ATRMultiplier}
	case StopLossVolatility:
		rule = VolatilityStop{Multiplier: s.VolatilityMultiplier}
	case StopLossTime:
		rule = TimeStop{LimitDays: s.TimeLimitDays}
	default:
		return StopLossConfig{}, &ConfigError{
			Op:      "stop_loss",
			Field:   "type",
			Message: fmt.Sprintf("unknown stop-loss type %q", s.Type),
			Err:     ErrUnknownStrategy,
		}
	}
	return StopLossConfig{Enabled: s.Enabled, Rule: rule}, nil
}

// Spec 직렬화 형식으로 변환
func (c StopLossConfig) Spec() StopLossSpec {
	spec := StopLossSpec{Enabled: c.Enabled}
	switch r := c.Rule.(type) {
	case FixedStop:
		spec.Type, spec.Percentage = StopLossFixed, r.Percentage
	case TrailingStop:
		spec.Type, spec.TrailingDistance = StopLossTrailing, r.Distance
	case ATRStop:
		spec.Type, spec.ATRMultiplier = StopLossATR, r.Multiplier
	case VolatilityStop:
		spec.Type, spec.VolatilityMultiplier = StopLossVolatility, r.Multiplier
	case TimeStop:
		spec.Type, spec.TimeLimitDays = StopLossTime, r.LimitDays
	}
	return spec
}

// MarshalJSON encodes the tagged wire form.
func (c StopLossConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Spec())
}

// UnmarshalJSON decodes the tagged wire form; unknown tags are rejected.
func (c *StopLossConfig) UnmarshalJSON(data []byte) error {
	var spec StopLossSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	cfg, err := spec.Build()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// TakeProfitSpec 익절 설정 직렬화 형식
type TakeProfitSpec struct {
	Type                 TakeProfitType    `json:"type" yaml:"type"`
	Enabled              bool              `json:"enabled" yaml:"enabled"`
	Levels               []TakeProfitLevel `json:"levels,omitempty" yaml:"levels,omitempty"`
	TrailingActivation   float64           `json:"trailing_activation,omitempty" yaml:"trailing_activation,omitempty"`
	TrailingDistance     float64           `json:"trailing_distance,omitempty" yaml:"trailing_distance,omitempty"`
	BaseThreshold        float64           `json:"base_threshold,omitempty" yaml:"base_threshold,omitempty"`
	VolatilityMultiplier float64           `json:"volatility_multiplier,omitempty" yaml:"volatility_multiplier,omitempty"`
	SellRatio            float64           `json:"sell_ratio,omitempty" yaml:"sell_ratio,omitempty"`
}

// Build 태그에 맞는 전략으로 변환
func (s TakeProfitSpec) Build() (TakeProfitConfig, error) {
	var rule TakeProfitRule
	switch s.Type {
	case TakeProfitFixed:
		rule = FixedTakeProfit{Levels: cloneLevels(s.Levels)}
	case TakeProfitLadder:
		rule = LadderTakeProfit{Levels: cloneLevels(s.Levels)}
	case TakeProfitTrailing:
		rule = TrailingTakeProfit{Activation: s.TrailingActivation, Distance: s.TrailingDistance}
	case TakeProfitDynamic:
		d := DynamicTakeProfit{
			Base:                 s.BaseThreshold,
			VolatilityMultiplier: s.VolatilityMultiplier,
			SellRatio:            s.SellRatio,
		}
		if d.Base == 0 {
			d.Base = DefaultDynamicBase
		}
		if d.VolatilityMultiplier == 0 {
			d.VolatilityMultiplier = DefaultDynamicVolatilityMultiplier
		}
		if d.SellRatio == 0 {
			d.SellRatio = DefaultDynamicSellRatio
		}
		rule = d
	default:
		return TakeProfitConfig{}, &ConfigError{
			Op:      "take_profit",
			Field:   "type",
			Message: fmt.Sprintf("unknown take-profit type %q", s.Type),
			Err:     ErrUnknownStrategy,
		}
	}
	return TakeProfitConfig{Enabled: s.Enabled, Rule: rule}, nil
}

// Spec 직렬화 형식으로 변환
func (c TakeProfitConfig) Spec() TakeProfitSpec {
	spec := TakeProfitSpec{Enabled: c.Enabled}
	switch r := c.Rule.(type) {
	case FixedTakeProfit:
		spec.Type, spec.Levels = TakeProfitFixed, cloneLevels(r.Levels)
	case LadderTakeProfit:
		spec.Type, spec.Levels = TakeProfitLadder, cloneLevels(r.Levels)
	case TrailingTakeProfit:
		spec.Type = TakeProfitTrailing
		spec.TrailingActivation, spec.TrailingDistance = r.Activation, r.Distance
	case DynamicTakeProfit:
		spec.Type = TakeProfitDynamic
		spec.BaseThreshold, spec.VolatilityMultiplier, spec.SellRatio = r.Base, r.VolatilityMultiplier, r.SellRatio
	}
	return spec
}

// MarshalJSON encodes the tagged wire form.
func (c TakeProfitConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Spec())
}

// UnmarshalJSON decodes the tagged wire form; unknown tags are rejected.
func (c *TakeProfitConfig) UnmarshalJSON(data []byte) error {
	var spec TakeProfitSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return err
	}
	cfg, err := spec.Build()
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

func cloneLevels(levels []TakeProfitLevel) []TakeProfitLevel {
	if levels == nil {
		return nil
	}
	out := make([]TakeProfitLevel, len(levels))
	copy(out, levels)
	return out
}
