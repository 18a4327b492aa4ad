package strategyconfig

import (
	"fmt"
	"time"
	_ "time/tzdata" // 컨테이너에 zoneinfo 가 없어도 meta.timezone 검증

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}
	if cfg.Meta.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
			return ValidationError{"meta.timezone", err.Error()}
		}
	}

	// === Limits ===
	l := cfg.Limits
	if err := validateOpenClosed(l.MaxPositionWeight, "limits.max_position_weight"); err != nil {
		return err
	}
	if err := validateOpenClosed(l.MaxSectorWeight, "limits.max_sector_weight"); err != nil {
		return err
	}
	if l.MaxSectorWeight < l.MaxPositionWeight {
		return ValidationError{"limits.max_sector_weight", "must be >= max_position_weight"}
	}
	if err := validateOpenClosed(l.MaxDrawdown, "limits.max_drawdown"); err != nil {
		return err
	}
	if l.MaxLeverage <= 0 {
		return ValidationError{"limits.max_leverage", "must be > 0"}
	}
	if l.MinCashRatio < 0 || l.MinCashRatio >= 1 {
		return ValidationError{"limits.min_cash_ratio", "must be in range [0, 1)"}
	}
	if l.MaxVaR <= 0 || l.MaxVaR >= 1 {
		return ValidationError{"limits.max_var", "must be in range (0, 1)"}
	}
	if l.StopLossPercent < 0 || l.StopLossPercent >= 1 {
		return ValidationError{"limits.stop_loss_percent", "must be in range [0, 1)"}
	}
	if l.TakeProfitPercent < 0 {
		return ValidationError{"limits.take_profit_percent", "must be >= 0"}
	}

	// === Sizing ===
	s := cfg.Sizing
	if s.RiskFreeRate < 0 || s.RiskFreeRate > 0.5 {
		return ValidationError{"sizing.risk_free_rate", "must be in range [0, 0.5]"}
	}
	if s.TargetVolatility <= 0 {
		return ValidationError{"sizing.target_volatility", "must be > 0"}
	}
	if s.LookbackPeriod < 2 {
		return ValidationError{"sizing.lookback_period", "must be >= 2"}
	}
	if err := validateOpenClosed(s.MaxPositionSize, "sizing.max_position_size"); err != nil {
		return err
	}
	if s.MinPositionSize < 0 || s.MinPositionSize > s.MaxPositionSize {
		return ValidationError{"sizing.min_position_size", "must be in range [0, max_position_size]"}
	}
	if s.LotSize < 1 {
		return ValidationError{"sizing.lot_size", "must be >= 1"}
	}
	if err := validateOpenClosed(s.BaseAllocation, "sizing.base_allocation"); err != nil {
		return err
	}
	if err := validatePctRange(s.RebalanceThreshold, "sizing.rebalance_threshold"); err != nil {
		return err
	}
	if err := validatePctRange(s.VolatilityBand, "sizing.volatility_band"); err != nil {
		return err
	}
	if s.VolatilityFloor < 0 || s.VolatilityCeiling < s.VolatilityFloor {
		return ValidationError{"sizing.volatility_ceiling", "must be >= volatility_floor >= 0"}
	}

	// === Gate ===
	if _, err := sizing.ParseGateMode(cfg.Gate.Mode); err != nil {
		return ValidationError{"gate.mode", "must be one of enforce, shadow, off"}
	}

	// === Kelly ===
	if err := validateOpenClosed(cfg.Kelly.MaxFraction, "kelly.max_fraction"); err != nil {
		return err
	}
	if cfg.Kelly.MinSampleSize < 1 {
		return ValidationError{"kelly.min_sample_size", "must be >= 1"}
	}
	if err := validateOpenClosed(cfg.Kelly.ConservativeBias, "kelly.conservative_bias"); err != nil {
		return err
	}

	// === Risk parity ===
	rp := cfg.RiskParity
	if rp.Optimizer != OptimizerFixedPoint && rp.Optimizer != OptimizerNewton {
		return ValidationError{"risk_parity.optimizer", "must be fixed_point or newton"}
	}
	if rp.Bounds.Min < 0 || rp.Bounds.Max > 1 || rp.Bounds.Min > rp.Bounds.Max {
		return ValidationError{"risk_parity.bounds", "must satisfy 0 <= min_weight <= max_weight <= 1"}
	}
	if rp.Tolerance <= 0 {
		return ValidationError{"risk_parity.tolerance", "must be > 0"}
	}
	if rp.MaxIterations < 1 {
		return ValidationError{"risk_parity.max_iterations", "must be >= 1"}
	}
	if rp.Optimizer == OptimizerFixedPoint {
		if err := validateOpenClosed(rp.Damping, "risk_parity.damping"); err != nil {
			return err
		}
	}

	// === VaR ===
	if cfg.VaR.Confidence <= 0 || cfg.VaR.Confidence >= 1 {
		return ValidationError{"var.confidence", "must be in range (0, 1)"}
	}
	if err := risk.ValidateMonteCarloConfig(cfg.VaR.MonteCarlo); err != nil {
		return ValidationError{"var.monte_carlo", err.Error()}
	}

	// === Covariance ===
	switch covariance.ReturnType(cfg.Covariance.ReturnType) {
	case covariance.SimpleReturns, covariance.LogReturns:
	default:
		return ValidationError{"covariance.return_type", "must be simple or log"}
	}
	if err := validatePctRange(cfg.Covariance.Shrinkage, "covariance.shrinkage"); err != nil {
		return err
	}

	// === Exit ===
	if err := validateExit(cfg.Exit); err != nil {
		return err
	}

	// === Stress ===
	seen := make(map[string]bool, len(cfg.Stress))
	for i, sc := range cfg.Stress {
		field := fmt.Sprintf("stress_scenarios[%d]", i)
		if sc.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[sc.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate scenario %q", sc.Name)}
		}
		seen[sc.Name] = true
		for key, shock := range sc.Shocks {
			if shock <= -1 {
				return ValidationError{field + ".shocks." + key, "must be > -1"}
			}
		}
	}

	return nil
}

func validateExit(exit Exit) error {
	sl, err := exit.StopLoss.Build()
	if err != nil {
		return ValidationError{"exit.stop_loss.type", err.Error()}
	}
	if sl.Enabled {
		switch r := sl.Rule.(type) {
		case contracts.FixedStop:
			if r.Percentage <= 0 || r.Percentage >= 1 {
				return ValidationError{"exit.stop_loss.percentage", "must be in range (0, 1)"}
			}
		case contracts.TrailingStop:
			if r.Distance <= 0 || r.Distance >= 1 {
				return ValidationError{"exit.stop_loss.trailing_distance", "must be in range (0, 1)"}
			}
		case contracts.ATRStop:
			if r.Multiplier <= 0 {
				return ValidationError{"exit.stop_loss.atr_multiplier", "must be > 0"}
			}
		case contracts.VolatilityStop:
			if r.Multiplier <= 0 {
				return ValidationError{"exit.stop_loss.volatility_multiplier", "must be > 0"}
			}
		case contracts.TimeStop:
			if r.LimitDays < 1 {
				return ValidationError{"exit.stop_loss.time_limit_days", "must be >= 1"}
			}
		}
	}

	tp, err := exit.TakeProfit.Build()
	if err != nil {
		return ValidationError{"exit.take_profit.type", err.Error()}
	}
	if !tp.Enabled {
		return nil
	}

	switch r := tp.Rule.(type) {
	case contracts.FixedTakeProfit:
		return validateLevels(r.Levels)
	case contracts.LadderTakeProfit:
		return validateLevels(r.Levels)
	case contracts.TrailingTakeProfit:
		if r.Activation <= 0 {
			return ValidationError{"exit.take_profit.trailing_activation", "must be > 0"}
		}
		if r.Distance <= 0 || r.Distance >= 1 {
			return ValidationError{"exit.take_profit.trailing_distance", "must be in range (0, 1)"}
		}
	case contracts.DynamicTakeProfit:
		if err := validateOpenClosed(r.SellRatio, "exit.take_profit.sell_ratio"); err != nil {
			return err
		}
	}
	return nil
}

// validateLevels 단계: 수익률 오름차순, 매도 비율 (0, 1], 합 ≤ 1
func validateLevels(levels []contracts.TakeProfitLevel) error {
	if len(levels) == 0 {
		return ValidationError{"exit.take_profit.levels", "must not be empty"}
	}
	ratios := make([]float64, len(levels))
	for i, lv := range levels {
		field := fmt.Sprintf("exit.take_profit.levels[%d]", i)
		if lv.Percentage <= 0 {
			return ValidationError{field + ".percentage", "must be > 0"}
		}
		if i > 0 && lv.Percentage <= levels[i-1].Percentage {
			return ValidationError{field + ".percentage", "must be strictly increasing"}
		}
		if err := validateOpenClosed(lv.SellRatio, field+".sell_ratio"); err != nil {
			return err
		}
		ratios[i] = lv.SellRatio
	}
	if sum(ratios) > 1+1e-9 {
		return ValidationError{"exit.take_profit.levels", "sell ratios must sum to <= 1"}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if mode, _ := sizing.ParseGateMode(cfg.Gate.Mode); mode == sizing.GateModeOff {
		warnings = append(warnings, Warning{
			Code:    "GATE_OFF",
			Message: "리스크 게이트 off: 한도 위반에도 사이징 진행",
		})
	}

	if cfg.Kelly.MaxFraction > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "AGGRESSIVE_KELLY",
			Message: "Kelly 상한 > 50%: 낙폭 위험 큼",
		})
	}

	if !cfg.Exit.StopLoss.Enabled {
		warnings = append(warnings, Warning{
			Code:    "NO_STOP_LOSS",
			Message: "손절 비활성화",
		})
	}

	if cfg.Limits.MaxLeverage > 2 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_LEVERAGE",
			Message: "레버리지 한도 > 2배",
		})
	}

	if cfg.Covariance.Shrinkage == 0 && cfg.Sizing.LookbackPeriod < 60 {
		warnings = append(warnings, Warning{
			Code:    "NOISY_COVARIANCE",
			Message: "관측치 < 60 에서 축소 없는 표본 공분산: 추정 오차 큼",
		})
	}

	return warnings
}

// === Helper Functions ===

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// validatePctRange는 퍼센트 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}

// validateOpenClosed는 값이 (0, 1] 범위인지 검증
func validateOpenClosed(v float64, field string) error {
	if v <= 0 || v > 1 {
		return ValidationError{field, "must be in range (0, 1]"}
	}
	return nil
}
