package stoploss

import (
	"fmt"
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Take-profit rules
// =============================================================================

// pnlEpsilon 수익률 비교 허용 오차
const pnlEpsilon = 1e-12

func atLeast(value, threshold float64) bool {
	return value >= threshold-pnlEpsilon
}

// checkTakeProfit 익절 신호 (0개 이상)
// anchor 는 대기 중인 추적 익절 주문 가격, 이미 걸린 주문은 활성화 기준과 무관하게 유지
func checkTakeProfit(pos *contracts.Position, rule contracts.TakeProfitRule, anchor float64) []contracts.StopLossSignal {
	signals := make([]contracts.StopLossSignal, 0)

	switch r := rule.(type) {
	case contracts.FixedTakeProfit:
		for i, level := range r.Levels {
			if level.IsExecuted {
				continue
			}
			if atLeast(pos.UnrealizedPnLPercent, level.Percentage) {
				signals = append(signals, levelSignal(pos, level, i, "fixed"))
			}
			break
		}

	case contracts.LadderTakeProfit:
		for i, level := range r.Levels {
			if !level.IsExecuted && atLeast(pos.UnrealizedPnLPercent, level.Percentage) {
				signals = append(signals, levelSignal(pos, level, i, "ladder"))
			}
		}

	case contracts.TrailingTakeProfit:
		trail, active := TrailingTakeProfitTrigger(pos, r)
		if anchor > 0 {
			trail, active = math.Max(trail, anchor), true
		}
		if active && reached(pos.CurrentPrice, trail) {
			signals = append(signals, contracts.StopLossSignal{
				Symbol:         pos.Symbol,
				Action:         contracts.SignalTakeProfit,
				TriggerPrice:   trail,
				Quantity:       pos.Quantity,
				Reason:         fmt.Sprintf("trailing take-profit %.1f%%", r.Distance*100),
				Urgency:        contracts.UrgencyHigh,
				Confidence:     0.85,
				ExpectedProfit: pos.UnrealizedPnL,
				LevelIndex:     -1,
			})
		}

	case contracts.DynamicTakeProfit:
		threshold := DynamicThreshold(pos, r)
		if atLeast(pos.UnrealizedPnLPercent, threshold) {
			ratio := r.SellRatio
			if ratio <= 0 {
				ratio = contracts.DefaultDynamicSellRatio
			}
			signals = append(signals, contracts.StopLossSignal{
				Symbol:         pos.Symbol,
				Action:         contracts.SignalTakeProfit,
				TriggerPrice:   pos.CurrentPrice,
				Quantity:       math.Floor(pos.Quantity * ratio),
				Reason:         fmt.Sprintf("dynamic take-profit %.1f%%", threshold*100),
				Urgency:        contracts.UrgencyMedium,
				Confidence:     0.75,
				ExpectedProfit: pos.UnrealizedPnL * ratio,
				LevelIndex:     -1,
			})
		}

	default:
		panic(fmt.Sprintf("stoploss: unhandled take-profit rule %T", rule))
	}

	return signals
}

func levelSignal(pos *contracts.Position, level contracts.TakeProfitLevel, index int, kind string) contracts.StopLossSignal {
	ratio := level.SellRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return contracts.StopLossSignal{
		Symbol:         pos.Symbol,
		Action:         contracts.SignalTakeProfit,
		TriggerPrice:   pos.AveragePrice * (1 + level.Percentage),
		Quantity:       math.Floor(pos.Quantity * ratio),
		Reason:         fmt.Sprintf("%s take-profit %.1f%%", kind, level.Percentage*100),
		Urgency:        contracts.UrgencyMedium,
		Confidence:     0.8,
		ExpectedProfit: pos.UnrealizedPnL * ratio,
		LevelIndex:     index,
	}
}

// TrailingTakeProfitTrigger 추적 익절 가격, 수익률이 활성화 기준 미만이면 active=false
func TrailingTakeProfitTrigger(pos *contracts.Position, r contracts.TrailingTakeProfit) (price float64, active bool) {
	if !atLeast(pos.UnrealizedPnLPercent, r.Activation) {
		return 0, false
	}
	return highestOf(pos) * (1 - r.Distance), true
}

// DynamicThreshold base + volatility × multiplier (0 값은 기본값 사용)
func DynamicThreshold(pos *contracts.Position, r contracts.DynamicTakeProfit) float64 {
	base := r.Base
	if base <= 0 {
		base = contracts.DefaultDynamicBase
	}
	mult := r.VolatilityMultiplier
	if mult <= 0 {
		mult = contracts.DefaultDynamicVolatilityMultiplier
	}
	return base + pos.Volatility*mult
}
