// Package stoploss evaluates stop-loss and take-profit rules and tracks the
// resulting orders.
package stoploss

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Stop-loss rules
// =============================================================================

// priceEpsilon 트리거 가격 비교 전 반올림 단위 (부동소수 잡음 흡수)
const priceEpsilon = 1e-9

// roundPrice 1e-9 단위 반올림
func roundPrice(p float64) float64 {
	return math.Round(p/priceEpsilon) * priceEpsilon
}

// reached 현재가가 트리거 이하인지 (포함)
func reached(current, trigger float64) bool {
	return roundPrice(current) <= roundPrice(trigger)
}

// StopTrigger 손절 전략별 트리거 가격
// time 전략, ATR/변동성 값이 없는 포지션은 가격 트리거가 없으므로 ok=false
func StopTrigger(pos *contracts.Position, rule contracts.StopLossRule) (price float64, ok bool) {
	switch r := rule.(type) {
	case contracts.FixedStop:
		return pos.AveragePrice * (1 - r.Percentage), true
	case contracts.TrailingStop:
		return highestOf(pos) * (1 - r.Distance), true
	case contracts.ATRStop:
		if pos.ATR <= 0 {
			return 0, false
		}
		return pos.CurrentPrice - pos.ATR*r.Multiplier, true
	case contracts.VolatilityStop:
		if pos.Volatility <= 0 {
			return 0, false
		}
		return pos.CurrentPrice - pos.CurrentPrice*pos.Volatility*r.Multiplier, true
	case contracts.TimeStop:
		return 0, false
	default:
		panic(fmt.Sprintf("stoploss: unhandled stop-loss rule %T", rule))
	}
}

// anchoredTrigger 대기 주문 가격(anchor)을 반영한 손절 트리거
//   - ATR/변동성: 현재가를 따라 움직이므로 anchor 를 그대로 사용
//   - 추적: 래칫된 주문 가격 아래로 내려가지 않음 (최고가가 저장되지 않은 포지션 사본 대비)
func anchoredTrigger(rule contracts.StopLossRule, trigger float64, ok bool, anchor float64) (float64, bool) {
	if anchor <= 0 {
		return trigger, ok
	}
	switch rule.(type) {
	case contracts.ATRStop, contracts.VolatilityStop:
		return anchor, true
	case contracts.TrailingStop:
		return math.Max(trigger, anchor), true
	}
	return trigger, ok
}

// checkStopLoss 손절 신호 (없으면 nil)
// anchor 는 같은 종목 대기 손절 주문의 트리거 가격 (없으면 0)
func checkStopLoss(pos *contracts.Position, rule contracts.StopLossRule, now time.Time, anchor float64) *contracts.StopLossSignal {
	if r, isTime := rule.(contracts.TimeStop); isTime {
		if pos.DaysHeld(now) >= r.LimitDays && pos.UnrealizedPnL < 0 {
			return &contracts.StopLossSignal{
				Symbol:       pos.Symbol,
				Action:       contracts.SignalStopLoss,
				TriggerPrice: pos.CurrentPrice,
				Quantity:     pos.Quantity,
				Reason:       fmt.Sprintf("time stop %d days", r.LimitDays),
				Urgency:      contracts.UrgencyHigh,
				Confidence:   StopConfidence(contracts.StopLossTime),
				ExpectedLoss: pos.UnrealizedPnL,
				LevelIndex:   -1,
			}
		}
		return nil
	}

	trigger, ok := StopTrigger(pos, rule)
	trigger, ok = anchoredTrigger(rule, trigger, ok, anchor)
	if !ok || !reached(pos.CurrentPrice, trigger) {
		return nil
	}

	return &contracts.StopLossSignal{
		Symbol:       pos.Symbol,
		Action:       contracts.SignalStopLoss,
		TriggerPrice: trigger,
		Quantity:     pos.Quantity,
		Reason:       stopReason(rule),
		Urgency:      StopUrgency(pos.UnrealizedPnLPercent),
		Confidence:   StopConfidence(rule.StopLossType()),
		ExpectedLoss: pos.UnrealizedPnL,
		LevelIndex:   -1,
	}
}

func stopReason(rule contracts.StopLossRule) string {
	switch r := rule.(type) {
	case contracts.FixedStop:
		return fmt.Sprintf("fixed stop %.1f%%", r.Percentage*100)
	case contracts.TrailingStop:
		return fmt.Sprintf("trailing stop %.1f%%", r.Distance*100)
	case contracts.ATRStop:
		return fmt.Sprintf("ATR stop %gx", r.Multiplier)
	case contracts.VolatilityStop:
		return fmt.Sprintf("volatility stop %gx", r.Multiplier)
	case contracts.TimeStop:
		return fmt.Sprintf("time stop %d days", r.LimitDays)
	default:
		panic(fmt.Sprintf("stoploss: unhandled stop-loss rule %T", rule))
	}
}

// StopUrgency 손실 크기별 긴급도
// |loss| ≥15% critical, ≥10% high, ≥5% medium, 그 외 low
func StopUrgency(pnlPercent float64) contracts.Urgency {
	loss := math.Abs(pnlPercent)
	switch {
	case loss >= 0.15:
		return contracts.UrgencyCritical
	case loss >= 0.10:
		return contracts.UrgencyHigh
	case loss >= 0.05:
		return contracts.UrgencyMedium
	}
	return contracts.UrgencyLow
}

// StopConfidence 전략별 신뢰도
// 시간 손절은 고정 손절과 같은 0.9
func StopConfidence(t contracts.StopLossType) float64 {
	switch t {
	case contracts.StopLossFixed:
		return 0.9
	case contracts.StopLossTrailing:
		return 0.85
	case contracts.StopLossATR:
		return 0.8
	case contracts.StopLossVolatility:
		return 0.75
	case contracts.StopLossTime:
		return 0.9
	}
	return 0.8
}

// highestOf 최고가 (미기록이면 현재가)
func highestOf(pos *contracts.Position) float64 {
	if pos.HighestPrice > 0 {
		return pos.HighestPrice
	}
	return pos.CurrentPrice
}
