package sizing

import (
	"fmt"
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
)

// VolatilityTargetInput 변동성 타겟 입력
type VolatilityTargetInput struct {
	Symbol           string    `json:"symbol"`
	CurrentPrice     float64   `json:"current_price"`
	CurrentQuantity  float64   `json:"current_quantity"`
	HistoricalPrices []float64 `json:"historical_prices"` // 오래된 순
}

const (
	buyBand  = 1.1
	sellBand = 0.9
)

// HistoricalVolatility 단순 수익률 모분산 × 252 의 제곱근
// 가격 2개 미만 → 0
func HistoricalVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return finite(math.Sqrt(variance * risk.TradingDaysPerYear))
}

// VolatilityTarget 변동성 타겟 사이징 (게이트 없음, Sizer 경유 권장)
//
//	base = totalValue × BaseAllocation
//	target = min(base × targetVol/assetVol, totalValue × maxPositionWeight)
//
// target 수량 > 현재×1.1 → buy, < 현재×0.9 → sell, 그 외 현재 수량 hold
func VolatilityTarget(params Params, limits contracts.RiskLimits, totalValue float64, in VolatilityTargetInput) contracts.SizingDecision {
	decision := contracts.SizingDecision{
		Symbol:         in.Symbol,
		Action:         contracts.ActionHold,
		TargetQuantity: in.CurrentQuantity,
		Method:         contracts.SizingVolatility,
	}

	vol := HistoricalVolatility(in.HistoricalPrices)
	if vol == 0 {
		decision.Reason = "asset volatility is zero or unavailable"
		return decision
	}
	if in.CurrentPrice <= 0 {
		decision.Reason = "current price is not positive"
		return decision
	}

	base := totalValue * params.BaseAllocation
	adjusted := base * params.TargetVolatility / vol

	final := adjusted
	if limits.MaxPositionWeight > 0 {
		final = math.Min(adjusted, totalValue*limits.MaxPositionWeight)
	}

	target := RoundToLot(final/in.CurrentPrice, params.LotSize)
	decision.TargetValue = target * in.CurrentPrice

	switch {
	case target > in.CurrentQuantity*buyBand:
		decision.Action = contracts.ActionBuy
		decision.TargetQuantity = target
		decision.Reason = fmt.Sprintf("volatility %.2f%% vs target %.2f%%: target %.0f shares", vol*100, params.TargetVolatility*100, target)
	case target < in.CurrentQuantity*sellBand:
		decision.Action = contracts.ActionSell
		decision.TargetQuantity = target
		decision.Reason = fmt.Sprintf("volatility %.2f%% vs target %.2f%%: target %.0f shares", vol*100, params.TargetVolatility*100, target)
	default:
		decision.TargetValue = in.CurrentQuantity * in.CurrentPrice
		decision.Reason = "position within target band"
	}
	return decision
}
