package sizing

import "math"

// KellyFraction f = (b·p − q)/b, b = |avgWin/avgLoss|
// [0, maxFraction]으로 clamp, avgLoss=0 또는 b=0이면 0 (NaN 반환 없음)
func KellyFraction(winRate, avgWin, avgLoss, maxFraction float64) float64 {
	if avgLoss == 0 || math.IsNaN(winRate) || math.IsNaN(avgWin) || math.IsNaN(avgLoss) {
		return 0
	}
	b := math.Abs(avgWin / avgLoss)
	if b == 0 || math.IsInf(b, 0) {
		return 0
	}
	p := winRate
	q := 1 - winRate

	f := (b*p - q) / b
	f = math.Max(0, math.Min(f, maxFraction))
	return finite(f)
}

// KellyShares floor(cash·f / price / lot) × lot
func KellyShares(fraction, availableCash, price float64, lotSize int) float64 {
	if price <= 0 || fraction <= 0 || availableCash <= 0 {
		return 0
	}
	return RoundToLot(availableCash*fraction/price, lotSize)
}
