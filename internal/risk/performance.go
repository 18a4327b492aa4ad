package risk

import (
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
)

// minStdDev 이하의 표준편차는 0으로 간주
const minStdDev = 1e-12

// AnnualizedVolatility 일별 수익률 표본 표준편차 × √252
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualReturn 누적 수익률을 연율화 ((Π(1+r))^(252/N) - 1)
// 3일 미만이면 단순 누적 수익률
func AnnualReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
	}
	if len(returns) < 3 || cumulative <= 0 {
		return cumulative - 1
	}
	years := float64(len(returns)) / TradingDaysPerYear
	return math.Pow(cumulative, 1/years) - 1
}

// SharpeRatio (평균 초과수익 / 표준편차) × √252
// riskFreeRate는 연율, 표준편차 0이면 0
func SharpeRatio(dailyReturns []float64, riskFreeRate float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	std := StdDev(dailyReturns)
	if std < minStdDev {
		return 0
	}
	excess := Mean(dailyReturns) - riskFreeRate/TradingDaysPerYear
	return safeDiv(excess, std) * math.Sqrt(TradingDaysPerYear)
}

// SortinoRatio 하방 편차 기준 Sharpe
func SortinoRatio(dailyReturns []float64, riskFreeRate float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	target := riskFreeRate / TradingDaysPerYear
	sumSq := 0.0
	for _, r := range dailyReturns {
		if d := r - target; d < 0 {
			sumSq += d * d
		}
	}
	downside := math.Sqrt(sumSq / float64(len(dailyReturns)))
	if downside < minStdDev {
		return 0
	}
	return safeDiv(Mean(dailyReturns)-target, downside) * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown 수익률 시계열의 최대 낙폭 (양수)
func MaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	equity := make([]float64, len(returns)+1)
	equity[0] = 1
	for i, r := range returns {
		equity[i+1] = equity[i] * (1 + r)
	}
	return MaxDrawdownFromEquity(equity)
}

// MaxDrawdownFromEquity 자산 곡선의 최대 낙폭 (양수)
func MaxDrawdownFromEquity(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := safeDiv(peak-v, peak); dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Performance 성과 통계 일괄 계산
func Performance(dailyReturns []float64, riskFreeRate float64) PerformanceStats {
	stats := PerformanceStats{Observations: len(dailyReturns)}
	if len(dailyReturns) == 0 {
		return stats
	}

	cumulative := 1.0
	wins := 0
	for _, r := range dailyReturns {
		cumulative *= 1 + r
		if r > 0 {
			wins++
		}
	}

	stats.TotalReturn = cumulative - 1
	stats.AnnualReturn = AnnualReturn(dailyReturns)
	stats.AnnualVolatility = AnnualizedVolatility(dailyReturns)
	stats.SharpeRatio = SharpeRatio(dailyReturns, riskFreeRate)
	stats.SortinoRatio = SortinoRatio(dailyReturns, riskFreeRate)
	stats.MaxDrawdown = MaxDrawdown(dailyReturns)
	stats.WinRate = float64(wins) / float64(len(dailyReturns))
	return stats
}

// ApplyPerformance 포트폴리오 성과 필드 갱신
func ApplyPerformance(p *contracts.Portfolio, dailyReturns []float64, riskFreeRate float64) PerformanceStats {
	stats := Performance(dailyReturns, riskFreeRate)
	p.Volatility = stats.AnnualVolatility
	p.SharpeRatio = stats.SharpeRatio
	p.MaxDrawdown = stats.MaxDrawdown
	p.TotalReturn = stats.TotalReturn
	if len(dailyReturns) > 0 {
		p.DailyReturn = dailyReturns[len(dailyReturns)-1]
	}
	return stats
}
