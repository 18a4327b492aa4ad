package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// =============================================================================
// VaR (Value at Risk) Calculation
// =============================================================================

// indexEpsilon floor((1-c)·N) 계산 시 부동소수 오차 보정 (1-0.9 = 0.09999...)
const indexEpsilon = 1e-9

// tailIndex tail 확률 alpha에 대한 정렬 배열 인덱스
func tailIndex(alpha float64, n int) int {
	idx := int(math.Floor(alpha*float64(n) + indexEpsilon))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 일별 수익률 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
// VaR = |sorted[floor((1-c)·N)]|, CVaR = tail(sorted[0:idx]) 평균의 절대값
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := tailIndex(1-confidence, len(sorted))

	return VaRResult{
		Confidence: confidence,
		VaR:        math.Abs(sorted[idx]),
		CVaR:       expectedShortfall(sorted, idx),
	}
}

// HistoricalVaR tail 확률(alpha = 1-confidence)로 VaR 계산
// alpha가 작을수록 더 깊은 tail → VaR(0.01) ≥ VaR(0.05) ≥ VaR(0.10)
func HistoricalVaR(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return math.Abs(sorted[tailIndex(alpha, len(sorted))])
}

// ExpectedShortfall cutoff 인덱스 이전 tail의 평균 손실 (절대값)
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	return CalculateVaR(returns, confidence).CVaR
}

// expectedShortfall sorted[0:idx] 평균, tail이 비면 0
func expectedShortfall(sorted []float64, idx int) float64 {
	if idx <= 0 || len(sorted) == 0 {
		return 0
	}
	return math.Abs(stat.Mean(sorted[:idx], nil))
}

// =============================================================================
// Parametric VaR (정규분포 가정)
// =============================================================================

// CalculateParametricVaR 정규분포 가정 VaR
// VaR = z·σ - μ (0 하한), CVaR = σ·φ(z)/(1-c) - μ
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence}
	}

	z := NormInv(confidence)
	varValue := math.Max(0, z*stdDev-mean)
	cvar := math.Max(0, stdDev*distuv.UnitNormal.Prob(z)/(1-confidence)-mean)

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       cvar,
	}
}

// =============================================================================
// 통계 유틸리티
// =============================================================================

// NormInv 표준정규분포 분위수 함수
func NormInv(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return distuv.UnitNormal.Quantile(p)
}

// Mean 평균
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev 표본 표준편차 (n-1)
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Percentile 백분위수 (선형 보간)
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Percentiles 여러 백분위수 한 번에 계산
func Percentiles(values []float64, ps []int) map[int]float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	out := make(map[int]float64, len(ps))
	for _, p := range ps {
		out[p] = Percentile(sorted, float64(p))
	}
	return out
}

// safeDiv 분모가 0이거나 결과가 NaN/Inf면 0
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
