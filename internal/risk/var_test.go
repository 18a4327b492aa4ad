package risk

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearReturns(n int) []float64 {
	// -0.10, -0.098, ... (오름차순 등간격)
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i-n/2) / 500
	}
	return out
}

func TestCalculateVaR(t *testing.T) {
	returns := []float64{0.01, -0.05, 0.02, -0.01, 0.03, -0.08, 0.00, 0.015, -0.02, 0.005,
		0.01, -0.03, 0.02, 0.012, -0.004, 0.007, 0.018, -0.012, 0.009, 0.011}

	res := CalculateVaR(returns, 0.95)
	// N=20, idx=floor(0.05·20)=1 → sorted[1] = -0.05
	assert.InDelta(t, 0.05, res.VaR, 1e-12)
	// tail = sorted[0:1] = [-0.08]
	assert.InDelta(t, 0.08, res.CVaR, 1e-12)
	assert.Equal(t, 0.95, res.Confidence)

	res90 := CalculateVaR(returns, 0.90)
	// idx=floor(0.1·20)=2 → sorted[2] = -0.03
	assert.InDelta(t, 0.03, res90.VaR, 1e-12)
	assert.InDelta(t, 0.065, res90.CVaR, 1e-12)
}

func TestCalculateVaR_EdgeCases(t *testing.T) {
	assert.Equal(t, VaRResult{Confidence: 0.95}, CalculateVaR(nil, 0.95))

	// 단일 관측치: idx=0, tail 비어 있음
	res := CalculateVaR([]float64{-0.02}, 0.95)
	assert.InDelta(t, 0.02, res.VaR, 1e-12)
	assert.Equal(t, 0.0, res.CVaR)

	// confidence 0 → idx가 N으로 가므로 N-1로 clamp
	res = CalculateVaR([]float64{-0.01, 0.02, 0.03}, 0)
	assert.InDelta(t, 0.03, res.VaR, 1e-12)

	// 입력 불변
	in := []float64{0.03, -0.01, 0.02}
	CalculateVaR(in, 0.95)
	assert.Equal(t, []float64{0.03, -0.01, 0.02}, in)
}

func TestHistoricalVaR_Monotonic(t *testing.T) {
	returns := linearReturns(100)
	v01 := HistoricalVaR(returns, 0.01)
	v05 := HistoricalVaR(returns, 0.05)
	v10 := HistoricalVaR(returns, 0.10)

	assert.InDelta(t, 0.098, v01, 1e-12)
	assert.InDelta(t, 0.090, v05, 1e-12)
	assert.InDelta(t, 0.080, v10, 1e-12)
	assert.GreaterOrEqual(t, v01, v05)
	assert.GreaterOrEqual(t, v05, v10)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 50 + rng.Intn(200)
		series := make([]float64, n)
		for i := range series {
			series[i] = rng.NormFloat64()*0.02 - 0.001
		}
		sorted := append([]float64(nil), series...)
		sort.Float64s(sorted)
		if sorted[tailIndex(0.10, n)] >= 0 {
			continue
		}
		a, b, c := HistoricalVaR(series, 0.01), HistoricalVaR(series, 0.05), HistoricalVaR(series, 0.10)
		assert.GreaterOrEqual(t, a, b, "trial %d", trial)
		assert.GreaterOrEqual(t, b, c, "trial %d", trial)
	}
}

func TestHistoricalVaR_MatchesConfidenceForm(t *testing.T) {
	returns := linearReturns(100)
	for _, alpha := range []float64{0.01, 0.05, 0.10} {
		assert.InDelta(t, HistoricalVaR(returns, alpha), CalculateVaR(returns, 1-alpha).VaR, 1e-15)
	}
}

func TestCalculateParametricVaR(t *testing.T) {
	res := CalculateParametricVaR(0, 0.02, 0.95)
	assert.InDelta(t, 1.6449*0.02, res.VaR, 1e-5)
	assert.Greater(t, res.CVaR, res.VaR)

	zero := CalculateParametricVaR(0.01, 0, 0.95)
	assert.Equal(t, 0.0, zero.VaR)

	assert.InDelta(t, 2.3263, NormInv(0.99), 1e-4)
	assert.Equal(t, 0.0, NormInv(1))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 3.0, Percentile(sorted, 50))
	assert.Equal(t, 5.0, Percentile(sorted, 100))
	assert.InDelta(t, 1.4, Percentile(sorted, 10), 1e-12)
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestSafeDiv(t *testing.T) {
	assert.Equal(t, 0.0, safeDiv(1, 0))
	assert.Equal(t, 0.0, safeDiv(math.Inf(1), 1))
	assert.Equal(t, 2.0, safeDiv(4, 2))
}
