package risk

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Marginal / Component Risk (Euler 분해)
// =============================================================================

func symOf(cov [][]float64) *mat.SymDense {
	n := len(cov)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, cov[i][j])
		}
	}
	return sym
}

// MarginalRisk (Σw)_i
func MarginalRisk(weights []float64, cov [][]float64) []float64 {
	n := len(weights)
	if n == 0 || len(cov) != n {
		return make([]float64, n)
	}
	var sw mat.VecDense
	sw.MulVec(symOf(cov), mat.NewVecDense(n, append([]float64(nil), weights...)))
	return sw.RawVector().Data
}

// PortfolioVolatility σ_p = sqrt(wᵀΣw)
func PortfolioVolatility(weights []float64, cov [][]float64) float64 {
	if len(weights) == 0 || len(cov) != len(weights) {
		return 0
	}
	w := mat.NewVecDense(len(weights), append([]float64(nil), weights...))
	variance := mat.Inner(w, symOf(cov), w)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// RiskContributions RC_i = w_i·(Σw)_i/σ_p (Σ RC_i = σ_p)
// σ_p = 0 이면 모두 0
func RiskContributions(weights []float64, cov [][]float64) ([]float64, float64) {
	rc := make([]float64, len(weights))
	sigma := PortfolioVolatility(weights, cov)
	if sigma == 0 {
		return rc, 0
	}
	marginal := MarginalRisk(weights, cov)
	for i, w := range weights {
		rc[i] = safeDiv(w*marginal[i], sigma)
	}
	return rc, sigma
}

// ComponentVaR 구성요소 VaR = w_i·z·(Σw)_i/σ_p
// 합계는 모수적 VaR z·σ_p 와 같음
func ComponentVaR(weights []float64, cov *contracts.CovarianceMatrix, confidence float64) []float64 {
	if cov == nil {
		return make([]float64, len(weights))
	}
	rc, _ := RiskContributions(weights, cov.Matrix)
	z := NormInv(confidence)
	for i := range rc {
		rc[i] *= z
	}
	return rc
}

// ProportionalComponentVaR 공분산이 없을 때 비중 비율로 VaR 배분
func ProportionalComponentVaR(weights []float64, portfolioVaR float64) []float64 {
	out := make([]float64, len(weights))
	total := 0.0
	for _, w := range weights {
		total += w
	}
	for i, w := range weights {
		out[i] = safeDiv(w, total) * portfolioVaR
	}
	return out
}
