package sizing

import (
	"math"

	"github.com/wonny/stockrisk/internal/risk"
)

// FixedPointOptimizer 곱셈형 고정점 반복
//
//	w_i ← w_i · ((σ_p/n) / RC_i)^Damping
//
// Damping=1 은 비감쇠 갱신 (대각 공분산에서 진동), 기본 0.5
// RC_i ≤ 0 (음의 상관으로 한계 위험이 음수)인 자산은 RC 를 target·rcFloor 로 보고 비중을 키운다
type FixedPointOptimizer struct {
	Tolerance     float64 // max |Δw| 및 위험 기여 쌍별 차이 수렴 기준
	MaxIterations int
	Damping       float64
}

// NewFixedPointOptimizer 기본 고정점 최적화기 (1e-6, 1000회, 감쇠 0.5)
func NewFixedPointOptimizer() *FixedPointOptimizer {
	return &FixedPointOptimizer{
		Tolerance:     1e-6,
		MaxIterations: 1000,
		Damping:       0.5,
	}
}

// rcFloor RC_i 하한 (target 대비 비율), 한 번에 늘어나는 비중 배수를 제한
const rcFloor = 1e-2

// Name 최적화기 이름
func (o *FixedPointOptimizer) Name() string {
	return "fixed_point"
}

// Optimize 고정점 반복으로 동일 위험 기여 가중치 계산
func (o *FixedPointOptimizer) Optimize(cov [][]float64, bounds Bounds) ([]float64, ConvergenceInfo) {
	n := len(cov)
	info := ConvergenceInfo{Method: o.Name()}
	if n == 0 {
		return nil, info
	}

	tol := o.Tolerance
	if tol <= 0 {
		tol = DefaultParityTolerance
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 || maxIter > 1000 {
		maxIter = 1000
	}
	damping := o.Damping
	if damping <= 0 || damping > 1 {
		damping = 0.5
	}

	w := ProjectToBounds(equalWeights(n), bounds)
	next := make([]float64, n)

	for info.Iterations = 1; info.Iterations <= maxIter; info.Iterations++ {
		rc, sigma := risk.RiskContributions(w, cov)
		if sigma == 0 {
			break
		}
		target := sigma / float64(n)

		for i := range w {
			contrib := math.Max(rc[i], target*rcFloor)
			next[i] = w[i] * math.Pow(target/contrib, damping)
		}
		projected := ProjectToBounds(next, bounds)

		delta := 0.0
		for i := range w {
			delta = math.Max(delta, math.Abs(projected[i]-w[i]))
		}
		w = projected

		// 한도에 걸리지 않았다면 위험 기여가 실제로 같아야 수렴
		if delta < tol && (boundsBinding(w, bounds) || contributionSpread(w, cov) < tol) {
			info.Converged = true
			break
		}
	}
	if info.Iterations > maxIter {
		info.Iterations = maxIter
	}

	info.FinalError = parityError(w, cov)
	return w, info
}
