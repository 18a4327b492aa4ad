package sizing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// NewtonOptimizer 위험 예산 볼록 목적함수 최소화
//
//	f(y) = ½ yᵀΣy − Σ b_i ln y_i,  b_i = 1/n
//
// y = exp(x) 로 치환해 양수 제약 없이 풀고 w = y/Σy
// Newton 실패 시 BFGS 로 재시도
type NewtonOptimizer struct {
	Tolerance         float64 // 위험 기여 쌍별 차이 수렴 기준
	GradientThreshold float64
	MaxIterations     int
}

// NewNewtonOptimizer 기본 Newton 최적화기 (기여 차이 1e-6, 그래디언트 1e-10)
func NewNewtonOptimizer() *NewtonOptimizer {
	return &NewtonOptimizer{
		Tolerance:         DefaultParityTolerance,
		GradientThreshold: 1e-10,
		MaxIterations:     1000,
	}
}

// Name 최적화기 이름
func (o *NewtonOptimizer) Name() string {
	return "newton"
}

var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Optimize gonum/optimize 로 위험 예산 문제 풀이 후 한도로 투영
func (o *NewtonOptimizer) Optimize(cov [][]float64, bounds Bounds) ([]float64, ConvergenceInfo) {
	n := len(cov)
	info := ConvergenceInfo{Method: o.Name()}
	if n == 0 {
		return nil, info
	}

	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, cov[i][j])
		}
	}
	budget := 1 / float64(n)

	// y_i, (Σy)_i
	eval := func(x []float64) ([]float64, []float64) {
		y := make([]float64, n)
		for i, v := range x {
			y[i] = math.Exp(v)
		}
		var sy mat.VecDense
		sy.MulVec(sigma, mat.NewVecDense(n, y))
		return y, sy.RawVector().Data
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			y, sy := eval(x)
			f := 0.0
			for i := range y {
				f += 0.5*y[i]*sy[i] - budget*x[i]
			}
			return f
		},
		Grad: func(grad, x []float64) {
			y, sy := eval(x)
			for i := range y {
				grad[i] = y[i]*sy[i] - budget
			}
		},
		Hess: func(hess *mat.SymDense, x []float64) {
			y, sy := eval(x)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					h := y[i] * cov[i][j] * y[j]
					if i == j {
						h += y[i] * sy[i]
					}
					hess.SetSym(i, j, h)
				}
			}
		},
	}

	// 대각 공분산의 해 y_i = sqrt(1/n)/σ_i 에서 출발
	initial := make([]float64, n)
	for i := range initial {
		vol := math.Sqrt(math.Max(cov[i][i], 1e-16))
		initial[i] = -math.Log(vol) - 0.5*math.Log(float64(n))
	}

	settings := &optimize.Settings{
		GradientThreshold: o.gradientThreshold(),
		MajorIterations:   o.maxIterations(),
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.Newton{})
	if err != nil || result == nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
		info.Method = o.Name() + "+bfgs"
	}
	if err != nil || result == nil {
		w := ProjectToBounds(equalWeights(n), bounds)
		info.FinalError = parityError(w, cov)
		return w, info
	}

	y := make([]float64, n)
	for i, v := range result.X {
		y[i] = math.Exp(v)
	}
	w := ProjectToBounds(y, bounds)

	info.Converged = successStatuses[result.Status] &&
		(boundsBinding(w, bounds) || contributionSpread(w, cov) < o.tolerance())
	info.Iterations = result.Stats.MajorIterations
	info.FinalError = parityError(w, cov)
	return w, info
}

func (o *NewtonOptimizer) tolerance() float64 {
	if o.Tolerance <= 0 {
		return DefaultParityTolerance
	}
	return o.Tolerance
}

func (o *NewtonOptimizer) gradientThreshold() float64 {
	if o.GradientThreshold <= 0 {
		return 1e-10
	}
	return o.GradientThreshold
}

func (o *NewtonOptimizer) maxIterations() int {
	if o.MaxIterations <= 0 {
		return 1000
	}
	return o.MaxIterations
}
