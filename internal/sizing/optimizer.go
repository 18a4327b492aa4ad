package sizing

import (
	"fmt"
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
)

// =============================================================================
// Risk Parity Optimizer (전략 패턴)
// =============================================================================

// Optimizer 리스크 패리티 가중치 최적화기
type Optimizer interface {
	Name() string
	// Optimize 공분산 행렬과 비중 한도로 동일 위험 기여 가중치 계산
	// 미수렴은 에러가 아님: ConvergenceInfo.Converged=false
	Optimize(cov [][]float64, bounds Bounds) ([]float64, ConvergenceInfo)
}

// ConvergenceInfo 최적화 수렴 정보
type ConvergenceInfo struct {
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	FinalError float64 `json:"final_error"` // max |RC_i/σ_p − 1/n|
	Method     string  `json:"method"`
}

// Bounds 자산별 비중 한도
type Bounds struct {
	Min float64 `json:"min_weight" yaml:"min_weight"`
	Max float64 `json:"max_weight" yaml:"max_weight"`
}

// DefaultBounds [0, 1]
func DefaultBounds() Bounds {
	return Bounds{Min: 0, Max: 1}
}

// normalized Max ≤ 0 → 1
func (b Bounds) normalized() Bounds {
	if b.Max <= 0 {
		b.Max = 1
	}
	return b
}

// Validate n개 자산으로 합계 1을 만들 수 있는지
func (b Bounds) Validate(n int) error {
	const op = "sizing.Bounds"
	b = b.normalized()

	if b.Min < 0 || b.Min > b.Max {
		return contracts.NewConfigError(op, "bounds", nil, "invalid bounds [%.4f, %.4f]", b.Min, b.Max)
	}
	if float64(n)*b.Max < 1-1e-12 {
		return contracts.NewConfigError(op, "max_weight", nil,
			"infeasible: %d assets × max %.4f < 1", n, b.Max)
	}
	if float64(n)*b.Min > 1+1e-12 {
		return contracts.NewConfigError(op, "min_weight", nil,
			"infeasible: %d assets × min %.4f > 1", n, b.Min)
	}
	return nil
}

// String 로그용
func (b Bounds) String() string {
	return fmt.Sprintf("[%.4f, %.4f]", b.Min, b.Max)
}

// equalWeights 1/n
func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// normalize 합계 1로 정규화 (합계 ≤ 0 이면 동일 비중)
func normalize(w []float64) []float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	out := make([]float64, len(w))
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return equalWeights(len(w))
	}
	for i, v := range w {
		out[i] = v / sum
	}
	return out
}

// ProjectToBounds 비중을 [min, max] 로 자르고 남은 비중을 한도 내 자산에 비례 재분배
// 결과 합계는 1 (실현 가능한 한도일 때)
func ProjectToBounds(weights []float64, bounds Bounds) []float64 {
	b := bounds.normalized()
	out := normalize(weights)
	n := len(out)

	for iter := 0; iter < 2*n+1; iter++ {
		for i := range out {
			out[i] = math.Max(b.Min, math.Min(b.Max, out[i]))
		}

		sum := 0.0
		for _, v := range out {
			sum += v
		}
		diff := 1 - sum
		if math.Abs(diff) < 1e-12 {
			break
		}

		free := make([]int, 0, n)
		freeSum := 0.0
		for i, v := range out {
			if (diff > 0 && v < b.Max) || (diff < 0 && v > b.Min) {
				free = append(free, i)
				freeSum += v
			}
		}
		if len(free) == 0 {
			break
		}

		for _, i := range free {
			if freeSum > 0 {
				out[i] += diff * out[i] / freeSum
			} else {
				out[i] += diff / float64(len(free))
			}
		}
	}
	return out
}

// RiskContributionShares RC_i/σ_p (합계 1)
func RiskContributionShares(weights []float64, cov [][]float64) []float64 {
	rc, sigma := risk.RiskContributions(weights, cov)
	shares := make([]float64, len(rc))
	for i := range rc {
		shares[i] = safeDiv(rc[i], sigma)
	}
	return shares
}

// parityError max |share_i − 1/n|
func parityError(weights []float64, cov [][]float64) float64 {
	n := len(weights)
	if n == 0 {
		return 0
	}
	target := 1 / float64(n)
	worst := 0.0
	for _, s := range RiskContributionShares(weights, cov) {
		worst = math.Max(worst, math.Abs(s-target))
	}
	return worst
}

// DefaultParityTolerance 위험 기여 쌍별 차이 수렴 기준
const DefaultParityTolerance = 1e-6

// contributionSpread max_i,j |share_i − share_j| = max(share) − min(share)
func contributionSpread(weights []float64, cov [][]float64) float64 {
	shares := RiskContributionShares(weights, cov)
	if len(shares) == 0 {
		return 0
	}
	lo, hi := shares[0], shares[0]
	for _, s := range shares[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	return hi - lo
}

// boundsBinding 비중이 하나라도 한도에 걸려 있는지 (이 경우 동일 위험 기여는 불가능할 수 있음)
func boundsBinding(weights []float64, bounds Bounds) bool {
	b := bounds.normalized()
	const eps = 1e-12
	for _, w := range weights {
		if (b.Min > 0 && w <= b.Min+eps) || (b.Max < 1 && w >= b.Max-eps) {
			return true
		}
	}
	return false
}
