// Package covariance estimates asset covariance matrices from price history.
package covariance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/stockrisk/internal/contracts"
)

// ReturnType 수익률 계산 방식
type ReturnType string

const (
	SimpleReturns ReturnType = "simple"
	LogReturns    ReturnType = "log"
)

// PriceSeries 종목별 가격 시계열 (오래된 순)
type PriceSeries struct {
	Symbol string    `json:"symbol"`
	Prices []float64 `json:"prices"`
}

// Estimator 공분산 추정기
// ⭐ SSOT: 공분산/고유값 계산은 여기서만
type Estimator struct {
	ReturnType ReturnType
	Shrinkage  float64 // 상수상관 타겟 쪽 축소 강도 (0 = 표본 공분산)
}

// NewEstimator 기본 추정기 (단순 수익률, 축소 없음)
func NewEstimator() *Estimator {
	return &Estimator{ReturnType: SimpleReturns}
}

// Estimate 가격 시계열로부터 공분산 행렬 추정
// 모든 시계열은 가장 짧은 길이에 맞춰 최근 관측치만 사용
func (e *Estimator) Estimate(series []PriceSeries) (*contracts.CovarianceMatrix, error) {
	const op = "covariance.Estimate"

	if len(series) == 0 {
		return nil, &contracts.ConfigError{Op: op, Field: "series", Err: contracts.ErrEmptyAssets, Message: "no price series"}
	}

	minLen := math.MaxInt
	for _, s := range series {
		if len(s.Prices) < minLen {
			minLen = len(s.Prices)
		}
	}
	if minLen < 3 {
		return nil, &contracts.ConfigError{
			Op:      op,
			Field:   "prices",
			Err:     contracts.ErrInsufficientData,
			Message: fmt.Sprintf("need at least 2 aligned returns per asset, got %d", max(minLen-1, 0)),
		}
	}

	symbols := make([]string, len(series))
	returns := make([][]float64, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
		aligned := s.Prices[len(s.Prices)-minLen:]
		r, err := Returns(aligned, e.ReturnType)
		if err != nil {
			return nil, &contracts.ConfigError{Op: op, Field: s.Symbol, Err: err, Message: err.Error()}
		}
		returns[i] = r
	}

	return e.FromReturns(symbols, returns)
}

// FromReturns 수익률 행렬(자산별 동일 길이)로부터 공분산 추정
func (e *Estimator) FromReturns(symbols []string, returns [][]float64) (*contracts.CovarianceMatrix, error) {
	const op = "covariance.FromReturns"

	n := len(returns)
	if n == 0 {
		return nil, &contracts.ConfigError{Op: op, Field: "returns", Err: contracts.ErrEmptyAssets, Message: "no return series"}
	}
	if len(symbols) != n {
		return nil, contracts.NewConfigError(op, "symbols", nil, "got %d symbols for %d return series", len(symbols), n)
	}
	obs := len(returns[0])
	for i, r := range returns {
		if len(r) != obs {
			return nil, contracts.NewConfigError(op, symbols[i], nil, "inconsistent return lengths: expected %d, got %d", obs, len(r))
		}
	}
	if obs < 2 {
		return nil, &contracts.ConfigError{
			Op:      op,
			Field:   "returns",
			Err:     contracts.ErrInsufficientData,
			Message: fmt.Sprintf("need at least 2 observations, got %d", obs),
		}
	}

	// 표본 공분산 (n-1 분모)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[i], returns[j], nil)
			matrix[i][j] = c
			matrix[j][i] = c
		}
	}

	if e.Shrinkage > 0 {
		matrix = shrinkToConstantCorrelation(matrix, math.Min(e.Shrinkage, 1))
	}

	cov, err := FromMatrix(symbols, matrix)
	if err != nil {
		return nil, err
	}
	cov.Observations = obs
	return cov, nil
}

// FromMatrix 주어진 행렬로 CovarianceMatrix 구성 (정방/대칭 검증, 고유값 계산)
func FromMatrix(symbols []string, matrix [][]float64) (*contracts.CovarianceMatrix, error) {
	const op = "covariance.FromMatrix"

	n := len(matrix)
	if n == 0 {
		return nil, &contracts.ConfigError{Op: op, Field: "matrix", Err: contracts.ErrEmptyAssets, Message: "empty matrix"}
	}
	if len(symbols) != n {
		return nil, contracts.NewConfigError(op, "symbols", nil, "got %d symbols for %dx%d matrix", len(symbols), n, n)
	}
	for i := range matrix {
		if len(matrix[i]) != n {
			return nil, contracts.NewConfigError(op, "matrix", nil, "row %d has %d columns, want %d", i, len(matrix[i]), n)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			tol := 1e-12 * math.Max(1, math.Max(math.Abs(matrix[i][j]), math.Abs(matrix[j][i])))
			if math.Abs(matrix[i][j]-matrix[j][i]) > tol {
				return nil, contracts.NewConfigError(op, "matrix", nil, "not symmetric at (%d,%d)", i, j)
			}
		}
	}

	copied := make([][]float64, n)
	for i := range matrix {
		copied[i] = append([]float64(nil), matrix[i]...)
	}

	eigenvalues, err := Eigenvalues(copied)
	if err != nil {
		return nil, &contracts.ConfigError{Op: op, Field: "matrix", Err: err, Message: err.Error()}
	}

	cov := &contracts.CovarianceMatrix{
		Symbols:     append([]string(nil), symbols...),
		Matrix:      copied,
		Eigenvalues: eigenvalues,
	}
	cov.IsPositiveDefinite, cov.Condition = classify(eigenvalues)
	return cov, nil
}

// Eigenvalues 실대칭 행렬 고유값 (오름차순)
func Eigenvalues(matrix [][]float64) ([]float64, error) {
	n := len(matrix)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, matrix[i][j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, false); !ok {
		return nil, fmt.Errorf("eigendecomposition failed")
	}
	return eig.Values(nil), nil
}

// eigenTolerance λmin이 λmax 대비 이 비율 이하면 0으로 간주 (부동소수 잡음)
const eigenTolerance = 1e-12

func classify(eigenvalues []float64) (bool, float64) {
	if len(eigenvalues) == 0 {
		return false, math.Inf(1)
	}
	lmin := eigenvalues[0]
	lmax := eigenvalues[len(eigenvalues)-1]
	if lmin <= 0 || lmin <= eigenTolerance*math.Abs(lmax) {
		return false, math.Inf(1)
	}
	return true, lmax / lmin
}

// Correlation 상관계수 행렬 (분산 0이면 상관 0, 대각 1)
func Correlation(cov *contracts.CovarianceMatrix) [][]float64 {
	n := cov.Size()
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			corr[i][j] = CorrelationAt(cov, i, j)
		}
	}
	return corr
}

// CorrelationAt ρ_ij
func CorrelationAt(cov *contracts.CovarianceMatrix, i, j int) float64 {
	si := cov.Volatility(i)
	sj := cov.Volatility(j)
	if si == 0 || sj == 0 {
		return 0
	}
	return cov.Matrix[i][j] / (si * sj)
}

// Returns 가격 시계열 → 수익률
func Returns(prices []float64, returnType ReturnType) ([]float64, error) {
	if len(prices) < 2 {
		return nil, nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		switch returnType {
		case LogReturns:
			if prev <= 0 || cur <= 0 {
				return nil, fmt.Errorf("%w: non-positive price at index %d", contracts.ErrConfiguration, i)
			}
			out[i-1] = math.Log(cur / prev)
		default:
			if prev == 0 {
				out[i-1] = 0
				continue
			}
			out[i-1] = (cur - prev) / prev
		}
	}
	return out, nil
}

// shrinkToConstantCorrelation 상수상관 타겟으로 축소
// F_ii = s_ii, F_ij = r̄·sqrt(s_ii·s_jj)
func shrinkToConstantCorrelation(sample [][]float64, intensity float64) [][]float64 {
	n := len(sample)
	if n < 2 {
		return sample
	}

	var sumCorr float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			denom := math.Sqrt(sample[i][i] * sample[j][j])
			if denom > 0 {
				sumCorr += sample[i][j] / denom
			}
			pairs++
		}
	}
	avgCorr := sumCorr / float64(pairs)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][j] = sample[i][i]
				continue
			}
			target := avgCorr * math.Sqrt(sample[i][i]*sample[j][j])
			out[i][j] = intensity*target + (1-intensity)*sample[i][j]
		}
	}
	return out
}
