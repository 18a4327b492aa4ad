package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/stockrisk/internal/contracts"
)

// MonteCarloSimulator Monte Carlo 시뮬레이터
type MonteCarloSimulator struct {
	config MonteCarloConfig
	rng    *rand.Rand
}

// NewMonteCarloSimulator 새 시뮬레이터 생성
func NewMonteCarloSimulator(config MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarloSimulator{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// ValidateMonteCarloConfig 설정 유효성 검사
func ValidateMonteCarloConfig(config MonteCarloConfig) error {
	const op = "risk.MonteCarlo"
	if config.NumSimulations <= 0 {
		return contracts.NewConfigError(op, "num_simulations", nil, "must be > 0")
	}
	if config.HoldingPeriod <= 0 {
		return contracts.NewConfigError(op, "holding_period", nil, "must be > 0")
	}
	if config.MinSamples <= 0 {
		return contracts.NewConfigError(op, "min_samples", nil, "must be > 0")
	}
	if len(config.ConfidenceLevels) == 0 {
		return contracts.NewConfigError(op, "confidence_levels", nil, "cannot be empty")
	}
	for _, cl := range config.ConfidenceLevels {
		if cl <= 0 || cl >= 1 {
			return contracts.NewConfigError(op, "confidence_levels", nil, "confidence %.4f must be between 0 and 1", cl)
		}
	}
	switch config.Method {
	case MethodHistoricalBootstrap, MethodParametricNormal:
	default:
		return contracts.NewConfigError(op, "method", nil, "unknown method %q", config.Method)
	}
	return nil
}

// SimulatePortfolio 포트폴리오 수익률 단일 시계열로 시뮬레이션
// 보유 기간 누적 수익률 분포에서 VaR/CVaR 산출
func (mc *MonteCarloSimulator) SimulatePortfolio(ctx context.Context, portfolioReturns []float64) (*MonteCarloResult, error) {
	if err := ValidateMonteCarloConfig(mc.config); err != nil {
		return nil, err
	}
	if len(portfolioReturns) < mc.config.MinSamples {
		return nil, &contracts.ConfigError{
			Op:      "risk.MonteCarlo",
			Field:   "returns",
			Err:     contracts.ErrInsufficientData,
			Message: fmt.Sprintf("got %d samples, need %d", len(portfolioReturns), mc.config.MinSamples),
		}
	}

	mean := Mean(portfolioReturns)
	std := StdDev(portfolioReturns)
	results := make([]float64, mc.config.NumSimulations)

	for i := 0; i < mc.config.NumSimulations; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cum := 1.0
		for d := 0; d < mc.config.HoldingPeriod; d++ {
			var r float64
			if mc.config.Method == MethodParametricNormal {
				r = mean + std*mc.rng.NormFloat64()
			} else {
				r = portfolioReturns[mc.rng.Intn(len(portfolioReturns))]
			}
			cum *= 1 + r
		}
		results[i] = cum - 1
	}

	result := mc.summarize(results)
	result.InputSampleCount = len(portfolioReturns)
	return result, nil
}

// SimulateAssets 자산별 시뮬레이션
// bootstrap: 같은 날짜 인덱스를 함께 뽑아 상관 구조 유지
// parametric: 공분산 Cholesky 분해로 상관된 정규 충격 생성
func (mc *MonteCarloSimulator) SimulateAssets(ctx context.Context, assetReturns [][]float64, weights []float64) (*MonteCarloResult, error) {
	if err := ValidateMonteCarloConfig(mc.config); err != nil {
		return nil, err
	}
	if len(assetReturns) == 0 || len(assetReturns) != len(weights) {
		return nil, contracts.NewConfigError("risk.MonteCarlo", "weights", contracts.ErrEmptyAssets,
			"got %d return series for %d weights", len(assetReturns), len(weights))
	}

	aligned := alignTrailing(assetReturns)
	obs := len(aligned[0])
	if obs < mc.config.MinSamples {
		return nil, &contracts.ConfigError{
			Op:      "risk.MonteCarlo",
			Field:   "returns",
			Err:     contracts.ErrInsufficientData,
			Message: fmt.Sprintf("got %d aligned samples, need %d", obs, mc.config.MinSamples),
		}
	}

	n := len(aligned)
	var (
		means []float64
		chol  *mat.TriDense
	)
	if mc.config.Method == MethodParametricNormal {
		means = make([]float64, n)
		for i := range aligned {
			means[i] = Mean(aligned[i])
		}
		l, err := choleskyOf(aligned)
		if err != nil {
			return nil, err
		}
		chol = l
	}

	results := make([]float64, mc.config.NumSimulations)
	z := make([]float64, n)
	for s := 0; s < mc.config.NumSimulations; s++ {
		if s%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		portfolio := 0.0
		cum := make([]float64, n)
		for i := range cum {
			cum[i] = 1
		}
		for d := 0; d < mc.config.HoldingPeriod; d++ {
			if chol != nil {
				for i := range z {
					z[i] = mc.rng.NormFloat64()
				}
				for i := 0; i < n; i++ {
					shock := 0.0
					for j := 0; j <= i; j++ {
						shock += chol.At(i, j) * z[j]
					}
					cum[i] *= 1 + means[i] + shock
				}
				continue
			}
			day := mc.rng.Intn(obs)
			for i := 0; i < n; i++ {
				cum[i] *= 1 + aligned[i][day]
			}
		}
		for i := 0; i < n; i++ {
			portfolio += weights[i] * (cum[i] - 1)
		}
		results[s] = portfolio
	}

	result := mc.summarize(results)
	result.InputSampleCount = obs
	return result, nil
}

func (mc *MonteCarloSimulator) summarize(simulated []float64) *MonteCarloResult {
	vars := make([]VaRResult, 0, len(mc.config.ConfidenceLevels))
	for _, cl := range mc.config.ConfidenceLevels {
		vars = append(vars, CalculateVaR(simulated, cl))
	}

	return &MonteCarloResult{
		RunID:       uuid.New().String(),
		Config:      mc.config,
		MeanReturn:  Mean(simulated),
		StdDev:      StdDev(simulated),
		VaR:         vars,
		Percentiles: Percentiles(simulated, []int{1, 5, 10, 25, 50, 75, 90, 95, 99}),
		CreatedAt:   time.Now(),
	}
}

// choleskyOf 표본 공분산의 하삼각 Cholesky 인자
func choleskyOf(series [][]float64) (*mat.TriDense, error) {
	n := len(series)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, covarianceOf(series[i], series[j]))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, &contracts.ConfigError{
			Op:      "risk.MonteCarlo",
			Field:   "returns",
			Err:     contracts.ErrNotPositiveDefinite,
			Message: "asset covariance is not positive definite",
		}
	}
	var l mat.TriDense
	chol.LTo(&l)
	return &l, nil
}

func covarianceOf(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// alignTrailing 가장 짧은 길이에 맞춰 최근 구간만 사용
func alignTrailing(series [][]float64) [][]float64 {
	minLen := math.MaxInt
	for _, s := range series {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = s[len(s)-minLen:]
	}
	return out
}
