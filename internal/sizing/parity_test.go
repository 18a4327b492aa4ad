package sizing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
)

func covFromVols(t *testing.T, vols []float64, corr [][]float64) *contracts.CovarianceMatrix {
	t.Helper()
	n := len(vols)
	symbols := make([]string, n)
	matrix := make([][]float64, n)
	for i := range matrix {
		symbols[i] = string(rune('A' + i))
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			matrix[i][j] = corr[i][j] * vols[i] * vols[j]
		}
	}
	cov, err := covariance.FromMatrix(symbols, matrix)
	require.NoError(t, err)
	return cov
}

func identity(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = 1
	}
	return out
}

func testAssets(n int) []contracts.Asset {
	assets := make([]contracts.Asset, n)
	for i := range assets {
		assets[i] = contracts.Asset{Symbol: string(rune('A' + i)), ExpectedReturn: 0.10}
	}
	return assets
}

func optimizers() []Optimizer {
	return []Optimizer{NewFixedPointOptimizer(), NewNewtonOptimizer()}
}

func TestRiskParity_EqualCorrelationConvergesToEqualWeights(t *testing.T) {
	corr := [][]float64{
		{1, 0.5, 0.5},
		{0.5, 1, 0.5},
		{0.5, 0.5, 1},
	}
	cov := covFromVols(t, []float64{0.2, 0.2, 0.2}, corr)

	for _, opt := range optimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			result, err := NewRiskParity(opt, nil).Optimize(RiskParityRequest{
				Assets:         testAssets(3),
				Covariance:     cov,
				RiskFreeRate:   0.03,
				PortfolioValue: 1_000_000,
			})
			require.NoError(t, err)

			assert.True(t, result.Convergence.Converged)
			for _, w := range result.Weights {
				assert.InDelta(t, 1.0/3, w, 1e-6)
			}
			for _, rc := range result.RiskContributions {
				assert.InDelta(t, 1.0/3, rc, 1e-6)
			}

			sigma := math.Sqrt(0.24 / 9)
			assert.InDelta(t, sigma, result.PortfolioVolatility, 1e-9)
			assert.InDelta(t, 0.10, result.PortfolioReturn, 1e-9)
			assert.InDelta(t, 0.07/sigma, result.SharpeRatio, 1e-6)
			assert.InDelta(t, 0.2/sigma, result.DiversificationRatio, 1e-6)
			assert.InDelta(t, 3, result.EffectiveAssets, 1e-6)
		})
	}
}

func TestRiskParity_ThreeAssetEndToEnd(t *testing.T) {
	matrix := [][]float64{
		{0.04, 0.012, 0.012},
		{0.012, 0.04, 0.012},
		{0.012, 0.012, 0.04},
	}
	cov, err := covariance.FromMatrix([]string{"A", "B", "C"}, matrix)
	require.NoError(t, err)

	result, err := NewRiskParity(nil, nil).Optimize(RiskParityRequest{
		Assets:         testAssets(3),
		Covariance:     cov,
		PortfolioValue: 1_000_000,
	})
	require.NoError(t, err)

	assert.True(t, result.Convergence.Converged)
	assert.Equal(t, []string{"A", "B", "C"}, result.Symbols)
	for i := range result.Weights {
		assert.InDelta(t, 1.0/3, result.Weights[i], 1e-6)
		assert.InDelta(t, 1.0/3, result.RiskContributions[i], 1e-6)
	}
	assert.InDelta(t, math.Sqrt(0.192/9), result.PortfolioVolatility, 1e-9)
}

func TestRiskParity_DiagonalInverseVolatility(t *testing.T) {
	cov := covFromVols(t, []float64{0.1, 0.2, 0.4}, identity(3))
	want := []float64{4.0 / 7, 2.0 / 7, 1.0 / 7}

	for _, opt := range optimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			result, err := NewRiskParity(opt, nil).Optimize(RiskParityRequest{Assets: testAssets(3), Covariance: cov})
			require.NoError(t, err)

			assert.True(t, result.Convergence.Converged)
			for i := range want {
				assert.InDelta(t, want[i], result.Weights[i], 1e-6)
			}
		})
	}
}

func TestRiskParity_CorrelatedPairwiseContributions(t *testing.T) {
	corr := [][]float64{
		{1, 0.3, 0.5},
		{0.3, 1, 0.2},
		{0.5, 0.2, 1},
	}
	cov := covFromVols(t, []float64{0.15, 0.25, 0.30}, corr)

	for _, opt := range optimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			result, err := NewRiskParity(opt, nil).Optimize(RiskParityRequest{Assets: testAssets(3), Covariance: cov})
			require.NoError(t, err)
			require.True(t, result.Convergence.Converged)

			sum := 0.0
			for _, w := range result.Weights {
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-9)

			rc := result.RiskContributions
			for i := range rc {
				for j := i + 1; j < len(rc); j++ {
					assert.Less(t, math.Abs(rc[i]-rc[j]), DefaultParityTolerance)
				}
			}
		})
	}
}

// randomCovariance AAᵀ/n + 0.001·I (양의 정부호)
func randomCovariance(t *testing.T, rng *rand.Rand, n int) *contracts.CovarianceMatrix {
	t.Helper()
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
		for j := range a[i] {
			a[i][j] = rng.NormFloat64() * 0.2
		}
	}
	symbols := make([]string, n)
	matrix := make([][]float64, n)
	for i := range matrix {
		symbols[i] = string(rune('A' + i))
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := 0.0
			for k := 0; k < n; k++ {
				v += a[i][k] * a[j][k]
			}
			v /= float64(n)
			if i == j {
				v += 0.001
			}
			matrix[i][j] = v
			matrix[j][i] = v
		}
	}
	cov, err := covariance.FromMatrix(symbols, matrix)
	require.NoError(t, err)
	require.True(t, cov.IsPositiveDefinite)
	return cov
}

func TestRiskParity_RandomCovarianceConvergedMeansEqualContributions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, opt := range optimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			rp := NewRiskParity(opt, nil)
			converged := 0
			const trials = 100

			for trial := 0; trial < trials; trial++ {
				n := 3 + rng.Intn(6)
				result, err := rp.Optimize(RiskParityRequest{
					Assets:     testAssets(n),
					Covariance: randomCovariance(t, rng, n),
				})
				require.NoError(t, err)

				sum := 0.0
				for _, w := range result.Weights {
					sum += w
					assert.GreaterOrEqual(t, w, -1e-12)
					assert.LessOrEqual(t, w, 1+1e-12)
				}
				assert.InDelta(t, 1.0, sum, 1e-9)

				if !result.Convergence.Converged {
					continue
				}
				converged++
				rc := result.RiskContributions
				for i := range rc {
					for j := i + 1; j < len(rc); j++ {
						assert.Less(t, math.Abs(rc[i]-rc[j]), DefaultParityTolerance, "trial %d", trial)
					}
				}
			}

			if opt.Name() == "newton" {
				assert.Greater(t, converged, trials/2)
			}
		})
	}
}

func TestRiskParity_DefaultOptimizerIsNewton(t *testing.T) {
	assert.Equal(t, "newton", NewRiskParity(nil, nil).Optimizer().Name())
}

func TestRiskParity_SuppliedCovarianceIsRechecked(t *testing.T) {
	rp := NewRiskParity(nil, nil)

	// 플래그만 PD 로 표시된 특이 행렬은 거부
	forged := &contracts.CovarianceMatrix{
		Symbols:            []string{"A", "B"},
		Matrix:             [][]float64{{1, 1}, {1, 1}},
		IsPositiveDefinite: true,
	}
	_, err := rp.Optimize(RiskParityRequest{Assets: testAssets(2), Covariance: forged})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNotPositiveDefinite)

	// 플래그가 없어도 유효한 대각 행렬은 허용
	plain := &contracts.CovarianceMatrix{Matrix: [][]float64{{0.04, 0}, {0, 0.01}}}
	result, err := rp.Optimize(RiskParityRequest{Assets: testAssets(2), Covariance: plain})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, result.Weights[0], 1e-6)
	assert.InDelta(t, 2.0/3, result.Weights[1], 1e-6)
}

func TestRiskParity_Bounds(t *testing.T) {
	cov := covFromVols(t, []float64{0.1, 0.2, 0.4}, identity(3))
	bounds := Bounds{Min: 0.05, Max: 0.4}

	for _, opt := range optimizers() {
		t.Run(opt.Name(), func(t *testing.T) {
			result, err := NewRiskParity(opt, nil).Optimize(RiskParityRequest{
				Assets:     testAssets(3),
				Covariance: cov,
				Bounds:     bounds,
			})
			require.NoError(t, err)

			sum := 0.0
			for _, w := range result.Weights {
				sum += w
				assert.LessOrEqual(t, w, bounds.Max+1e-9)
				assert.GreaterOrEqual(t, w, bounds.Min-1e-9)
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.InDelta(t, 0.4, result.Weights[0], 1e-9)
		})
	}
}

func TestRiskParity_Errors(t *testing.T) {
	rp := NewRiskParity(nil, nil)
	cov := covFromVols(t, []float64{0.1, 0.2, 0.4}, identity(3))

	_, err := rp.Optimize(RiskParityRequest{Covariance: cov})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrEmptyAssets)
	assert.True(t, contracts.IsConfigurationError(err))

	_, err = rp.Optimize(RiskParityRequest{Assets: testAssets(3), Covariance: cov, Bounds: Bounds{Max: 0.3}})
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))

	_, err = rp.Optimize(RiskParityRequest{Assets: testAssets(3), Covariance: cov, Bounds: Bounds{Min: 0.4, Max: 1}})
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))

	_, err = rp.Optimize(RiskParityRequest{Assets: testAssets(2), Covariance: cov})
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))

	singular, err := covariance.FromMatrix([]string{"A", "B"}, [][]float64{{1, 1}, {1, 1}})
	require.NoError(t, err)
	_, err = rp.Optimize(RiskParityRequest{Assets: testAssets(2), Covariance: singular})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNotPositiveDefinite)
}

func TestRebalanceSignals(t *testing.T) {
	assets := []contracts.Asset{
		{Symbol: "A", Weight: 0.5},
		{Symbol: "B", Weight: 0.3},
		{Symbol: "C", Weight: 0.2},
	}
	target := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}

	signals := RebalanceSignals(assets, target, 1_000_000, 0)
	require.Len(t, signals, 3)

	assert.Equal(t, contracts.ActionSell, signals[0].Action)
	assert.InDelta(t, 166_666.67, signals[0].Amount, 0.01)
	assert.Equal(t, contracts.ActionHold, signals[1].Action)
	assert.Equal(t, contracts.ActionBuy, signals[2].Action)
	assert.InDelta(t, 133_333.33, signals[2].Amount, 0.01)
}

func TestProjectToBounds(t *testing.T) {
	out := ProjectToBounds([]float64{0.7, 0.2, 0.1}, Bounds{Min: 0.1, Max: 0.5})

	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-12)
	assert.GreaterOrEqual(t, out[2], 0.1-1e-12)
	assert.Greater(t, out[1], out[2])
}

func TestBounds_Validate(t *testing.T) {
	assert.NoError(t, DefaultBounds().Validate(3))
	assert.NoError(t, Bounds{Max: 0.5}.Validate(2))
	assert.Error(t, Bounds{Max: 0.2}.Validate(3))
	assert.Error(t, Bounds{Min: 0.5, Max: 0.4}.Validate(3))
	assert.Error(t, Bounds{Min: -0.1, Max: 1}.Validate(3))
}
