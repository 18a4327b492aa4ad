package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
)

type mapSectors map[string]string

func (m mapSectors) Sector(symbol string) (string, bool) {
	s, ok := m[symbol]
	return s, ok
}

type mapVolumes map[string]float64

func (m mapVolumes) AverageVolume(symbol string) (float64, bool) {
	v, ok := m[symbol]
	return v, ok
}

func testPortfolio() *contracts.Portfolio {
	p := &contracts.Portfolio{
		Cash: 20000,
		Positions: []contracts.Position{
			{Symbol: "005930", Quantity: 500, AveragePrice: 70, CurrentPrice: 80},
			{Symbol: "000660", Quantity: 200, AveragePrice: 150, CurrentPrice: 100},
			{Symbol: "035420", Quantity: 100, AveragePrice: 200, CurrentPrice: 200},
		},
	}
	p.Recalculate()
	return p
}

func testAssetReturns() [][]float64 {
	return [][]float64{
		{0.010, -0.020, 0.015, -0.005, 0.020, -0.030, 0.012, 0.004, -0.011, 0.008},
		{0.020, -0.010, 0.005, -0.015, 0.010, -0.025, 0.018, -0.002, -0.009, 0.011},
		{-0.005, 0.010, 0.002, 0.007, -0.012, 0.004, 0.001, 0.009, -0.003, 0.006},
	}
}

func TestCalculator_Calculate(t *testing.T) {
	p := testPortfolio()
	calc := NewCalculator(
		mapSectors{"005930": "tech", "000660": "tech"},
		mapVolumes{"005930": 1_000_000, "000660": 500_000},
		nil,
	)

	metrics, err := calc.Calculate(context.Background(), CalculationInput{
		Portfolio:    p,
		AssetReturns: testAssetReturns(),
		Confidence:   0.95,
	})
	require.NoError(t, err)

	// 비중: 40000/100000, 20000/100000, 20000/100000
	assert.InDelta(t, 0.4*0.4+0.2*0.2+0.2*0.2, metrics.ConcentrationRisk, 1e-12)
	assert.InDelta(t, 0.6, metrics.SectorExposure["tech"], 1e-12)
	assert.InDelta(t, 0.2, metrics.SectorExposure[OtherSector], 1e-12)
	assert.InDelta(t, 0.8, metrics.LeverageRatio, 1e-12)
	assert.Equal(t, []string{"035420"}, metrics.MissingLiquidity)

	wantLiquidity := 0.4*40000/(1_000_000*80) + 0.2*20000/(500_000*100)
	assert.InDelta(t, wantLiquidity, metrics.LiquidityRisk, 1e-15)

	portfolioReturns := PortfolioReturns(p.Weights(), testAssetReturns())
	assert.InDelta(t, CalculateVaR(portfolioReturns, 0.95).VaR, metrics.PortfolioVaR, 1e-15)

	assert.Equal(t, contracts.ComponentVaRAnalytic, metrics.ComponentVaRMethod)
	require.Len(t, metrics.ComponentVaR, 3)
	assert.Greater(t, metrics.CorrelationRisk, 0.0)
	assert.LessOrEqual(t, metrics.CorrelationRisk, 1.0)
	assert.False(t, metrics.CalculatedAt.IsZero())
}

func TestCalculator_ComponentVaRSumsToParametric(t *testing.T) {
	cov, err := covariance.FromMatrix([]string{"A", "B", "C"}, [][]float64{
		{0.0004, 0.0001, 0.00005},
		{0.0001, 0.0009, 0.0002},
		{0.00005, 0.0002, 0.0016},
	})
	require.NoError(t, err)

	weights := []float64{0.5, 0.3, 0.2}
	cvar := ComponentVaR(weights, cov, 0.99)

	total := 0.0
	for _, v := range cvar {
		total += v
	}
	assert.InDelta(t, NormInv(0.99)*PortfolioVolatility(weights, cov.Matrix), total, 1e-12)
}

func TestCalculator_ProportionalFallback(t *testing.T) {
	p := testPortfolio()
	calc := NewCalculator(nil, nil, nil)

	portfolioReturns := []float64{-0.04, 0.01, -0.02, 0.03, 0.005, -0.01, 0.02, -0.03, 0.015, 0.0}
	metrics, err := calc.Calculate(context.Background(), CalculationInput{
		Portfolio:        p,
		PortfolioReturns: portfolioReturns,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultConfidence, metrics.Confidence)
	assert.Equal(t, contracts.ComponentVaRProportional, metrics.ComponentVaRMethod)
	assert.Equal(t, 0.0, metrics.CorrelationRisk)
	// 현금 20% 제외, 섹터 미상 포지션 비중 합계
	assert.InDelta(t, p.MarketValue/p.TotalValue, metrics.SectorExposure[OtherSector], 1e-12)
	assert.InDelta(t, 0.8, metrics.SectorExposure[OtherSector], 1e-12)
	assert.Len(t, metrics.MissingLiquidity, 3)
	assert.Equal(t, 0.0, metrics.LiquidityRisk)

	// 0.4/0.8 · VaR
	assert.InDelta(t, 0.5*metrics.PortfolioVaR, metrics.ComponentVaR[0], 1e-12)
}

func TestCalculator_SuppliedCovarianceMustBePositiveDefinite(t *testing.T) {
	calc := NewCalculator(nil, nil, nil)
	singular := [][]float64{
		{0.04, 0.04, 0.04},
		{0.04, 0.04, 0.04},
		{0.04, 0.04, 0.04},
	}

	_, err := calc.Calculate(context.Background(), CalculationInput{
		Portfolio:    testPortfolio(),
		AssetReturns: testAssetReturns(),
		Covariance:   &contracts.CovarianceMatrix{Matrix: singular, IsPositiveDefinite: true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrNotPositiveDefinite)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	// 플래그 없이 넘어온 유효 행렬은 다시 계산되어 사용
	metrics, err := calc.Calculate(context.Background(), CalculationInput{
		Portfolio:    testPortfolio(),
		AssetReturns: testAssetReturns(),
		Covariance: &contracts.CovarianceMatrix{Matrix: [][]float64{
			{0.0004, 0, 0},
			{0, 0.0009, 0},
			{0, 0, 0.0016},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.ComponentVaRAnalytic, metrics.ComponentVaRMethod)
	assert.Equal(t, 0.0, metrics.CorrelationRisk)
}

func TestCalculator_SingularEstimateFallsBack(t *testing.T) {
	calc := NewCalculator(nil, nil, nil)
	series := testAssetReturns()[0]

	metrics, err := calc.Calculate(context.Background(), CalculationInput{
		Portfolio:    testPortfolio(),
		AssetReturns: [][]float64{series, series, series},
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.ComponentVaRProportional, metrics.ComponentVaRMethod)
	assert.Equal(t, 0.0, metrics.CorrelationRisk)
	assert.Greater(t, metrics.PortfolioVaR, 0.0)
}

func TestCalculator_Errors(t *testing.T) {
	calc := NewCalculator(nil, nil, nil)
	ctx := context.Background()

	_, err := calc.Calculate(ctx, CalculationInput{})
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	_, err = calc.Calculate(ctx, CalculationInput{Portfolio: testPortfolio(), Confidence: 1.5})
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	_, err = calc.Calculate(ctx, CalculationInput{Portfolio: testPortfolio(), AssetReturns: [][]float64{{0.01}}})
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = calc.Calculate(cancelled, CalculationInput{Portfolio: testPortfolio()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorrelationRisk(t *testing.T) {
	assert.Equal(t, 0.0, CorrelationRisk(nil))

	single, err := covariance.FromMatrix([]string{"A"}, [][]float64{{0.04}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, CorrelationRisk(single))

	cov, err := covariance.FromMatrix([]string{"A", "B", "C"}, [][]float64{
		{0.04, -0.012, 0},
		{-0.012, 0.09, 0},
		{0, 0, 0},
	})
	require.NoError(t, err)
	// |ρ_AB| = 0.2, 분산 0인 C와의 상관은 0
	assert.InDelta(t, 0.2/3, CorrelationRisk(cov), 1e-12)
}

func TestLeverageRatio_ZeroTotal(t *testing.T) {
	assert.Equal(t, 0.0, LeverageRatio(&contracts.Portfolio{}))
}
