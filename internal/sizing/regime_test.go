package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustWeightsForRegime(t *testing.T) {
	weights := []float64{0.6, 0.3, 0.1}

	high := AdjustWeightsForRegime(weights, MarketConditions{Volatility: RegimeHighVolatility})
	assert.InDeltaSlice(t, []float64{0.52, 0.31, 0.17}, high, 1e-12)

	low := AdjustWeightsForRegime(weights, MarketConditions{Volatility: RegimeLowVolatility})
	assert.Greater(t, low[0], weights[0])
	assert.Less(t, low[2], weights[2])
	assert.InDelta(t, 1.0, low[0]+low[1]+low[2], 1e-12)

	medium := AdjustWeightsForRegime(weights, MarketConditions{Volatility: RegimeMediumVolatility})
	assert.Equal(t, weights, medium)

	correlated := AdjustWeightsForRegime(weights, MarketConditions{Volatility: RegimeMediumVolatility, Correlation: 0.8})
	assert.InDeltaSlice(t, high, correlated, 1e-12)

	assert.Empty(t, AdjustWeightsForRegime(nil, MarketConditions{Volatility: RegimeHighVolatility}))
}
