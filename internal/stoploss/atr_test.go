package stoploss

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeATR_ConstantRange(t *testing.T) {
	n := 30
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		high[i] = 101
		low[i] = 99
	}

	assert.InDelta(t, 2.0, ComputeATR(high, low, closes, 14), 1e-9)
	assert.Equal(t, 0.0, ComputeATR(high[:10], low[:10], closes[:10], 14))
	assert.Equal(t, 0.0, ComputeATR(high, low[:5], closes, 14))
}

func TestPriceHistory(t *testing.T) {
	h := NewPriceHistory()
	for i := 1; i <= 1100; i++ {
		h.Add("005930", float64(i))
	}
	h.Add("005930", -1)

	prices := h.Prices("005930")
	assert.Len(t, prices, 1000)
	assert.Equal(t, 101.0, prices[0])
	assert.Equal(t, 1100.0, prices[len(prices)-1])

	assert.Greater(t, h.ApproxATR("005930", 14), 0.0)
	assert.Equal(t, 0.0, h.ApproxATR("000660", 14))

	h.Reset("005930")
	assert.Empty(t, h.Prices("005930"))
}
