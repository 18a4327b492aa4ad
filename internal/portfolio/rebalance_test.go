package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
)

func samplePortfolio() *contracts.Portfolio {
	p := &contracts.Portfolio{
		Cash: 10000,
		Positions: []contracts.Position{
			{Symbol: "A", Quantity: 10, AveragePrice: 90, CurrentPrice: 100},
			{Symbol: "B", Quantity: 20, AveragePrice: 55, CurrentPrice: 50},
		},
	}
	p.Recalculate()
	return p
}

func TestRevalue(t *testing.T) {
	p := samplePortfolio()
	Revalue(p, map[string]float64{"A": 110, "Z": 5})

	pos, ok := p.GetPosition("A")
	require.True(t, ok)
	assert.InDelta(t, 1100.0, pos.MarketValue, 1e-9)
	assert.InDelta(t, 200.0, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 110.0, pos.HighestPrice, 1e-9)
	assert.InDelta(t, 12100.0, p.TotalValue, 1e-9)
	assert.InDelta(t, 1100.0/12100.0, pos.Weight, 1e-12)
	assert.NoError(t, p.Validate(1e-6))
}

func TestRebalancer_TargetWeights(t *testing.T) {
	t.Run("clips to max weight", func(t *testing.T) {
		r := NewRebalancer(Constraints{MaxWeight: 0.4, CashReserve: 0.1}, nil)
		w := r.TargetWeights(map[string]float64{"A": 0.5, "C": 0.3})
		assert.InDelta(t, 0.4, w["A"], 1e-12)
		assert.InDelta(t, 0.3, w["C"], 1e-12)
	})

	t.Run("scales down to investable", func(t *testing.T) {
		r := NewRebalancer(Constraints{CashReserve: 0.1}, nil)
		w := r.TargetWeights(map[string]float64{"A": 0.6, "B": 0.6})
		assert.InDelta(t, 0.45, w["A"], 1e-12)
		assert.InDelta(t, 0.45, w["B"], 1e-12)
	})

	t.Run("blacklisted and negative become zero", func(t *testing.T) {
		r := NewRebalancer(Constraints{BlackList: []string{"A"}}, nil)
		w := r.TargetWeights(map[string]float64{"A": 0.3, "B": -0.1})
		assert.Zero(t, w["A"])
		assert.Zero(t, w["B"])
	})
}

func TestRebalancer_Plan(t *testing.T) {
	r := NewRebalancer(Constraints{MaxWeight: 0.4, CashReserve: 0.1, LotSize: 1}, nil)
	trades, err := r.Plan(samplePortfolio(),
		map[string]float64{"A": 0.5, "C": 0.3},
		map[string]float64{"C": 200},
	)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, "B", trades[0].Symbol)
	assert.Equal(t, SideSell, trades[0].Side)
	assert.InDelta(t, 20.0, trades[0].Quantity, 1e-9)
	assert.InDelta(t, 1000.0, trades[0].Value, 1e-9)

	assert.Equal(t, "A", trades[1].Symbol)
	assert.Equal(t, SideBuy, trades[1].Side)
	assert.InDelta(t, 38.0, trades[1].Quantity, 1e-9)
	assert.InDelta(t, 0.4, trades[1].TargetWeight, 1e-12)

	assert.Equal(t, "C", trades[2].Symbol)
	assert.InDelta(t, 18.0, trades[2].Quantity, 1e-9)
	assert.InDelta(t, 3600.0, trades[2].Value, 1e-9)
}

func TestRebalancer_PlanLotAndMinimum(t *testing.T) {
	r := NewRebalancer(Constraints{MaxWeight: 0.4, LotSize: 10, MinTradeValue: 1500}, nil)
	trades, err := r.Plan(samplePortfolio(), map[string]float64{"A": 0.4}, nil)
	require.NoError(t, err)

	// B 매도(1000)는 최소 주문금액 미만
	require.Len(t, trades, 1)
	assert.Equal(t, "A", trades[0].Symbol)
	assert.InDelta(t, 30.0, trades[0].Quantity, 1e-9)
}

func TestRebalancer_PlanBlacklistSellsHolding(t *testing.T) {
	r := NewRebalancer(Constraints{BlackList: []string{"A"}}, nil)
	trades, err := r.Plan(samplePortfolio(), map[string]float64{"A": 0.2, "B": 1000.0 / 12000.0}, nil)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "A", trades[0].Symbol)
	assert.Equal(t, SideSell, trades[0].Side)
	assert.InDelta(t, 10.0, trades[0].Quantity, 1e-9)
}

func TestRebalancer_PlanErrors(t *testing.T) {
	r := NewRebalancer(DefaultConstraints(contracts.DefaultRiskLimits()), nil)

	_, err := r.Plan(samplePortfolio(), map[string]float64{"D": 0.1}, nil)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)

	_, err = r.Plan(&contracts.Portfolio{}, map[string]float64{"A": 0.1}, nil)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints(contracts.DefaultRiskLimits())
	assert.InDelta(t, 0.2, c.MaxWeight, 1e-12)
	assert.InDelta(t, 0.05, c.CashReserve, 1e-12)
	assert.Equal(t, 1.0, c.LotSize)
	assert.False(t, c.IsBlackListed("A"))
}

func TestCloses(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, Closes([]PriceBar{{Close: 1}, {Close: 2}}))
}
