package jobs

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/refdata"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/internal/strategyconfig"
	"github.com/wonny/stockrisk/pkg/logger"
)

type fakeStore struct {
	portfolio *contracts.Portfolio
	date      time.Time
	bars      map[string][]portfolio.PriceBar
	reports   []portfolio.RiskReport
	orders    []contracts.StopLossOrder
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, date time.Time) (*contracts.Portfolio, time.Time, error) {
	if f.portfolio == nil {
		return nil, time.Time{}, portfolio.ErrNoSnapshot
	}
	p := *f.portfolio
	p.Positions = append([]contracts.Position(nil), f.portfolio.Positions...)
	return &p, f.date, nil
}

func (f *fakeStore) LoadBars(ctx context.Context, symbol string, until time.Time, lookback int) ([]portfolio.PriceBar, error) {
	bars := f.bars[symbol]
	if len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	return bars, nil
}

func (f *fakeStore) LoadPriceSeries(ctx context.Context, symbols []string, until time.Time, lookback int) ([]covariance.PriceSeries, error) {
	out := make([]covariance.PriceSeries, 0, len(symbols))
	for _, sym := range symbols {
		bars, _ := f.LoadBars(ctx, sym, until, lookback)
		out = append(out, covariance.PriceSeries{Symbol: sym, Prices: portfolio.Closes(bars)})
	}
	return out, nil
}

func (f *fakeStore) SaveRiskReport(ctx context.Context, report portfolio.RiskReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeStore) SaveOrders(ctx context.Context, orders []contracts.StopLossOrder) error {
	f.orders = orders
	return nil
}

func waveBars(n int, base, amp, phase float64) []portfolio.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]portfolio.PriceBar, n)
	for i := range bars {
		c := base * (1 + amp*math.Sin(float64(i)*0.7+phase))
		bars[i] = portfolio.PriceBar{Date: start.AddDate(0, 0, i), Close: c, High: c + 1, Low: c - 1}
	}
	return bars
}

func newRuntime(t *testing.T) *strategyconfig.Runtime {
	t.Helper()
	cfg := strategyconfig.Default()
	rt, err := cfg.Build(logger.Nop())
	require.NoError(t, err)
	return rt
}

func TestRiskSnapshotJob(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		portfolio: &contracts.Portfolio{
			Cash: 5000,
			Positions: []contracts.Position{
				{Symbol: "A", Quantity: 10, AveragePrice: 100, CurrentPrice: 100},
				{Symbol: "B", Quantity: 20, AveragePrice: 50, CurrentPrice: 50},
			},
		},
		date: date,
		bars: map[string][]portfolio.PriceBar{
			"A": waveBars(60, 100, 0.03, 0),
			"B": waveBars(60, 50, 0.02, 1.3),
		},
	}

	dir := t.TempDir()
	job := NewRiskSnapshotJob(store, risk.NewCalculator(nil, nil, nil), newRuntime(t), nil, "0 30 15 * * 1-5", dir, logger.Nop())
	assert.Equal(t, "risk_snapshot", job.Name())
	assert.Equal(t, "0 30 15 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, store.reports, 1)

	rep := store.reports[0]
	assert.True(t, rep.Date.Equal(date))
	assert.NotEmpty(t, rep.ProfileHash)
	assert.Greater(t, rep.Metrics.PortfolioVaR, 0.0)
	assert.Len(t, rep.Metrics.ComponentVaR, 2)

	_, err := os.Stat(filepath.Join(dir, "risk_20240301.xlsx"))
	assert.NoError(t, err)
}

func TestRiskSnapshotJob_NoSnapshot(t *testing.T) {
	store := &fakeStore{}
	job := NewRiskSnapshotJob(store, risk.NewCalculator(nil, nil, nil), newRuntime(t), nil, "@daily", "", logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.reports)
}

func TestRiskSnapshotJob_AssetReturnsAligned(t *testing.T) {
	job := NewRiskSnapshotJob(&fakeStore{}, nil, newRuntime(t), nil, "@daily", "", logger.Nop())

	out := job.assetReturns([]covariance.PriceSeries{
		{Symbol: "A", Prices: []float64{100, 101, 102, 103}},
		{Symbol: "B", Prices: []float64{50, 51, 52}},
	})
	require.Len(t, out, 2)
	assert.Len(t, out[0], 2)
	assert.Len(t, out[1], 2)
	assert.InDelta(t, 1.0/101.0, out[0][0], 1e-12)

	assert.Nil(t, job.assetReturns([]covariance.PriceSeries{{Symbol: "A", Prices: []float64{100, 101}}}))
}

func TestStopLossSweepJob(t *testing.T) {
	bars := waveBars(15, 100, 0, 0)
	bars[len(bars)-1].Close = 89

	store := &fakeStore{
		portfolio: &contracts.Portfolio{
			Cash: 1000,
			Positions: []contracts.Position{
				{Symbol: "A", Quantity: 10, AveragePrice: 100, CurrentPrice: 100},
			},
		},
		bars: map[string][]portfolio.PriceBar{"A": bars},
	}

	engine := stoploss.NewEngine(logger.Nop())
	stale := engine.Registry().Create(stoploss.OrderRequest{
		Symbol: "Z", Type: contracts.OrderTypeStopLoss, TriggerPrice: 10, Quantity: 1, LevelIndex: -1,
	})

	rt := newRuntime(t)
	job := NewStopLossSweepJob(store, engine, stoploss.NewExitBook(rt.StopLoss, rt.TakeProfit), "0 */5 9-15 * * 1-5", logger.Nop())
	assert.Equal(t, "stoploss_sweep", job.Name())

	require.NoError(t, job.Run(context.Background()))

	var triggered, cancelled int
	for _, o := range store.orders {
		switch {
		case o.Symbol == "A" && o.Status == contracts.OrderTriggered && o.Type == contracts.OrderTypeStopLoss:
			triggered++
		case o.ID == stale.ID && o.Status == contracts.OrderCancelled:
			cancelled++
		}
	}
	assert.Equal(t, 1, triggered)
	assert.Equal(t, 1, cancelled)
}

func TestRefDataRefreshJob(t *testing.T) {
	dir := refdata.NewDirectory()
	source := refdata.NewStaticSource([]refdata.Record{
		{Symbol: "A", Sector: "IT", AverageVolume: 1000},
	})
	symbols := func(context.Context) ([]string, error) { return []string{"A", "B"}, nil }

	job := NewRefDataRefreshJob(dir, source, symbols, "0 0 8 * * 1-5", logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	sector, ok := dir.Sector("A")
	assert.True(t, ok)
	assert.Equal(t, "IT", sector)
	assert.Equal(t, []string{"B"}, dir.Missing([]string{"A", "B"}))
}

type invalidatingSource struct {
	refdata.Source
	invalidated []string
}

func (s *invalidatingSource) Invalidate(_ context.Context, symbols []string) error {
	s.invalidated = append(s.invalidated, symbols...)
	return nil
}

func TestRefDataRefreshJob_InvalidatesCacheFirst(t *testing.T) {
	dir := refdata.NewDirectory()
	source := &invalidatingSource{Source: refdata.NewStaticSource([]refdata.Record{
		{Symbol: "A", Sector: "IT", AverageVolume: 1000},
	})}
	symbols := func(context.Context) ([]string, error) { return []string{"A"}, nil }

	job := NewRefDataRefreshJob(dir, source, symbols, "0 0 8 * * 1-5", logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"A"}, source.invalidated)
	assert.Empty(t, dir.Missing([]string{"A"}))
}

func TestOrderCheckpointJob(t *testing.T) {
	engine := stoploss.NewEngine(logger.Nop())
	engine.Registry().Create(stoploss.OrderRequest{
		Symbol: "A", Type: contracts.OrderTypeStopLoss, TriggerPrice: 90, Quantity: 10, LevelIndex: -1,
	})

	path := filepath.Join(t.TempDir(), "state", "orders.msgpack")
	job := NewOrderCheckpointJob(engine.Registry(), path, logger.Nop())
	require.NoError(t, job.Run(context.Background()))

	restored := stoploss.NewRegistry()
	ok, err := RestoreCheckpoint(restored, path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, restored.Len())

	ok, err = RestoreCheckpoint(stoploss.NewRegistry(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}
