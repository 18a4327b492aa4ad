package portfolio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/database"
)

func newIntegrationRepo(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewRepository(db.Pool)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func TestRepository_SnapshotRoundTrip(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := samplePortfolio()
	p.Positions[0].OpenDate = date.AddDate(0, -1, 0)
	require.NoError(t, repo.SaveSnapshot(ctx, date, p))

	loaded, snapDate, err := repo.LoadSnapshot(ctx, date.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.True(t, snapDate.Equal(date))
	assert.InDelta(t, p.TotalValue, loaded.TotalValue, 1e-9)
	assert.Len(t, loaded.Positions, 2)

	_, _, err = repo.LoadSnapshot(ctx, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRepository_Prices(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	symbol := "T" + uuid.NewString()[:8]
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]PriceBar, 5)
	for i := range bars {
		bars[i] = PriceBar{Date: start.AddDate(0, 0, i), Close: float64(100 + i)}
	}
	require.NoError(t, repo.SavePrices(ctx, symbol, bars))

	series, err := repo.LoadPriceSeries(ctx, []string{symbol}, start.AddDate(0, 0, 10), 3)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []float64{102, 103, 104}, series[0].Prices)
}

func TestRepository_Orders(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := contracts.StopLossOrder{
		ID:            uuid.NewString(),
		Symbol:        "005930",
		Type:          contracts.OrderTypeStopLoss,
		TriggerPrice:  90,
		Quantity:      10,
		ExecutionType: contracts.ExecutionMarket,
		Status:        contracts.OrderPending,
		LevelIndex:    -1,
		CreatedAt:     now,
	}
	require.NoError(t, repo.SaveOrders(ctx, []contracts.StopLossOrder{order}))

	order.Status = contracts.OrderCancelled
	order.CancelledAt = &now
	require.NoError(t, repo.SaveOrders(ctx, []contracts.StopLossOrder{order}))

	all, err := repo.LoadOrders(ctx, false)
	require.NoError(t, err)
	var found *contracts.StopLossOrder
	for i := range all {
		if all[i].ID == order.ID {
			found = &all[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, contracts.OrderCancelled, found.Status)
	require.NotNil(t, found.CancelledAt)

	active, err := repo.LoadOrders(ctx, true)
	require.NoError(t, err)
	for _, o := range active {
		assert.NotEqual(t, order.ID, o.ID)
	}
}

func TestRepository_RiskReport(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	report := RiskReport{
		Date:        time.Now().UTC().Truncate(24 * time.Hour),
		ProfileHash: "abc123",
		Metrics:     &contracts.RiskMetrics{PortfolioVaR: 0.02},
	}
	require.NoError(t, repo.SaveRiskReport(ctx, report))

	latest, err := repo.LatestRiskReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "abc123", latest.ProfileHash)
	assert.InDelta(t, 0.02, latest.Metrics.PortfolioVaR, 1e-12)
	assert.Empty(t, latest.Violations)
}
