package refdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/database"
	"github.com/wonny/stockrisk/pkg/logger"
	"github.com/wonny/stockrisk/pkg/redis"
)

var (
	_ risk.SectorLookup = (*Directory)(nil)
	_ risk.VolumeLookup = (*Directory)(nil)
)

func sampleRecords() []Record {
	return []Record{
		{Symbol: "005930", Name: "삼성전자", Sector: "IT", AverageVolume: 12_000_000},
		{Symbol: "000660", Name: "SK하이닉스", Sector: "IT", AverageVolume: 3_000_000},
		{Symbol: "005380", Name: "현대차", Sector: "Auto"},
	}
}

func TestDirectory_Lookups(t *testing.T) {
	d := NewDirectory()
	n, err := d.Refresh(context.Background(), NewStaticSource(sampleRecords()), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, d.Len())

	sector, ok := d.Sector("005930")
	assert.True(t, ok)
	assert.Equal(t, "IT", sector)

	vol, ok := d.AverageVolume("000660")
	assert.True(t, ok)
	assert.Equal(t, 3_000_000.0, vol)

	_, ok = d.AverageVolume("005380")
	assert.False(t, ok, "zero volume is unknown")

	_, ok = d.Sector("035420")
	assert.False(t, ok)

	assert.Equal(t, []string{"000660", "005380", "005930"}, d.Symbols())
	assert.Equal(t, []string{"035420"}, d.Missing([]string{"005930", "035420"}))
}

func TestStaticSource_FetchSubset(t *testing.T) {
	src := NewStaticSource(sampleRecords())
	records, err := src.Fetch(context.Background(), []string{"005380", "999999"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Auto", records[0].Sector)
}

func TestLoadStaticFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "securities.yaml")
	content := `
securities:
  - symbol: "005930"
    name: 삼성전자
    sector: IT
    average_volume: 12000000
  - symbol: "105560"
    sector: Financials
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := LoadStaticFile(path)
	require.NoError(t, err)

	d := NewDirectory()
	_, err = d.Refresh(context.Background(), src, nil)
	require.NoError(t, err)

	sector, ok := d.Sector("105560")
	assert.True(t, ok)
	assert.Equal(t, "Financials", sector)

	_, err = LoadStaticFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		symbol := strings.TrimPrefix(r.URL.Path, "/securities/")
		if symbol != "005930" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sector":         "IT",
			"average_volume": 12000000,
		})
	}))
	defer server.Close()

	cfg := &config.Config{RefData: config.RefDataConfig{BaseURL: server.URL, APIKey: "key"}}
	src := NewHTTPSource(cfg, logger.Nop())

	records, err := src.Fetch(context.Background(), []string{"005930", "999999"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "005930", records[0].Symbol)
	assert.Equal(t, "IT", records[0].Sector)
	assert.False(t, records[0].UpdatedAt.IsZero())
}

func TestHTTPSource_SharedLimiterDisabledRedis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sector": "IT"})
	}))
	defer server.Close()

	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	cfg := &config.Config{RefData: config.RefDataConfig{BaseURL: server.URL}}
	src := NewHTTPSource(cfg, logger.Nop()).
		WithSharedLimiter(redis.NewRateLimiter(client), redis.RefDataRateLimit)

	records, err := src.Fetch(context.Background(), []string{"005930", "000660"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHTTPSource_NoBaseURL(t *testing.T) {
	src := NewHTTPSource(&config.Config{}, logger.Nop())
	_, err := src.Fetch(context.Background(), []string{"005930"})
	assert.Error(t, err)
}

type countingSource struct {
	calls   int
	symbols []string
	inner   Source
}

func (c *countingSource) Fetch(ctx context.Context, symbols []string) ([]Record, error) {
	c.calls++
	c.symbols = append(c.symbols, symbols...)
	return c.inner.Fetch(ctx, symbols)
}

func TestCachedSource_DisabledRedisFallsThrough(t *testing.T) {
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	upstream := &countingSource{inner: NewStaticSource(sampleRecords())}
	src := NewCachedSource(upstream, redis.NewCache(client), 0, nil)

	records, err := src.Fetch(context.Background(), []string{"005930", "000660"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, []string{"005930", "000660"}, upstream.symbols)
}

func TestCachedSource_InvalidateDisabledRedis(t *testing.T) {
	upstream := &countingSource{inner: NewStaticSource(sampleRecords())}
	src := NewCachedSource(upstream, redis.NewCache(redis.Disabled()), 0, nil)
	assert.NoError(t, src.Invalidate(context.Background(), []string{"005930"}))
}

func TestCachedSource_RedisIntegration(t *testing.T) {
	if testing.Short() || os.Getenv("REDIS_ENABLED") != "true" {
		t.Skip("REDIS_ENABLED not set, skipping integration test")
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	client, err := redis.New(cfg)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	symbols := []string{"005930", "000660"}
	upstream := &countingSource{inner: NewStaticSource(sampleRecords())}
	src := NewCachedSource(upstream, redis.NewCache(client), time.Minute, nil)
	require.NoError(t, src.Invalidate(ctx, symbols))

	_, err = src.Fetch(ctx, symbols)
	require.NoError(t, err)
	records, err := src.Fetch(ctx, symbols)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, upstream.calls)

	// 한 종목만 비우면 그 종목만 다시 조회
	require.NoError(t, src.Invalidate(ctx, symbols[:1]))
	_, err = src.Fetch(ctx, symbols)
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)
	assert.Equal(t, []string{"005930", "000660", "005930"}, upstream.symbols)
}

func TestRepository_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	repo := NewRepository(db.Pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.Upsert(ctx, sampleRecords()))

	records, err := repo.Fetch(ctx, []string{"005930"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "IT", records[0].Sector)
}

func TestLoadStaticFile_RepositoryFile(t *testing.T) {
	src, err := LoadStaticFile("../../configs/securities.yaml")
	require.NoError(t, err)

	records, err := src.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
