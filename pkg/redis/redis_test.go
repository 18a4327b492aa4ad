package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/pkg/config"
)

type security struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
}

func newIntegrationClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() || os.Getenv("REDIS_ENABLED") != "true" {
		t.Skip("REDIS_ENABLED not set, skipping integration test")
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew_DisabledClient(t *testing.T) {
	client, err := New(&config.Config{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestKeys(t *testing.T) {
	client := Disabled()
	assert.Equal(t, "stockrisk:cache:refdata:security:005930", NewCache(client).key(SecurityKey("005930")))
	assert.Equal(t, "stockrisk:ratelimit:refdata", client.Key("ratelimit", RefDataRateLimit.Key))
}

func TestPollInterval(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, pollInterval(RefDataRateLimit))
	assert.Equal(t, 10*time.Millisecond, pollInterval(RateLimitConfig{Limit: 1000, Window: time.Second}))
	assert.Equal(t, time.Second, pollInterval(RateLimitConfig{Limit: 1, Window: time.Minute}))
	assert.Equal(t, time.Second, pollInterval(RateLimitConfig{}))
}

func TestRateLimiter_DisabledAllowsAll(t *testing.T) {
	limiter := NewRateLimiter(Disabled())

	allowed, remaining, err := limiter.Allow(context.Background(), RefDataRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, RefDataRateLimit.Limit, remaining)
	assert.NoError(t, limiter.Wait(context.Background(), RefDataRateLimit))
}

func TestCache_DisabledIsAlwaysMiss(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(Disabled())

	require.NoError(t, cache.Set(ctx, SecurityKey("005930"), security{Symbol: "005930"}, TTLDaily))

	var rec security
	found, err := cache.Get(ctx, SecurityKey("005930"), &rec)
	require.NoError(t, err)
	assert.False(t, found)

	calls := 0
	misses, err := cache.GetMany(ctx, []string{"a", "b", "c"}, func(int, []byte) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, misses)
	assert.Zero(t, calls)
	assert.NoError(t, cache.Delete(ctx, "a", "b"))
}

func TestCache_Integration(t *testing.T) {
	client := newIntegrationClient(t)
	ctx := context.Background()
	cache := NewCache(client)

	keys := []string{SecurityKey("T-005930"), SecurityKey("T-000660"), SecurityKey("T-MISSING")}
	t.Cleanup(func() { _ = cache.Delete(context.Background(), keys...) })

	require.NoError(t, cache.SetMany(ctx, map[string]interface{}{
		keys[0]: security{Symbol: "005930", Sector: "IT"},
		keys[1]: security{Symbol: "000660", Sector: "IT"},
	}, time.Minute))

	var one security
	found, err := cache.Get(ctx, keys[0], &one)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "IT", one.Sector)

	got := make([]security, len(keys))
	misses, err := cache.GetMany(ctx, keys, func(i int, data []byte) error {
		return json.Unmarshal(data, &got[i])
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, misses)
	assert.Equal(t, "000660", got[1].Symbol)

	require.NoError(t, cache.Delete(ctx, keys[0]))
	found, err = cache.Get(ctx, keys[0], &one)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRateLimiter_Integration(t *testing.T) {
	client := newIntegrationClient(t)
	limiter := NewRateLimiter(client)
	cfg := RateLimitConfig{Key: "test-" + time.Now().Format("150405.000"), Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(context.Background(), cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}
