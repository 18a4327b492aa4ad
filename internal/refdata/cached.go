package refdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wonny/stockrisk/pkg/logger"
	"github.com/wonny/stockrisk/pkg/redis"
)

// CachedSource Redis 캐시를 앞에 둔 Source
// 캐시 미스 종목만 upstream 에서 가져와 캐시에 기록
type CachedSource struct {
	upstream Source
	cache    *redis.Cache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewCachedSource creates a cached source (ttl 0 → TTLDaily)
func NewCachedSource(upstream Source, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{upstream: upstream, cache: cache, ttl: ttl, logger: log.Component("refdata")}
}

// Fetch implements Source
// 캐시 오류는 경고만 남기고 upstream 으로 진행
func (c *CachedSource) Fetch(ctx context.Context, symbols []string) ([]Record, error) {
	if len(symbols) == 0 {
		return c.upstream.Fetch(ctx, symbols)
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = redis.SecurityKey(sym)
	}

	cached := make([]Record, len(symbols))
	missIdx, err := c.cache.GetMany(ctx, keys, func(i int, data []byte) error {
		return json.Unmarshal(data, &cached[i])
	})
	if err != nil {
		c.logger.WithError(err).Warn("Reference data cache read failed")
	}

	isMiss := make(map[int]bool, len(missIdx))
	misses := make([]string, 0, len(missIdx))
	for _, i := range missIdx {
		isMiss[i] = true
		misses = append(misses, symbols[i])
	}
	out := make([]Record, 0, len(symbols))
	for i := range symbols {
		if !isMiss[i] {
			out = append(out, cached[i])
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.upstream.Fetch(ctx, misses)
	if err != nil {
		return out, err
	}
	values := make(map[string]interface{}, len(fetched))
	for _, rec := range fetched {
		values[redis.SecurityKey(rec.Symbol)] = rec
	}
	if err := c.cache.SetMany(ctx, values, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Reference data cache write failed")
	}

	c.logger.WithFields(map[string]interface{}{
		"hits":   len(out),
		"misses": len(misses),
	}).Debug("Reference data fetched")

	return append(out, fetched...), nil
}

// Invalidate 종목 캐시 삭제 (일일 갱신 전에 호출해 upstream 을 다시 읽게 함)
func (c *CachedSource) Invalidate(ctx context.Context, symbols []string) error {
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = redis.SecurityKey(sym)
	}
	return c.cache.Delete(ctx, keys...)
}
