package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLDaily 섹터/평균 거래량 (하루 한 번 갱신되는 참조 데이터)
const TTLDaily = 24 * time.Hour

// SecurityKey 종목 참조 데이터 캐시 키
func SecurityKey(symbol string) string {
	return "refdata:security:" + symbol
}

// Cache JSON 값 캐시 ({namespace}:cache:{key})
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
}

// NewCache 새 캐시
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) key(k string) string {
	return c.client.Key("cache", k)
}

// Get 단건 조회 (미스 → false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// GetMany MGET 한 번으로 조회, 찾은 값마다 decode(i, data) 호출
// 반환값은 미스(또는 decode 실패) 인덱스
// 비활성/조회 실패 시 전부 미스
func (c *Cache) GetMany(ctx context.Context, keys []string, decode func(i int, data []byte) error) ([]int, error) {
	misses := make([]int, 0, len(keys))
	if !c.client.Enabled() || len(keys) == 0 {
		for i := range keys {
			misses = append(misses, i)
		}
		return misses, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	values, err := c.client.Redis().MGet(ctx, full...).Result()
	if err != nil {
		for i := range keys {
			misses = append(misses, i)
		}
		return misses, fmt.Errorf("cache mget: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok || decode(i, []byte(s)) != nil {
			misses = append(misses, i)
		}
	}
	return misses, nil
}

// Set 단건 기록
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.SetMany(ctx, map[string]interface{}{key: value}, ttl)
}

// SetMany 파이프라인 한 번으로 기록
func (c *Cache) SetMany(ctx context.Context, values map[string]interface{}, ttl time.Duration) error {
	if !c.client.Enabled() || len(values) == 0 {
		return nil
	}

	pipe := c.client.Redis().Pipeline()
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("cache encode %s: %w", k, err)
		}
		pipe.Set(ctx, c.key(k), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete 삭제 (참조 데이터 강제 갱신)
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.client.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Redis().Del(ctx, full...).Err()
}
