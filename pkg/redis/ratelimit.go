package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig 슬라이딩 윈도우 한도
type RateLimitConfig struct {
	Key    string        // 한도 이름 (refdata)
	Limit  int           // 윈도우당 최대 요청
	Window time.Duration // 윈도우 길이
}

// RefDataRateLimit 참조 데이터 API 기본 한도 (초당 5회, 보수적)
// 설정의 RefData.RateLimit 이 1 이상이면 Limit 을 덮어씀
var RefDataRateLimit = RateLimitConfig{
	Key:    "refdata",
	Limit:  5,
	Window: time.Second,
}

// slidingWindow ZSET 윈도우 정리 → 개수 확인 → 기록을 원자적으로
// 반환: {허용 여부, 남은 요청 수}
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
local count = redis.call('ZCARD', key)
if count >= limit then
	return {0, 0}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window_ms)
return {1, limit - count - 1}
`)

// RateLimiter Redis 슬라이딩 윈도우 레이트 리미터
// API 서버와 스케줄러가 같은 외부 API 한도를 나눠 씀
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	seq    atomic.Uint64
}

// NewRateLimiter 새 레이트 리미터 ({namespace}:ratelimit:{key})
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow 요청 1건 허용 여부와 남은 요청 수
// Redis 비활성이면 항상 허용
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	now := time.Now().UnixMilli()
	// 같은 밀리초 요청도 별도 멤버로 세어야 함
	member := fmt.Sprintf("%d-%d", now, r.seq.Add(1))

	result, err := slidingWindow.Run(ctx, r.client.Redis(),
		[]string{r.client.Key("ratelimit", cfg.Key)},
		now, cfg.Window.Milliseconds(), cfg.Limit, member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	return result[0] == 1, int(result[1]), nil
}

// Wait 허용될 때까지 대기 (윈도우/한도 간격으로 재시도)
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	interval := pollInterval(cfg)
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// pollInterval Window/Limit 를 [10ms, 1s] 로 자름
func pollInterval(cfg RateLimitConfig) time.Duration {
	interval := time.Second
	if cfg.Limit > 0 {
		interval = cfg.Window / time.Duration(cfg.Limit)
	}
	switch {
	case interval < 10*time.Millisecond:
		return 10 * time.Millisecond
	case interval > time.Second:
		return time.Second
	}
	return interval
}
