package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/stockrisk/pkg/config"
)

// DefaultNamespace 모든 키의 접두어
const DefaultNamespace = "stockrisk"

// 캐시 조회가 리스크 계산을 붙잡지 않도록 짧게
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = time.Second
	pingTimeout = 3 * time.Second
)

// Client go-redis 래퍼
// ⭐ SSOT: Redis 연결은 여기서만 관리
// 비활성 클라이언트는 캐시 미스, 무제한 한도로 동작
type Client struct {
	rdb       *redis.Client
	namespace string
}

// New 설정으로 연결 (REDIS_ENABLED=false 면 비활성 클라이언트)
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return Disabled(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, namespace: DefaultNamespace}, nil
}

// Disabled 연결 없는 클라이언트
func Disabled() *Client {
	return &Client{namespace: DefaultNamespace}
}

// Enabled 연결 여부
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Close 연결 종료 (비활성이면 no-op)
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// Key {namespace}:{parts...}
func (c *Client) Key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Redis 내부 go-redis 클라이언트 (비활성이면 nil)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
