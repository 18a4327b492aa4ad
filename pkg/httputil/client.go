package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/logger"
	"github.com/wonny/stockrisk/pkg/redis"
)

// Client 참조 데이터 REST API 호출용 HTTP 클라이언트
// ⭐ SSOT: 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	retry      RetryPolicy
	local      *rate.Limiter
	shared     *redis.RateLimiter
	sharedCfg  redis.RateLimitConfig
	header     http.Header
}

// RetryPolicy 재시도 정책 (MaxRetries 0 → 재시도 없음)
// 지연은 InitialDelay 부터 두 배씩, MaxDelay 에서 멈춤
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy 참조 데이터 기본 재시도
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   2,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

const defaultTimeout = 10 * time.Second

// New 참조 데이터 설정으로 생성
//   - Timeout ≤ 0 → 10초
//   - RateLimit ≤ 0 → 로컬 한도 없음, Burst < 1 → 1
//   - APIKey 가 있으면 X-API-Key 헤더
func New(rc config.RefDataConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		retry:      DefaultRetryPolicy,
		header:     make(http.Header),
	}
	if rc.RateLimit > 0 {
		burst := rc.Burst
		if burst < 1 {
			burst = 1
		}
		c.local = rate.NewLimiter(rate.Limit(rc.RateLimit), burst)
	}
	if rc.APIKey != "" {
		c.header.Set("X-API-Key", rc.APIKey)
	}
	return c
}

// WithRetry 재시도 정책 교체
func (c *Client) WithRetry(policy RetryPolicy) *Client {
	c.retry = policy
	return c
}

// WithSharedLimiter 여러 프로세스가 나눠 쓰는 Redis 슬라이딩 윈도우 한도
// 로컬 토큰 버킷 다음에 적용
func (c *Client) WithSharedLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.shared = limiter
	c.sharedCfg = cfg
	return c
}

// StatusError non-2xx 응답
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound 404 응답 여부 (없는 종목)
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// IsRetryableStatus 5xx, 429 만 재시도
func IsRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// GetJSON GET 후 2xx JSON 본문을 dest 로 디코드
func (c *Client) GetJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	delay := c.retry.InitialDelay
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, v := range c.header {
			req.Header[k] = v
		}

		resp, err := c.httpClient.Do(req)
		retryable := err != nil && ctx.Err() == nil
		if err == nil {
			retryable = IsRetryableStatus(resp.StatusCode)
		}

		if !retryable || attempt >= c.retry.MaxRetries {
			c.logResult(url, resp, err, attempt, time.Since(start))
			return resp, err
		}

		wait := delay
		if resp != nil {
			wait = retryAfter(resp, delay, c.retry.MaxDelay)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}

		c.logger.WithFields(map[string]interface{}{
			"url":     url,
			"attempt": attempt + 1,
			"delay":   wait.String(),
		}).Warn("Retrying reference data request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.local != nil {
		if err := c.local.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, c.sharedCfg); err != nil {
			return fmt.Errorf("shared rate limit wait: %w", err)
		}
	}
	return nil
}

func (c *Client) logResult(url string, resp *http.Response, err error, retries int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"url":      url,
		"retries":  retries,
		"duration": elapsed.String(),
	}
	if err != nil {
		c.logger.WithError(err).WithFields(fields).Warn("Reference data request failed")
		return
	}
	fields["status"] = resp.StatusCode
	c.logger.WithFields(fields).Debug("Reference data request completed")
}

// retryAfter 429 의 Retry-After(초)를 따르되 max 로 자름
func retryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return fallback
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return fallback
	}
	wait := time.Duration(secs) * time.Second
	if max > 0 && wait > max {
		wait = max
	}
	return wait
}
