package refdata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/httputil"
	"github.com/wonny/stockrisk/pkg/logger"
	"github.com/wonny/stockrisk/pkg/redis"
)

// HTTPSource 참조 데이터 REST API
//
//	GET {base}/securities/{symbol} → {"symbol","name","sector","average_volume"}
type HTTPSource struct {
	client  *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewHTTPSource 설정으로 생성 (로컬 토큰 버킷 + 재시도)
func NewHTTPSource(cfg *config.Config, log *logger.Logger) *HTTPSource {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("refdata")
	return &HTTPSource{
		client:  httputil.New(cfg.RefData, log),
		baseURL: cfg.RefData.BaseURL,
		logger:  log,
	}
}

// WithSharedLimiter 여러 프로세스가 같은 API 한도를 나눠 쓸 때 (Redis 슬라이딩 윈도우)
// 로컬 토큰 버킷과 함께 적용
func (s *HTTPSource) WithSharedLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *HTTPSource {
	s.client.WithSharedLimiter(limiter, cfg)
	return s
}

// Fetch implements Source
// 없는 종목(404)은 건너뜀, symbols 가 비면 빈 결과
func (s *HTTPSource) Fetch(ctx context.Context, symbols []string) ([]Record, error) {
	if s.baseURL == "" {
		return nil, errors.New("reference data base URL is not configured")
	}

	out := make([]Record, 0, len(symbols))
	for _, sym := range symbols {
		var rec Record
		endpoint := fmt.Sprintf("%s/securities/%s", s.baseURL, url.PathEscape(sym))

		err := s.client.GetJSON(ctx, endpoint, &rec)
		if httputil.IsNotFound(err) {
			s.logger.WithSymbol(sym).Warn("Reference data not found")
			continue
		}
		if err != nil {
			return out, fmt.Errorf("fetch %s: %w", sym, err)
		}

		if rec.Symbol == "" {
			rec.Symbol = sym
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = time.Now()
		}
		out = append(out, rec)
	}
	return out, nil
}
