package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// staleAfter 마지막 리스크 평가 후 이 시간이 지나면 degraded
const staleAfter = 24 * time.Hour

// HealthChecker 엔진 상태 추적
type HealthChecker struct {
	mu             sync.RWMutex
	version        string
	lastEvaluation time.Time
	lastVaR        float64
	storeConnected bool
	errors         []string
}

// HealthStatus /health 응답
type HealthStatus struct {
	Status         string    `json:"status"`
	Version        string    `json:"version"`
	Timestamp      time.Time `json:"timestamp"`
	LastEvaluation time.Time `json:"last_evaluation"`
	LastVaR        float64   `json:"last_var"`
	StoreConnected bool      `json:"store_connected"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version: version,
		errors:  make([]string, 0),
	}
}

// MarkEvaluation 리스크 평가 완료 기록
func (h *HealthChecker) MarkEvaluation(at time.Time, portfolioVaR float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvaluation = at
	h.lastVaR = portfolioVaR
}

// SetStoreConnected 저장소 연결 상태
func (h *HealthChecker) SetStoreConnected(ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storeConnected = ok
}

// ReportError 에러 기록 (최근 10개)
func (h *HealthChecker) ReportError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// ClearErrors 에러 초기화
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

// Status 현재 상태
// 평가 이력이 없으면 healthy, 오래됐으면 degraded, 에러가 있으면 unhealthy
func (h *HealthChecker) Status(now time.Time) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.lastEvaluation.IsZero() && now.Sub(h.lastEvaluation) > staleAfter {
		status = "degraded"
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
	}

	errs := make([]string, len(h.errors))
	copy(errs, h.errors)

	return HealthStatus{
		Status:         status,
		Version:        h.version,
		Timestamp:      now,
		LastEvaluation: h.lastEvaluation,
		LastVaR:        h.lastVaR,
		StoreConnected: h.storeConnected,
		Uptime:         now.Sub(startTime).String(),
		Errors:         errs,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status(time.Now())

	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(health)
}
