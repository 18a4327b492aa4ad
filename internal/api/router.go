package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/stockrisk/internal/api/handlers"
	"github.com/wonny/stockrisk/pkg/logger"
)

// Handlers 라우터가 연결하는 핸들러 묶음
// Health/Metrics 가 nil 이면 기본 응답/미노출
type Handlers struct {
	Risk     *handlers.RiskHandler
	Sizing   *handlers.SizingHandler
	StopLoss *handlers.StopLossHandler
	Health   http.Handler
	Metrics  http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	if h.Health != nil {
		r.Handle("/health", h.Health).Methods("GET")
	} else {
		r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	}

	// Prometheus
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Risk endpoints
	api.HandleFunc("/risk/metrics", h.Risk.Metrics).Methods("POST")
	api.HandleFunc("/risk/report", h.Risk.Report).Methods("POST")
	api.HandleFunc("/risk/montecarlo", h.Risk.MonteCarlo).Methods("POST")
	api.HandleFunc("/risk/latest", h.Risk.Latest).Methods("GET")

	// Sizing endpoints
	api.HandleFunc("/sizing/kelly", h.Sizing.Kelly).Methods("POST")
	api.HandleFunc("/sizing/volatility", h.Sizing.Volatility).Methods("POST")
	api.HandleFunc("/sizing/risk-parity", h.Sizing.RiskParity).Methods("POST")
	api.HandleFunc("/sizing/adjust", h.Sizing.Adjust).Methods("POST")

	// Stop-loss endpoints
	api.HandleFunc("/stoploss/evaluate", h.StopLoss.Evaluate).Methods("POST")
	api.HandleFunc("/stoploss/orders", h.StopLoss.ListOrders).Methods("GET")
	api.HandleFunc("/stoploss/orders/{id}/cancel", h.StopLoss.CancelOrder).Methods("POST")
	api.HandleFunc("/stoploss/orders/{id}/execute", h.StopLoss.ExecuteOrder).Methods("POST")
	api.HandleFunc("/stoploss/statistics", h.StopLoss.Statistics).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stockrisk-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
