package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockrisk/internal/api"
	"github.com/wonny/stockrisk/internal/api/handlers"
	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/scheduler"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 리스크 측정 / 포지션 사이징 / 손절·익절 엔드포인트 제공
- DATABASE_URL 이 있으면 리스크 리포트와 주문을 DB 에 저장
- --with-scheduler 로 같은 프로세스에서 스케줄러도 실행

Endpoints:
  GET  /health                          - Health check
  GET  /metrics                         - Prometheus metrics
  POST /api/risk/metrics                - 리스크 지표 + 한도 + 스트레스
  POST /api/risk/report                 - xlsx 리스크 리포트
  POST /api/risk/montecarlo             - Monte Carlo VaR
  GET  /api/risk/latest                 - 최근 저장된 리스크 리포트
  POST /api/sizing/kelly                - Kelly 사이징
  POST /api/sizing/volatility           - 변동성 타겟 사이징
  POST /api/sizing/risk-parity          - 리스크 패리티
  POST /api/stoploss/evaluate           - 손절/익절 평가
  GET  /api/stoploss/orders             - 주문 조회
  POST /api/stoploss/orders/{id}/cancel - 주문 취소
  POST /api/stoploss/orders/{id}/execute - 주문 체결 처리
  GET  /api/stoploss/statistics         - 주문 통계

Example:
  go run ./cmd/riskctl api
  go run ./cmd/riskctl api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiRefData       string
	apiCheckpoint    string
	apiWithScheduler bool
	apiReportDir     string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본 PORT)")
	apiCmd.Flags().StringVar(&apiRefData, "refdata", "", "참조 데이터 YAML (섹터/평균 거래량)")
	apiCmd.Flags().StringVar(&apiCheckpoint, "checkpoint", defaultCheckpointPath, "주문 레지스트리 체크포인트 파일 (빈 값이면 사용 안 함)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러 함께 실행")
	apiCmd.Flags().StringVar(&apiReportDir, "report-dir", "", "risk_snapshot xlsx 저장 디렉터리")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== StockRisk API Server ===")

	// 1. Load config + logger + risk profile
	a, err := bootstrapDaemon()
	if err != nil {
		return err
	}

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"profile": a.runtime.Profile.Meta.ProfileID,
	}).Info("Initializing API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Shared services (DB, reference data, stop-loss engine)
	svc, err := a.buildServices(ctx, apiRefData, apiCheckpoint)
	if err != nil {
		return err
	}
	defer svc.Close()

	// 3. Handlers (nil 저장소는 nil 인터페이스로 전달)
	var (
		reportStore handlers.ReportStore
		orderStore  handlers.OrderStore
	)
	if svc.repo != nil {
		reportStore = svc.repo
		orderStore = svc.repo
	}

	h := api.Handlers{
		Risk:     handlers.NewRiskHandler(a.runtime, svc.calculator, svc.engine, reportStore, svc.health, a.log),
		Sizing:   handlers.NewSizingHandler(a.runtime, a.log),
		StopLoss: handlers.NewStopLossHandler(svc.engine, svc.book, orderStore, a.log),
		Health:   svc.health,
	}

	// 4. Metrics (별도 포트가 지정되면 분리)
	var metricsServer *http.Server
	if a.cfg.MetricsEnabled {
		if a.cfg.MetricsPort == "" || a.cfg.MetricsPort == a.cfg.Port {
			h.Metrics = monitoring.NewMetricsHandler()
		} else {
			metricsServer = &http.Server{
				Addr:              ":" + a.cfg.MetricsPort,
				Handler:           monitoring.NewMetricsHandler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.log.WithError(err).Error("Metrics server failed")
				}
			}()
			a.log.WithField("port", a.cfg.MetricsPort).Info("Metrics server started")
		}
	}

	// 5. Optional scheduler sharing the same engine
	var sched *scheduler.Scheduler
	if apiWithScheduler && a.cfg.Scheduler.Enabled {
		sched, err = a.newScheduler(svc, apiReportDir)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		a.log.WithField("jobs", sched.GetAllJobs()).Info("Scheduler started")
	}

	// 6. Router + server
	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	err = server.Run(ctx)

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if ferr := svc.flush(shutdownCtx); ferr != nil {
		a.log.WithError(ferr).Error("Failed to flush stop orders")
	}

	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	a.log.Info("Server stopped")
	return nil
}
