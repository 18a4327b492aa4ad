package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 즉시 실행
- 최근 리스크 평가/주문 상태 조회

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)
  status  - 작업/리스크/주문 상태 조회

Example:
  go run ./cmd/riskctl scheduler start
  go run ./cmd/riskctl scheduler list
  go run ./cmd/riskctl scheduler run risk_snapshot`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록 가능한 모든 작업을 스케줄합니다.

등록되는 작업 (프로파일 timezone 기준):
- risk_snapshot: 평일 15:30 (장 마감 후 리스크 평가, DB 필요)
- stoploss_sweep: 평일 9-15시 5분마다 (손절/익절 점검, DB 필요)
- refdata_refresh: 평일 08:00 (섹터/거래량 갱신, 소스 필요)
- order_checkpoint: 5분마다 (주문 레지스트리 파일 저장)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업/리스크/주문 상태 조회",
		RunE:  showStatus,
	}
)

var (
	schedulerRefData    string
	schedulerCheckpoint string
	schedulerReportDir  string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerRefData, "refdata", "", "참조 데이터 YAML (섹터/평균 거래량)")
	schedulerCmd.PersistentFlags().StringVar(&schedulerCheckpoint, "checkpoint", defaultCheckpointPath, "주문 레지스트리 체크포인트 파일 (빈 값이면 사용 안 함)")
	schedulerCmd.PersistentFlags().StringVar(&schedulerReportDir, "report-dir", "", "risk_snapshot xlsx 저장 디렉터리")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== StockRisk Scheduler ===")

	a, err := bootstrapDaemon()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := a.buildServices(ctx, schedulerRefData, schedulerCheckpoint)
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := a.newScheduler(svc, schedulerReportDir)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	if err := svc.flush(context.Background()); err != nil {
		a.log.WithError(err).Error("Failed to flush stop orders")
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := a.buildServices(ctx, schedulerRefData, schedulerCheckpoint)
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := a.newScheduler(svc, schedulerReportDir)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	t := newTable("Registered Jobs", table.Row{"Job", "Schedule"})
	for _, name := range sched.GetAllJobs() {
		t.AppendRow(table.Row{name, stats[name].Schedule})
	}
	t.Render()
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := a.buildServices(ctx, schedulerRefData, schedulerCheckpoint)
	if err != nil {
		return err
	}
	defer svc.Close()

	sched, err := a.newScheduler(svc, schedulerReportDir)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", jobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := a.buildServices(ctx, schedulerRefData, schedulerCheckpoint)
	if err != nil {
		return err
	}
	defer svc.Close()

	PrintHeader("Status", a.runtime.Profile.Meta.ProfileID)

	if svc.repo != nil {
		rep, err := svc.repo.LatestRiskReport(ctx)
		if err != nil {
			return fmt.Errorf("load latest risk report: %w", err)
		}
		if rep == nil || rep.Metrics == nil {
			PrintInfo("No risk report yet")
		} else {
			renderKeyValues("Latest Risk Report", []table.Row{
				{"Date", rep.Date.Format("2006-01-02 15:04")},
				{"Profile Hash", shortID(rep.ProfileHash)},
				{fmt.Sprintf("VaR (%.0f%%)", rep.Metrics.Confidence*100), pct(rep.Metrics.PortfolioVaR)},
				{"Expected Shortfall", pct(rep.Metrics.ExpectedShortfall)},
				{"Violations", len(rep.Violations)},
			})
			PrintList(violationMessages(rep.Violations))
		}
	} else {
		PrintWarning("DATABASE_URL not set, risk reports are not persisted")
	}

	stats := svc.engine.Statistics()
	renderKeyValues("Stop Orders", []table.Row{
		{"Total", stats.TotalOrders},
		{"Pending", stats.PendingOrders},
		{"Triggered", stats.TriggeredOrders},
		{"Executed", stats.ExecutedOrders},
		{"Cancelled", stats.CancelledOrders},
		{"Success Rate", pct(stats.SuccessRate)},
	})
	return nil
}
