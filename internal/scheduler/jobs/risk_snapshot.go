package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/report"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/strategyconfig"
	"github.com/wonny/stockrisk/pkg/logger"
)

// defaultLookback 수익률 관측 기간 (거래일)
const defaultLookback = 252

// SnapshotStore 리스크 스냅샷 작업이 쓰는 저장소
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, date time.Time) (*contracts.Portfolio, time.Time, error)
	LoadPriceSeries(ctx context.Context, symbols []string, until time.Time, lookback int) ([]covariance.PriceSeries, error)
	SaveRiskReport(ctx context.Context, report portfolio.RiskReport) error
}

// RiskSnapshotJob 장 마감 후 포트폴리오 리스크 평가/저장
// ⭐ SSOT: 정기 리스크 평가 스케줄은 이 Job에서만
type RiskSnapshotJob struct {
	store       SnapshotStore
	calculator  *risk.Calculator
	runtime     *strategyconfig.Runtime
	health      *monitoring.HealthChecker
	schedule    string
	reportDir   string
	lookback    int
	profileHash string
	now         func() time.Time
	logger      *logger.Logger
}

// NewRiskSnapshotJob creates a new risk snapshot job
// reportDir 가 비어있지 않으면 xlsx 리포트도 저장
func NewRiskSnapshotJob(
	store SnapshotStore,
	calc *risk.Calculator,
	rt *strategyconfig.Runtime,
	health *monitoring.HealthChecker,
	schedule, reportDir string,
	log *logger.Logger,
) *RiskSnapshotJob {
	hash, err := strategyconfig.Hash(rt.Profile)
	if err != nil {
		log.WithError(err).Warn("Failed to hash risk profile")
	}
	return &RiskSnapshotJob{
		store:       store,
		calculator:  calc,
		runtime:     rt,
		health:      health,
		schedule:    schedule,
		reportDir:   reportDir,
		lookback:    defaultLookback,
		profileHash: hash,
		now:         time.Now,
		logger:      log,
	}
}

// Name returns the job name
func (j *RiskSnapshotJob) Name() string {
	return "risk_snapshot"
}

// Schedule returns the cron schedule (weekdays after market close)
func (j *RiskSnapshotJob) Schedule() string {
	return j.schedule
}

// Run evaluates the latest portfolio snapshot
func (j *RiskSnapshotJob) Run(ctx context.Context) error {
	now := j.now()

	p, date, err := j.store.LoadSnapshot(ctx, now)
	if errors.Is(err, portfolio.ErrNoSnapshot) {
		j.logger.Warn("No portfolio snapshot to evaluate")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	p.Recalculate()

	series, err := j.store.LoadPriceSeries(ctx, p.Symbols(), date, j.lookback+1)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	assetReturns := j.assetReturns(series)

	if len(assetReturns) > 0 {
		portfolioReturns := risk.PortfolioReturns(p.Weights(), assetReturns)
		risk.ApplyPerformance(p, portfolioReturns, j.runtime.Params.RiskFreeRate)
	}

	start := time.Now()
	metrics, err := j.calculator.Calculate(ctx, risk.CalculationInput{
		Portfolio:    p,
		AssetReturns: assetReturns,
		Confidence:   j.runtime.Confidence,
	})
	monitoring.ObserveDuration("risk_snapshot", start)
	if err != nil {
		return fmt.Errorf("calculate risk: %w", err)
	}

	limits := risk.CheckLimits(p, metrics, j.runtime.Limits)
	gate := j.runtime.Gate.Check(p, metrics)
	stress := risk.StressTest(p, j.runtime.Scenarios, j.runtime.Limits.MaxDrawdown)

	err = j.store.SaveRiskReport(ctx, portfolio.RiskReport{
		Date:        date,
		ProfileHash: j.profileHash,
		Metrics:     metrics,
		Violations:  limits.Violations,
	})
	if err != nil {
		return fmt.Errorf("save risk report: %w", err)
	}

	monitoring.RecordRiskMetrics(metrics)
	monitoring.RecordViolations(limits.Violations)
	monitoring.RecordGate(gate)
	if j.health != nil {
		j.health.MarkEvaluation(metrics.CalculatedAt, metrics.PortfolioVaR)
	}

	if j.reportDir != "" {
		path := filepath.Join(j.reportDir, fmt.Sprintf("risk_%s.xlsx", date.Format("20060102")))
		err := report.NewExcelWriter().WriteFile(&report.RiskReport{
			ProfileID:   j.runtime.Profile.Meta.ProfileID,
			GeneratedAt: metrics.CalculatedAt,
			Portfolio:   p,
			Metrics:     metrics,
			Limits:      limits,
			Stress:      stress,
		}, path)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"date":       date.Format("2006-01-02"),
		"positions":  len(p.Positions),
		"var":        fmt.Sprintf("%.4f", metrics.PortfolioVaR),
		"passed":     limits.Passed,
		"violations": len(limits.Violations),
	}).Info("Risk snapshot completed")

	return nil
}

// assetReturns 종목별 수익률 (길이는 가장 짧은 시계열에 맞춤)
// 한 종목이라도 수익률을 만들 수 없으면 nil (비례 기여도로 대체)
func (j *RiskSnapshotJob) assetReturns(series []covariance.PriceSeries) [][]float64 {
	if len(series) == 0 {
		return nil
	}

	returnType := covariance.SimpleReturns
	if j.runtime.Estimator != nil && j.runtime.Estimator.ReturnType != "" {
		returnType = j.runtime.Estimator.ReturnType
	}

	out := make([][]float64, len(series))
	minLen := -1
	for i, s := range series {
		r, err := covariance.Returns(s.Prices, returnType)
		if err != nil || len(r) < 2 {
			j.logger.WithSymbol(s.Symbol).Debug("Insufficient price history, skipping returns")
			return nil
		}
		out[i] = r
		if minLen < 0 || len(r) < minLen {
			minLen = len(r)
		}
	}
	for i := range out {
		out[i] = out[i][len(out[i])-minLen:]
	}
	return out
}
