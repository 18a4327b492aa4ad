package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/refdata"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/scheduler"
	"github.com/wonny/stockrisk/internal/scheduler/jobs"
	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/pkg/database"
	"github.com/wonny/stockrisk/pkg/logger"
)

const (
	version               = "1.0.0"
	defaultCheckpointPath = "data/orders.msgpack"
	refDataRefreshSpec    = "0 0 8 * * 1-5" // 장 시작 전
)

// services api/scheduler 가 공유하는 구성요소
// ⭐ 같은 프로세스의 API 와 스케줄러는 하나의 주문 레지스트리를 공유
type services struct {
	db         *database.DB
	repo       *portfolio.Repository // DB 없으면 nil
	source     refdata.Source        // 없으면 nil
	directory  *refdata.Directory
	calculator *risk.Calculator
	engine     *stoploss.Engine
	book       *stoploss.ExitBook
	health     *monitoring.HealthChecker
	checkpoint string
	closers    []func()
}

// buildServices DB → 참조 데이터 → 청산 엔진 순서로 조립
func (a *app) buildServices(ctx context.Context, refPath, checkpoint string) (*services, error) {
	s := &services{
		health:     monitoring.NewHealthChecker(version),
		checkpoint: checkpoint,
	}

	db, err := a.openDatabase()
	if err != nil {
		return nil, err
	}
	if db != nil {
		s.db = db
		s.closers = append(s.closers, db.Close)
		s.repo = portfolio.NewRepository(db.Pool)
		if err := s.repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure portfolio schema: %w", err)
		}
		status, err := db.HealthCheck(ctx, portfolio.SchemaName)
		if err != nil {
			a.log.WithError(err).Warn("Database health check failed")
		} else {
			a.log.WithFields(map[string]interface{}{
				"latency":         status.Latency.String(),
				"total_conns":     status.TotalConns,
				"missing_schemas": status.MissingSchemas,
			}).Debug("Database health checked")
		}
		s.health.SetStoreConnected(err == nil && status.Healthy)
	}

	source, closeSource, err := a.referenceSource(refPath, db)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, closeSource)
	s.source = source
	if repo, ok := source.(*refdata.Repository); ok {
		if err := repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure refdata schema: %w", err)
		}
	}

	symbols, err := s.heldSymbols(ctx)
	if err != nil {
		a.log.WithError(err).Warn("Failed to list held symbols")
	}
	s.directory = a.loadDirectory(ctx, source, symbols)
	s.calculator = a.runtime.Calculator(s.directory, s.directory, a.log)

	s.engine = stoploss.NewEngine(a.log)
	s.book = stoploss.NewExitBook(a.runtime.StopLoss, a.runtime.TakeProfit)
	if err := s.restoreOrders(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to restore stop orders")
		s.health.ReportError(err.Error())
	}
	a.log.WithField("orders", s.engine.Registry().Len()).Info("Stop order registry ready")

	return s, nil
}

// restoreOrders DB 의 활성 주문 우선, 없으면 체크포인트 파일
func (s *services) restoreOrders(ctx context.Context) error {
	if s.repo != nil {
		orders, err := s.repo.LoadOrders(ctx, true)
		if err != nil {
			return err
		}
		s.engine.Registry().Load(orders)
		return nil
	}
	if s.checkpoint == "" {
		return nil
	}
	_, err := jobs.RestoreCheckpoint(s.engine.Registry(), s.checkpoint)
	return err
}

// heldSymbols 최신 스냅샷 보유 종목 (DB 없으면 레지스트리 종목)
func (s *services) heldSymbols(ctx context.Context) ([]string, error) {
	if s.repo == nil {
		if s.engine == nil {
			return nil, nil
		}
		return s.engine.Registry().Symbols(), nil
	}

	p, _, err := s.repo.LoadSnapshot(ctx, time.Now())
	if errors.Is(err, portfolio.ErrNoSnapshot) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.Symbols(), nil
}

// flush 종료 전 주문 레지스트리 저장 (DB, 체크포인트)
func (s *services) flush(ctx context.Context) error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.SaveOrders(ctx, s.engine.Registry().All()); err != nil {
			errs = append(errs, fmt.Errorf("save orders: %w", err))
		}
	}
	if s.checkpoint != "" {
		if err := jobs.NewOrderCheckpointJob(s.engine.Registry(), s.checkpoint, logger.Nop()).Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 역순으로 자원 해제
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newScheduler 등록 가능한 작업만 등록한 스케줄러
//   - risk_snapshot, stoploss_sweep: DB 필요
//   - refdata_refresh: 참조 데이터 소스 필요
//   - order_checkpoint: 체크포인트 경로 필요
func (a *app) newScheduler(s *services, reportDir string) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(a.runtime.Profile.Meta.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.runtime.Profile.Meta.Timezone, err)
	}

	sched := scheduler.New(a.log,
		scheduler.WithLocation(loc),
		scheduler.WithRetry(2, 30*time.Second),
		scheduler.WithTimeout(5*time.Minute),
	)

	var list []scheduler.Job
	if s.repo != nil {
		list = append(list,
			jobs.NewRiskSnapshotJob(s.repo, s.calculator, a.runtime, s.health, a.cfg.Scheduler.RiskSnapshotSpec, reportDir, a.log),
			jobs.NewStopLossSweepJob(s.repo, s.engine, s.book, a.cfg.Scheduler.StopLossSweepSpec, a.log),
		)
	} else {
		a.log.Warn("DATABASE_URL not set, risk_snapshot and stoploss_sweep are disabled")
	}
	if s.source != nil {
		list = append(list, jobs.NewRefDataRefreshJob(s.directory, s.source, s.heldSymbols, refDataRefreshSpec, a.log))
	}
	if s.checkpoint != "" {
		list = append(list, jobs.NewOrderCheckpointJob(s.engine.Registry(), s.checkpoint, a.log))
	}

	for _, job := range list {
		if err := sched.AddJob(job); err != nil {
			return nil, fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}
	return sched, nil
}
