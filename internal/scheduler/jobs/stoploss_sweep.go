package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/pkg/logger"
)

// SweepStore 손절 점검 작업이 쓰는 저장소
type SweepStore interface {
	LoadSnapshot(ctx context.Context, date time.Time) (*contracts.Portfolio, time.Time, error)
	LoadBars(ctx context.Context, symbol string, until time.Time, lookback int) ([]portfolio.PriceBar, error)
	SaveOrders(ctx context.Context, orders []contracts.StopLossOrder) error
}

// StopLossSweepJob 장중 보유 종목 손절/익절 점검
// ⭐ SSOT: 정기 청산 점검은 이 Job에서만
type StopLossSweepJob struct {
	store    SweepStore
	engine   *stoploss.Engine
	book     *stoploss.ExitBook
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewStopLossSweepJob creates a new stop-loss sweep job
func NewStopLossSweepJob(store SweepStore, engine *stoploss.Engine, book *stoploss.ExitBook, schedule string, log *logger.Logger) *StopLossSweepJob {
	return &StopLossSweepJob{
		store:    store,
		engine:   engine,
		book:     book,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *StopLossSweepJob) Name() string {
	return "stoploss_sweep"
}

// Schedule returns the cron schedule (every 5 minutes during market hours)
func (j *StopLossSweepJob) Schedule() string {
	return j.schedule
}

// Run evaluates every held position with its latest price
func (j *StopLossSweepJob) Run(ctx context.Context) error {
	now := j.now()

	p, _, err := j.store.LoadSnapshot(ctx, now)
	if errors.Is(err, portfolio.ErrNoSnapshot) {
		j.logger.Debug("No portfolio snapshot, skipping sweep")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	held := make(map[string]struct{}, len(p.Positions))
	signalCount := 0

	for i := range p.Positions {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := p.Positions[i]
		held[pos.Symbol] = struct{}{}

		price, err := j.refresh(ctx, &pos, now)
		if err != nil {
			return err
		}

		sl, tp := j.book.For(pos.Symbol)
		signals, err := j.engine.ProcessPrice(&pos, price, sl, tp, now)
		if err != nil {
			return fmt.Errorf("process %s: %w", pos.Symbol, err)
		}
		for _, sig := range signals {
			if order, ok := j.engine.Registry().Get(sig.OrderID); ok {
				monitoring.RecordOrder(order)
			}
		}
		signalCount += len(signals)
	}

	// 더 이상 보유하지 않는 종목의 대기 주문 정리
	for _, sym := range j.engine.Registry().Symbols() {
		if _, ok := held[sym]; ok {
			continue
		}
		cancelled := j.engine.CancelAll(sym, "position no longer held")
		signalCount += len(cancelled)
		j.book.Reset(sym)
	}

	if err := j.store.SaveOrders(ctx, j.engine.Registry().All()); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"positions": len(p.Positions),
		"signals":   signalCount,
	}).Info("Stop-loss sweep completed")

	return nil
}

// refresh 최근 일봉으로 ATR/변동성 갱신, 최신 종가 반환 (없으면 스냅샷 현재가)
func (j *StopLossSweepJob) refresh(ctx context.Context, pos *contracts.Position, now time.Time) (float64, error) {
	bars, err := j.store.LoadBars(ctx, pos.Symbol, now, stoploss.DefaultATRPeriod+1)
	if err != nil {
		return 0, fmt.Errorf("load bars %s: %w", pos.Symbol, err)
	}
	if len(bars) == 0 {
		return pos.CurrentPrice, nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := portfolio.Closes(bars)
	for i, b := range bars {
		highs[i], lows[i] = b.High, b.Low
	}
	if atr := stoploss.ComputeATR(highs, lows, closes, stoploss.DefaultATRPeriod); atr > 0 {
		pos.ATR = atr
	}

	if returns, err := covariance.Returns(closes, covariance.SimpleReturns); err == nil {
		if vol := risk.StdDev(returns); vol > 0 {
			pos.Volatility = vol
		}
	}

	return closes[len(closes)-1], nil
}
