package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/refdata"
	"github.com/wonny/stockrisk/pkg/logger"
)

// SymbolsFunc 갱신 대상 종목 목록
type SymbolsFunc func(ctx context.Context) ([]string, error)

// invalidator 캐시를 앞에 둔 Source (refdata.CachedSource)
type invalidator interface {
	Invalidate(ctx context.Context, symbols []string) error
}

// RefDataRefreshJob 섹터/거래량 참조 데이터 갱신
type RefDataRefreshJob struct {
	directory *refdata.Directory
	source    refdata.Source
	symbols   SymbolsFunc
	schedule  string
	logger    *logger.Logger
}

// NewRefDataRefreshJob creates a new reference data refresh job
func NewRefDataRefreshJob(dir *refdata.Directory, source refdata.Source, symbols SymbolsFunc, schedule string, log *logger.Logger) *RefDataRefreshJob {
	return &RefDataRefreshJob{
		directory: dir,
		source:    source,
		symbols:   symbols,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *RefDataRefreshJob) Name() string {
	return "refdata_refresh"
}

// Schedule returns the cron schedule (before market open)
func (j *RefDataRefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes the directory from the source
func (j *RefDataRefreshJob) Run(ctx context.Context) error {
	symbols, err := j.symbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}

	// 캐시를 비워야 upstream 의 새 값이 들어옴
	if inv, ok := j.source.(invalidator); ok {
		if err := inv.Invalidate(ctx, symbols); err != nil {
			j.logger.WithError(err).Warn("Reference data cache invalidation failed")
		}
	}

	n, err := j.directory.Refresh(ctx, j.source, symbols)
	if err != nil {
		monitoring.RecordError("refdata")
		return err
	}

	missing := j.directory.Missing(symbols)
	entry := j.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"updated":   n,
		"missing":   len(missing),
	})
	if len(missing) > 0 {
		entry.Warn("Reference data refreshed with gaps")
	} else {
		entry.Info("Reference data refreshed")
	}
	return nil
}
