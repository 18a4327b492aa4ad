package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/portfolio"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "포트폴리오/가격 데이터 적재",
	Long: `스케줄러 작업이 읽는 포트폴리오 스냅샷과 일별 가격을 DB 에 적재합니다.
DATABASE_URL 이 필요합니다.

Subcommands:
  snapshot  - 포트폴리오 스냅샷 저장
  prices    - 일별 가격 저장 ({"005930": [{"date": "...", "close": 70000}]})

Example:
  go run ./cmd/riskctl import snapshot --input portfolio.json --date 2026-01-02
  go run ./cmd/riskctl import prices --input prices.json`,
}

var (
	importSnapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "포트폴리오 스냅샷 저장",
		RunE:  importSnapshot,
	}

	importPricesCmd = &cobra.Command{
		Use:   "prices",
		Short: "일별 가격 저장",
		RunE:  importPrices,
	}
)

var (
	importInput string
	importDate  string
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importSnapshotCmd)
	importCmd.AddCommand(importPricesCmd)

	importCmd.PersistentFlags().StringVarP(&importInput, "input", "i", "", "입력 JSON 파일 (- 이면 stdin)")
	importSnapshotCmd.Flags().StringVar(&importDate, "date", "", "스냅샷 날짜 YYYY-MM-DD (기본 오늘)")
}

// openRepository import 커맨드용 저장소 (DB 필수)
func (a *app) openRepository(ctx context.Context) (*portfolio.Repository, func(), error) {
	db, err := a.openDatabase()
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for import")
	}

	repo := portfolio.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure portfolio schema: %w", err)
	}
	return repo, db.Close, nil
}

func importSnapshot(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	date := time.Now()
	if importDate != "" {
		date, err = time.Parse("2006-01-02", importDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	var p contracts.Portfolio
	if err := readJSON(importInput, &p); err != nil {
		return err
	}
	p.Recalculate()
	if err := p.Validate(0); err != nil {
		return fmt.Errorf("invalid portfolio: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, closeDB, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.SaveSnapshot(ctx, date, &p); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Snapshot %s saved: %d positions, total %s",
		date.Format("2006-01-02"), len(p.Positions), money(p.TotalValue)))
	return nil
}

func importPrices(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var bars map[string][]portfolio.PriceBar
	if err := readJSON(importInput, &bars); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, closeDB, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	symbols := make([]string, 0, len(bars))
	for sym := range bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	total := 0
	for _, sym := range symbols {
		if err := repo.SavePrices(ctx, sym, bars[sym]); err != nil {
			return fmt.Errorf("save prices %s: %w", sym, err)
		}
		total += len(bars[sym])
	}

	PrintSuccess(fmt.Sprintf("Saved %d bars for %d symbols", total, len(symbols)))
	return nil
}
