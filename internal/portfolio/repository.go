package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/risk"
)

// ErrNoSnapshot 요청 시점 이전 스냅샷 없음
var ErrNoSnapshot = errors.New("no portfolio snapshot")

// Repository handles portfolio data persistence
// ⭐ SSOT: 포트폴리오/가격/손절 주문/리스크 리포트 저장은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =============================================================================
// Portfolio snapshots
// =============================================================================

// SaveSnapshot 날짜별 포트폴리오 스냅샷 저장 (같은 날짜는 덮어씀)
func (r *Repository) SaveSnapshot(ctx context.Context, date time.Time, p *contracts.Portfolio) error {
	// Begin transaction
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	summaryQuery := `
		INSERT INTO portfolio.snapshots (
			snapshot_date, total_value, cash, market_value, daily_return,
			total_return, volatility, sharpe_ratio, max_drawdown, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			cash = EXCLUDED.cash,
			market_value = EXCLUDED.market_value,
			daily_return = EXCLUDED.daily_return,
			total_return = EXCLUDED.total_return,
			volatility = EXCLUDED.volatility,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			created_at = NOW()
	`
	_, err = tx.Exec(ctx, summaryQuery,
		date, p.TotalValue, p.Cash, p.MarketValue, p.DailyReturn,
		p.TotalReturn, p.Volatility, p.SharpeRatio, p.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}

	// Delete existing positions for the date
	if _, err := tx.Exec(ctx, "DELETE FROM portfolio.positions WHERE snapshot_date = $1", date); err != nil {
		return fmt.Errorf("failed to delete old positions: %w", err)
	}

	positionQuery := `
		INSERT INTO portfolio.positions (
			snapshot_date, symbol, quantity, avg_price, current_price, market_value,
			weight, unrealized_pnl, unrealized_pnl_pct, open_date,
			highest_price, lowest_price, atr, volatility
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, pos := range p.Positions {
		var openDate *time.Time
		if !pos.OpenDate.IsZero() {
			d := pos.OpenDate
			openDate = &d
		}
		_, err := tx.Exec(ctx, positionQuery,
			date, pos.Symbol, pos.Quantity, pos.AveragePrice, pos.CurrentPrice, pos.MarketValue,
			pos.Weight, pos.UnrealizedPnL, pos.UnrealizedPnLPercent, openDate,
			pos.HighestPrice, pos.LowestPrice, pos.ATR, pos.Volatility,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.Symbol, err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadSnapshot date 이전(포함) 가장 최근 스냅샷
func (r *Repository) LoadSnapshot(ctx context.Context, date time.Time) (*contracts.Portfolio, time.Time, error) {
	var (
		p        contracts.Portfolio
		snapDate time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT snapshot_date, total_value, cash, market_value, daily_return,
		       total_return, volatility, sharpe_ratio, max_drawdown
		FROM portfolio.snapshots
		WHERE snapshot_date <= $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, date).Scan(
		&snapDate, &p.TotalValue, &p.Cash, &p.MarketValue, &p.DailyReturn,
		&p.TotalReturn, &p.Volatility, &p.SharpeRatio, &p.MaxDrawdown,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("%w on or before %s", ErrNoSnapshot, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get portfolio snapshot: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT symbol, quantity, avg_price, current_price, market_value, weight,
		       unrealized_pnl, unrealized_pnl_pct, open_date,
		       highest_price, lowest_price, atr, volatility
		FROM portfolio.positions
		WHERE snapshot_date = $1
		ORDER BY market_value DESC
	`, snapDate)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	p.Positions = make([]contracts.Position, 0)
	for rows.Next() {
		var (
			pos      contracts.Position
			openDate *time.Time
		)
		err := rows.Scan(
			&pos.Symbol, &pos.Quantity, &pos.AveragePrice, &pos.CurrentPrice, &pos.MarketValue, &pos.Weight,
			&pos.UnrealizedPnL, &pos.UnrealizedPnLPercent, &openDate,
			&pos.HighestPrice, &pos.LowestPrice, &pos.ATR, &pos.Volatility,
		)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan position: %w", err)
		}
		if openDate != nil {
			pos.OpenDate = *openDate
		}
		p.Positions = append(p.Positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("error iterating rows: %w", err)
	}

	return &p, snapDate, nil
}

// =============================================================================
// Price history
// =============================================================================

// PriceBar 일별 가격
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
}

// SavePrices 종목 일별 가격 저장 (날짜 기준 갱신)
func (r *Repository) SavePrices(ctx context.Context, symbol string, bars []PriceBar) error {
	batch := &pgx.Batch{}
	for _, b := range bars {
		high, low := b.High, b.Low
		if high == 0 {
			high = b.Close
		}
		if low == 0 {
			low = b.Close
		}
		batch.Queue(`
			INSERT INTO portfolio.daily_prices (symbol, trade_date, close_price, high_price, low_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (symbol, trade_date) DO UPDATE SET
				close_price = EXCLUDED.close_price,
				high_price = EXCLUDED.high_price,
				low_price = EXCLUDED.low_price
		`, symbol, b.Date, b.Close, high, low)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save prices for %s: %w", symbol, err)
		}
	}
	return nil
}

// LoadBars until 이전(포함) 최근 lookback 개 (오래된 순)
func (r *Repository) LoadBars(ctx context.Context, symbol string, until time.Time, lookback int) ([]PriceBar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trade_date, close_price, high_price, low_price FROM (
			SELECT trade_date, close_price, high_price, low_price
			FROM portfolio.daily_prices
			WHERE symbol = $1 AND trade_date <= $2
			ORDER BY trade_date DESC
			LIMIT $3
		) recent
		ORDER BY trade_date
	`, symbol, until, lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	bars := make([]PriceBar, 0, lookback)
	for rows.Next() {
		var b PriceBar
		if err := rows.Scan(&b.Date, &b.Close, &b.High, &b.Low); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// LoadPriceSeries 종목별 종가 시계열 (공분산 추정 입력)
func (r *Repository) LoadPriceSeries(ctx context.Context, symbols []string, until time.Time, lookback int) ([]covariance.PriceSeries, error) {
	series := make([]covariance.PriceSeries, 0, len(symbols))
	for _, sym := range symbols {
		bars, err := r.LoadBars(ctx, sym, until, lookback)
		if err != nil {
			return nil, err
		}
		series = append(series, covariance.PriceSeries{Symbol: sym, Prices: Closes(bars)})
	}
	return series, nil
}

// Closes 종가만 추출
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// =============================================================================
// Stop-loss orders
// =============================================================================

// SaveOrders 손절/익절 주문 저장 (id 기준 갱신)
func (r *Repository) SaveOrders(ctx context.Context, orders []contracts.StopLossOrder) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO portfolio.stop_orders (
			id, symbol, order_type, trigger_price, quantity, execution_type, limit_price,
			status, reason, level_index, created_at, triggered_at, executed_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			trigger_price = EXCLUDED.trigger_price,
			quantity = EXCLUDED.quantity,
			status = EXCLUDED.status,
			triggered_at = EXCLUDED.triggered_at,
			executed_at = EXCLUDED.executed_at,
			cancelled_at = EXCLUDED.cancelled_at
	`
	for _, o := range orders {
		_, err := tx.Exec(ctx, query,
			o.ID, o.Symbol, string(o.Type), o.TriggerPrice, o.Quantity, string(o.ExecutionType), o.LimitPrice,
			string(o.Status), o.Reason, o.LevelIndex, o.CreatedAt, o.TriggeredAt, o.ExecutedAt, o.CancelledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save order %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadOrders 주문 조회 (activeOnly 면 pending/triggered 만)
func (r *Repository) LoadOrders(ctx context.Context, activeOnly bool) ([]contracts.StopLossOrder, error) {
	query := `
		SELECT id, symbol, order_type, trigger_price, quantity, execution_type, limit_price,
		       status, reason, level_index, created_at, triggered_at, executed_at, cancelled_at
		FROM portfolio.stop_orders
	`
	if activeOnly {
		query += ` WHERE status IN ('pending', 'triggered')`
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stop orders: %w", err)
	}
	defer rows.Close()

	orders := make([]contracts.StopLossOrder, 0)
	for rows.Next() {
		var (
			o                           contracts.StopLossOrder
			orderType, execType, status string
		)
		err := rows.Scan(
			&o.ID, &o.Symbol, &orderType, &o.TriggerPrice, &o.Quantity, &execType, &o.LimitPrice,
			&status, &o.Reason, &o.LevelIndex, &o.CreatedAt, &o.TriggeredAt, &o.ExecutedAt, &o.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stop order: %w", err)
		}
		o.Type = contracts.OrderType(orderType)
		o.ExecutionType = contracts.ExecutionType(execType)
		o.Status = contracts.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return orders, nil
}

// =============================================================================
// Risk reports
// =============================================================================

// RiskReport 리스크 평가 기록
type RiskReport struct {
	Date        time.Time              `json:"date"`
	ProfileHash string                 `json:"profile_hash"`
	Metrics     *contracts.RiskMetrics `json:"metrics"`
	Violations  []risk.Violation       `json:"violations"`
}

// SaveRiskReport 리스크 평가 결과 저장
func (r *Repository) SaveRiskReport(ctx context.Context, report RiskReport) error {
	metricsJSON, err := json.Marshal(report.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	violations := report.Violations
	if violations == nil {
		violations = []risk.Violation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("failed to marshal violations: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO portfolio.risk_reports (report_date, profile_hash, metrics, violations)
		VALUES ($1, $2, $3, $4)
	`, report.Date, report.ProfileHash, metricsJSON, violationsJSON)
	if err != nil {
		return fmt.Errorf("failed to save risk report: %w", err)
	}
	return nil
}

// LatestRiskReport 가장 최근 리스크 평가
func (r *Repository) LatestRiskReport(ctx context.Context) (*RiskReport, error) {
	var (
		report                      RiskReport
		metricsJSON, violationsJSON []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT report_date, profile_hash, metrics, violations
		FROM portfolio.risk_reports
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&report.Date, &report.ProfileHash, &metricsJSON, &violationsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk report: %w", err)
	}

	if err := json.Unmarshal(metricsJSON, &report.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(violationsJSON, &report.Violations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal violations: %w", err)
	}
	return &report, nil
}
