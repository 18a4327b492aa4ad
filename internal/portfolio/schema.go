package portfolio

import (
	"context"

	"github.com/wonny/stockrisk/pkg/database"
)

// SchemaName 포트폴리오 저장소 스키마
const SchemaName = "portfolio"

// schemaDDL 포트폴리오 저장소 테이블
const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS portfolio;

CREATE TABLE IF NOT EXISTS portfolio.snapshots (
	snapshot_date DATE PRIMARY KEY,
	total_value   DOUBLE PRECISION NOT NULL,
	cash          DOUBLE PRECISION NOT NULL,
	market_value  DOUBLE PRECISION NOT NULL,
	daily_return  DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_return  DOUBLE PRECISION NOT NULL DEFAULT 0,
	volatility    DOUBLE PRECISION NOT NULL DEFAULT 0,
	sharpe_ratio  DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_drawdown  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS portfolio.positions (
	snapshot_date      DATE NOT NULL REFERENCES portfolio.snapshots (snapshot_date) ON DELETE CASCADE,
	symbol             TEXT NOT NULL,
	quantity           DOUBLE PRECISION NOT NULL,
	avg_price          DOUBLE PRECISION NOT NULL,
	current_price      DOUBLE PRECISION NOT NULL,
	market_value       DOUBLE PRECISION NOT NULL,
	weight             DOUBLE PRECISION NOT NULL,
	unrealized_pnl     DOUBLE PRECISION NOT NULL,
	unrealized_pnl_pct DOUBLE PRECISION NOT NULL,
	open_date          DATE,
	highest_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
	lowest_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	atr                DOUBLE PRECISION NOT NULL DEFAULT 0,
	volatility         DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (snapshot_date, symbol)
);

CREATE TABLE IF NOT EXISTS portfolio.daily_prices (
	symbol      TEXT NOT NULL,
	trade_date  DATE NOT NULL,
	close_price DOUBLE PRECISION NOT NULL,
	high_price  DOUBLE PRECISION NOT NULL,
	low_price   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, trade_date)
);

CREATE TABLE IF NOT EXISTS portfolio.stop_orders (
	id             TEXT PRIMARY KEY,
	symbol         TEXT NOT NULL,
	order_type     TEXT NOT NULL,
	trigger_price  DOUBLE PRECISION NOT NULL,
	quantity       DOUBLE PRECISION NOT NULL,
	execution_type TEXT NOT NULL,
	limit_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status         TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	level_index    INT NOT NULL DEFAULT -1,
	created_at     TIMESTAMPTZ NOT NULL,
	triggered_at   TIMESTAMPTZ,
	executed_at    TIMESTAMPTZ,
	cancelled_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS stop_orders_symbol_status ON portfolio.stop_orders (symbol, status);

CREATE TABLE IF NOT EXISTS portfolio.risk_reports (
	id           BIGSERIAL PRIMARY KEY,
	report_date  DATE NOT NULL,
	profile_hash TEXT NOT NULL DEFAULT '',
	metrics      JSONB NOT NULL,
	violations   JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema 테이블 생성 (멱등)
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return database.Migrate(ctx, r.pool, SchemaName, schemaDDL)
}
