package refdata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockrisk/pkg/database"
)

// Repository 참조 데이터 Postgres 저장소 (refdata.securities)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reference data repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SchemaName 참조 데이터 스키마
const SchemaName = "refdata"

// EnsureSchema 테이블 생성
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return database.Migrate(ctx, r.pool, SchemaName, `
		CREATE SCHEMA IF NOT EXISTS refdata;
		CREATE TABLE IF NOT EXISTS refdata.securities (
			symbol         TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			sector         TEXT NOT NULL DEFAULT '',
			average_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
}

// Fetch implements Source (symbols 가 비면 전체)
func (r *Repository) Fetch(ctx context.Context, symbols []string) ([]Record, error) {
	query := `
		SELECT symbol, name, sector, average_volume, updated_at
		FROM refdata.securities
	`
	args := []interface{}{}
	if len(symbols) > 0 {
		query += ` WHERE symbol = ANY($1)`
		args = append(args, symbols)
	}
	query += ` ORDER BY symbol`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Symbol, &rec.Name, &rec.Sector, &rec.AverageVolume, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Upsert 레코드 저장 (symbol 기준 갱신)
func (r *Repository) Upsert(ctx context.Context, records []Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO refdata.securities (symbol, name, sector, average_volume, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			average_volume = EXCLUDED.average_volume,
			updated_at = NOW()
	`
	for _, rec := range records {
		if _, err := tx.Exec(ctx, query, rec.Symbol, rec.Name, rec.Sector, rec.AverageVolume); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", rec.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
