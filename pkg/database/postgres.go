package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockrisk/pkg/config"
)

// ApplicationName pg_stat_activity 에 보이는 이름
const ApplicationName = "stockrisk"

const pingTimeout = 5 * time.Second

// DB 포트폴리오/참조 데이터 저장소 커넥션 풀
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New 풀 생성 후 ping 으로 연결 확인
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(cfg *config.Config) (*DB, error) {
	poolConfig, err := PoolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// PoolConfig DATABASE_URL + 풀 설정
// 0 이하 값은 pgx 기본값 유지
func PoolConfig(dc config.DatabaseConfig) (*pgxpool.Config, error) {
	if !dc.Enabled() {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	pc, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if dc.MaxConns > 0 {
		pc.MaxConns = int32(dc.MaxConns)
	}
	if dc.MinConns > 0 && int32(dc.MinConns) <= pc.MaxConns {
		pc.MinConns = int32(dc.MinConns)
	}
	if dc.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = dc.MaxConnLifetime
	}
	if dc.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = dc.MaxConnIdleTime
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return pc, nil
}

// Close 풀 종료 (nil 허용)
func (db *DB) Close() {
	if db != nil && db.Pool != nil {
		db.Pool.Close()
	}
}

// Migrate 스키마 DDL 을 advisory lock 아래 트랜잭션으로 실행
// api 와 scheduler 가 동시에 떠도 CREATE ... IF NOT EXISTS 가 충돌하지 않음
func Migrate(ctx context.Context, pool *pgxpool.Pool, name, ddl string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migrate %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", ApplicationName+":"+name); err != nil {
		return fmt.Errorf("migrate %s: lock: %w", name, err)
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("migrate %s: commit: %w", name, err)
	}
	return nil
}

// Health 저장소 상태
type Health struct {
	Healthy        bool          `json:"healthy"`
	CheckedAt      time.Time     `json:"checked_at"`
	Latency        time.Duration `json:"latency"`
	MissingSchemas []string      `json:"missing_schemas,omitempty"`
	TotalConns     int32         `json:"total_conns"`
	IdleConns      int32         `json:"idle_conns"`
	MaxConns       int32         `json:"max_conns"`
	Error          string        `json:"error,omitempty"`
}

// HealthCheck ping 지연과 필요한 스키마 존재 여부 확인
// 스키마가 하나라도 없으면 Healthy=false (에러는 아님)
func (db *DB) HealthCheck(ctx context.Context, schemas ...string) (*Health, error) {
	h := &Health{CheckedAt: time.Now()}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h, err
	}
	h.Latency = time.Since(start)

	stat := db.Pool.Stat()
	h.TotalConns = stat.TotalConns()
	h.IdleConns = stat.IdleConns()
	h.MaxConns = stat.MaxConns()

	if len(schemas) > 0 {
		rows, err := db.Pool.Query(ctx,
			"SELECT s FROM unnest($1::text[]) AS s WHERE to_regnamespace(s) IS NULL", schemas)
		if err != nil {
			h.Error = err.Error()
			return h, fmt.Errorf("schema check: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return h, fmt.Errorf("schema check: %w", err)
			}
			h.MissingSchemas = append(h.MissingSchemas, name)
		}
		if err := rows.Err(); err != nil {
			return h, fmt.Errorf("schema check: %w", err)
		}
	}

	h.Healthy = len(h.MissingSchemas) == 0
	return h, nil
}
