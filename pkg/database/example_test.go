package database_test

import (
	"context"
	"fmt"

	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/database"
)

// Example 포트폴리오 스키마 생성 후 저장소 상태 확인
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config:", err)
		return
	}

	db, err := database.New(cfg)
	if err != nil {
		fmt.Println("connect:", err)
		return
	}
	defer db.Close()

	ctx := context.Background()
	ddl := `CREATE SCHEMA IF NOT EXISTS portfolio`
	if err := database.Migrate(ctx, db.Pool, "portfolio", ddl); err != nil {
		fmt.Println("migrate:", err)
		return
	}

	status, err := db.HealthCheck(ctx, "portfolio")
	if err != nil {
		fmt.Println("health:", err)
		return
	}
	fmt.Println("healthy:", status.Healthy, "latency:", status.Latency)
}
