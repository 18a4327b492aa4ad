package logger_test

import (
	"errors"
	"os"

	"github.com/wonny/stockrisk/pkg/config"
	"github.com/wonny/stockrisk/pkg/logger"
)

// Example_daemon 상주 프로세스 로거
func Example_daemon() {
	cfg := &config.Config{Env: "production", LogLevel: "info", LogFormat: "json"}
	log := logger.New(cfg).Component("scheduler")

	log.WithJob("stoploss_sweep").Info("Job started")
	log.WithOrder("SL-000042", "005930").Warn("Stop order triggered")
}

// Example_cli CLI 로거 (stderr, 표 출력과 분리)
func Example_cli() {
	log := logger.NewWithWriter(os.Stderr, "warn").Component("riskctl")

	log.WithProfile("configs/risk_profile.yaml").Debug("Risk profile loaded")
	log.WithError(errors.New("connection refused")).Warn("Reference data cache disabled")
}
