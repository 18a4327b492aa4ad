package config_test

import (
	"fmt"

	"github.com/wonny/stockrisk/pkg/config"
)

// Example 환경 변수 설정으로 리스크 엔진 기본값 확인
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		return
	}

	fmt.Printf("profile=%s gate=%s var_confidence=%.2f lot=%d\n",
		cfg.Risk.ProfilePath, cfg.Risk.GateMode, cfg.Risk.ConfidenceLevel, cfg.Risk.LotSize)
	fmt.Printf("redis=%v refdata=%q\n", cfg.Redis.Enabled, cfg.RefData.BaseURL)
}
