package main

import (
	"os"

	"github.com/wonny/stockrisk/cmd/riskctl/commands"
)

// main is the entry point for the riskctl CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/riskctl [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
