package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile  string
	profilePath string
	env         string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riskctl",
	Short: "StockRisk - 포트폴리오 리스크/포지션 사이징 엔진",
	Long: `StockRisk Unified CLI

포트폴리오 리스크 측정, 포지션 사이징, 손절/익절 관리.
리스크 프로파일(YAML) 하나로 한도와 규칙을 관리합니다.

Usage:
  go run ./cmd/riskctl [command]

Examples:
  go run ./cmd/riskctl metrics --input portfolio.json
  go run ./cmd/riskctl kelly --symbol 005930 --win-rate 0.55 --avg-win 0.08 --avg-loss 0.04 --price 70000 --cash 10000000
  go run ./cmd/riskctl parity --input parity.json
  go run ./cmd/riskctl stoploss --input positions.json
  go run ./cmd/riskctl profile validate configs/risk_profile.yaml
  go run ./cmd/riskctl api
  go run ./cmd/riskctl scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "risk profile YAML (default is RISK_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
