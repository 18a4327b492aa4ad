package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/stockrisk/internal/strategyconfig"
)

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "리스크 프로파일 관리",
	Long: `리스크 프로파일(YAML)을 검증하거나 적용 값을 출력합니다.

Subcommands:
  validate  - 프로파일 검증 (오류는 실패, 권장 위반은 경고)
  show      - 기본값이 적용된 최종 프로파일 출력

Example:
  go run ./cmd/riskctl profile validate configs/risk_profile.yaml
  go run ./cmd/riskctl profile show --profile configs/risk_profile.yaml`,
}

var (
	profileValidateCmd = &cobra.Command{
		Use:   "validate [path]",
		Short: "프로파일 검증",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validateProfile,
	}

	profileShowCmd = &cobra.Command{
		Use:   "show",
		Short: "최종 프로파일 출력",
		RunE:  showProfile,
	}
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileValidateCmd)
	profileCmd.AddCommand(profileShowCmd)
}

func validateProfile(cmd *cobra.Command, args []string) error {
	path := profilePath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Risk.ProfilePath
	}

	profile, data, err := strategyconfig.Load(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	snap, err := strategyconfig.NewProfileSnapshot(profile, data)
	if err != nil {
		return err
	}

	PrintHeader("Profile Validation", profile.Meta.ProfileID)
	renderKeyValues(path, []table.Row{
		{"Profile ID", snap.ProfileID},
		{"Version", snap.Version},
		{"Timezone", profile.Meta.Timezone},
		{"Gate Mode", profile.Gate.Mode},
		{"Optimizer", profile.RiskParity.Optimizer},
		{"Stop Loss", string(profile.Exit.StopLoss.Type)},
		{"Take Profit", string(profile.Exit.TakeProfit.Type)},
		{"Hash", snap.ConfigHash[:16]},
	})

	warnings := strategyconfig.Warn(profile)
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	PrintSuccess(fmt.Sprintf("Profile is valid (%d warning(s))", len(warnings)))
	return nil
}

func showProfile(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	hash, err := strategyconfig.Hash(a.runtime.Profile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(a.runtime.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	fmt.Printf("# profile_hash: %s\n", hash)
	if a.yaml == nil {
		fmt.Println("# source: built-in defaults")
	}
	_, err = os.Stdout.Write(out)
	return err
}
