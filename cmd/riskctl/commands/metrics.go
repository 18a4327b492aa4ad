package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/stockrisk/internal/api/handlers"
	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/report"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "포트폴리오 리스크 지표 계산",
	Long: `포트폴리오 리스크 지표를 계산하고 한도를 점검합니다.

입력은 POST /api/risk/metrics 요청과 같은 JSON 입니다.
  {"portfolio": {...}, "asset_returns": [[...]], "confidence": 0.95}

출력:
- VaR / Expected Shortfall / 집중도 / 상관 / 유동성 / 레버리지
- 포지션별 Component VaR, 섹터 노출
- 한도 위반, 리스크 게이트 판정, 스트레스 테스트

Example:
  go run ./cmd/riskctl metrics --input portfolio.json
  go run ./cmd/riskctl metrics --input portfolio.json --refdata configs/securities.yaml --xlsx out/risk.xlsx`,
	RunE: runMetrics,
}

// monteCarloCmd represents the montecarlo command
var monteCarloCmd = &cobra.Command{
	Use:   "montecarlo",
	Short: "Monte Carlo VaR 시뮬레이션",
	Long: `Monte Carlo VaR 를 계산합니다.

입력은 POST /api/risk/montecarlo 요청과 같은 JSON 입니다.
asset_returns + weights 가 있으면 다자산 시뮬레이션, 없으면 portfolio_returns 를 사용합니다.

Example:
  go run ./cmd/riskctl montecarlo --input returns.json`,
	RunE: runMonteCarlo,
}

var (
	metricsInput   string
	metricsRefData string
	metricsXLSX    string
	mcInput        string
)

func init() {
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(monteCarloCmd)

	metricsCmd.Flags().StringVarP(&metricsInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
	metricsCmd.Flags().StringVar(&metricsRefData, "refdata", "", "참조 데이터 YAML (섹터/평균 거래량)")
	metricsCmd.Flags().StringVar(&metricsXLSX, "xlsx", "", "xlsx 리포트 저장 경로")

	monteCarloCmd.Flags().StringVarP(&mcInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.MetricsRequest
	if err := readJSON(metricsInput, &req); err != nil {
		return err
	}
	if req.Portfolio == nil {
		return fmt.Errorf("input has no portfolio")
	}
	p := req.Portfolio
	p.Recalculate()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, closeSource, err := a.referenceSource(metricsRefData, nil)
	if err != nil {
		return err
	}
	defer closeSource()
	dir := a.loadDirectory(ctx, source, p.Symbols())

	confidence := req.Confidence
	if confidence == 0 {
		confidence = a.runtime.Confidence
	}

	metrics, err := a.runtime.Calculator(dir, dir, a.log).Calculate(ctx, risk.CalculationInput{
		Portfolio:        p,
		AssetReturns:     req.AssetReturns,
		PortfolioReturns: req.PortfolioReturns,
		Covariance:       req.Covariance,
		Confidence:       confidence,
	})
	if err != nil {
		return fmt.Errorf("calculate risk metrics: %w", err)
	}

	limits := risk.CheckLimits(p, metrics, a.runtime.Limits)
	gate := a.runtime.Gate.Check(p, metrics)
	stress := risk.StressTest(p, a.runtime.Scenarios, a.runtime.Limits.MaxDrawdown)

	PrintHeader("Portfolio Risk", a.runtime.Profile.Meta.ProfileID)
	printRiskSummary(p, metrics)
	printPositions(p, metrics)
	printSectors(metrics.SectorExposure)
	printStress(stress)
	printLimits(limits, gate)

	if len(metrics.MissingLiquidity) > 0 {
		PrintWarning(fmt.Sprintf("평균 거래량 없음 (유동성 리스크 제외): %v", metrics.MissingLiquidity))
	}

	if metricsXLSX != "" {
		rep := &report.RiskReport{
			ProfileID:   a.runtime.Profile.Meta.ProfileID,
			GeneratedAt: metrics.CalculatedAt,
			Portfolio:   p,
			Metrics:     metrics,
			Limits:      limits,
			Stress:      stress,
		}
		if err := report.NewExcelWriter().WriteFile(rep, metricsXLSX); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Report saved: %s", metricsXLSX))
	}

	return nil
}

func printRiskSummary(p *contracts.Portfolio, m *contracts.RiskMetrics) {
	renderKeyValues("Summary", []table.Row{
		{"Total Value", money(p.TotalValue)},
		{"Cash Ratio", pct(p.CashRatio())},
		{fmt.Sprintf("VaR (%.0f%%)", m.Confidence*100), pct(m.PortfolioVaR)},
		{"Expected Shortfall", pct(m.ExpectedShortfall)},
		{"Concentration (HHI)", num(m.ConcentrationRisk)},
		{"Correlation Risk", num(m.CorrelationRisk)},
		{"Liquidity Risk", num(m.LiquidityRisk)},
		{"Leverage", num(m.LeverageRatio)},
		{"Component VaR", string(m.ComponentVaRMethod)},
	})
}

func printPositions(p *contracts.Portfolio, m *contracts.RiskMetrics) {
	if len(p.Positions) == 0 {
		PrintInfo("No positions")
		return
	}

	t := newTable("Positions", table.Row{"Symbol", "Quantity", "Price", "Value", "Weight", "P&L", "Component VaR"})
	for i, pos := range p.Positions {
		cvar := "-"
		if i < len(m.ComponentVaR) {
			cvar = pct(m.ComponentVaR[i])
		}
		t.AppendRow(table.Row{
			pos.Symbol,
			pos.Quantity,
			money(pos.CurrentPrice),
			money(pos.MarketValue),
			pct(pos.Weight),
			pct(pos.UnrealizedPnLPercent),
			cvar,
		})
	}
	t.Render()
}

func printSectors(exposure map[string]float64) {
	if len(exposure) == 0 {
		return
	}

	sectors := make([]string, 0, len(exposure))
	for s := range exposure {
		sectors = append(sectors, s)
	}
	sort.Slice(sectors, func(i, j int) bool {
		return exposure[sectors[i]] > exposure[sectors[j]]
	})

	t := newTable("Sector Exposure", table.Row{"Sector", "Weight"})
	for _, s := range sectors {
		t.AppendRow(table.Row{s, pct(exposure[s])})
	}
	t.Render()
}

func printStress(results []risk.StressResult) {
	if len(results) == 0 {
		return
	}

	t := newTable("Stress Test", table.Row{"Scenario", "Return", "Value", "Breach"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Scenario, pct(r.ReturnImpact), money(r.ValueImpact), yesNo(r.BreachesLimit)})
	}
	t.Render()
}

func printLimits(limits *risk.LimitCheckResult, gate sizing.GateResult) {
	PrintSeparator()
	if limits.Passed {
		PrintSuccess("All risk limits passed")
	} else {
		PrintError(fmt.Sprintf("%d risk limit violation(s)", len(limits.Violations)))
		PrintList(violationMessages(limits.Violations))
	}
	if len(limits.Warnings) > 0 {
		PrintWarning(fmt.Sprintf("%d warning(s)", len(limits.Warnings)))
		PrintList(violationMessages(limits.Warnings))
	}

	PrintKeyValue("Gate mode", string(gate.Mode), 10)
	switch {
	case gate.Blocked:
		PrintKeyValue("Gate", "BLOCKED: "+gate.Reason, 10)
	case gate.WouldBlock:
		PrintKeyValue("Gate", "would block (shadow): "+gate.Reason, 10)
	default:
		PrintKeyValue("Gate", "passed", 10)
	}
}

func violationMessages(vs []risk.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, fmt.Sprintf("[%s] %s", v.Kind, v.Message))
	}
	return out
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.MonteCarloRequest
	if err := readJSON(mcInput, &req); err != nil {
		return err
	}

	cfg := a.runtime.MonteCarlo
	if req.Config != nil {
		cfg = *req.Config
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result *risk.MonteCarloResult
	if len(req.AssetReturns) > 0 {
		result, err = risk.NewMonteCarloSimulator(cfg).SimulateAssets(ctx, req.AssetReturns, req.Weights)
	} else {
		result, err = a.runtime.Calculator(nil, nil, a.log).MonteCarlo(ctx, req.PortfolioReturns, cfg)
	}
	if err != nil {
		return fmt.Errorf("monte carlo: %w", err)
	}

	PrintHeader("Monte Carlo VaR", a.runtime.Profile.Meta.ProfileID)
	renderKeyValues("Simulation", []table.Row{
		{"Run ID", result.RunID},
		{"Method", string(result.Config.Method)},
		{"Simulations", result.Config.NumSimulations},
		{"Holding Period", fmt.Sprintf("%d days", result.Config.HoldingPeriod)},
		{"Input Samples", result.InputSampleCount},
		{"Mean Return", pct(result.MeanReturn)},
		{"Std Dev", pct(result.StdDev)},
	})

	t := newTable("VaR", table.Row{"Confidence", "VaR", "CVaR"})
	for _, v := range result.VaR {
		t.AppendRow(table.Row{pct(v.Confidence), pct(v.VaR), pct(v.CVaR)})
	}
	t.Render()
	return nil
}
