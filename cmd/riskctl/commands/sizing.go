package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/stockrisk/internal/api/handlers"
	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/portfolio"
	"github.com/wonny/stockrisk/internal/sizing"
)

// kellyCmd represents the kelly command
var kellyCmd = &cobra.Command{
	Use:   "kelly",
	Short: "Kelly 포지션 사이징",
	Long: `Kelly 기준으로 매수 수량을 계산합니다.

입력은 POST /api/sizing/kelly 요청과 같은 JSON 입니다.
  {"portfolio": {...}, "request": {"symbol": "005930", "win_rate": 0.55, "avg_win": 0.08, "avg_loss": 0.04, "price": 70000}}

리스크 게이트가 enforce 모드에서 차단하면 현재 수량을 유지합니다.

Example:
  go run ./cmd/riskctl kelly --input kelly.json`,
	RunE: runKelly,
}

// volatilityCmd represents the volatility command
var volatilityCmd = &cobra.Command{
	Use:   "volatility",
	Short: "변동성 타겟 사이징",
	Long: `목표 변동성에 맞춰 목표 수량을 계산합니다.

입력은 POST /api/sizing/volatility 요청과 같은 JSON 입니다.

Example:
  go run ./cmd/riskctl volatility --input vol.json`,
	RunE: runVolatility,
}

// parityCmd represents the parity command
var parityCmd = &cobra.Command{
	Use:   "parity",
	Short: "리스크 패리티 최적화",
	Long: `자산별 위험 기여도가 같아지도록 비중을 최적화합니다.

입력은 POST /api/sizing/risk-parity 요청과 같은 JSON 입니다.
prices 와 portfolio 가 있으면 리밸런싱 주문안도 출력합니다.

Example:
  go run ./cmd/riskctl parity --input parity.json`,
	RunE: runParity,
}

// adjustCmd represents the adjust command
var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "포트폴리오 동적 조정",
	Long: `시장 국면에 맞춰 보유 종목별 비중 조정 신호를 계산합니다.

입력은 POST /api/sizing/adjust 요청과 같은 JSON 입니다.
  {"portfolio": {...}, "regime": {"volatility_level": "high", "trend_direction": "bear"}}

리스크 게이트가 차단하면 매수 신호는 보류 목록으로 분리됩니다.

Example:
  go run ./cmd/riskctl adjust --input adjust.json`,
	RunE: runAdjust,
}

var (
	kellyInput      string
	volatilityInput string
	parityInput     string
	adjustInput     string
)

func init() {
	rootCmd.AddCommand(kellyCmd)
	rootCmd.AddCommand(volatilityCmd)
	rootCmd.AddCommand(parityCmd)
	rootCmd.AddCommand(adjustCmd)

	kellyCmd.Flags().StringVarP(&kellyInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
	volatilityCmd.Flags().StringVarP(&volatilityInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
	parityCmd.Flags().StringVarP(&parityInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
	adjustCmd.Flags().StringVarP(&adjustInput, "input", "i", "", "요청 JSON 파일 (- 이면 stdin)")
}

func runKelly(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.KellyRequest
	if err := readJSON(kellyInput, &req); err != nil {
		return err
	}
	if req.Request.Symbol == "" || req.Request.Price <= 0 {
		return fmt.Errorf("request.symbol and positive request.price are required")
	}
	if req.Portfolio != nil {
		req.Portfolio.Recalculate()
	}

	decision := a.runtime.Sizer.SizeKelly(req.Portfolio, req.Metrics, req.Request)

	params := sizing.KellyParams{
		WinRate:      req.Request.WinRate,
		AvgWin:       req.Request.AvgWin,
		AvgLoss:      req.Request.AvgLoss,
		RiskFreeRate: a.runtime.Params.RiskFreeRate,
	}
	cash := 0.0
	if req.Portfolio != nil {
		cash = req.Portfolio.Cash
	}
	advice := a.runtime.Advisor.Advise(params, req.Request.Price, cash, req.History)

	PrintHeader("Kelly Sizing", a.runtime.Profile.Meta.ProfileID)
	printDecision(decision)

	source := "input"
	if advice.FromHistory {
		source = fmt.Sprintf("history (%d trades)", len(req.History))
	}
	renderKeyValues("Advisor", []table.Row{
		{"Parameters", source},
		{"Win Rate", pct(advice.Params.WinRate)},
		{"Kelly Fraction", pct(advice.KellyFraction)},
		{"Adjusted Fraction", pct(advice.AdjustedFraction)},
		{"Suggested Amount", money(advice.SuggestedAmount)},
		{"Suggested Shares", advice.SuggestedShares},
		{"Risk Level", string(advice.RiskLevel)},
		{"Confidence", pct(advice.Confidence)},
	})
	PrintInfo(sizing.Advice(advice))
	for _, w := range advice.Warnings {
		PrintWarning(w)
	}
	return nil
}

func runVolatility(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.VolatilityRequest
	if err := readJSON(volatilityInput, &req); err != nil {
		return err
	}
	if req.Portfolio != nil {
		req.Portfolio.Recalculate()
	}

	decision := a.runtime.Sizer.SizeVolatilityTarget(req.Portfolio, req.Metrics, req.Input)

	PrintHeader("Volatility Target Sizing", a.runtime.Profile.Meta.ProfileID)
	PrintKeyValue("Target vol", pct(a.runtime.Params.TargetVolatility), 12)
	PrintKeyValue("Realized vol", pct(sizing.HistoricalVolatility(req.Input.HistoricalPrices)), 12)
	printDecision(decision)
	return nil
}

func runParity(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.RiskParityRequest
	if err := readJSON(parityInput, &req); err != nil {
		return err
	}
	if req.Portfolio != nil {
		req.Portfolio.Recalculate()
	}
	if req.Request.Bounds == (sizing.Bounds{}) {
		req.Request.Bounds = a.runtime.Bounds
	}

	result, err := a.runtime.Sizer.OptimizeRiskParity(req.Portfolio, req.Metrics, req.Request)
	if err != nil {
		return fmt.Errorf("risk parity: %w", err)
	}

	PrintHeader("Risk Parity", a.runtime.Profile.Meta.ProfileID)
	if result.Blocked() {
		PrintError("Blocked by risk gate: " + result.Gate.Reason)
	}

	t := newTable("Weights", table.Row{"Symbol", "Weight", "Risk Contribution"})
	for i, sym := range result.Symbols {
		rc := "-"
		if i < len(result.RiskContributions) {
			rc = pct(result.RiskContributions[i])
		}
		t.AppendRow(table.Row{sym, pct(result.Weights[i]), rc})
	}
	t.Render()

	renderKeyValues("Portfolio", []table.Row{
		{"Volatility", pct(result.PortfolioVolatility)},
		{"Expected Return", pct(result.PortfolioReturn)},
		{"Sharpe", num(result.SharpeRatio)},
		{"Diversification", num(result.DiversificationRatio)},
		{"Effective Assets", num(result.EffectiveAssets)},
		{"Optimizer", result.Convergence.Method},
		{"Converged", fmt.Sprintf("%v (%d iter)", result.Convergence.Converged, result.Convergence.Iterations)},
	})

	if len(result.RebalanceSignals) > 0 {
		t := newTable("Rebalance Signals", table.Row{"Symbol", "Current", "Target", "Action"})
		for _, s := range result.RebalanceSignals {
			t.AppendRow(table.Row{s.Symbol, pct(s.CurrentWeight), pct(s.TargetWeight), string(s.Action)})
		}
		t.Render()
	}

	if req.Portfolio == nil || len(req.Prices) == 0 || result.Blocked() {
		return nil
	}

	constraints := portfolio.DefaultConstraints(a.runtime.Limits)
	constraints.LotSize = a.runtime.Params.Lot()

	targets := make(map[string]float64, len(result.Symbols))
	for i, sym := range result.Symbols {
		targets[sym] = result.Weights[i]
	}
	trades, err := portfolio.NewRebalancer(constraints, a.log).Plan(req.Portfolio, targets, req.Prices)
	if err != nil {
		return fmt.Errorf("plan rebalance: %w", err)
	}

	if len(trades) == 0 {
		PrintSuccess("No trades needed")
		return nil
	}
	tt := newTable("Trades", table.Row{"Symbol", "Side", "Quantity", "Price", "Value", "Weight"})
	for _, tr := range trades {
		tt.AppendRow(table.Row{
			tr.Symbol,
			string(tr.Side),
			tr.Quantity,
			money(tr.Price),
			money(tr.Value),
			fmt.Sprintf("%s → %s", pct(tr.CurrentWeight), pct(tr.TargetWeight)),
		})
	}
	tt.Render()
	return nil
}

func runAdjust(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req handlers.AdjustRequest
	if err := readJSON(adjustInput, &req); err != nil {
		return err
	}
	if req.Portfolio == nil || len(req.Portfolio.Positions) == 0 {
		return fmt.Errorf("portfolio with positions is required")
	}
	for i := range req.Portfolio.Positions {
		pos := &req.Portfolio.Positions[i]
		pos.ApplyPrice(pos.CurrentPrice)
	}
	req.Portfolio.Recalculate()

	plan := a.runtime.Sizer.AdjustPortfolio(req.Portfolio, req.Metrics, req.Regime)

	PrintHeader("Portfolio Adjustment", a.runtime.Profile.Meta.ProfileID)
	PrintKeyValue("Target vol", pct(plan.TargetVolatility), 12)
	if plan.Gate != nil && plan.Gate.Blocked {
		PrintError("Blocked by risk gate: " + plan.Gate.Reason)
	}

	if len(plan.Signals) == 0 {
		PrintSuccess("No adjustments needed")
	} else {
		printAdjustments("Signals", plan.Signals)
	}
	if len(plan.Suppressed) > 0 {
		printAdjustments("Suppressed", plan.Suppressed)
	}
	return nil
}

func printAdjustments(title string, signals []sizing.AdjustmentSignal) {
	t := newTable(title, table.Row{"Symbol", "Action", "Urgency", "Weight", "Quantity", "Confidence", "Reason"})
	for _, s := range signals {
		t.AppendRow(table.Row{
			s.Symbol,
			string(s.Action),
			string(s.Urgency),
			fmt.Sprintf("%s → %s", pct(s.CurrentWeight), pct(s.TargetWeight)),
			fmt.Sprintf("%.0f → %.0f", s.CurrentQuantity, s.TargetQuantity),
			pct(s.Confidence),
			s.Reason,
		})
	}
	t.Render()
}

func printDecision(d contracts.SizingDecision) {
	renderKeyValues("Decision", []table.Row{
		{"Symbol", d.Symbol},
		{"Action", string(d.Action)},
		{"Method", string(d.Method)},
		{"Target Quantity", d.TargetQuantity},
		{"Target Value", money(d.TargetValue)},
		{"Reason", d.Reason},
	})
	if d.Blocked() {
		PrintError("Blocked by risk limits")
		PrintList(d.Violations)
	}
}
