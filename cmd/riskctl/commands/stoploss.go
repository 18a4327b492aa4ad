package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/scheduler/jobs"
	"github.com/wonny/stockrisk/internal/stoploss"
)

// stopLossCmd represents the stoploss command
var stopLossCmd = &cobra.Command{
	Use:   "stoploss",
	Short: "손절/익절 규칙 평가",
	Long: `포지션별로 프로파일의 손절/익절 규칙을 평가합니다.

입력 JSON:
  {"positions": [{...}], "prices": {"005930": 68000}}

prices 가 없으면 포지션의 current_price 를 사용합니다.
--checkpoint 를 주면 주문 레지스트리를 파일에서 복구하고 실행 후 다시 저장합니다.

Example:
  go run ./cmd/riskctl stoploss --input positions.json
  go run ./cmd/riskctl stoploss --input positions.json --checkpoint data/orders.msgpack`,
	RunE: runStopLoss,
}

var (
	stopLossInput      string
	stopLossCheckpoint string
)

func init() {
	rootCmd.AddCommand(stopLossCmd)

	stopLossCmd.Flags().StringVarP(&stopLossInput, "input", "i", "", "포지션 JSON 파일 (- 이면 stdin)")
	stopLossCmd.Flags().StringVar(&stopLossCheckpoint, "checkpoint", "", "주문 레지스트리 체크포인트 파일")
}

// stopLossRequest 청산 평가 입력
type stopLossRequest struct {
	Positions []contracts.Position `json:"positions"`
	Prices    map[string]float64   `json:"prices,omitempty"`
}

func runStopLoss(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	var req stopLossRequest
	if err := readJSON(stopLossInput, &req); err != nil {
		return err
	}

	engine := stoploss.NewEngine(a.log)
	book := stoploss.NewExitBook(a.runtime.StopLoss, a.runtime.TakeProfit)

	if stopLossCheckpoint != "" {
		restored, err := jobs.RestoreCheckpoint(engine.Registry(), stopLossCheckpoint)
		if err != nil {
			return fmt.Errorf("restore checkpoint: %w", err)
		}
		if restored {
			PrintInfo(fmt.Sprintf("Restored %d orders from %s", engine.Registry().Len(), stopLossCheckpoint))
		}
	}

	PrintHeader("Stop-Loss / Take-Profit", a.runtime.Profile.Meta.ProfileID)

	now := time.Now()
	t := newTable("Signals", table.Row{"Symbol", "Price", "Action", "Trigger", "Quantity", "Urgency", "Reason"})
	total := 0
	for i := range req.Positions {
		pos := &req.Positions[i]
		price, ok := req.Prices[pos.Symbol]
		if !ok {
			price = pos.CurrentPrice
		}

		sl, tp := book.For(pos.Symbol)
		signals, err := engine.ProcessPrice(pos, price, sl, tp, now)
		if err != nil {
			return fmt.Errorf("%s: %w", pos.Symbol, err)
		}
		for _, sig := range signals {
			t.AppendRow(table.Row{
				sig.Symbol,
				money(pos.CurrentPrice),
				string(sig.Action),
				money(sig.TriggerPrice),
				sig.Quantity,
				string(sig.Urgency),
				sig.Reason,
			})
			total++
		}
	}
	if total > 0 {
		t.Render()
	} else {
		PrintSuccess("No exit signals")
	}

	printOrders(engine.Registry().All())

	if stopLossCheckpoint != "" {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := jobs.NewOrderCheckpointJob(engine.Registry(), stopLossCheckpoint, a.log).Run(ctx); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
		PrintSuccess(fmt.Sprintf("Checkpoint saved: %s", stopLossCheckpoint))
	}
	return nil
}

func printOrders(orders []contracts.StopLossOrder) {
	if len(orders) == 0 {
		return
	}

	t := newTable("Orders", table.Row{"ID", "Symbol", "Type", "Status", "Trigger", "Quantity", "Level"})
	for _, o := range orders {
		level := "-"
		if o.LevelIndex >= 0 {
			level = fmt.Sprintf("%d", o.LevelIndex+1)
		}
		t.AppendRow(table.Row{
			shortID(o.ID),
			o.Symbol,
			string(o.Type),
			string(o.Status),
			money(o.TriggerPrice),
			o.Quantity,
			level,
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
