// Package report renders risk evaluations as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
)

const (
	summarySheet   = "Summary"
	positionsSheet = "Positions"
	sectorsSheet   = "Sectors"
	stressSheet    = "Stress"
	ordersSheet    = "Orders"
)

// RiskReport 리포트 입력
type RiskReport struct {
	ProfileID   string
	GeneratedAt time.Time
	Portfolio   *contracts.Portfolio
	Metrics     *contracts.RiskMetrics
	Limits      *risk.LimitCheckResult
	Stress      []risk.StressResult
	Orders      []contracts.StopLossOrder
}

type styles struct {
	header  int
	percent int
	money   int
}

// ExcelWriter 리스크 리포트 xlsx 작성기
type ExcelWriter struct{}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{}
}

// WriteFile 파일로 저장 (디렉토리 자동 생성)
func (w *ExcelWriter) WriteFile(r *RiskReport, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx, err := w.build(r)
	if err != nil {
		return err
	}
	defer fx.Close()

	if err := fx.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Write 스트림으로 출력
func (w *ExcelWriter) Write(r *RiskReport, out io.Writer) error {
	fx, err := w.build(r)
	if err != nil {
		return err
	}
	defer fx.Close()

	if err := fx.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *ExcelWriter) build(r *RiskReport) (*excelize.File, error) {
	if r == nil || r.Portfolio == nil || r.Metrics == nil {
		return nil, contracts.NewConfigError("report.Write", "report", nil, "portfolio and metrics are required")
	}

	fx := excelize.NewFile()
	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	for _, name := range []string{positionsSheet, sectorsSheet, stressSheet, ordersSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			fx.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	st, err := newStyles(fx)
	if err != nil {
		fx.Close()
		return nil, err
	}

	writers := []func(*excelize.File, *RiskReport, styles) error{
		writeSummary,
		writePositions,
		writeSectors,
		writeStress,
		writeOrders,
	}
	for _, write := range writers {
		if err := write(fx, r, st); err != nil {
			fx.Close()
			return nil, err
		}
	}
	return fx, nil
}

func newStyles(fx *excelize.File) (styles, error) {
	var st styles
	var err error

	// Header style - dark background with white text
	st.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create header style: %w", err)
	}

	st.percent, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10, // 0.00%
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create percent style: %w", err)
	}

	st.money, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return st, fmt.Errorf("failed to create money style: %w", err)
	}
	return st, nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, st styles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, st.header); err != nil {
			return err
		}
	}
	return fx.SetColWidth(sheet, "A", "L", 16)
}

// setRow row(1부터)에 값 기록, styleByCol 은 열 번호(1부터) → 스타일
func setRow(fx *excelize.File, sheet string, row int, values []interface{}, styleByCol map[int]int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := fx.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	for col, style := range styleByCol {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(fx *excelize.File, r *RiskReport, st styles) error {
	if err := writeHeader(fx, summarySheet, []string{"Item", "Value"}, st); err != nil {
		return err
	}

	p, m := r.Portfolio, r.Metrics
	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = m.CalculatedAt
	}

	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Profile", r.ProfileID, 0},
		{"Generated At", generated.Format(time.RFC3339), 0},
		{"Total Value", p.TotalValue, st.money},
		{"Cash", p.Cash, st.money},
		{"Market Value", p.MarketValue, st.money},
		{"Confidence", m.Confidence, st.percent},
		{"Portfolio VaR", m.PortfolioVaR, st.percent},
		{"Expected Shortfall", m.ExpectedShortfall, st.percent},
		{"Concentration (HHI)", m.ConcentrationRisk, 0},
		{"Correlation Risk", m.CorrelationRisk, 0},
		{"Liquidity Risk", m.LiquidityRisk, 0},
		{"Leverage", m.LeverageRatio, 0},
		{"Component VaR Method", string(m.ComponentVaRMethod), 0},
	}
	if r.Limits != nil {
		status := "PASSED"
		if !r.Limits.Passed {
			status = "BLOCKED"
		}
		rows = append(rows, struct {
			label string
			value interface{}
			style int
		}{"Limit Check", status, 0})
	}

	for i, row := range rows {
		styleByCol := map[int]int{}
		if row.style != 0 {
			styleByCol[2] = row.style
		}
		if err := setRow(fx, summarySheet, i+2, []interface{}{row.label, row.value}, styleByCol); err != nil {
			return err
		}
	}

	if r.Limits == nil {
		return nil
	}
	next := len(rows) + 3
	for _, v := range append(append([]risk.Violation{}, r.Limits.Violations...), r.Limits.Warnings...) {
		values := []interface{}{string(v.Kind), v.Message}
		if err := setRow(fx, summarySheet, next, values, nil); err != nil {
			return err
		}
		next++
	}
	return nil
}

func writePositions(fx *excelize.File, r *RiskReport, st styles) error {
	headers := []string{"Symbol", "Quantity", "Avg Price", "Price", "Market Value", "Weight", "PnL %", "Component VaR"}
	if err := writeHeader(fx, positionsSheet, headers, st); err != nil {
		return err
	}

	for i, pos := range r.Portfolio.Positions {
		component := 0.0
		if i < len(r.Metrics.ComponentVaR) {
			component = r.Metrics.ComponentVaR[i]
		}
		values := []interface{}{
			pos.Symbol, pos.Quantity, pos.AveragePrice, pos.CurrentPrice,
			pos.MarketValue, pos.Weight, pos.UnrealizedPnLPercent, component,
		}
		styleByCol := map[int]int{3: st.money, 4: st.money, 5: st.money, 6: st.percent, 7: st.percent, 8: st.percent}
		if err := setRow(fx, positionsSheet, i+2, values, styleByCol); err != nil {
			return err
		}
	}
	return nil
}

func writeSectors(fx *excelize.File, r *RiskReport, st styles) error {
	if err := writeHeader(fx, sectorsSheet, []string{"Sector", "Weight"}, st); err != nil {
		return err
	}

	sectors := make([]string, 0, len(r.Metrics.SectorExposure))
	for s := range r.Metrics.SectorExposure {
		sectors = append(sectors, s)
	}
	sort.Slice(sectors, func(i, j int) bool {
		wi, wj := r.Metrics.SectorExposure[sectors[i]], r.Metrics.SectorExposure[sectors[j]]
		if wi != wj {
			return wi > wj
		}
		return sectors[i] < sectors[j]
	})

	for i, s := range sectors {
		values := []interface{}{s, r.Metrics.SectorExposure[s]}
		if err := setRow(fx, sectorsSheet, i+2, values, map[int]int{2: st.percent}); err != nil {
			return err
		}
	}
	return nil
}

func writeStress(fx *excelize.File, r *RiskReport, st styles) error {
	if err := writeHeader(fx, stressSheet, []string{"Scenario", "Return Impact", "Value Impact", "Breaches Limit"}, st); err != nil {
		return err
	}
	for i, s := range r.Stress {
		values := []interface{}{s.Scenario, s.ReturnImpact, s.ValueImpact, s.BreachesLimit}
		if err := setRow(fx, stressSheet, i+2, values, map[int]int{2: st.percent, 3: st.money}); err != nil {
			return err
		}
	}
	return nil
}

func writeOrders(fx *excelize.File, r *RiskReport, st styles) error {
	headers := []string{"ID", "Symbol", "Type", "Status", "Trigger", "Quantity", "Execution", "Reason", "Created At"}
	if err := writeHeader(fx, ordersSheet, headers, st); err != nil {
		return err
	}
	for i, o := range r.Orders {
		values := []interface{}{
			o.ID, o.Symbol, string(o.Type), string(o.Status), o.TriggerPrice,
			o.Quantity, string(o.ExecutionType), o.Reason, o.CreatedAt.Format(time.RFC3339),
		}
		if err := setRow(fx, ordersSheet, i+2, values, map[int]int{5: st.money}); err != nil {
			return err
		}
	}
	return nil
}
