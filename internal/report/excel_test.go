package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
)

func sampleReport() *RiskReport {
	p := &contracts.Portfolio{
		Cash: 1000,
		Positions: []contracts.Position{
			{Symbol: "005930", Quantity: 10, AveragePrice: 70, CurrentPrice: 75},
			{Symbol: "000660", Quantity: 5, AveragePrice: 100, CurrentPrice: 110},
		},
	}
	p.Recalculate()

	return &RiskReport{
		ProfileID:   "kr_equity_balanced",
		GeneratedAt: time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC),
		Portfolio:   p,
		Metrics: &contracts.RiskMetrics{
			PortfolioVaR:   0.021,
			ComponentVaR:   []float64{0.012, 0.009},
			Confidence:     0.95,
			SectorExposure: map[string]float64{"IT": 0.3, "Semis": 0.2},
		},
		Limits: &risk.LimitCheckResult{
			Passed:     false,
			Violations: []risk.Violation{{Kind: risk.LimitMinCashRatio, Message: "cash below minimum"}},
		},
		Stress: []risk.StressResult{{Scenario: "market_crash", ReturnImpact: -0.2, ValueImpact: -450}},
		Orders: []contracts.StopLossOrder{{ID: "o1", Symbol: "005930", Type: contracts.OrderTypeStopLoss, Status: contracts.OrderPending, TriggerPrice: 67.5}},
	}
}

func TestExcelWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelWriter().Write(sampleReport(), &buf))

	fx, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{summarySheet, positionsSheet, sectorsSheet, stressSheet, ordersSheet}, fx.GetSheetList())

	v, err := fx.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "kr_equity_balanced", v)

	v, err = fx.GetCellValue(positionsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "005930", v)

	// 비중 큰 섹터가 먼저
	v, err = fx.GetCellValue(sectorsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "IT", v)

	v, err = fx.GetCellValue(stressSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "market_crash", v)

	v, err = fx.GetCellValue(ordersSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "o1", v)

	rows, err := fx.GetRows(summarySheet)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, string(risk.LimitMinCashRatio), last[0])
}

func TestExcelWriter_WriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "risk.xlsx")
	require.NoError(t, NewExcelWriter().WriteFile(sampleReport(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()
	assert.Len(t, fx.GetSheetList(), 5)
}

func TestExcelWriter_RequiresInputs(t *testing.T) {
	var buf bytes.Buffer
	err := NewExcelWriter().Write(&RiskReport{}, &buf)
	assert.ErrorIs(t, err, contracts.ErrConfiguration)
}
