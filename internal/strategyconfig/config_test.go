package strategyconfig

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
)

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load("testdata/risk_profile.yaml")
	require.NoError(t, err)

	assert.Equal(t, "kr_equity_balanced", cfg.Meta.ProfileID)
	assert.Equal(t, 0.15, cfg.Limits.MaxPositionWeight)
	assert.Equal(t, 0.99, cfg.VaR.Confidence)
	assert.Equal(t, OptimizerNewton, cfg.RiskParity.Optimizer)
	assert.Equal(t, 0.4, cfg.RiskParity.Bounds.Max)
	assert.Len(t, cfg.Exit.TakeProfit.Levels, 3)
	assert.Len(t, cfg.Stress, 2)
	assert.Equal(t, -0.25, cfg.Stress[1].Shocks["000660"])

	// 생략된 값은 기본값 유지
	assert.Equal(t, 0.5, cfg.RiskParity.Damping)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)

	snap, err := NewProfileSnapshot(cfg, yamlData)
	require.NoError(t, err)
	assert.Equal(t, hash, snap.ConfigHash)
	assert.Equal(t, "2", snap.Version)
}

func TestLoad_RepositoryProfile(t *testing.T) {
	_, _, err := Load("../../configs/risk_profile.yaml")
	require.NoError(t, err)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("limits:\n  max_positon_weight: 0.2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_positon_weight")
}

func TestParse_UnknownStrategyTag(t *testing.T) {
	_, err := Parse([]byte("exit:\n  stop_loss:\n    type: chandelier\n    enabled: true\n"))
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "exit.stop_loss.type", verr.Field)
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("meta:\n  profile_id: minimal\n"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Limits, cfg.Limits)
	assert.Equal(t, def.Sizing, cfg.Sizing)
	assert.Equal(t, "minimal", cfg.Meta.ProfileID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing profile id", func(c *Config) { c.Meta.ProfileID = "" }, "meta.profile_id"},
		{"bad timezone", func(c *Config) { c.Meta.Timezone = "Mars/Olympus" }, "meta.timezone"},
		{"position weight zero", func(c *Config) { c.Limits.MaxPositionWeight = 0 }, "limits.max_position_weight"},
		{"sector below position", func(c *Config) { c.Limits.MaxSectorWeight = 0.1 }, "limits.max_sector_weight"},
		{"var out of range", func(c *Config) { c.Limits.MaxVaR = 1 }, "limits.max_var"},
		{"lot size zero", func(c *Config) { c.Sizing.LotSize = 0 }, "sizing.lot_size"},
		{"min above max size", func(c *Config) { c.Sizing.MinPositionSize = 0.5 }, "sizing.min_position_size"},
		{"unknown gate mode", func(c *Config) { c.Gate.Mode = "strict" }, "gate.mode"},
		{"kelly fraction zero", func(c *Config) { c.Kelly.MaxFraction = 0 }, "kelly.max_fraction"},
		{"unknown optimizer", func(c *Config) { c.RiskParity.Optimizer = "slsqp" }, "risk_parity.optimizer"},
		{"inverted bounds", func(c *Config) { c.RiskParity.Bounds = sizing.Bounds{Min: 0.5, Max: 0.2} }, "risk_parity.bounds"},
		{"damping zero", func(c *Config) { c.RiskParity.Damping = 0 }, "risk_parity.damping"},
		{"confidence one", func(c *Config) { c.VaR.Confidence = 1 }, "var.confidence"},
		{"monte carlo sims", func(c *Config) { c.VaR.MonteCarlo.NumSimulations = 0 }, "var.monte_carlo"},
		{"return type", func(c *Config) { c.Covariance.ReturnType = "pct" }, "covariance.return_type"},
		{"shrinkage", func(c *Config) { c.Covariance.Shrinkage = 1.5 }, "covariance.shrinkage"},
		{"stop percentage", func(c *Config) { c.Exit.StopLoss.Percentage = 0 }, "exit.stop_loss.percentage"},
		{"levels not increasing", func(c *Config) {
			c.Exit.TakeProfit.Levels = []contracts.TakeProfitLevel{
				{Percentage: 0.2, SellRatio: 0.5},
				{Percentage: 0.1, SellRatio: 0.5},
			}
		}, "exit.take_profit.levels[1].percentage"},
		{"ratios above one", func(c *Config) {
			c.Exit.TakeProfit.Levels = []contracts.TakeProfitLevel{
				{Percentage: 0.1, SellRatio: 0.6},
				{Percentage: 0.2, SellRatio: 0.6},
			}
		}, "exit.take_profit.levels"},
		{"duplicate scenario", func(c *Config) {
			c.Stress = append(c.Stress, c.Stress[0])
		}, "stress_scenarios[4].name"},
		{"total wipeout shock", func(c *Config) {
			c.Stress[0].Shocks["*"] = -1
		}, "stress_scenarios[0].shocks.*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))
	assert.Empty(t, Warn(&cfg))
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.Gate.Mode = "off"
	cfg.Kelly.MaxFraction = 0.8
	cfg.Exit.StopLoss.Enabled = false
	cfg.Sizing.LookbackPeriod = 20

	codes := make([]string, 0)
	for _, w := range Warn(&cfg) {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []string{"GATE_OFF", "AGGRESSIVE_KELLY", "NO_STOP_LOSS", "NOISY_COVARIANCE"}, codes)
}

func TestBuild(t *testing.T) {
	cfg, _, err := Load("testdata/risk_profile.yaml")
	require.NoError(t, err)

	rt, err := cfg.Build(nil)
	require.NoError(t, err)

	assert.Equal(t, sizing.GateModeShadow, rt.Gate.Mode())
	assert.Equal(t, "newton", rt.Parity.Optimizer().Name())
	assert.Equal(t, 0.2, rt.Advisor.MaxKellyFraction)
	assert.Equal(t, 0.2, rt.Estimator.Shrinkage)
	assert.Equal(t, contracts.TrailingStop{Distance: 0.07}, rt.StopLoss.Rule)
	assert.Equal(t, contracts.TakeProfitLadder, rt.TakeProfit.Rule.TakeProfitType())
	assert.NotNil(t, rt.Sizer)

	// 프로파일의 단계 체결 표시가 원본 설정을 건드리지 않음
	rt.TakeProfit.MarkLevelExecuted(0)
	assert.False(t, cfg.Exit.TakeProfit.Levels[0].IsExecuted)
}

func TestBuild_InvalidProfile(t *testing.T) {
	cfg := Default()
	cfg.Gate.Mode = "strict"
	_, err := cfg.Build(nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "gate.mode"))
}

func TestRuntimeCalculator_UsesProfileEstimator(t *testing.T) {
	cfg := Default()
	cfg.Covariance.Shrinkage = 0.5
	rt, err := cfg.Build(nil)
	require.NoError(t, err)

	p := &contracts.Portfolio{
		Cash: 0,
		Positions: []contracts.Position{
			{Symbol: "A", Quantity: 10, CurrentPrice: 100},
			{Symbol: "B", Quantity: 10, CurrentPrice: 100},
		},
	}
	p.Recalculate()

	returns := [][]float64{
		{0.01, -0.02, 0.015, -0.005, 0.02, -0.01, 0.005, -0.015, 0.01, 0.0},
		{0.02, -0.01, 0.01, -0.02, 0.015, -0.005, 0.01, -0.01, 0.005, 0.01},
	}
	metrics, err := rt.Calculator(nil, nil, nil).Calculate(context.Background(), risk.CalculationInput{
		Portfolio:    p,
		AssetReturns: returns,
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.ComponentVaRAnalytic, metrics.ComponentVaRMethod)
	assert.Greater(t, metrics.PortfolioVaR, 0.0)
}
