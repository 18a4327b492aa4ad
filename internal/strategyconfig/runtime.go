package strategyconfig

import (
	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/internal/risk"
	"github.com/wonny/stockrisk/internal/sizing"
	"github.com/wonny/stockrisk/pkg/logger"
)

// Runtime 프로파일로 구성한 계산기 묶음
type Runtime struct {
	Profile    *Config
	Limits     contracts.RiskLimits
	Params     sizing.Params
	Bounds     sizing.Bounds
	Gate       *sizing.Gate
	Parity     *sizing.RiskParity
	Sizer      *sizing.Sizer
	Advisor    *sizing.KellyAdvisor
	Estimator  *covariance.Estimator
	Confidence float64
	MonteCarlo risk.MonteCarloConfig
	Scenarios  []risk.Scenario
	StopLoss   contracts.StopLossConfig
	TakeProfit contracts.TakeProfitConfig
}

// Build 검증된 프로파일에서 Runtime 생성
func (c *Config) Build(log *logger.Logger) (*Runtime, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}

	mode, err := sizing.ParseGateMode(c.Gate.Mode)
	if err != nil {
		return nil, err
	}
	sl, err := c.Exit.StopLoss.Build()
	if err != nil {
		return nil, err
	}
	tp, err := c.Exit.TakeProfit.Build()
	if err != nil {
		return nil, err
	}

	estimator := &covariance.Estimator{
		ReturnType: covariance.ReturnType(c.Covariance.ReturnType),
		Shrinkage:  c.Covariance.Shrinkage,
	}

	var optimizer sizing.Optimizer
	switch c.RiskParity.Optimizer {
	case OptimizerNewton:
		optimizer = &sizing.NewtonOptimizer{
			Tolerance:     c.RiskParity.Tolerance,
			MaxIterations: c.RiskParity.MaxIterations,
		}
	default:
		optimizer = &sizing.FixedPointOptimizer{
			Tolerance:     c.RiskParity.Tolerance,
			MaxIterations: c.RiskParity.MaxIterations,
			Damping:       c.RiskParity.Damping,
		}
	}

	gate := sizing.NewGate(c.Limits, mode, log)
	parity := sizing.NewRiskParity(optimizer, estimator)

	advisor := sizing.NewKellyAdvisor()
	advisor.MaxKellyFraction = c.Kelly.MaxFraction
	advisor.MinSampleSize = c.Kelly.MinSampleSize
	advisor.ConservativeBias = c.Kelly.ConservativeBias
	advisor.LotSize = c.Sizing.LotSize

	return &Runtime{
		Profile:    c,
		Limits:     c.Limits,
		Params:     c.Sizing,
		Bounds:     c.RiskParity.Bounds,
		Gate:       gate,
		Parity:     parity,
		Sizer:      sizing.NewSizer(c.Sizing, gate, parity, log),
		Advisor:    advisor,
		Estimator:  estimator,
		Confidence: c.VaR.Confidence,
		MonteCarlo: c.VaR.MonteCarlo,
		Scenarios:  c.Stress,
		StopLoss:   sl,
		TakeProfit: tp,
	}, nil
}

// Calculator 프로파일의 공분산 추정기를 쓰는 리스크 계산기
func (r *Runtime) Calculator(sectors risk.SectorLookup, volumes risk.VolumeLookup, log *logger.Logger) *risk.Calculator {
	return risk.NewCalculator(sectors, volumes, log).WithEstimator(r.Estimator)
}
