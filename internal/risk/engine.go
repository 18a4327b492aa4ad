package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
	"github.com/wonny/stockrisk/pkg/logger"
)

// =============================================================================
// Calculator - 순수 계산기
// =============================================================================

// Calculator 포트폴리오 리스크 지표 계산기
// ⭐ SSOT: 데이터 수집은 상위 레이어(API/스케줄러)에서 조립
// internal/risk는 순수 계산만 담당
type Calculator struct {
	sectors   SectorLookup
	volumes   VolumeLookup
	estimator *covariance.Estimator
	logger    *logger.Logger
	now       func() time.Time
}

// NewCalculator 새 계산기 생성 (lookup/logger는 nil 허용)
func NewCalculator(sectors SectorLookup, volumes VolumeLookup, log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	return &Calculator{
		sectors:   sectors,
		volumes:   volumes,
		estimator: covariance.NewEstimator(),
		logger:    log.Component("risk"),
		now:       time.Now,
	}
}

// WithEstimator 공분산 추정기 교체 (nil 이면 유지)
func (c *Calculator) WithEstimator(e *covariance.Estimator) *Calculator {
	if e != nil {
		c.estimator = e
	}
	return c
}

// Calculate 리스크 지표 일괄 계산
func (c *Calculator) Calculate(ctx context.Context, in CalculationInput) (*contracts.RiskMetrics, error) {
	const op = "risk.Calculate"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Portfolio == nil {
		return nil, contracts.NewConfigError(op, "portfolio", nil, "portfolio is required")
	}

	confidence := in.Confidence
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, contracts.NewConfigError(op, "confidence", nil, "confidence %.4f must be between 0 and 1", confidence)
	}

	p := in.Portfolio
	n := len(p.Positions)
	if len(in.AssetReturns) > 0 && len(in.AssetReturns) != n {
		return nil, contracts.NewConfigError(op, "asset_returns", nil,
			"got %d return series for %d positions", len(in.AssetReturns), n)
	}

	weights := p.Weights()

	portfolioReturns := in.PortfolioReturns
	if len(portfolioReturns) == 0 && len(in.AssetReturns) > 0 {
		portfolioReturns = PortfolioReturns(weights, in.AssetReturns)
	}

	var cov *contracts.CovarianceMatrix
	switch {
	case in.Covariance != nil:
		// 전달받은 행렬은 고유값부터 다시 계산해 검증
		symbols := in.Covariance.Symbols
		if len(symbols) == 0 {
			symbols = p.Symbols()
		}
		supplied, err := covariance.FromMatrix(symbols, in.Covariance.Matrix)
		if err != nil {
			return nil, err
		}
		if supplied.Size() != n {
			return nil, contracts.NewConfigError(op, "covariance", nil,
				"covariance is %dx%d for %d positions", supplied.Size(), supplied.Size(), n)
		}
		if err := supplied.RequirePositiveDefinite(); err != nil {
			return nil, err
		}
		cov = supplied

	case len(in.AssetReturns) > 0:
		est, err := c.estimator.FromReturns(p.Symbols(), alignTrailing(in.AssetReturns))
		if err != nil {
			c.logger.WithError(err).Debug("covariance estimation skipped")
			break
		}
		// 관측치 부족/완전 상관으로 특이 행렬이면 비례 배분으로 대체
		if err := est.RequirePositiveDefinite(); err != nil {
			c.logger.WithError(err).Warn("estimated covariance rejected")
			break
		}
		cov = est
	}

	varResult := CalculateVaR(portfolioReturns, confidence)
	liquidity, missing := LiquidityRisk(p, c.volumes)

	metrics := &contracts.RiskMetrics{
		PortfolioVaR:      varResult.VaR,
		ExpectedShortfall: varResult.CVaR,
		ConcentrationRisk: ConcentrationRisk(p),
		SectorExposure:    SectorExposure(p, c.sectors),
		CorrelationRisk:   CorrelationRisk(cov),
		LiquidityRisk:     liquidity,
		LeverageRatio:     LeverageRatio(p),
		Confidence:        confidence,
		MissingLiquidity:  missing,
		CalculatedAt:      c.now(),
	}

	if cov != nil {
		metrics.ComponentVaR = ComponentVaR(weights, cov, confidence)
		metrics.ComponentVaRMethod = contracts.ComponentVaRAnalytic
	} else {
		metrics.ComponentVaR = ProportionalComponentVaR(weights, varResult.VaR)
		metrics.ComponentVaRMethod = contracts.ComponentVaRProportional
	}

	c.logger.WithFields(map[string]interface{}{
		"positions":    n,
		"observations": len(portfolioReturns),
		"confidence":   confidence,
		"var":          fmt.Sprintf("%.4f", metrics.PortfolioVaR),
		"es":           fmt.Sprintf("%.4f", metrics.ExpectedShortfall),
		"method":       metrics.ComponentVaRMethod,
	}).Debug("risk metrics calculated")

	return metrics, nil
}

// VaR Historical VaR 계산
func (c *Calculator) VaR(returns []float64, confidence float64) VaRResult {
	return CalculateVaR(returns, confidence)
}

// ParametricVaR 정규분포 가정 VaR 계산
func (c *Calculator) ParametricVaR(returns []float64, confidence float64) VaRResult {
	return CalculateParametricVaR(Mean(returns), StdDev(returns), confidence)
}

// MonteCarlo 포트폴리오 수익률 Monte Carlo 시뮬레이션
func (c *Calculator) MonteCarlo(ctx context.Context, portfolioReturns []float64, config MonteCarloConfig) (*MonteCarloResult, error) {
	result, err := NewMonteCarloSimulator(config).SimulatePortfolio(ctx, portfolioReturns)
	if err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"simulations": config.NumSimulations,
		"method":      config.Method,
	}).Info("monte carlo simulation completed")

	return result, nil
}
