package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Limit Check (Gate용 - 순수 계산)
// =============================================================================

// CheckLimits 리스크 한도 체크
// 차단 항목은 maxDrawdown → maxVaR → minCashRatio → maxLeverage 순으로 기록
// 0 이하 한도는 비활성으로 간주
func CheckLimits(p *contracts.Portfolio, metrics *contracts.RiskMetrics, limits contracts.RiskLimits) *LimitCheckResult {
	result := &LimitCheckResult{
		Passed:     true,
		Violations: make([]Violation, 0),
		Warnings:   make([]Violation, 0),
		CheckedAt:  time.Now(),
	}

	if limits.MaxDrawdown > 0 && p.MaxDrawdown > limits.MaxDrawdown {
		result.Violations = append(result.Violations, Violation{
			Kind:    LimitMaxDrawdown,
			Value:   p.MaxDrawdown,
			Limit:   limits.MaxDrawdown,
			Message: fmt.Sprintf("max drawdown %.2f%% exceeds limit %.2f%%", p.MaxDrawdown*100, limits.MaxDrawdown*100),
		})
	}

	if metrics != nil && limits.MaxVaR > 0 && metrics.PortfolioVaR > limits.MaxVaR {
		result.Violations = append(result.Violations, Violation{
			Kind:    LimitMaxVaR,
			Value:   metrics.PortfolioVaR,
			Limit:   limits.MaxVaR,
			Message: fmt.Sprintf("VaR %.2f%% exceeds limit %.2f%%", metrics.PortfolioVaR*100, limits.MaxVaR*100),
		})
	}

	if limits.MinCashRatio > 0 {
		cashRatio := p.CashRatio()
		if cashRatio < limits.MinCashRatio {
			result.Violations = append(result.Violations, Violation{
				Kind:    LimitMinCashRatio,
				Value:   cashRatio,
				Limit:   limits.MinCashRatio,
				Message: fmt.Sprintf("cash ratio %.2f%% below minimum %.2f%%", cashRatio*100, limits.MinCashRatio*100),
			})
		}
	}

	leverage := LeverageRatio(p)
	if metrics != nil {
		leverage = metrics.LeverageRatio
	}
	if limits.MaxLeverage > 0 && leverage > limits.MaxLeverage {
		result.Violations = append(result.Violations, Violation{
			Kind:    LimitMaxLeverage,
			Value:   leverage,
			Limit:   limits.MaxLeverage,
			Message: fmt.Sprintf("leverage %.2f exceeds limit %.2f", leverage, limits.MaxLeverage),
		})
	}

	// 비중 한도는 경고만
	if limits.MaxPositionWeight > 0 {
		for _, pos := range p.Positions {
			if pos.Weight > limits.MaxPositionWeight {
				result.Warnings = append(result.Warnings, Violation{
					Kind:    LimitPositionWeight,
					Subject: pos.Symbol,
					Value:   pos.Weight,
					Limit:   limits.MaxPositionWeight,
					Message: fmt.Sprintf("%s weight %.2f%% exceeds limit %.2f%%", pos.Symbol, pos.Weight*100, limits.MaxPositionWeight*100),
				})
			}
		}
	}

	if limits.MaxSectorWeight > 0 && metrics != nil {
		sectors := make([]string, 0, len(metrics.SectorExposure))
		for s := range metrics.SectorExposure {
			sectors = append(sectors, s)
		}
		sort.Strings(sectors)
		for _, s := range sectors {
			w := metrics.SectorExposure[s]
			if w > limits.MaxSectorWeight {
				result.Warnings = append(result.Warnings, Violation{
					Kind:    LimitSectorWeight,
					Subject: s,
					Value:   w,
					Limit:   limits.MaxSectorWeight,
					Message: fmt.Sprintf("sector %s weight %.2f%% exceeds limit %.2f%%", s, w*100, limits.MaxSectorWeight*100),
				})
			}
		}
	}

	result.Passed = len(result.Violations) == 0
	return result
}
