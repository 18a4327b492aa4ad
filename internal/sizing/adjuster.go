package sizing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Portfolio Adjuster - 포트폴리오 단위 동적 비중 조정
// =============================================================================

// TrendDirection 시장 추세
type TrendDirection string

const (
	TrendBull     TrendDirection = "bull"
	TrendBear     TrendDirection = "bear"
	TrendSideways TrendDirection = "sideways"
)

// CorrelationLevel 자산 간 상관 수준
type CorrelationLevel string

const (
	CorrelationLow    CorrelationLevel = "low"
	CorrelationMedium CorrelationLevel = "medium"
	CorrelationHigh   CorrelationLevel = "high"
)

// LiquidityCondition 시장 유동성 상태
type LiquidityCondition string

const (
	LiquidityNormal   LiquidityCondition = "normal"
	LiquidityStressed LiquidityCondition = "stressed"
	LiquidityCrisis   LiquidityCondition = "crisis"
)

// MarketRegime 포트폴리오 조정용 시장 국면
type MarketRegime struct {
	Volatility  VolatilityRegime   `json:"volatility_level"`
	Trend       TrendDirection     `json:"trend_direction"`
	Correlation CorrelationLevel   `json:"correlation_level"`
	Liquidity   LiquidityCondition `json:"liquidity_condition"`
}

// AdjustmentSignal 종목별 조정 신호
type AdjustmentSignal struct {
	Symbol          string            `json:"symbol"`
	CurrentWeight   float64           `json:"current_weight"`
	TargetWeight    float64           `json:"target_weight"`
	CurrentQuantity float64           `json:"current_quantity"`
	TargetQuantity  float64           `json:"target_quantity"`
	Action          contracts.Action  `json:"action"`
	Urgency         contracts.Urgency `json:"urgency"`
	Reason          string            `json:"reason"`
	ExpectedImpact  float64           `json:"expected_impact"` // |Δ비중|
	Confidence      float64           `json:"confidence"`
}

// AdjustmentPlan 조정 결과
// ⭐ 게이트 차단 시 매도/청산만 남기고 매수는 Suppressed 로 분리
type AdjustmentPlan struct {
	TargetVolatility float64            `json:"target_volatility"`
	Signals          []AdjustmentSignal `json:"signals"`
	Suppressed       []AdjustmentSignal `json:"suppressed,omitempty"`
	Gate             *GateResult        `json:"gate,omitempty"`
}

// 조정 비율
const (
	takeProfitTrimRatio = 0.5
	drawdownTrimRatio   = 0.3
	extremeTrimRatio    = 0.5
	highVolTrimRatio    = 0.2
	bearTrimRatio       = 0.3
	lowVolAddRatio      = 0.1
	lowVolMinCashRatio  = 0.2
	diversifyBand       = 0.05
	minWeightChange     = 0.01
)

// Adjuster 동적 포지션 조정기 (순수 계산)
type Adjuster struct {
	params Params
	limits contracts.RiskLimits
}

// NewAdjuster 새 조정기
func NewAdjuster(params Params, limits contracts.RiskLimits) *Adjuster {
	return &Adjuster{params: params, limits: limits}
}

// TargetVolatility 국면 반영 목표 변동성
// extreme ×0.5, high ×0.7, low ×1.2 후 [floor, ceiling] 로 자름
func (a *Adjuster) TargetVolatility(regime MarketRegime) float64 {
	target := a.params.TargetVolatility
	switch regime.Volatility {
	case RegimeExtremeVolatility:
		target *= 0.5
	case RegimeHighVolatility:
		target *= 0.7
	case RegimeLowVolatility:
		target *= 1.2
	}
	if a.params.VolatilityCeiling > 0 {
		target = math.Min(target, a.params.VolatilityCeiling)
	}
	return math.Max(target, a.params.VolatilityFloor)
}

// Signals 변동성 타겟 → 리스크 통제 → 국면 조정 신호를 모아 종목별로 병합
// 결과는 긴급도 내림차순
func (a *Adjuster) Signals(p *contracts.Portfolio, regime MarketRegime) []AdjustmentSignal {
	if p == nil || p.TotalValue <= 0 || len(p.Positions) == 0 {
		return make([]AdjustmentSignal, 0)
	}

	signals := a.volatilitySignals(p, regime)
	signals = append(signals, a.riskControlSignals(p)...)
	signals = append(signals, a.regimeSignals(p, regime)...)

	return MergeSignals(signals)
}

func (a *Adjuster) volatilitySignals(p *contracts.Portfolio, regime MarketRegime) []AdjustmentSignal {
	signals := make([]AdjustmentSignal, 0)
	current := p.Volatility
	target := a.TargetVolatility(regime)
	if current <= 0 || target <= 0 {
		return signals
	}

	deviation := (current - target) / target
	if math.Abs(deviation) <= a.params.VolatilityBand {
		return signals
	}
	scale := target / current

	for _, pos := range p.Positions {
		if pos.CurrentPrice <= 0 {
			continue
		}
		weight := math.Min(math.Max(pos.Weight*scale, a.params.MinPositionSize), a.maxWeight())
		if math.Abs(weight-pos.Weight) <= minWeightChange {
			continue
		}
		quantity := RoundToLot(weight*p.TotalValue/pos.CurrentPrice, a.params.LotSize)
		action := contracts.ActionSell
		if quantity > pos.Quantity {
			action = contracts.ActionBuy
		}
		signals = append(signals, AdjustmentSignal{
			Symbol:          pos.Symbol,
			CurrentWeight:   pos.Weight,
			TargetWeight:    weight,
			CurrentQuantity: pos.Quantity,
			TargetQuantity:  quantity,
			Action:          action,
			Urgency:         volatilityUrgency(math.Abs(deviation)),
			Reason:          fmt.Sprintf("volatility target: %.2f%% → %.2f%%", current*100, target*100),
			ExpectedImpact:  math.Abs(weight - pos.Weight),
			Confidence:      volatilityConfidence(regime),
		})
	}
	return signals
}

func (a *Adjuster) riskControlSignals(p *contracts.Portfolio) []AdjustmentSignal {
	signals := make([]AdjustmentSignal, 0)
	limits := a.limits

	for _, pos := range p.Positions {
		pnl := pos.UnrealizedPnLPercent

		if limits.StopLossPercent > 0 && pnl <= -limits.StopLossPercent {
			signals = append(signals, AdjustmentSignal{
				Symbol:          pos.Symbol,
				CurrentWeight:   pos.Weight,
				CurrentQuantity: pos.Quantity,
				Action:          contracts.ActionClose,
				Urgency:         contracts.UrgencyCritical,
				Reason:          fmt.Sprintf("stop-loss hit: %.2f%%", pnl*100),
				ExpectedImpact:  pos.Weight,
				Confidence:      0.95,
			})
		}

		if limits.TakeProfitPercent > 0 && pnl >= limits.TakeProfitPercent {
			signals = append(signals, a.trim(p, pos, takeProfitTrimRatio, contracts.UrgencyMedium, 0.8,
				fmt.Sprintf("take-profit hit: %.2f%%", pnl*100)))
		}

		if limits.MaxPositionWeight > 0 && pos.Weight > limits.MaxPositionWeight && pos.CurrentPrice > 0 {
			target := limits.MaxPositionWeight
			signals = append(signals, AdjustmentSignal{
				Symbol:          pos.Symbol,
				CurrentWeight:   pos.Weight,
				TargetWeight:    target,
				CurrentQuantity: pos.Quantity,
				TargetQuantity:  RoundToLot(target*p.TotalValue/pos.CurrentPrice, a.params.LotSize),
				Action:          contracts.ActionSell,
				Urgency:         contracts.UrgencyHigh,
				Reason:          fmt.Sprintf("concentration %.2f%% > %.2f%%", pos.Weight*100, target*100),
				ExpectedImpact:  pos.Weight - target,
				Confidence:      0.9,
			})
		}
	}

	if limits.MaxDrawdown > 0 && p.MaxDrawdown > limits.MaxDrawdown {
		reason := fmt.Sprintf("max drawdown %.2f%% > %.2f%%", p.MaxDrawdown*100, limits.MaxDrawdown*100)
		for _, pos := range p.Positions {
			signals = append(signals, a.trim(p, pos, drawdownTrimRatio, contracts.UrgencyCritical, 0.95, reason))
		}
	}
	return signals
}

// regimeSignals extreme/high 는 방어 신호만, low 는 현금 여유가 있으면 공격 신호
// 그 외에는 하락 추세 → 방어, 높은 상관 → 분산
func (a *Adjuster) regimeSignals(p *contracts.Portfolio, regime MarketRegime) []AdjustmentSignal {
	switch regime.Volatility {
	case RegimeExtremeVolatility:
		return a.defensive(p, extremeTrimRatio, "extreme volatility defense")
	case RegimeHighVolatility:
		return a.defensive(p, highVolTrimRatio, "high volatility defense")
	case RegimeLowVolatility:
		if p.Cash/p.TotalValue > lowVolMinCashRatio {
			return a.aggressive(p, lowVolAddRatio, "low volatility opportunity")
		}
	}

	if regime.Trend == TrendBear {
		return a.defensive(p, bearTrimRatio, "bear market defense")
	}
	if regime.Correlation == CorrelationHigh {
		return a.diversify(p, "high correlation diversification")
	}
	return make([]AdjustmentSignal, 0)
}

func (a *Adjuster) defensive(p *contracts.Portfolio, ratio float64, reason string) []AdjustmentSignal {
	signals := make([]AdjustmentSignal, 0, len(p.Positions))
	for _, pos := range p.Positions {
		signals = append(signals, a.trim(p, pos, ratio, contracts.UrgencyHigh, 0.8, reason))
	}
	return signals
}

func (a *Adjuster) aggressive(p *contracts.Portfolio, ratio float64, reason string) []AdjustmentSignal {
	signals := make([]AdjustmentSignal, 0)
	maxWeight := a.maxWeight()
	for _, pos := range p.Positions {
		if pos.Weight >= maxWeight || pos.CurrentPrice <= 0 {
			continue
		}
		increase := math.Min(ratio, maxWeight-pos.Weight)
		target := pos.Weight + increase
		signals = append(signals, AdjustmentSignal{
			Symbol:          pos.Symbol,
			CurrentWeight:   pos.Weight,
			TargetWeight:    target,
			CurrentQuantity: pos.Quantity,
			TargetQuantity:  RoundToLot(target*p.TotalValue/pos.CurrentPrice, a.params.LotSize),
			Action:          contracts.ActionBuy,
			Urgency:         contracts.UrgencyMedium,
			Reason:          reason,
			ExpectedImpact:  increase,
			Confidence:      0.7,
		})
	}
	return signals
}

func (a *Adjuster) diversify(p *contracts.Portfolio, reason string) []AdjustmentSignal {
	signals := make([]AdjustmentSignal, 0)
	equal := 1 / float64(len(p.Positions))
	for _, pos := range p.Positions {
		deviation := pos.Weight - equal
		if math.Abs(deviation) <= diversifyBand || pos.CurrentPrice <= 0 {
			continue
		}
		quantity := RoundToLot(equal*p.TotalValue/pos.CurrentPrice, a.params.LotSize)
		action := contracts.ActionSell
		if quantity > pos.Quantity {
			action = contracts.ActionBuy
		}
		signals = append(signals, AdjustmentSignal{
			Symbol:          pos.Symbol,
			CurrentWeight:   pos.Weight,
			TargetWeight:    equal,
			CurrentQuantity: pos.Quantity,
			TargetQuantity:  quantity,
			Action:          action,
			Urgency:         contracts.UrgencyMedium,
			Reason:          reason,
			ExpectedImpact:  math.Abs(deviation),
			Confidence:      0.75,
		})
	}
	return signals
}

// trim 보유 수량을 ratio 만큼 줄이는 매도 신호
func (a *Adjuster) trim(p *contracts.Portfolio, pos contracts.Position, ratio float64, urgency contracts.Urgency, confidence float64, reason string) AdjustmentSignal {
	quantity := RoundToLot(pos.Quantity*(1-ratio), a.params.LotSize)
	weight := safeDiv(quantity*pos.CurrentPrice, p.TotalValue)
	return AdjustmentSignal{
		Symbol:          pos.Symbol,
		CurrentWeight:   pos.Weight,
		TargetWeight:    weight,
		CurrentQuantity: pos.Quantity,
		TargetQuantity:  quantity,
		Action:          contracts.ActionSell,
		Urgency:         urgency,
		Reason:          reason,
		ExpectedImpact:  pos.Weight - weight,
		Confidence:      confidence,
	}
}

func (a *Adjuster) maxWeight() float64 {
	if a.limits.MaxPositionWeight > 0 {
		return a.limits.MaxPositionWeight
	}
	return 1
}

func volatilityUrgency(deviation float64) contracts.Urgency {
	switch {
	case deviation > 0.5:
		return contracts.UrgencyCritical
	case deviation > 0.3:
		return contracts.UrgencyHigh
	case deviation > 0.15:
		return contracts.UrgencyMedium
	}
	return contracts.UrgencyLow
}

func volatilityConfidence(regime MarketRegime) float64 {
	confidence := 0.7
	switch regime.Liquidity {
	case LiquidityNormal, "":
		confidence += 0.1
	case LiquidityCrisis:
		confidence -= 0.2
	}
	return math.Max(0.3, math.Min(confidence, 0.95))
}

func urgencyRank(u contracts.Urgency) int {
	switch u {
	case contracts.UrgencyCritical:
		return 4
	case contracts.UrgencyHigh:
		return 3
	case contracts.UrgencyMedium:
		return 2
	}
	return 1
}

// MergeSignals 종목별로 하나로 병합 후 긴급도 내림차순 정렬
//   - 기준 신호: 가장 긴급한 신호 (동률이면 먼저 나온 것)
//   - 사유는 "; " 로 연결, 신뢰도는 평균
func MergeSignals(signals []AdjustmentSignal) []AdjustmentSignal {
	order := make([]string, 0)
	grouped := make(map[string][]AdjustmentSignal)
	for _, s := range signals {
		if _, ok := grouped[s.Symbol]; !ok {
			order = append(order, s.Symbol)
		}
		grouped[s.Symbol] = append(grouped[s.Symbol], s)
	}

	merged := make([]AdjustmentSignal, 0, len(order))
	for _, symbol := range order {
		group := grouped[symbol]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}

		base := group[0]
		reasons := make([]string, 0, len(group))
		confidence := 0.0
		for _, s := range group {
			if urgencyRank(s.Urgency) > urgencyRank(base.Urgency) {
				base = s
			}
			reasons = append(reasons, s.Reason)
			confidence += s.Confidence
		}
		base.Reason = strings.Join(reasons, "; ")
		base.Confidence = confidence / float64(len(group))
		merged = append(merged, base)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return urgencyRank(merged[i].Urgency) > urgencyRank(merged[j].Urgency)
	})
	return merged
}
