package portfolio

import (
	"math"
	"sort"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/pkg/logger"
)

// Side 주문 방향
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade 리밸런싱 주문
type Trade struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	Value         float64 `json:"value"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
}

// Rebalancer 목표 비중 → 주문 목록
// ⭐ SSOT: 목표 비중을 수량으로 바꾸는 로직은 여기서만
type Rebalancer struct {
	constraints Constraints
	logger      *logger.Logger
}

// NewRebalancer creates a new rebalancer
func NewRebalancer(constraints Constraints, log *logger.Logger) *Rebalancer {
	if constraints.LotSize <= 0 {
		constraints.LotSize = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Rebalancer{constraints: constraints, logger: log}
}

// Revalue 시세 반영 후 평가금액/비중 재계산
func Revalue(p *contracts.Portfolio, prices map[string]float64) {
	for i := range p.Positions {
		if price, ok := prices[p.Positions[i].Symbol]; ok {
			p.Positions[i].ApplyPrice(price)
		}
	}
	p.Recalculate()
}

// TargetWeights 제약조건 적용한 목표 비중
// 블랙리스트는 0, 종목 상한 클리핑, 합계가 1-CashReserve 를 넘으면 비례 축소
func (r *Rebalancer) TargetWeights(targets map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(targets))
	total := 0.0
	for sym, w := range targets {
		if w < 0 || r.constraints.IsBlackListed(sym) {
			w = 0
		}
		if r.constraints.MaxWeight > 0 && w > r.constraints.MaxWeight {
			w = r.constraints.MaxWeight
		}
		out[sym] = w
		total += w
	}

	investable := 1 - r.constraints.CashReserve
	if total > investable && total > 0 {
		scale := investable / total
		for sym := range out {
			out[sym] *= scale
		}
	}
	return out
}

// Plan 현재 포트폴리오에서 목표 비중까지의 주문 (매도 먼저, 종목순)
// 가격은 prices 우선, 없으면 보유 포지션 현재가
func (r *Rebalancer) Plan(p *contracts.Portfolio, targets map[string]float64, prices map[string]float64) ([]Trade, error) {
	if p == nil || p.TotalValue <= 0 {
		return nil, contracts.NewConfigError("portfolio.Plan", "total_value", nil, "portfolio value must be positive")
	}
	weights := r.TargetWeights(targets)

	symbols := make(map[string]struct{}, len(weights)+len(p.Positions))
	for sym := range weights {
		symbols[sym] = struct{}{}
	}
	for _, pos := range p.Positions {
		symbols[pos.Symbol] = struct{}{}
	}

	trades := make([]Trade, 0, len(symbols))
	for sym := range symbols {
		var current contracts.Position
		if pos, ok := p.GetPosition(sym); ok {
			current = *pos
		}
		target := weights[sym]
		if r.constraints.IsBlackListed(sym) {
			target = 0
		}

		price := prices[sym]
		if price <= 0 {
			price = current.CurrentPrice
		}
		if price <= 0 {
			if target == 0 && current.Quantity == 0 {
				continue
			}
			return nil, contracts.NewConfigError("portfolio.Plan", sym, nil, "no price for %s", sym)
		}

		lot := r.constraints.LotSize
		targetQty := math.Floor(target*p.TotalValue/price/lot+1e-9) * lot
		delta := targetQty - current.Quantity
		if delta == 0 {
			continue
		}

		value := math.Abs(delta) * price
		if value < r.constraints.MinTradeValue {
			r.logger.WithFields(map[string]interface{}{
				"symbol": sym,
				"value":  value,
			}).Debug("Skipping small rebalance trade")
			continue
		}

		side := SideBuy
		if delta < 0 {
			side = SideSell
		}
		trades = append(trades, Trade{
			Symbol:        sym,
			Side:          side,
			Quantity:      math.Abs(delta),
			Price:         price,
			Value:         value,
			CurrentWeight: current.Weight,
			TargetWeight:  target,
		})
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Side != trades[j].Side {
			return trades[i].Side == SideSell
		}
		return trades[i].Symbol < trades[j].Symbol
	})
	return trades, nil
}
