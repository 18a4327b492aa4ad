package portfolio

import (
	"slices"

	"github.com/wonny/stockrisk/internal/contracts"
)

// Constraints defines rebalance constraints
// ⭐ SSOT: 리밸런싱 제약조건은 여기서만
type Constraints struct {
	MaxWeight     float64  // 종목당 최대 비중 (0.0 ~ 1.0)
	CashReserve   float64  // 현금 보유 비중 (0.0 ~ 1.0)
	MinTradeValue float64  // 이보다 작은 주문은 생략
	LotSize       float64  // 주문 단위
	BlackList     []string // 매수 금지 종목 (보유분은 전량 매도)
}

// IsBlackListed checks if a symbol is in the blacklist
func (c *Constraints) IsBlackListed(symbol string) bool {
	return slices.Contains(c.BlackList, symbol)
}

// DefaultConstraints 리스크 한도에서 제약조건 도출
func DefaultConstraints(limits contracts.RiskLimits) Constraints {
	return Constraints{
		MaxWeight:     limits.MaxPositionWeight,
		CashReserve:   limits.MinCashRatio,
		MinTradeValue: 0,
		LotSize:       1,
		BlackList:     []string{},
	}
}
