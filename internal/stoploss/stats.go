package stoploss

import "github.com/wonny/stockrisk/internal/contracts"

// Statistics 손절/익절 주문 통계
type Statistics struct {
	TotalOrders      int     `json:"total_orders"`
	PendingOrders    int     `json:"pending_orders"`
	TriggeredOrders  int     `json:"triggered_orders"`
	ExecutedOrders   int     `json:"executed_orders"`
	CancelledOrders  int     `json:"cancelled_orders"`
	StopLossOrders   int     `json:"stop_loss_orders"`
	TakeProfitOrders int     `json:"take_profit_orders"`
	SuccessRate      float64 `json:"success_rate"` // executed / total
}

func computeStatistics(orders []contracts.StopLossOrder) Statistics {
	var s Statistics
	s.TotalOrders = len(orders)

	for _, o := range orders {
		switch o.Status {
		case contracts.OrderPending:
			s.PendingOrders++
		case contracts.OrderTriggered:
			s.TriggeredOrders++
		case contracts.OrderExecuted:
			s.ExecutedOrders++
		case contracts.OrderCancelled:
			s.CancelledOrders++
		}

		switch o.Type {
		case contracts.OrderTypeStopLoss:
			s.StopLossOrders++
		case contracts.OrderTypeTakeProfit:
			s.TakeProfitOrders++
		}
	}

	if s.TotalOrders > 0 {
		s.SuccessRate = float64(s.ExecutedOrders) / float64(s.TotalOrders)
	}
	return s
}
