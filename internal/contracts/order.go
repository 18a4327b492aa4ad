package contracts

import "time"

// StopLossOrder 손절/익절 주문 레코드
// ⭐ SSOT: 주문 레코드는 삭제되지 않음 (상태 전이만)
type StopLossOrder struct {
	ID            string        `json:"id" msgpack:"id"`
	Symbol        string        `json:"symbol" msgpack:"symbol"`
	Type          OrderType     `json:"type" msgpack:"type"`
	TriggerPrice  float64       `json:"trigger_price" msgpack:"trigger_price"`
	Quantity      float64       `json:"quantity" msgpack:"quantity"`
	ExecutionType ExecutionType `json:"execution_type" msgpack:"execution_type"`
	LimitPrice    float64       `json:"limit_price,omitempty" msgpack:"limit_price"`
	Status        OrderStatus   `json:"status" msgpack:"status"`
	Reason        string        `json:"reason" msgpack:"reason"`
	LevelIndex    int           `json:"level_index" msgpack:"level_index"` // 익절 단계, 없으면 -1
	CreatedAt     time.Time     `json:"created_at" msgpack:"created_at"`
	TriggeredAt   *time.Time    `json:"triggered_at,omitempty" msgpack:"triggered_at"`
	ExecutedAt    *time.Time    `json:"executed_at,omitempty" msgpack:"executed_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty" msgpack:"cancelled_at"`
}

// OrderType 주문 종류
type OrderType string

const (
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeTakeProfit OrderType = "take_profit"
)

// ExecutionType 집행 방식
type ExecutionType string

const (
	ExecutionMarket ExecutionType = "market"
	ExecutionLimit  ExecutionType = "limit"
)

// OrderStatus 주문 상태
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderTriggered OrderStatus = "triggered"
	OrderExecuted  OrderStatus = "executed"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal 종료 상태 여부
func (s OrderStatus) IsTerminal() bool {
	return s == OrderExecuted || s == OrderCancelled
}

// CanTransitionTo 상태 전이 허용 여부
// pending → triggered → executed, pending → cancelled
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderTriggered || next == OrderCancelled
	case OrderTriggered:
		return next == OrderExecuted
	}
	return false
}

// IsPending 대기 여부
func (o *StopLossOrder) IsPending() bool {
	return o.Status == OrderPending
}
