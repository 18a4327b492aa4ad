package contracts

// SignalAction 손절 엔진 신호 종류
type SignalAction string

const (
	SignalStopLoss   SignalAction = "stop_loss"
	SignalTakeProfit SignalAction = "take_profit"
	SignalUpdateStop SignalAction = "update_stop"
	SignalCancelStop SignalAction = "cancel_stop"
)

// Urgency 신호 긴급도
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// StopLossSignal 손절/익절 신호
// ⭐ SSOT: StopLoss 엔진 → 호출자 신호 전달
type StopLossSignal struct {
	Symbol         string       `json:"symbol"`
	Action         SignalAction `json:"action"`
	TriggerPrice   float64      `json:"trigger_price"`
	Quantity       float64      `json:"quantity"`
	Reason         string       `json:"reason"`
	Urgency        Urgency      `json:"urgency"`
	Confidence     float64      `json:"confidence"` // 0~1
	ExpectedLoss   float64      `json:"expected_loss,omitempty"`
	ExpectedProfit float64      `json:"expected_profit,omitempty"`
	LevelIndex     int          `json:"level_index"` // 익절 단계, 없으면 -1
	OrderID        string       `json:"order_id,omitempty"`
}

// OrderType 신호에 대응하는 주문 종류
func (s StopLossSignal) OrderType() (OrderType, bool) {
	switch s.Action {
	case SignalStopLoss, SignalUpdateStop:
		return OrderTypeStopLoss, true
	case SignalTakeProfit:
		return OrderTypeTakeProfit, true
	}
	return "", false
}
