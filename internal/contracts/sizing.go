package contracts

// Action 포지션 조정 방향
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionHold  Action = "hold"
	ActionClose Action = "close" // 전량 청산
)

// SizingMethod 사이징 방식
type SizingMethod string

const (
	SizingKelly      SizingMethod = "kelly"
	SizingVolatility SizingMethod = "volatility_target"
	SizingRiskParity SizingMethod = "risk_parity"
)

// SizingDecision 사이징 결과
// ⭐ 한도 위반 시 Action=hold, TargetQuantity=현재 수량
type SizingDecision struct {
	Symbol         string       `json:"symbol"`
	Action         Action       `json:"action"`
	TargetQuantity float64      `json:"target_quantity"`
	TargetValue    float64      `json:"target_value"`
	Method         SizingMethod `json:"method"`
	Reason         string       `json:"reason"`
	Violations     []string     `json:"violations,omitempty"`
}

// Blocked 리스크 한도로 차단되었는지
func (d SizingDecision) Blocked() bool {
	return len(d.Violations) > 0
}
