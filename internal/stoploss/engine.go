package stoploss

import (
	"fmt"
	"time"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/pkg/logger"
)

// =============================================================================
// Engine - 손절/익절 엔진
// =============================================================================

// Engine 손절/익절 평가 + 주문 수명주기
// ⭐ SSOT: 가변 상태는 Registry 뿐, 평가는 순수 함수
type Engine struct {
	registry  *Registry
	history   *PriceHistory
	logger    *logger.Logger
	atrPeriod int
}

// NewEngine 새 엔진 생성 (logger nil 허용)
func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		registry:  NewRegistry(),
		history:   NewPriceHistory(),
		logger:    log.Component("stoploss"),
		atrPeriod: DefaultATRPeriod,
	}
}

// Registry 주문 레지스트리
func (e *Engine) Registry() *Registry {
	return e.registry
}

// History 가격 이력
func (e *Engine) History() *PriceHistory {
	return e.history
}

// Evaluate 포지션을 손절/익절 설정으로 평가
// 순서: 손절 → 익절 → 추적 가격 갱신, 신호 없으면 빈 슬라이스
func (e *Engine) Evaluate(pos *contracts.Position, sl contracts.StopLossConfig, tp contracts.TakeProfitConfig, now time.Time) []contracts.StopLossSignal {
	signals := make([]contracts.StopLossSignal, 0)
	if pos == nil || pos.IsClosed() {
		return signals
	}

	if sl.Active() {
		anchor := 0.0
		if order, found := e.registry.Pending(pos.Symbol, contracts.OrderTypeStopLoss); found {
			anchor = order.TriggerPrice
		}
		if s := checkStopLoss(pos, sl.Rule, now, anchor); s != nil {
			signals = append(signals, *s)
		}
	}
	if tp.Active() {
		anchor := 0.0
		if order, found := e.registry.Pending(pos.Symbol, contracts.OrderTypeTakeProfit); found && order.LevelIndex < 0 {
			anchor = order.TriggerPrice
		}
		signals = append(signals, checkTakeProfit(pos, tp.Rule, anchor)...)
	}
	signals = append(signals, e.updateSignals(pos, sl, tp)...)

	return signals
}

// updateSignals 추적 손절/익절 래칫 (기존 대기 주문보다 엄격히 높을 때만)
func (e *Engine) updateSignals(pos *contracts.Position, sl contracts.StopLossConfig, tp contracts.TakeProfitConfig) []contracts.StopLossSignal {
	signals := make([]contracts.StopLossSignal, 0)

	if sl.Active() {
		if r, ok := sl.Rule.(contracts.TrailingStop); ok {
			next := highestOf(pos) * (1 - r.Distance)
			if order, found := e.registry.Pending(pos.Symbol, contracts.OrderTypeStopLoss); found && roundPrice(next) > roundPrice(order.TriggerPrice) {
				signals = append(signals, contracts.StopLossSignal{
					Symbol:       pos.Symbol,
					Action:       contracts.SignalUpdateStop,
					TriggerPrice: next,
					Quantity:     pos.Quantity,
					Reason:       "raise trailing stop",
					Urgency:      contracts.UrgencyLow,
					Confidence:   0.9,
					LevelIndex:   -1,
					OrderID:      order.ID,
				})
			}
		}
	}

	if tp.Active() {
		if r, ok := tp.Rule.(contracts.TrailingTakeProfit); ok {
			next, active := TrailingTakeProfitTrigger(pos, r)
			if active {
				if order, found := e.registry.Pending(pos.Symbol, contracts.OrderTypeTakeProfit); found && roundPrice(next) > roundPrice(order.TriggerPrice) {
					signals = append(signals, contracts.StopLossSignal{
						Symbol:       pos.Symbol,
						Action:       contracts.SignalUpdateStop,
						TriggerPrice: next,
						Quantity:     pos.Quantity,
						Reason:       "raise trailing take-profit",
						Urgency:      contracts.UrgencyLow,
						Confidence:   0.85,
						LevelIndex:   -1,
						OrderID:      order.ID,
					})
				}
			}
		}
	}

	return signals
}

// ProcessPrice 가격 반영 → 평가 → 주문 레지스트리 구동
//   - update_stop: 대기 주문 트리거 상향 (발동 처리보다 먼저)
//   - stop_loss/take_profit: 대기 주문 triggered 전이 (없으면 생성 후 전이, 이미 triggered면 재사용)
//   - 가격 기반 손절/활성 추적 익절은 대기 주문이 없으면 새로 건다
//
// 청산된 포지션은 남은 대기 주문을 취소하고 cancel_stop 신호 반환
func (e *Engine) ProcessPrice(pos *contracts.Position, price float64, sl contracts.StopLossConfig, tp contracts.TakeProfitConfig, now time.Time) ([]contracts.StopLossSignal, error) {
	if pos == nil {
		return make([]contracts.StopLossSignal, 0), nil
	}
	if pos.IsClosed() {
		return e.CancelAll(pos.Symbol, "position closed"), nil
	}

	pos.ApplyPrice(price)
	e.history.Add(pos.Symbol, pos.CurrentPrice)

	if _, isATR := sl.Rule.(contracts.ATRStop); isATR && pos.ATR == 0 {
		pos.ATR = e.history.ApproxATR(pos.Symbol, e.atrPeriod)
	}

	signals := e.Evaluate(pos, sl, tp, now)

	// 트리거 상향을 먼저 반영해야 같은 평가에서 발동되는 주문이 올린 가격으로 triggered 된다
	for i := range signals {
		sig := &signals[i]
		if sig.Action != contracts.SignalUpdateStop {
			continue
		}
		if _, err := e.registry.UpdateTrigger(sig.OrderID, sig.TriggerPrice); err != nil {
			return signals, fmt.Errorf("update trigger: %w", err)
		}
	}
	for i := range signals {
		sig := &signals[i]
		if sig.Action != contracts.SignalStopLoss && sig.Action != contracts.SignalTakeProfit {
			continue
		}
		id, err := e.trigger(sig)
		if err != nil {
			return signals, err
		}
		sig.OrderID = id
	}

	e.arm(pos, sl, tp)

	if len(signals) > 0 {
		e.logger.WithSymbol(pos.Symbol).WithFields(map[string]interface{}{
			"price":   pos.CurrentPrice,
			"signals": len(signals),
			"first":   signals[0].Action,
		}).Info("Stop-loss signals emitted")
	}

	return signals, nil
}

// trigger 신호에 대응하는 주문을 triggered 로
func (e *Engine) trigger(sig *contracts.StopLossSignal) (string, error) {
	orderType, _ := sig.OrderType()

	order, found := e.registry.Active(sig.Symbol, orderType, sig.LevelIndex)
	if found && order.Status == contracts.OrderTriggered {
		return order.ID, nil
	}
	if !found {
		order = e.registry.Create(OrderRequest{
			Symbol:       sig.Symbol,
			Type:         orderType,
			TriggerPrice: sig.TriggerPrice,
			Quantity:     sig.Quantity,
			Reason:       sig.Reason,
			LevelIndex:   sig.LevelIndex,
		})
	}

	if _, err := e.registry.Trigger(order.ID); err != nil {
		return order.ID, fmt.Errorf("trigger order: %w", err)
	}
	return order.ID, nil
}

// arm 가격 기반 손절/활성 추적 익절 대기 주문 생성
func (e *Engine) arm(pos *contracts.Position, sl contracts.StopLossConfig, tp contracts.TakeProfitConfig) {
	if sl.Active() {
		if trigger, ok := StopTrigger(pos, sl.Rule); ok {
			if _, found := e.registry.Active(pos.Symbol, contracts.OrderTypeStopLoss, -1); !found {
				e.registry.Create(OrderRequest{
					Symbol:       pos.Symbol,
					Type:         contracts.OrderTypeStopLoss,
					TriggerPrice: trigger,
					Quantity:     pos.Quantity,
					Reason:       stopReason(sl.Rule),
					LevelIndex:   -1,
				})
			}
		}
	}

	if tp.Active() {
		if r, ok := tp.Rule.(contracts.TrailingTakeProfit); ok {
			if trigger, active := TrailingTakeProfitTrigger(pos, r); active {
				if _, found := e.registry.Active(pos.Symbol, contracts.OrderTypeTakeProfit, -1); !found {
					e.registry.Create(OrderRequest{
						Symbol:       pos.Symbol,
						Type:         contracts.OrderTypeTakeProfit,
						TriggerPrice: trigger,
						Quantity:     pos.Quantity,
						Reason:       fmt.Sprintf("trailing take-profit %.1f%%", r.Distance*100),
						LevelIndex:   -1,
					})
				}
			}
		}
	}
}

// Execute triggered → executed, 익절 단계 주문이면 tp 의 해당 단계 체결 표시
func (e *Engine) Execute(id string, tp *contracts.TakeProfitConfig) (contracts.StopLossOrder, error) {
	order, err := e.registry.Execute(id)
	if err != nil {
		return order, err
	}
	if tp != nil && order.Type == contracts.OrderTypeTakeProfit && order.LevelIndex >= 0 {
		tp.MarkLevelExecuted(order.LevelIndex)
	}

	e.logger.WithOrder(order.ID, order.Symbol).WithField("type", order.Type).Info("Stop-loss order executed")
	return order, nil
}

// Cancel pending → cancelled
func (e *Engine) Cancel(id string) (contracts.StopLossOrder, error) {
	return e.registry.Cancel(id)
}

// CancelAll 종목의 대기 주문 전부 취소, 취소된 주문마다 cancel_stop 신호
func (e *Engine) CancelAll(symbol, reason string) []contracts.StopLossSignal {
	signals := make([]contracts.StopLossSignal, 0)

	for _, order := range e.registry.Orders(symbol) {
		if order.Status != contracts.OrderPending {
			continue
		}
		if _, err := e.registry.Cancel(order.ID); err != nil {
			e.logger.WithOrder(order.ID, symbol).WithError(err).Warn("Failed to cancel stop-loss order")
			continue
		}
		signals = append(signals, contracts.StopLossSignal{
			Symbol:       symbol,
			Action:       contracts.SignalCancelStop,
			TriggerPrice: order.TriggerPrice,
			Quantity:     order.Quantity,
			Reason:       reason,
			Urgency:      contracts.UrgencyLow,
			Confidence:   1,
			LevelIndex:   order.LevelIndex,
			OrderID:      order.ID,
		})
	}
	e.history.Reset(symbol)

	return signals
}

// Statistics 주문 통계
func (e *Engine) Statistics() Statistics {
	return e.registry.Statistics()
}

// =============================================================================
// Threshold check (단순 손익률 기준)
// =============================================================================

// ThresholdResult 손익률 한도 체크 결과
type ThresholdResult struct {
	Triggered bool                   `json:"triggered"`
	Action    contracts.SignalAction `json:"action,omitempty"`
	Reason    string                 `json:"reason"`
}

// CheckThresholds RiskLimits 의 손절/익절 비율로 단순 체크
func CheckThresholds(pos *contracts.Position, limits contracts.RiskLimits) ThresholdResult {
	pnl := pos.UnrealizedPnLPercent

	if limits.StopLossPercent > 0 && pnl <= -limits.StopLossPercent+pnlEpsilon {
		return ThresholdResult{
			Triggered: true,
			Action:    contracts.SignalStopLoss,
			Reason:    fmt.Sprintf("stop-loss hit: loss %.2f%%", pnl*100),
		}
	}
	if limits.TakeProfitPercent > 0 && atLeast(pnl, limits.TakeProfitPercent) {
		return ThresholdResult{
			Triggered: true,
			Action:    contracts.SignalTakeProfit,
			Reason:    fmt.Sprintf("take-profit hit: gain %.2f%%", pnl*100),
		}
	}
	return ThresholdResult{Reason: "within thresholds"}
}
