package stoploss

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/stockrisk/internal/contracts"
)

// =============================================================================
// Registry - 주문 아레나
// =============================================================================

// Registry 손절/익절 주문 저장소
// ⭐ SSOT: 주문은 orders 슬라이스에만 존재, 인덱스 맵은 위치만 보관
// 주문은 삭제되지 않음 (상태 전이만)
type Registry struct {
	mu       sync.RWMutex
	orders   []contracts.StopLossOrder
	bySymbol map[string][]int
	byID     map[string]int
	now      func() time.Time
}

// NewRegistry 빈 레지스트리
func NewRegistry() *Registry {
	return &Registry{
		orders:   make([]contracts.StopLossOrder, 0),
		bySymbol: make(map[string][]int),
		byID:     make(map[string]int),
		now:      time.Now,
	}
}

// OrderRequest 주문 생성 입력
type OrderRequest struct {
	Symbol        string
	Type          contracts.OrderType
	TriggerPrice  float64
	Quantity      float64
	ExecutionType contracts.ExecutionType // 빈 값 → market
	LimitPrice    float64
	Reason        string
	LevelIndex    int // 익절 단계, 없으면 -1
}

// Create 대기 주문 생성
func (r *Registry) Create(req OrderRequest) contracts.StopLossOrder {
	execType := req.ExecutionType
	if execType == "" {
		execType = contracts.ExecutionMarket
	}

	order := contracts.StopLossOrder{
		ID:            uuid.NewString(),
		Symbol:        req.Symbol,
		Type:          req.Type,
		TriggerPrice:  req.TriggerPrice,
		Quantity:      req.Quantity,
		ExecutionType: execType,
		LimitPrice:    req.LimitPrice,
		Status:        contracts.OrderPending,
		Reason:        req.Reason,
		LevelIndex:    req.LevelIndex,
		CreatedAt:     r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(order)
	return order
}

func (r *Registry) insertLocked(order contracts.StopLossOrder) {
	idx := len(r.orders)
	r.orders = append(r.orders, order)
	r.bySymbol[order.Symbol] = append(r.bySymbol[order.Symbol], idx)
	r.byID[order.ID] = idx
}

// Load 외부(DB/스냅샷) 주문 적재, 이미 있는 ID는 덮어씀
func (r *Registry) Load(orders []contracts.StopLossOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range orders {
		if idx, ok := r.byID[o.ID]; ok {
			r.orders[idx] = o
			continue
		}
		r.insertLocked(o)
	}
}

// Get ID로 조회
func (r *Registry) Get(id string) (contracts.StopLossOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return contracts.StopLossOrder{}, false
	}
	return r.orders[idx], true
}

// Orders 종목별 주문 (생성 순)
func (r *Registry) Orders(symbol string) []contracts.StopLossOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indices := r.bySymbol[symbol]
	out := make([]contracts.StopLossOrder, 0, len(indices))
	for _, idx := range indices {
		out = append(out, r.orders[idx])
	}
	return out
}

// All 전체 주문 (생성 순)
func (r *Registry) All() []contracts.StopLossOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]contracts.StopLossOrder(nil), r.orders...)
}

// Symbols 주문이 있는 종목 (정렬)
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len 주문 수
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Pending 종목/종류별 첫 대기 주문
func (r *Registry) Pending(symbol string, orderType contracts.OrderType) (contracts.StopLossOrder, bool) {
	return r.find(symbol, func(o *contracts.StopLossOrder) bool {
		return o.Type == orderType && o.Status == contracts.OrderPending
	})
}

// Active 종목/종류/단계별 미종료 주문 (pending 또는 triggered)
func (r *Registry) Active(symbol string, orderType contracts.OrderType, levelIndex int) (contracts.StopLossOrder, bool) {
	return r.find(symbol, func(o *contracts.StopLossOrder) bool {
		return o.Type == orderType && o.LevelIndex == levelIndex && !o.Status.IsTerminal()
	})
}

func (r *Registry) find(symbol string, match func(*contracts.StopLossOrder) bool) (contracts.StopLossOrder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, idx := range r.bySymbol[symbol] {
		if match(&r.orders[idx]) {
			return r.orders[idx], true
		}
	}
	return contracts.StopLossOrder{}, false
}

// Trigger pending → triggered
func (r *Registry) Trigger(id string) (contracts.StopLossOrder, error) {
	return r.transition(id, contracts.OrderTriggered)
}

// Execute triggered → executed
func (r *Registry) Execute(id string) (contracts.StopLossOrder, error) {
	return r.transition(id, contracts.OrderExecuted)
}

// Cancel pending → cancelled
func (r *Registry) Cancel(id string) (contracts.StopLossOrder, error) {
	return r.transition(id, contracts.OrderCancelled)
}

func (r *Registry) transition(id string, next contracts.OrderStatus) (contracts.StopLossOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return contracts.StopLossOrder{}, fmt.Errorf("%w: %s", contracts.ErrOrderNotFound, id)
	}

	order := &r.orders[idx]
	if !order.Status.CanTransitionTo(next) {
		return *order, fmt.Errorf("%w: %s %s → %s", contracts.ErrInvalidTransition, id, order.Status, next)
	}

	at := r.now()
	order.Status = next
	switch next {
	case contracts.OrderTriggered:
		order.TriggeredAt = &at
	case contracts.OrderExecuted:
		order.ExecutedAt = &at
	case contracts.OrderCancelled:
		order.CancelledAt = &at
	}
	return *order, nil
}

// UpdateTrigger 대기 주문 트리거 가격 상향 (래칫)
// 새 가격이 기존보다 엄격히 높을 때만 반영, 그 외 false
func (r *Registry) UpdateTrigger(id string, price float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", contracts.ErrOrderNotFound, id)
	}

	order := &r.orders[idx]
	if order.Status != contracts.OrderPending {
		return false, fmt.Errorf("%w: %s is %s, trigger update needs pending", contracts.ErrInvalidTransition, id, order.Status)
	}
	if roundPrice(price) <= roundPrice(order.TriggerPrice) {
		return false, nil
	}
	order.TriggerPrice = price
	return true, nil
}

// Statistics 주문 통계
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return computeStatistics(r.orders)
}
