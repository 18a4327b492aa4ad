package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/monitoring"
	"github.com/wonny/stockrisk/internal/stoploss"
	"github.com/wonny/stockrisk/pkg/logger"
)

// OrderStore 손절 주문 저장소 (없으면 메모리만)
type OrderStore interface {
	SaveOrders(ctx context.Context, orders []contracts.StopLossOrder) error
}

// StopLossHandler handles stop-loss and take-profit endpoints
// ⭐ SSOT: 청산 API 핸들러는 이 구조체에서만
type StopLossHandler struct {
	engine *stoploss.Engine
	book   *stoploss.ExitBook
	store  OrderStore
	now    func() time.Time
	logger *logger.Logger
}

// NewStopLossHandler creates a new stop-loss handler
func NewStopLossHandler(engine *stoploss.Engine, book *stoploss.ExitBook, store OrderStore, log *logger.Logger) *StopLossHandler {
	return &StopLossHandler{
		engine: engine,
		book:   book,
		store:  store,
		now:    time.Now,
		logger: log,
	}
}

// EvaluateRequest 청산 평가 요청
// Price > 0 이면 가격 틱으로 처리 (주문 생성/전이), 아니면 평가만
type EvaluateRequest struct {
	Position   contracts.Position        `json:"position"`
	Price      float64                   `json:"price,omitempty"`
	StopLoss   *contracts.StopLossSpec   `json:"stop_loss,omitempty"`
	TakeProfit *contracts.TakeProfitSpec `json:"take_profit,omitempty"`
}

// EvaluateResponse 청산 평가 응답
type EvaluateResponse struct {
	Signals  []contracts.StopLossSignal `json:"signals"`
	Position contracts.Position         `json:"position"`
	Orders   []contracts.StopLossOrder  `json:"orders"`
}

// Evaluate evaluates exit rules for a position
// POST /api/stoploss/evaluate
func (h *StopLossHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pos := req.Position
	if pos.Symbol == "" {
		respondError(w, http.StatusBadRequest, "position symbol is required")
		return
	}

	if req.StopLoss != nil || req.TakeProfit != nil {
		sl, tp := h.book.For(pos.Symbol)
		if req.StopLoss != nil {
			built, err := req.StopLoss.Build()
			if err != nil {
				respondError(w, statusFor(err), err.Error())
				return
			}
			sl = built
		}
		if req.TakeProfit != nil {
			built, err := req.TakeProfit.Build()
			if err != nil {
				respondError(w, statusFor(err), err.Error())
				return
			}
			tp = built
		}
		h.book.Set(pos.Symbol, sl, tp)
	}
	sl, tp := h.book.For(pos.Symbol)

	var signals []contracts.StopLossSignal
	if req.Price > 0 {
		var err error
		signals, err = h.engine.ProcessPrice(&pos, req.Price, sl, tp, h.now())
		if err != nil {
			h.logger.WithError(err).Error("Failed to process price")
			monitoring.RecordError("stoploss")
			respondError(w, statusFor(err), err.Error())
			return
		}
		for _, sig := range signals {
			if order, ok := h.engine.Registry().Get(sig.OrderID); ok && sig.OrderID != "" {
				monitoring.RecordOrder(order)
			}
		}
		h.persist(r.Context(), pos.Symbol)
	} else {
		signals = h.engine.Evaluate(&pos, sl, tp, h.now())
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		Signals:  signals,
		Position: pos,
		Orders:   h.engine.Registry().Orders(pos.Symbol),
	})
}

// ListOrders lists stop-loss orders
// GET /api/stoploss/orders?symbol=&status=
func (h *StopLossHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	status := contracts.OrderStatus(r.URL.Query().Get("status"))

	var orders []contracts.StopLossOrder
	if symbol != "" {
		orders = h.engine.Registry().Orders(symbol)
	} else {
		orders = h.engine.Registry().All()
	}

	filtered := make([]contracts.StopLossOrder, 0, len(orders))
	for _, o := range orders {
		if status == "" || o.Status == status {
			filtered = append(filtered, o)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"orders": filtered,
		"count":  len(filtered),
	})
}

// CancelOrder cancels a pending order
// POST /api/stoploss/orders/{id}/cancel
func (h *StopLossHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	order, err := h.engine.Cancel(id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	monitoring.RecordOrder(order)
	h.persist(r.Context(), order.Symbol)

	respondJSON(w, http.StatusOK, order)
}

// ExecuteOrder marks a triggered order as executed
// POST /api/stoploss/orders/{id}/execute
func (h *StopLossHandler) ExecuteOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	existing, ok := h.engine.Registry().Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	_, tp := h.book.For(existing.Symbol)

	order, err := h.engine.Execute(id, &tp)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	monitoring.RecordOrder(order)
	h.persist(r.Context(), order.Symbol)

	respondJSON(w, http.StatusOK, order)
}

// Statistics returns order statistics
// GET /api/stoploss/statistics
func (h *StopLossHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Statistics())
}

func (h *StopLossHandler) persist(ctx context.Context, symbol string) {
	if h.store == nil {
		return
	}
	if err := h.store.SaveOrders(ctx, h.engine.Registry().Orders(symbol)); err != nil {
		h.logger.WithError(err).WithSymbol(symbol).Error("Failed to persist stop orders")
		monitoring.RecordError("store")
	}
}
