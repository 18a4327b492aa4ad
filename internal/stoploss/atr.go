package stoploss

import (
	"math"
	"sync"

	"github.com/markcheno/go-talib"
)

// DefaultATRPeriod ATR 기본 기간
const DefaultATRPeriod = 14

// historyCapacity 종목별 가격 이력 상한
const historyCapacity = 1000

// ComputeATR 고가/저가/종가로 ATR 계산 (마지막 값)
// 데이터가 period+1 미만이면 0
func ComputeATR(high, low, closes []float64, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	n := len(closes)
	if n < period+1 || len(high) != n || len(low) != n {
		return 0
	}

	atr := talib.Atr(high, low, closes, period)
	if len(atr) == 0 {
		return 0
	}
	last := atr[len(atr)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return 0
	}
	return last
}

// PriceHistory 종목별 최근 가격 (최대 1000개)
type PriceHistory struct {
	mu     sync.RWMutex
	prices map[string][]float64
}

// NewPriceHistory 빈 가격 이력
func NewPriceHistory() *PriceHistory {
	return &PriceHistory{prices: make(map[string][]float64)}
}

// Add 가격 추가 (0 이하 무시)
func (h *PriceHistory) Add(symbol string, price float64) {
	if price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	series := append(h.prices[symbol], price)
	if len(series) > historyCapacity {
		series = append([]float64(nil), series[len(series)-historyCapacity:]...)
	}
	h.prices[symbol] = series
}

// Prices 종목 가격 이력 복사본
func (h *PriceHistory) Prices(symbol string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]float64(nil), h.prices[symbol]...)
}

// Reset 종목 이력 삭제
func (h *PriceHistory) Reset(symbol string) {
	h.mu.Lock()
	delete(h.prices, symbol)
	h.mu.Unlock()
}

// ApproxATR 종가만 있을 때 근사 ATR (고가=종가, 저가=종가×0.98)
func (h *PriceHistory) ApproxATR(symbol string, period int) float64 {
	closes := h.Prices(symbol)
	low := make([]float64, len(closes))
	for i, c := range closes {
		low[i] = c * 0.98
	}
	return ComputeATR(closes, low, closes, period)
}
