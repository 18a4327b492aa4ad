package stoploss

import (
	"sync"

	"github.com/wonny/stockrisk/internal/contracts"
)

// ExitBook 종목별 청산 설정
// 익절 단계 체결 표시는 종목마다 따로 유지 (기본 설정의 단계 슬라이스를 공유하지 않음)
type ExitBook struct {
	mu         sync.Mutex
	stopLoss   contracts.StopLossConfig
	takeProfit contracts.TakeProfitConfig
	stops      map[string]contracts.StopLossConfig
	profits    map[string]contracts.TakeProfitConfig
}

// NewExitBook 기본 설정으로 생성
func NewExitBook(sl contracts.StopLossConfig, tp contracts.TakeProfitConfig) *ExitBook {
	return &ExitBook{
		stopLoss:   sl,
		takeProfit: tp,
		stops:      make(map[string]contracts.StopLossConfig),
		profits:    make(map[string]contracts.TakeProfitConfig),
	}
}

// For 종목 설정 (처음 요청 시 기본값 복제)
// 반환된 TakeProfitConfig 의 단계는 종목 상태와 공유됨
func (b *ExitBook) For(symbol string) (contracts.StopLossConfig, contracts.TakeProfitConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sl, ok := b.stops[symbol]
	if !ok {
		sl = b.stopLoss
		b.stops[symbol] = sl
	}
	tp, ok := b.profits[symbol]
	if !ok {
		tp = cloneTakeProfit(b.takeProfit)
		b.profits[symbol] = tp
	}
	return sl, tp
}

// Set 종목별 설정 덮어쓰기
func (b *ExitBook) Set(symbol string, sl contracts.StopLossConfig, tp contracts.TakeProfitConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops[symbol] = sl
	b.profits[symbol] = cloneTakeProfit(tp)
}

// Reset 종목 설정 제거 (다음 For 에서 기본값으로)
func (b *ExitBook) Reset(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stops, symbol)
	delete(b.profits, symbol)
}

func cloneTakeProfit(tp contracts.TakeProfitConfig) contracts.TakeProfitConfig {
	if tp.Rule == nil {
		return tp
	}
	clone, err := tp.Spec().Build()
	if err != nil {
		return tp
	}
	return clone
}
