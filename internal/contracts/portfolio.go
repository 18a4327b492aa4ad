package contracts

import (
	"fmt"
	"math"
	"time"
)

// DefaultBalanceTolerance Portfolio.Validate 기본 허용 오차
const DefaultBalanceTolerance = 1e-6

// Position 보유 포지션
// ⭐ SSOT: 리스크/사이징/손절 엔진이 공유하는 포지션 스냅샷
type Position struct {
	Symbol               string    `json:"symbol"`
	Quantity             float64   `json:"quantity"`
	AveragePrice         float64   `json:"average_price"`
	CurrentPrice         float64   `json:"current_price"`
	MarketValue          float64   `json:"market_value"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"` // 비율 (0.05 = +5%)
	Weight               float64   `json:"weight"`
	OpenDate             time.Time `json:"open_date"`
	HighestPrice         float64   `json:"highest_price"` // 보유 이후 최고가
	LowestPrice          float64   `json:"lowest_price"`  // 보유 이후 최저가
	ATR                  float64   `json:"atr"`
	Volatility           float64   `json:"volatility"` // 가격 대비 변동성 (0.02 = 2%)
}

// IsClosed 수량이 0이면 청산된 포지션
func (p *Position) IsClosed() bool {
	return p.Quantity == 0
}

// ApplyPrice 현재가 갱신 후 평가금액/손익/고저 워터마크 재계산
func (p *Position) ApplyPrice(price float64) {
	if price <= 0 {
		return
	}
	p.CurrentPrice = price
	p.MarketValue = p.Quantity * price
	p.UnrealizedPnL = (price - p.AveragePrice) * p.Quantity
	if p.AveragePrice > 0 {
		p.UnrealizedPnLPercent = (price - p.AveragePrice) / p.AveragePrice
	}
	if price > p.HighestPrice {
		p.HighestPrice = price
	}
	if p.LowestPrice == 0 || price < p.LowestPrice {
		p.LowestPrice = price
	}
}

// DaysHeld 진입 이후 경과 일수
func (p *Position) DaysHeld(now time.Time) int {
	if p.OpenDate.IsZero() || now.Before(p.OpenDate) {
		return 0
	}
	return int(now.Sub(p.OpenDate).Hours() / 24)
}

// Portfolio 포트폴리오 스냅샷
// ⭐ 불변식: Cash + MarketValue == TotalValue, Σ Weight ≈ MarketValue / TotalValue
type Portfolio struct {
	TotalValue  float64    `json:"total_value"`
	Cash        float64    `json:"cash"`
	MarketValue float64    `json:"market_value"`
	Positions   []Position `json:"positions"`
	DailyReturn float64    `json:"daily_return"`
	TotalReturn float64    `json:"total_return"`
	Volatility  float64    `json:"volatility"`
	SharpeRatio float64    `json:"sharpe_ratio"`
	MaxDrawdown float64    `json:"max_drawdown"` // 양수 (0.12 = 12% 낙폭)
	Beta        float64    `json:"beta"`
	Alpha       float64    `json:"alpha"`
}

// Recalculate 포지션으로부터 평가금액, 총자산, 비중 재계산
func (p *Portfolio) Recalculate() {
	market := 0.0
	for i := range p.Positions {
		pos := &p.Positions[i]
		if pos.CurrentPrice > 0 {
			pos.MarketValue = pos.Quantity * pos.CurrentPrice
		}
		market += pos.MarketValue
	}
	p.MarketValue = market
	p.TotalValue = p.Cash + market

	for i := range p.Positions {
		if p.TotalValue > 0 {
			p.Positions[i].Weight = p.Positions[i].MarketValue / p.TotalValue
		} else {
			p.Positions[i].Weight = 0
		}
	}
}

// Validate 잔고 불변식 검증
func (p *Portfolio) Validate(tol float64) error {
	if tol <= 0 {
		tol = DefaultBalanceTolerance
	}
	scale := math.Max(1, math.Abs(p.TotalValue))

	if diff := math.Abs(p.Cash + p.MarketValue - p.TotalValue); diff > tol*scale {
		return &ConfigError{
			Op:      "portfolio.Validate",
			Field:   "total_value",
			Message: fmt.Sprintf("cash %.2f + market value %.2f != total value %.2f", p.Cash, p.MarketValue, p.TotalValue),
		}
	}

	if p.TotalValue > 0 && len(p.Positions) > 0 {
		sum := p.TotalWeight()
		want := p.MarketValue / p.TotalValue
		if math.Abs(sum-want) > math.Max(tol, 1e-4) {
			return &ConfigError{
				Op:      "portfolio.Validate",
				Field:   "weights",
				Message: fmt.Sprintf("sum of weights %.6f != market value ratio %.6f", sum, want),
			}
		}
	}
	return nil
}

// TotalWeight 포지션 비중 합계
func (p *Portfolio) TotalWeight() float64 {
	total := 0.0
	for _, pos := range p.Positions {
		total += pos.Weight
	}
	return total
}

// Weights 포지션 순서대로 비중 슬라이스
func (p *Portfolio) Weights() []float64 {
	weights := make([]float64, len(p.Positions))
	for i, pos := range p.Positions {
		weights[i] = pos.Weight
	}
	return weights
}

// Symbols 포지션 순서대로 종목 코드
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, len(p.Positions))
	for i, pos := range p.Positions {
		symbols[i] = pos.Symbol
	}
	return symbols
}

// GetPosition 종목 코드로 포지션 조회
func (p *Portfolio) GetPosition(symbol string) (*Position, bool) {
	for i := range p.Positions {
		if p.Positions[i].Symbol == symbol {
			return &p.Positions[i], true
		}
	}
	return nil, false
}

// CashRatio 현금 비중
func (p *Portfolio) CashRatio() float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	return p.Cash / p.TotalValue
}
