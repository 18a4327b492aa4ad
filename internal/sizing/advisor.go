package sizing

import (
	"fmt"
	"math"
	"time"
)

// RiskLevel Kelly 비중 위험도
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "low"
	RiskLevelMedium  RiskLevel = "medium"
	RiskLevelHigh    RiskLevel = "high"
	RiskLevelExtreme RiskLevel = "extreme"
)

// KellyParams Kelly 입력
type KellyParams struct {
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ExpectedReturn float64 `json:"expected_return"`
	RiskFreeRate   float64 `json:"risk_free_rate"`
}

// TradeRecord 과거 거래 (Kelly 파라미터 추정용)
type TradeRecord struct {
	Date     time.Time `json:"date"`
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	PnL      float64   `json:"pnl"`
}

// IsWin 수익 거래 여부
func (t TradeRecord) IsWin() bool {
	return t.PnL > 0
}

// KellyResult 분수 Kelly 조언
type KellyResult struct {
	KellyFraction    float64     `json:"kelly_fraction"`
	AdjustedFraction float64     `json:"adjusted_fraction"`
	SuggestedAmount  float64     `json:"suggested_amount"`
	SuggestedShares  float64     `json:"suggested_shares"`
	RiskLevel        RiskLevel   `json:"risk_level"`
	Confidence       float64     `json:"confidence"`
	Warnings         []string    `json:"warnings"`
	Params           KellyParams `json:"params"`
	FromHistory      bool        `json:"from_history"`
}

// KellyAdvisor 분수 Kelly 계산기
type KellyAdvisor struct {
	MaxKellyFraction float64
	MinSampleSize    int
	LotSize          int
	ConservativeBias float64 // 최종 보수 계수
}

// NewKellyAdvisor 기본 Kelly 조언기 (상한 25%, 최소 표본 30)
func NewKellyAdvisor() *KellyAdvisor {
	return &KellyAdvisor{
		MaxKellyFraction: 0.25,
		MinSampleSize:    30,
		LotSize:          100,
		ConservativeBias: 0.8,
	}
}

// Advise Kelly 비중 + 위험 조정
// 거래 이력이 MinSampleSize 이상이면 이력에서 파라미터 추정
func (a *KellyAdvisor) Advise(params KellyParams, price, availableCash float64, history []TradeRecord) KellyResult {
	if errs := validateKellyParams(params); len(errs) > 0 {
		return KellyResult{RiskLevel: RiskLevelExtreme, Warnings: errs, Params: params}
	}

	fromHistory := false
	if len(history) > 0 && len(history) >= a.MinSampleSize {
		params = a.ParamsFromHistory(history, params.RiskFreeRate)
		fromHistory = true
	}

	raw := KellyFraction(params.WinRate, params.AvgWin, params.AvgLoss, math.Inf(1))
	adjusted := a.adjust(raw, params)
	amount := availableCash * adjusted

	return KellyResult{
		KellyFraction:    raw,
		AdjustedFraction: adjusted,
		SuggestedAmount:  amount,
		SuggestedShares:  KellyShares(adjusted, availableCash, price, a.LotSize),
		RiskLevel:        classifyRisk(adjusted),
		Confidence:       a.confidence(params, history),
		Warnings:         a.warnings(adjusted, params, history),
		Params:           params,
		FromHistory:      fromHistory,
	}
}

// ParamsFromHistory 거래 이력으로 승률/평균 손익/기대수익률 추정
func (a *KellyAdvisor) ParamsFromHistory(history []TradeRecord, riskFreeRate float64) KellyParams {
	var wins, losses int
	var sumWin, sumLoss, totalPnL, totalInvested float64
	for _, t := range history {
		if t.IsWin() {
			wins++
			sumWin += t.PnL
		} else {
			losses++
			sumLoss += t.PnL
		}
		totalPnL += t.PnL
		totalInvested += t.Quantity * t.Price
	}

	params := KellyParams{RiskFreeRate: riskFreeRate}
	if len(history) > 0 {
		params.WinRate = float64(wins) / float64(len(history))
	}
	if wins > 0 {
		params.AvgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		params.AvgLoss = math.Abs(sumLoss / float64(losses))
	}
	params.ExpectedReturn = safeDiv(totalPnL, totalInvested)
	return params
}

func (a *KellyAdvisor) adjust(f float64, params KellyParams) float64 {
	adjusted := math.Min(f, a.MaxKellyFraction)

	switch {
	case params.WinRate < 0.4:
		adjusted *= 0.5
	case params.WinRate < 0.5:
		adjusted *= 0.7
	}

	if safeDiv(params.AvgWin, params.AvgLoss) < 1.5 {
		adjusted *= 0.8
	}

	if params.ExpectedReturn < params.RiskFreeRate {
		adjusted = 0
	}

	adjusted *= a.ConservativeBias
	return finite(math.Max(0, math.Min(adjusted, a.MaxKellyFraction)))
}

func classifyRisk(f float64) RiskLevel {
	switch {
	case f <= 0.05:
		return RiskLevelLow
	case f <= 0.15:
		return RiskLevelMedium
	case f <= 0.25:
		return RiskLevelHigh
	default:
		return RiskLevelExtreme
	}
}

func (a *KellyAdvisor) confidence(params KellyParams, history []TradeRecord) float64 {
	c := 0.5

	switch {
	case params.WinRate >= 0.6:
		c += 0.2
	case params.WinRate >= 0.5:
		c += 0.1
	case params.WinRate < 0.4:
		c -= 0.2
	}

	ratio := safeDiv(params.AvgWin, params.AvgLoss)
	switch {
	case ratio >= 2:
		c += 0.2
	case ratio >= 1.5:
		c += 0.1
	case ratio < 1:
		c -= 0.3
	}

	if history != nil {
		switch {
		case len(history) >= 100:
			c += 0.1
		case len(history) >= 50:
			c += 0.05
		case len(history) < a.MinSampleSize:
			c -= 0.2
		}
	}

	return math.Max(0, math.Min(c, 1))
}

func (a *KellyAdvisor) warnings(f float64, params KellyParams, history []TradeRecord) []string {
	warnings := make([]string, 0)

	if params.WinRate < 0.4 {
		warnings = append(warnings, fmt.Sprintf("win rate too low (%.1f%%)", params.WinRate*100))
	}
	if ratio := safeDiv(params.AvgWin, params.AvgLoss); ratio < 1.2 {
		warnings = append(warnings, fmt.Sprintf("payoff ratio too low (%.2f)", ratio))
	}
	if f > 0.2 {
		warnings = append(warnings, fmt.Sprintf("kelly fraction high (%.1f%%), diversify", f*100))
	}
	if history != nil && len(history) < a.MinSampleSize {
		warnings = append(warnings, fmt.Sprintf("only %d trades in history, need %d", len(history), a.MinSampleSize))
	}
	if params.ExpectedReturn <= params.RiskFreeRate {
		warnings = append(warnings, "expected return does not exceed the risk-free rate")
	}
	if streak := consecutiveLosses(history); streak >= 3 {
		warnings = append(warnings, fmt.Sprintf("%d consecutive losses, consider pausing", streak))
	}

	return warnings
}

func consecutiveLosses(history []TradeRecord) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsWin() {
			break
		}
		streak++
	}
	return streak
}

func validateKellyParams(p KellyParams) []string {
	var errs []string
	if p.WinRate < 0 || p.WinRate > 1 {
		errs = append(errs, "win rate must be between 0 and 1")
	}
	if p.AvgWin <= 0 {
		errs = append(errs, "average win must be positive")
	}
	if p.AvgLoss <= 0 {
		errs = append(errs, "average loss must be positive")
	}
	if p.RiskFreeRate < 0 || p.RiskFreeRate > 1 {
		errs = append(errs, "risk-free rate must be between 0 and 1")
	}
	return errs
}

// Advice 위험도별 한 줄 조언
func Advice(r KellyResult) string {
	if r.AdjustedFraction == 0 {
		return "do not invest: risk too high or expected return insufficient"
	}
	switch r.RiskLevel {
	case RiskLevelLow:
		return "low risk: position may be increased moderately"
	case RiskLevelMedium:
		return "medium risk: follow the computed size"
	case RiskLevelHigh:
		return "high risk: reduce size or scale in"
	}
	return "extreme risk: re-evaluate the strategy"
}
