package contracts

import "math"

// Asset 최적화 대상 자산
type Asset struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	ExpectedReturn   float64   `json:"expected_return"` // 연율화
	Volatility       float64   `json:"volatility"`      // 연율화
	Weight           float64   `json:"weight"`
	RiskContribution float64   `json:"risk_contribution"`
	CurrentPrice     float64   `json:"current_price"`
	HistoricalPrices []float64 `json:"historical_prices"` // 오래된 순
}

// CovarianceMatrix 공분산 행렬
// ⭐ 불변식: 대칭, 대각 = 자산별 분산
type CovarianceMatrix struct {
	Symbols            []string    `json:"symbols"`
	Matrix             [][]float64 `json:"matrix"`
	Eigenvalues        []float64   `json:"eigenvalues"` // 오름차순
	Condition          float64     `json:"condition"`   // λmax/λmin, λmin ≤ 0 이면 +Inf
	IsPositiveDefinite bool        `json:"is_positive_definite"`
	Observations       int         `json:"observations"`
}

// Size 자산 수
func (c *CovarianceMatrix) Size() int {
	return len(c.Matrix)
}

// Variance i번째 자산 분산
func (c *CovarianceMatrix) Variance(i int) float64 {
	return c.Matrix[i][i]
}

// Volatility i번째 자산 표준편차
func (c *CovarianceMatrix) Volatility(i int) float64 {
	v := c.Matrix[i][i]
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Index 종목 코드의 행 인덱스
func (c *CovarianceMatrix) Index(symbol string) (int, bool) {
	for i, s := range c.Symbols {
		if s == symbol {
			return i, true
		}
	}
	return -1, false
}

// RequirePositiveDefinite 양의 정부호가 아니면 설정 에러
func (c *CovarianceMatrix) RequirePositiveDefinite() error {
	if c == nil || len(c.Matrix) == 0 {
		return &ConfigError{Op: "covariance.RequirePositiveDefinite", Err: ErrEmptyAssets, Message: "empty covariance matrix"}
	}
	if !c.IsPositiveDefinite {
		return &ConfigError{Op: "covariance.RequirePositiveDefinite", Err: ErrNotPositiveDefinite, Message: ErrNotPositiveDefinite.Error()}
	}
	return nil
}
