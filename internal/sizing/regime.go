package sizing

import "math"

// VolatilityRegime 시장 변동성 국면
type VolatilityRegime string

const (
	RegimeLowVolatility     VolatilityRegime = "low"
	RegimeMediumVolatility  VolatilityRegime = "medium"
	RegimeHighVolatility    VolatilityRegime = "high"
	RegimeExtremeVolatility VolatilityRegime = "extreme"
)

// MarketConditions 국면 조정 입력
type MarketConditions struct {
	Volatility  VolatilityRegime `json:"volatility_regime"`
	Correlation float64          `json:"correlation_level"` // 평균 |ρ|
}

const (
	equalizationStrength   = 0.3
	concentrationExponent  = 1.1
	highCorrelationCutover = 0.7
)

// AdjustWeightsForRegime 국면별 가중치 조정
//   - 고변동성: 동일 비중 쪽으로 30% 이동
//   - 저변동성: w^1.1 정규화 (큰 비중이 조금 더 커짐)
//   - 평균 상관 > 0.7: 추가로 동일 비중 쪽으로 30% 이동
func AdjustWeightsForRegime(weights []float64, conditions MarketConditions) []float64 {
	adjusted := append([]float64(nil), weights...)
	if len(adjusted) == 0 {
		return adjusted
	}

	switch conditions.Volatility {
	case RegimeHighVolatility:
		adjusted = equalize(adjusted)
	case RegimeLowVolatility:
		adjusted = concentrate(adjusted)
	}

	if conditions.Correlation > highCorrelationCutover {
		adjusted = equalize(adjusted)
	}
	return adjusted
}

func equalize(weights []float64) []float64 {
	eq := 1 / float64(len(weights))
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w*(1-equalizationStrength) + eq*equalizationStrength
	}
	return out
}

func concentrate(weights []float64) []float64 {
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = math.Pow(math.Max(w, 0), concentrationExponent)
	}
	return normalize(out)
}
