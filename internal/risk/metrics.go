package risk

import (
	"math"

	"github.com/wonny/stockrisk/internal/contracts"
	"github.com/wonny/stockrisk/internal/covariance"
)

// OtherSector 섹터 미상 종목의 버킷
const OtherSector = "other"

// SectorLookup 종목 → 섹터
type SectorLookup interface {
	Sector(symbol string) (string, bool)
}

// VolumeLookup 종목 → 평균 거래량 (주)
type VolumeLookup interface {
	AverageVolume(symbol string) (float64, bool)
}

// ConcentrationRisk Herfindahl 지수 Σ w_i²
func ConcentrationRisk(p *contracts.Portfolio) float64 {
	hhi := 0.0
	for _, pos := range p.Positions {
		hhi += pos.Weight * pos.Weight
	}
	return hhi
}

// SectorExposure 섹터별 비중 합계 (미상 → "other")
func SectorExposure(p *contracts.Portfolio, sectors SectorLookup) map[string]float64 {
	exposure := make(map[string]float64)
	for _, pos := range p.Positions {
		sector := OtherSector
		if sectors != nil {
			if s, ok := sectors.Sector(pos.Symbol); ok && s != "" {
				sector = s
			}
		}
		exposure[sector] += pos.Weight
	}
	return exposure
}

// CorrelationRisk 평균 |ρ_ij| (i<j), 자산 2개 미만이면 0
func CorrelationRisk(cov *contracts.CovarianceMatrix) float64 {
	if cov == nil || cov.Size() < 2 {
		return 0
	}
	n := cov.Size()
	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += math.Abs(covariance.CorrelationAt(cov, i, j))
			count++
		}
	}
	return safeDiv(sum, float64(count))
}

// LeverageRatio Σ 평가금액 / 총자산 (총자산 ≤ 0 이면 0)
func LeverageRatio(p *contracts.Portfolio) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	exposure := 0.0
	for _, pos := range p.Positions {
		exposure += pos.MarketValue
	}
	return exposure / p.TotalValue
}

// LiquidityRisk Σ w_i · 평가금액_i / (평균거래량_i · 가격_i)
// 거래량/가격 정보가 없는 종목은 건너뛰고 missing에 기록
func LiquidityRisk(p *contracts.Portfolio, volumes VolumeLookup) (float64, []string) {
	var missing []string
	risk := 0.0
	for _, pos := range p.Positions {
		var avgVolume float64
		ok := false
		if volumes != nil {
			avgVolume, ok = volumes.AverageVolume(pos.Symbol)
		}
		if !ok || avgVolume <= 0 || pos.CurrentPrice <= 0 {
			missing = append(missing, pos.Symbol)
			continue
		}
		risk += pos.Weight * pos.MarketValue / (avgVolume * pos.CurrentPrice)
	}
	return risk, missing
}

// PortfolioReturns 비중 가중 포트폴리오 수익률 (최근 구간 정렬)
func PortfolioReturns(weights []float64, assetReturns [][]float64) []float64 {
	if len(assetReturns) == 0 || len(weights) != len(assetReturns) {
		return nil
	}
	aligned := alignTrailing(assetReturns)
	obs := len(aligned[0])
	out := make([]float64, obs)
	for t := 0; t < obs; t++ {
		r := 0.0
		for i, w := range weights {
			r += w * aligned[i][t]
		}
		out[t] = r
	}
	return out
}
