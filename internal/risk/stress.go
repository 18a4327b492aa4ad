package risk

import "github.com/wonny/stockrisk/internal/contracts"

// MarketShock 시장 전체 충격 키
const MarketShock = "*"

// DefaultScenarios 기본 스트레스 시나리오
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "market_crash", Shocks: map[string]float64{MarketShock: -0.30}},
		{Name: "market_correction", Shocks: map[string]float64{MarketShock: -0.10}},
		{Name: "flash_crash", Shocks: map[string]float64{MarketShock: -0.07}},
		{Name: "rally", Shocks: map[string]float64{MarketShock: 0.10}},
	}
}

// StressTest 스트레스 시나리오 테스트
// 종목별 충격이 없으면 "*" 시장 충격 적용, 둘 다 없으면 0
// maxDrawdown > 0 이면 손실이 한도를 넘는 시나리오 표시
func StressTest(p *contracts.Portfolio, scenarios []Scenario, maxDrawdown float64) []StressResult {
	results := make([]StressResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		impact := 0.0
		for _, pos := range p.Positions {
			shock, ok := scenario.Shocks[pos.Symbol]
			if !ok {
				shock, ok = scenario.Shocks[MarketShock]
				if !ok {
					continue
				}
			}
			impact += pos.Weight * shock
		}

		results = append(results, StressResult{
			Scenario:      scenario.Name,
			ReturnImpact:  impact,
			ValueImpact:   impact * p.TotalValue,
			BreachesLimit: maxDrawdown > 0 && -impact > maxDrawdown,
		})
	}

	return results
}
