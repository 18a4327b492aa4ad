package stoploss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/contracts"
)

var testNow = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func newPosition(avg float64) *contracts.Position {
	return &contracts.Position{
		Symbol:       "005930",
		Quantity:     100,
		AveragePrice: avg,
		OpenDate:     testNow.AddDate(0, 0, -10),
	}
}

func at(pos *contracts.Position, price float64) *contracts.Position {
	pos.ApplyPrice(price)
	return pos
}

func stop(rule contracts.StopLossRule) contracts.StopLossConfig {
	return contracts.StopLossConfig{Enabled: true, Rule: rule}
}

func take(rule contracts.TakeProfitRule) contracts.TakeProfitConfig {
	return contracts.TakeProfitConfig{Enabled: true, Rule: rule}
}

var noStop = contracts.StopLossConfig{}
var noTake = contracts.TakeProfitConfig{}

func TestEvaluate_FixedStopExactness(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.FixedStop{Percentage: 0.10})

	signals := engine.Evaluate(at(newPosition(100), 90.00), cfg, noTake, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalStopLoss, signals[0].Action)
	assert.InDelta(t, 90.0, signals[0].TriggerPrice, 1e-9)
	assert.Equal(t, contracts.UrgencyHigh, signals[0].Urgency)
	assert.Equal(t, 0.9, signals[0].Confidence)
	assert.Equal(t, 100.0, signals[0].Quantity)
	assert.InDelta(t, -1000, signals[0].ExpectedLoss, 1e-6)

	assert.Empty(t, engine.Evaluate(at(newPosition(100), 90.01), cfg, noTake, testNow))
}

func TestStopUrgency(t *testing.T) {
	tests := []struct {
		pnl  float64
		want contracts.Urgency
	}{
		{-0.20, contracts.UrgencyCritical},
		{-0.15, contracts.UrgencyCritical},
		{-0.12, contracts.UrgencyHigh},
		{-0.07, contracts.UrgencyMedium},
		{-0.01, contracts.UrgencyLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StopUrgency(tt.pnl), "pnl %.2f", tt.pnl)
	}
}

func TestEvaluate_StopTypes(t *testing.T) {
	engine := NewEngine(nil)

	pos := at(newPosition(100), 120)
	pos.ApplyPrice(110)
	signals := engine.Evaluate(pos, stop(contracts.TrailingStop{Distance: 0.08}), noTake, testNow)
	require.Len(t, signals, 1)
	assert.InDelta(t, 110.4, signals[0].TriggerPrice, 1e-9)
	assert.Equal(t, 0.85, signals[0].Confidence)

	pos = at(newPosition(100), 95)
	pos.Volatility = 0.02
	assert.Empty(t, engine.Evaluate(pos, stop(contracts.VolatilityStop{Multiplier: 2}), noTake, testNow))

	pos = at(newPosition(100), 95)
	assert.Empty(t, engine.Evaluate(pos, stop(contracts.ATRStop{Multiplier: 2}), noTake, testNow), "no ATR, no trigger")
}

func TestEvaluate_TimeStop(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.TimeStop{LimitDays: 30})

	pos := at(newPosition(100), 95)
	pos.OpenDate = testNow.AddDate(0, 0, -40)
	signals := engine.Evaluate(pos, cfg, noTake, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.UrgencyHigh, signals[0].Urgency)
	assert.Equal(t, 0.9, signals[0].Confidence)
	assert.Equal(t, 95.0, signals[0].TriggerPrice)

	profitable := at(newPosition(100), 105)
	profitable.OpenDate = testNow.AddDate(0, 0, -40)
	assert.Empty(t, engine.Evaluate(profitable, cfg, noTake, testNow))

	recent := at(newPosition(100), 95)
	assert.Empty(t, engine.Evaluate(recent, cfg, noTake, testNow))
}

func TestEvaluate_DisabledAndClosed(t *testing.T) {
	engine := NewEngine(nil)
	cfg := contracts.StopLossConfig{Enabled: false, Rule: contracts.FixedStop{Percentage: 0.1}}

	assert.Empty(t, engine.Evaluate(at(newPosition(100), 50), cfg, noTake, testNow))

	closed := at(newPosition(100), 50)
	closed.Quantity = 0
	assert.Empty(t, engine.Evaluate(closed, stop(contracts.FixedStop{Percentage: 0.1}), noTake, testNow))
	assert.NotNil(t, engine.Evaluate(nil, noStop, noTake, testNow))
}

func ladderConfig() contracts.TakeProfitConfig {
	return take(contracts.LadderTakeProfit{Levels: []contracts.TakeProfitLevel{
		{Percentage: 0.10, SellRatio: 0.3},
		{Percentage: 0.20, SellRatio: 0.3},
		{Percentage: 0.30, SellRatio: 0.4},
	}})
}

func TestEvaluate_LadderIdempotence(t *testing.T) {
	engine := NewEngine(nil)
	tp := ladderConfig()

	signals := engine.Evaluate(at(newPosition(100), 125), noStop, tp, testNow)
	require.Len(t, signals, 2)
	assert.Equal(t, 0, signals[0].LevelIndex)
	assert.Equal(t, 1, signals[1].LevelIndex)
	assert.Equal(t, 30.0, signals[0].Quantity)
	assert.InDelta(t, 110, signals[0].TriggerPrice, 1e-9)

	require.True(t, tp.MarkLevelExecuted(0))
	assert.False(t, tp.MarkLevelExecuted(0))

	signals = engine.Evaluate(at(newPosition(100), 125), noStop, tp, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, 1, signals[0].LevelIndex)

	require.True(t, tp.MarkLevelExecuted(1))
	signals = engine.Evaluate(at(newPosition(100), 130), noStop, tp, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, 2, signals[0].LevelIndex)
	assert.Equal(t, 40.0, signals[0].Quantity)
}

func TestEvaluate_FixedTakeProfitFirstLevelOnly(t *testing.T) {
	engine := NewEngine(nil)
	tp := take(contracts.FixedTakeProfit{Levels: []contracts.TakeProfitLevel{
		{Percentage: 0.10, SellRatio: 0.5},
		{Percentage: 0.20, SellRatio: 1},
	}})

	signals := engine.Evaluate(at(newPosition(100), 125), noStop, tp, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, 0, signals[0].LevelIndex)
	assert.Equal(t, 50.0, signals[0].Quantity)

	tp.MarkLevelExecuted(0)
	signals = engine.Evaluate(at(newPosition(100), 125), noStop, tp, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, 1, signals[0].LevelIndex)

	assert.Empty(t, engine.Evaluate(at(newPosition(100), 105), noStop, take(contracts.FixedTakeProfit{Levels: []contracts.TakeProfitLevel{{Percentage: 0.1}}}), testNow))
}

func TestEvaluate_DynamicTakeProfit(t *testing.T) {
	engine := NewEngine(nil)
	tp := take(contracts.DynamicTakeProfit{Base: 0.10, VolatilityMultiplier: 2, SellRatio: 0.5})

	pos := at(newPosition(100), 120)
	pos.Volatility = 0.05
	signals := engine.Evaluate(pos, noStop, tp, testNow)
	require.Len(t, signals, 1)
	assert.Equal(t, 50.0, signals[0].Quantity)
	assert.Equal(t, 0.75, signals[0].Confidence)

	pos = at(newPosition(100), 115)
	pos.Volatility = 0.05
	assert.Empty(t, engine.Evaluate(pos, noStop, tp, testNow))
}

func TestProcessPrice_TrailingRatchet(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.TrailingStop{Distance: 0.05})
	pos := newPosition(100)

	var updates []float64
	for price := 100.0; price <= 110; price++ {
		signals, err := engine.ProcessPrice(pos, price, cfg, noTake, testNow)
		require.NoError(t, err)
		for _, s := range signals {
			require.Equal(t, contracts.SignalUpdateStop, s.Action)
			updates = append(updates, s.TriggerPrice)
		}
	}

	require.Len(t, updates, 10)
	for i := 1; i < len(updates); i++ {
		assert.Greater(t, updates[i], updates[i-1])
	}

	order, found := engine.Registry().Pending(pos.Symbol, contracts.OrderTypeStopLoss)
	require.True(t, found)
	assert.InDelta(t, 104.5, order.TriggerPrice, 1e-9)

	signals, err := engine.ProcessPrice(pos, 108, cfg, noTake, testNow)
	require.NoError(t, err)
	assert.Empty(t, signals)
	order, _ = engine.Registry().Get(order.ID)
	assert.InDelta(t, 104.5, order.TriggerPrice, 1e-9)

	signals, err = engine.ProcessPrice(pos, 104, cfg, noTake, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalStopLoss, signals[0].Action)
	assert.Equal(t, order.ID, signals[0].OrderID)

	order, _ = engine.Registry().Get(order.ID)
	assert.Equal(t, contracts.OrderTriggered, order.Status)
	assert.NotNil(t, order.TriggeredAt)
	assert.Equal(t, 1, engine.Registry().Len())
}

func TestProcessPrice_TrailingStopHoldsForStalePosition(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.TrailingStop{Distance: 0.10})

	live := newPosition(100)
	_, err := engine.ProcessPrice(live, 100, cfg, noTake, testNow)
	require.NoError(t, err)
	_, err = engine.ProcessPrice(live, 120, cfg, noTake, testNow)
	require.NoError(t, err)

	order, found := engine.Registry().Pending(live.Symbol, contracts.OrderTypeStopLoss)
	require.True(t, found)
	assert.InDelta(t, 108, order.TriggerPrice, 1e-9)

	// 저장된 스냅샷에서 다시 읽은 포지션: 최고가 100 만 알고 있음
	reloaded := newPosition(100)
	reloaded.HighestPrice = 100
	signals, err := engine.ProcessPrice(reloaded, 105, cfg, noTake, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalStopLoss, signals[0].Action)
	assert.InDelta(t, 108, signals[0].TriggerPrice, 1e-9)
	assert.Equal(t, order.ID, signals[0].OrderID)

	order, _ = engine.Registry().Get(order.ID)
	assert.Equal(t, contracts.OrderTriggered, order.Status)
	assert.InDelta(t, 108, order.TriggerPrice, 1e-9)
}

func TestProcessPrice_RaiseAndStopInSamePass(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.TrailingStop{Distance: 0.10})

	_, err := engine.ProcessPrice(newPosition(100), 90, cfg, noTake, testNow)
	require.NoError(t, err)
	armed, found := engine.Registry().Pending("005930", contracts.OrderTypeStopLoss)
	require.True(t, found)
	assert.InDelta(t, 81, armed.TriggerPrice, 1e-9)

	// 마지막 스윕 이후 최고가가 120 까지 올랐다가 105 로 내려온 경우
	pos := newPosition(100)
	pos.HighestPrice = 120
	signals, err := engine.ProcessPrice(pos, 105, cfg, noTake, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	actions := []contracts.SignalAction{signals[0].Action, signals[1].Action}
	assert.ElementsMatch(t, []contracts.SignalAction{contracts.SignalStopLoss, contracts.SignalUpdateStop}, actions)

	order, _ := engine.Registry().Get(armed.ID)
	assert.Equal(t, contracts.OrderTriggered, order.Status)
	assert.InDelta(t, 108, order.TriggerPrice, 1e-9)
}

func TestProcessPrice_TrailingTakeProfitHoldsForStalePosition(t *testing.T) {
	engine := NewEngine(nil)
	tp := take(contracts.TrailingTakeProfit{Activation: 0.10, Distance: 0.05})

	live := newPosition(100)
	_, err := engine.ProcessPrice(live, 115, noStop, tp, testNow)
	require.NoError(t, err)
	_, err = engine.ProcessPrice(live, 120, noStop, tp, testNow)
	require.NoError(t, err)

	// 활성화 기준 아래로 내려왔어도 이미 걸린 추적 익절은 유지
	signals, err := engine.ProcessPrice(newPosition(100), 108, noStop, tp, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalTakeProfit, signals[0].Action)
	assert.InDelta(t, 114, signals[0].TriggerPrice, 1e-9)
}

func TestProcessPrice_TrailingTakeProfit(t *testing.T) {
	engine := NewEngine(nil)
	tp := take(contracts.TrailingTakeProfit{Activation: 0.10, Distance: 0.05})
	pos := newPosition(100)

	signals, err := engine.ProcessPrice(pos, 105, noStop, tp, testNow)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 0, engine.Registry().Len(), "not active below activation")

	_, err = engine.ProcessPrice(pos, 115, noStop, tp, testNow)
	require.NoError(t, err)
	order, found := engine.Registry().Pending(pos.Symbol, contracts.OrderTypeTakeProfit)
	require.True(t, found)
	assert.InDelta(t, 109.25, order.TriggerPrice, 1e-9)

	signals, err = engine.ProcessPrice(pos, 120, noStop, tp, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalUpdateStop, signals[0].Action)
	assert.InDelta(t, 114, signals[0].TriggerPrice, 1e-9)

	signals, err = engine.ProcessPrice(pos, 113, noStop, tp, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalTakeProfit, signals[0].Action)
	assert.Equal(t, contracts.UrgencyHigh, signals[0].Urgency)
	assert.Equal(t, order.ID, signals[0].OrderID)
}

func TestProcessPrice_LadderExecution(t *testing.T) {
	engine := NewEngine(nil)
	tp := ladderConfig()
	pos := newPosition(100)

	signals, err := engine.ProcessPrice(pos, 125, noStop, tp, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	first, second := signals[0].OrderID, signals[1].OrderID
	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)

	_, err = engine.Execute(first, &tp)
	require.NoError(t, err)
	assert.True(t, tp.Levels()[0].IsExecuted)

	signals, err = engine.ProcessPrice(pos, 126, noStop, tp, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 1, signals[0].LevelIndex)
	assert.Equal(t, second, signals[0].OrderID, "triggered order reused")
	assert.Equal(t, 2, engine.Registry().Len())
}

func TestProcessPrice_ATRStopAnchored(t *testing.T) {
	engine := NewEngine(nil)
	cfg := stop(contracts.ATRStop{Multiplier: 2})
	pos := newPosition(100)
	pos.ATR = 2

	signals, err := engine.ProcessPrice(pos, 100, cfg, noTake, testNow)
	require.NoError(t, err)
	assert.Empty(t, signals)

	order, found := engine.Registry().Pending(pos.Symbol, contracts.OrderTypeStopLoss)
	require.True(t, found)
	assert.InDelta(t, 96, order.TriggerPrice, 1e-9)

	signals, err = engine.ProcessPrice(pos, 97, cfg, noTake, testNow)
	require.NoError(t, err)
	assert.Empty(t, signals)

	signals, err = engine.ProcessPrice(pos, 96, cfg, noTake, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.InDelta(t, 96, signals[0].TriggerPrice, 1e-9)
	assert.Equal(t, 0.8, signals[0].Confidence)
}

func TestCancelAll(t *testing.T) {
	engine := NewEngine(nil)
	pos := newPosition(100)

	_, err := engine.ProcessPrice(pos, 100, stop(contracts.FixedStop{Percentage: 0.1}), noTake, testNow)
	require.NoError(t, err)
	require.Equal(t, 1, engine.Statistics().PendingOrders)

	pos.Quantity = 0
	signals, err := engine.ProcessPrice(pos, 100, stop(contracts.FixedStop{Percentage: 0.1}), noTake, testNow)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, contracts.SignalCancelStop, signals[0].Action)

	stats := engine.Statistics()
	assert.Equal(t, 0, stats.PendingOrders)
	assert.Equal(t, 1, stats.CancelledOrders)
	assert.Empty(t, engine.History().Prices(pos.Symbol))
}

func TestCheckThresholds(t *testing.T) {
	limits := contracts.DefaultRiskLimits()

	res := CheckThresholds(at(newPosition(100), 90), limits)
	assert.True(t, res.Triggered)
	assert.Equal(t, contracts.SignalStopLoss, res.Action)

	res = CheckThresholds(at(newPosition(100), 120), limits)
	assert.True(t, res.Triggered)
	assert.Equal(t, contracts.SignalTakeProfit, res.Action)

	res = CheckThresholds(at(newPosition(100), 105), limits)
	assert.False(t, res.Triggered)
}
