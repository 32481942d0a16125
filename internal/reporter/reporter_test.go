package reporter

import (
	"adaptive-agent-go/internal/exchange"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/storage"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMetrics(t *testing.T) {
	trades := []exchange.CompletedTrade{
		{Profit: 30},
		{Profit: 10},
		{Profit: -10},
		{Profit: -10},
	}
	stats := exchange.Stats{InitialBalance: 1000, Cash: 1020, TotalFees: 4, TotalTrades: 4, WinningTrades: 2, MaxDrawdown: 0.05}

	m := CalculateMetrics(trades, stats)
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	assert.InDelta(t, 2.0, m.AvgProfitLoss, 1e-9) // avg win 20 / avg loss 10
	assert.InDelta(t, 20.0, m.TotalProfit, 1e-9)
	assert.InDelta(t, 2.0, m.ProfitPercentage, 1e-9)
	assert.InDelta(t, 5.0, m.MaxDrawdown, 1e-9)
}

func TestCalculateMetrics_Empty(t *testing.T) {
	m := CalculateMetrics(nil, exchange.Stats{InitialBalance: 500, Cash: 500})
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.AvgProfitLoss)
	assert.Zero(t, m.TotalProfit)
}

func TestCycleReport(t *testing.T) {
	var buf bytes.Buffer
	results := []models.ExecutionResult{
		{Strategy: "yield-harvester", Success: true, Action: models.ActionExecute, Reason: models.ReasonFilled, Asset: "ETH", ProfitLoss: 0.01, BeliefScore: 0.7},
		{Strategy: "zk-farmer", Success: false, Reason: models.ReasonTimeout, BeliefScore: 0.65},
	}
	summary := models.Summary{Total: 2, Successful: 1, Failed: 1, TotalPnL: 0.01, WinRate: 50}
	CycleReport(&buf, "c-1", 3, results, summary)

	out := buf.String()
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "yield-harvester")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "+0.0100")
	assert.Contains(t, out, "50.0%")
}

func TestBeliefReport(t *testing.T) {
	var buf bytes.Buffer
	BeliefReport(&buf, map[string]float64{"b": 0.4, "a": 0.65}, 0.6)
	out := buf.String()
	assert.Contains(t, out, "0.6500")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(" a ")), bytes.Index(buf.Bytes(), []byte(" b ")), "sorted by name")
}

func TestStatusAndEvolutionReport(t *testing.T) {
	var buf bytes.Buffer
	state := models.NewCycleState()
	state.ExecutionCount = 12
	StatusReport(&buf, state, []storage.StrategyTotals{{Strategy: "zk-farmer", TotalExecutions: 5, LastExecuted: time.Now()}})
	out := buf.String()
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "zk-farmer")

	buf.Reset()
	EvolutionReport(&buf, []storage.EvolutionRecord{{Strategy: "zk-farmer", OriginalID: "g0", BestID: "g0-g1-2", Improvement: 0.07, Adopted: true, CreatedAt: time.Now()}})
	assert.Contains(t, buf.String(), "g0-g1-2")
	assert.Contains(t, buf.String(), "+0.0700")
}

func TestMessages(t *testing.T) {
	msg := CycleMessage(7, models.Summary{Total: 3, Successful: 2, Failed: 1, TotalPnL: 0.03, WinRate: 66.666}, "SOL")
	assert.Contains(t, msg, "#7")
	assert.Contains(t, msg, "Strategies: 3")
	assert.Contains(t, msg, "Total P/L: 0.0300 SOL")
	assert.Contains(t, msg, "Win Rate: 66.7%")

	evo := EvolutionMessage(1, 4, []string{"zk-farmer"})
	assert.Contains(t, evo, "Mutations applied: 1")
	assert.Contains(t, evo, "zk-farmer")
	assert.NotContains(t, EvolutionMessage(0, 4, nil), "Adopted")

	assert.Equal(t, "Health check failed: rpc down", HealthAlert("rpc down"))
	assert.Equal(t, "Agent error: disk full", CycleAlert(errors.New("disk full")))
	assert.Equal(t, "Evolution error: bad", EvolutionAlert(errors.New("bad")))
}
