package exchange

import (
	"adaptive-agent-go/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExchange(edge float64) *SimulatedExchange {
	return NewSimulatedExchange(models.SimulationConfig{
		PortfolioValue: 10000,
		FeeRate:        0.001,
		EdgeMean:       edge,
		EdgeStdDev:     0,
		Seed:           1,
	})
}

func TestSubmit_ProfitableFill(t *testing.T) {
	e := newTestExchange(0.05)
	fill, err := e.Submit(context.Background(), models.Signal{Type: models.SignalAct, Asset: "ETH", Amount: 1, Price: 1000, Slippage: 0.01})
	require.NoError(t, err)

	assert.Equal(t, int64(1), fill.OrderID)
	assert.InDelta(t, 1010, fill.Price, 1e-9)
	// exit = 1000 * 1.05 * 0.99 = 1039.5, fee = (1010 + 1039.5) * 0.001
	assert.InDelta(t, 2.0495, fill.Fee, 1e-9)
	assert.InDelta(t, 29.5-2.0495, fill.ProfitLoss, 1e-9)

	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.WinningTrades)
	assert.InDelta(t, 10000+fill.ProfitLoss, stats.Cash, 1e-9)
	assert.Equal(t, 0.0, stats.MaxDrawdown)
}

func TestSubmit_LosingFillsDrawDown(t *testing.T) {
	e := newTestExchange(-0.10)
	for i := 0; i < 3; i++ {
		fill, err := e.Submit(context.Background(), models.Signal{Asset: "BTC", Amount: 0.01, Price: 50000})
		require.NoError(t, err)
		assert.Less(t, fill.ProfitLoss, 0.0)
	}
	stats := e.Stats()
	assert.Equal(t, 0, stats.WinningTrades)
	assert.Greater(t, stats.MaxDrawdown, 0.0)
	assert.Equal(t, int64(4), e.NextOrderID)
}

func TestSubmit_Rejections(t *testing.T) {
	e := newTestExchange(0)
	_, err := e.Submit(context.Background(), models.Signal{Asset: "ETH", Amount: 0, Price: 1000})
	assert.ErrorIs(t, err, ErrRejected)

	_, err = e.Submit(context.Background(), models.Signal{Asset: "ETH", Amount: 100, Price: 1000})
	assert.ErrorIs(t, err, ErrRejected, "notional above available cash")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Submit(ctx, models.Signal{Asset: "ETH", Amount: 1, Price: 1000})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.TradeLog)
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, maxDrawdown(nil))
	assert.InDelta(t, 0.5, maxDrawdown([]float64{100, 200, 100, 150}), 1e-9)
}
