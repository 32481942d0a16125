package agent

import (
	"adaptive-agent-go/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, models.Summary{}, Summarize(nil))
	})

	t.Run("exact decimal total", func(t *testing.T) {
		s := Summarize([]models.ExecutionResult{
			{Success: true, ProfitLoss: 0.01},
			{Success: true, ProfitLoss: 0.02},
			{Success: false, Reason: models.ReasonError},
		})
		assert.Equal(t, models.Summary{Total: 3, Successful: 2, Failed: 1, TotalPnL: 0.03, WinRate: 66.7}, s)
	})

	t.Run("losses and holds", func(t *testing.T) {
		s := Summarize([]models.ExecutionResult{
			{Success: true, Action: models.ActionHold},
			{Success: true, ProfitLoss: -0.1},
			{Success: true, ProfitLoss: 0.3},
			{Success: false, Reason: models.ReasonInsufficientConfidence},
		})
		assert.Equal(t, 4, s.Total)
		assert.Equal(t, 3, s.Successful)
		assert.Equal(t, 1, s.Failed)
		assert.Equal(t, 0.2, s.TotalPnL)
		assert.Equal(t, 75.0, s.WinRate)
	})
}
