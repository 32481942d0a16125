package agent

import (
	"adaptive-agent-go/internal/models"

	"github.com/shopspring/decimal"
)

// Summarize 汇总一个周期的结果。盈亏用十进制累加，0.01 + 0.02 恰好等于 0.03。
func Summarize(results []models.ExecutionResult) models.Summary {
	s := models.Summary{Total: len(results)}
	pnl := decimal.Zero
	for _, r := range results {
		if r.Success {
			s.Successful++
		}
		pnl = pnl.Add(decimal.NewFromFloat(r.ProfitLoss))
	}
	s.Failed = s.Total - s.Successful
	s.TotalPnL = pnl.InexactFloat64()
	if s.Total > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Successful)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Mul(decimal.NewFromInt(100)).
			Round(1).
			InexactFloat64()
	}
	return s
}
