package reporter

import (
	"adaptive-agent-go/internal/exchange"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/storage"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Metrics 存储模拟账户的性能指标
type Metrics struct {
	InitialBalance   float64
	FinalBalance     float64
	TotalProfit      float64
	ProfitPercentage float64
	TotalFees        float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfitLoss    float64
	MaxDrawdown      float64 // 百分比
}

// CalculateMetrics 根据成交明细和账户快照计算指标
func CalculateMetrics(trades []exchange.CompletedTrade, stats exchange.Stats) *Metrics {
	m := &Metrics{
		InitialBalance: stats.InitialBalance,
		FinalBalance:   stats.Cash,
		TotalFees:      stats.TotalFees,
		TotalTrades:    len(trades),
		MaxDrawdown:    stats.MaxDrawdown * 100,
	}

	var totalProfit, totalLoss float64
	for _, trade := range trades {
		if trade.Profit > 0 {
			m.WinningTrades++
			totalProfit += trade.Profit
		} else {
			m.LosingTrades++
			totalLoss += trade.Profit
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.LosingTrades > 0 && m.WinningTrades > 0 {
		avgWin := totalProfit / float64(m.WinningTrades)
		avgLoss := math.Abs(totalLoss / float64(m.LosingTrades))
		if avgLoss > 0 {
			m.AvgProfitLoss = avgWin / avgLoss
		}
	}

	m.TotalProfit = m.FinalBalance - m.InitialBalance
	if m.InitialBalance != 0 {
		m.ProfitPercentage = (m.TotalProfit / m.InitialBalance) * 100
	}
	return m
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

// CycleReport 打印一个周期内每个策略的执行结果和汇总
func CycleReport(w io.Writer, cycleID string, executionCount int, results []models.ExecutionResult, summary models.Summary) {
	t := newTable(w, fmt.Sprintf("Cycle #%d (%s)", executionCount, cycleID))
	t.AppendHeader(table.Row{"Strategy", "Belief", "Action", "Result", "Reason", "Asset", "Amount", "P/L", "Duration"})
	for _, r := range results {
		result := "OK"
		if !r.Success {
			result = "FAIL"
		}
		t.AppendRow(table.Row{
			r.Strategy,
			fmt.Sprintf("%.2f", r.BeliefScore),
			actionLabel(r.Action),
			result,
			string(r.Reason),
			r.Asset,
			fmt.Sprintf("%.6f", r.Amount),
			fmt.Sprintf("%+.4f", r.ProfitLoss),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	t.AppendFooter(table.Row{
		"Total", "", "",
		fmt.Sprintf("%d/%d", summary.Successful, summary.Total),
		fmt.Sprintf("failed %d", summary.Failed),
		"", "",
		fmt.Sprintf("%+.4f", summary.TotalPnL),
		fmt.Sprintf("win %.1f%%", summary.WinRate),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

// BeliefReport 打印每个策略的置信度以及是否达到执行门槛
func BeliefReport(w io.Writer, scores map[string]float64, minConfidence float64) {
	t := newTable(w, "Belief scores")
	t.AppendHeader(table.Row{"Strategy", "Belief", "Eligible"})
	for _, name := range sortedKeys(scores) {
		eligible := "no"
		if scores[name] >= minConfidence {
			eligible = "yes"
		}
		t.AppendRow(table.Row{name, fmt.Sprintf("%.4f", scores[name]), eligible})
	}
	t.AppendFooter(table.Row{"min confidence", fmt.Sprintf("%.4f", minConfidence), ""})
	t.Render()
}

// EvolutionReport 打印进化历史
func EvolutionReport(w io.Writer, records []storage.EvolutionRecord) {
	t := newTable(w, "Evolution history")
	t.AppendHeader(table.Row{"Time", "Strategy", "Original", "Best", "Gen", "Fitness", "Delta", "Adopted"})
	for _, rec := range records {
		adopted := "no"
		if rec.Adopted {
			adopted = "yes"
		}
		t.AppendRow(table.Row{
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.Strategy,
			rec.OriginalID,
			rec.BestID,
			rec.Generation,
			fmt.Sprintf("%.4f -> %.4f", rec.OriginalFitness, rec.BestFitness),
			fmt.Sprintf("%+.4f", rec.Improvement),
			adopted,
		})
	}
	t.Render()
}

// StatusReport 打印持久化状态和各策略的累计统计
func StatusReport(w io.Writer, state *models.CycleState, totals []storage.StrategyTotals) {
	t := newTable(w, "Agent state")
	t.AppendRow(table.Row{"Executions", state.ExecutionCount})
	t.AppendRow(table.Row{"Last execution", formatTime(state.LastExecution)})
	t.AppendRow(table.Row{"Last evolution", formatTime(state.LastEvolution)})
	t.AppendRow(table.Row{"Last cycle", state.LastCycleID})
	t.AppendRow(table.Row{"Last summary", fmt.Sprintf("%d total, %d ok, %d failed, P/L %+.4f, win %.1f%%",
		state.LastSummary.Total, state.LastSummary.Successful, state.LastSummary.Failed,
		state.LastSummary.TotalPnL, state.LastSummary.WinRate)})
	t.AppendRow(table.Row{"State version", state.Version})
	t.Render()

	if len(totals) == 0 {
		return
	}
	tt := newTable(w, "Strategy totals")
	tt.AppendHeader(table.Row{"Strategy", "Executions", "Successful", "Total profit", "Last executed"})
	for _, s := range totals {
		last := s.LastExecuted
		tt.AppendRow(table.Row{s.Strategy, s.TotalExecutions, s.SuccessfulExecutions,
			fmt.Sprintf("%+.4f", s.TotalProfit), formatTime(&last)})
	}
	tt.Render()
}

// AccountReport 打印模拟账户的表现
func AccountReport(w io.Writer, m *Metrics, quote string) {
	t := newTable(w, "Simulated account")
	t.AppendRow(table.Row{"Initial balance", fmt.Sprintf("%.2f %s", m.InitialBalance, quote)})
	t.AppendRow(table.Row{"Final balance", fmt.Sprintf("%.2f %s", m.FinalBalance, quote)})
	t.AppendRow(table.Row{"Total profit", fmt.Sprintf("%+.2f %s (%.2f%%)", m.TotalProfit, quote, m.ProfitPercentage)})
	t.AppendRow(table.Row{"Fees", fmt.Sprintf("%.2f %s", m.TotalFees, quote)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Trades", m.TotalTrades})
	t.AppendRow(table.Row{"Winning / losing", fmt.Sprintf("%d / %d", m.WinningTrades, m.LosingTrades)})
	t.AppendRow(table.Row{"Win rate", fmt.Sprintf("%.2f%%", m.WinRate)})
	t.AppendRow(table.Row{"Avg win / avg loss", fmt.Sprintf("%.2f", m.AvgProfitLoss)})
	t.AppendRow(table.Row{"Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown)})
	t.Render()
}

func actionLabel(a models.Action) string {
	if a == models.ActionNone {
		return "-"
	}
	return string(a)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() || t.Unix() == 0 {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
