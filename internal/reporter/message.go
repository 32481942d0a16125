package reporter

import (
	"adaptive-agent-go/internal/models"
	"fmt"
	"strings"
)

// CycleMessage 生成周期完成后的通知文本
func CycleMessage(executionNumber int, summary models.Summary, quote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Agent Execution #%d*\n\n", executionNumber)
	fmt.Fprintf(&b, "Strategies: %d\n", summary.Total)
	fmt.Fprintf(&b, "Successful: %d\n", summary.Successful)
	fmt.Fprintf(&b, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Total P/L: %.4f %s\n", summary.TotalPnL, quote)
	fmt.Fprintf(&b, "Win Rate: %.1f%%", summary.WinRate)
	return b.String()
}

// EvolutionMessage 生成进化完成后的通知文本
func EvolutionMessage(applied, evaluated int, adopted []string) string {
	var b strings.Builder
	b.WriteString("*Evolution complete*\n")
	fmt.Fprintf(&b, "Strategies evaluated: %d\n", evaluated)
	fmt.Fprintf(&b, "Mutations applied: %d", applied)
	if len(adopted) > 0 {
		fmt.Fprintf(&b, "\nAdopted: %s", strings.Join(adopted, ", "))
	}
	return b.String()
}

// HealthAlert 生成健康检查失败的告警文本
func HealthAlert(detail string) string {
	return "Health check failed: " + detail
}

// CycleAlert 生成周期中止的告警文本
func CycleAlert(err error) string {
	return fmt.Sprintf("Agent error: %v", err)
}

// EvolutionAlert 生成进化失败的告警文本
func EvolutionAlert(err error) string {
	return fmt.Sprintf("Evolution error: %v", err)
}
