package evolution

import (
	"adaptive-agent-go/internal/models"
	"math"
	"strconv"
)

// Performance is a strategy's recent execution record.
type Performance struct {
	Executions  int
	Successful  int
	TotalProfit float64
	WinRate     float64 // percentage, 0 when unknown
}

// Limits are the risk bounds a parameter set is judged against.
type Limits struct {
	MaxPositionSize float64
	MaxSlippage     float64
}

// PerformanceMeasure derives metrics from a gene's parameters and the strategy's
// recent performance. A metric it cannot derive falls back to the target value.
//
//   - security: headroom of position_size and slippage under the risk limits
//   - yield: recent win rate scaled by how much of the position limit is used
//   - efficiency: shorter parameter sets score higher
//   - diversity: share of distinct keys among the lines
//   - truthfulness: share of well-formed key=value lines
func PerformanceMeasure(perf Performance, limits Limits) MeasureFunc {
	return func(gene *Gene, target Metrics) Metrics {
		out := Metrics{}
		for k, v := range target {
			out[k] = v
		}

		lines := splitLines(gene.Content)
		params := gene.Params()
		wellFormed := 0
		keys := make(map[string]bool)
		for _, l := range lines {
			if k, _, ok := parseLine(l); ok {
				wellFormed++
				keys[k] = true
			}
		}
		if len(lines) > 0 {
			out[MetricTruthfulness] = float64(wellFormed) / float64(len(lines))
			out[MetricDiversity] = float64(len(keys)) / float64(len(lines))
			out[MetricEfficiency] = clampUnit(1 - float64(len(lines)-1)/20)
		} else {
			out[MetricTruthfulness] = 0
		}

		size, hasSize := numeric(params, "position_size")
		slip, hasSlip := numeric(params, "slippage")
		if hasSize && limits.MaxPositionSize > 0 {
			sizeUse := clampUnit(size / limits.MaxPositionSize)
			security := 1 - sizeUse
			if hasSlip && limits.MaxSlippage > 0 {
				security = (security + (1 - clampUnit(slip/limits.MaxSlippage))) / 2
			}
			if size <= 0 {
				security = 0 // a non-positive size cannot trade at all
			}
			out[MetricSecurity] = security

			winRate := neutralMetric
			if perf.Executions > 0 {
				winRate = perf.WinRate / 100
			}
			out[MetricYield] = clampUnit(winRate * (0.5 + sizeUse))
		}
		return out
	}
}

// MergedMeasure scores a gene as the parameter set it would install: its params
// merged over base. A line dropped from the gene earns nothing once the merge
// restores it.
func MergedMeasure(base models.Params, measure MeasureFunc) MeasureFunc {
	return func(gene *Gene, target Metrics) Metrics {
		installed := NewGene(gene.ID, gene.Strategy, MergeParams(base, gene.Params()), gene.Generation)
		return measure(installed, target)
	}
}

func numeric(p models.Params, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch value := v.(type) {
	case float64:
		return value, !math.IsNaN(value)
	case string:
		f, err := strconv.ParseFloat(value, 64)
		return f, err == nil
	}
	return 0, false
}
