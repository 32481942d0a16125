package confidence

import (
	"adaptive-agent-go/internal/models"
	"math"
)

// Policy computes the next belief score of every strategy that appears in a
// cycle's results. current holds the score each strategy had before the cycle;
// history optionally holds each strategy's recent-window profit.
type Policy interface {
	Propose(current map[string]float64, results []models.ExecutionResult, history map[string]float64) map[string]float64
}

// BoundedStepPolicy moves every strategy's score by at most Step per cycle.
// The direction is the sign of the ensemble's aggregate profit, optionally blended
// with the strategy's own profit by OwnHistoryWeight.
type BoundedStepPolicy struct {
	Step             float64
	OwnHistoryWeight float64
	HoldIsNeutral    bool
}

// DefaultPolicy returns the pure ensemble policy with a 0.05 step.
func DefaultPolicy() BoundedStepPolicy {
	return BoundedStepPolicy{Step: 0.05, HoldIsNeutral: true}
}

func (p BoundedStepPolicy) Propose(current map[string]float64, results []models.ExecutionResult, history map[string]float64) map[string]float64 {
	var aggregate float64
	failures := 0
	own := make(map[string]float64, len(results))
	for _, r := range results {
		aggregate += r.ProfitLoss
		own[r.Strategy] += r.ProfitLoss
		if isFailure(r) {
			failures++
		}
	}

	w := clamp(p.OwnHistoryWeight)
	out := make(map[string]float64, len(own))
	for name := range own {
		signal := aggregate
		if w > 0 {
			signal = w*(own[name]+history[name]) + (1-w)*aggregate
		}
		out[name] = clamp(current[name] + p.direction(signal, failures)*p.Step)
	}
	return out
}

func (p BoundedStepPolicy) direction(signal float64, failures int) float64 {
	switch {
	case signal > 0:
		return 1
	case signal < 0:
		return -1
	case !p.HoldIsNeutral || failures > 0:
		return -1
	default:
		return 0
	}
}

// isFailure reports results that actually ran and failed. A gated strategy did not run.
func isFailure(r models.ExecutionResult) bool {
	return !r.Success && r.Reason != models.ReasonInsufficientConfidence
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
