package metrics

import (
	"adaptive-agent-go/internal/models"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agent"

// Registry holds all Prometheus metrics of the agent. Each Registry owns its
// own prometheus.Registry so several agents (and tests) can coexist.
type Registry struct {
	reg *prometheus.Registry

	// Cycle metrics
	Cycles         *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	ExecutionCount prometheus.Gauge
	CyclePnL       prometheus.Gauge
	CycleWinRate   prometheus.Gauge

	// Strategy metrics
	StrategyResults *prometheus.CounterVec
	BeliefScore     *prometheus.GaugeVec

	// Evolution metrics
	EvolutionRuns  *prometheus.CounterVec
	EvolutionDelta *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all agent metrics
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of cycles by outcome",
			},
			[]string{"outcome"},
		),

		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of each cycle phase in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"phase"},
		),

		ExecutionCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "execution_count",
				Help:      "Persisted number of completed cycles",
			},
		),

		CyclePnL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_pnl",
				Help:      "Total profit/loss of the last completed cycle",
			},
		),

		CycleWinRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_win_rate_percent",
				Help:      "Win rate of the last completed cycle",
			},
		),

		StrategyResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_results_total",
				Help:      "Strategy execution results by outcome reason",
			},
			[]string{"strategy", "reason"},
		),

		BeliefScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "belief_score",
				Help:      "Current belief score per strategy (0.0 to 1.0)",
			},
			[]string{"strategy"},
		),

		EvolutionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evolution_runs_total",
				Help:      "Evolution runs per strategy by outcome",
			},
			[]string{"strategy", "outcome"},
		),

		EvolutionDelta: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "evolution_fitness_delta",
				Help:      "Fitness delta of the last evolution run per strategy",
			},
			[]string{"strategy"},
		),
	}

	r.reg.MustRegister(
		r.Cycles,
		r.PhaseDuration,
		r.ExecutionCount,
		r.CyclePnL,
		r.CycleWinRate,
		r.StrategyResults,
		r.BeliefScore,
		r.EvolutionRuns,
		r.EvolutionDelta,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// PhaseTimer tracks execution time for one cycle phase
type PhaseTimer struct {
	metrics *Registry
	phase   string
	start   time.Time
}

// StartPhase begins timing a cycle phase
func (r *Registry) StartPhase(phase string) *PhaseTimer {
	return &PhaseTimer{metrics: r, phase: phase, start: time.Now()}
}

// Stop records the phase duration
func (pt *PhaseTimer) Stop() time.Duration {
	d := time.Since(pt.start)
	pt.metrics.PhaseDuration.WithLabelValues(pt.phase).Observe(d.Seconds())
	return d
}

// RecordCycle records the outcome of one cycle ("completed", "health_failed", "failed").
func (r *Registry) RecordCycle(outcome string) {
	r.Cycles.WithLabelValues(outcome).Inc()
}

// RecordCommitted records the persisted state after a completed cycle.
func (r *Registry) RecordCommitted(state *models.CycleState) {
	r.ExecutionCount.Set(float64(state.ExecutionCount))
	r.CyclePnL.Set(state.LastSummary.TotalPnL)
	r.CycleWinRate.Set(state.LastSummary.WinRate)
	r.RecordBeliefs(state.BeliefScores)
}

// RecordResults counts every result of a cycle by strategy and reason.
func (r *Registry) RecordResults(results []models.ExecutionResult) {
	for _, res := range results {
		reason := string(res.Reason)
		if reason == "" {
			reason = "none"
		}
		r.StrategyResults.WithLabelValues(res.Strategy, reason).Inc()
	}
}

// RecordBeliefs sets the belief gauge of every strategy.
func (r *Registry) RecordBeliefs(scores map[string]float64) {
	for name, score := range scores {
		r.BeliefScore.WithLabelValues(name).Set(score)
	}
}

// RecordEvolution records one strategy's evolution run.
func (r *Registry) RecordEvolution(strategy string, delta float64, adopted bool) {
	outcome := "rejected"
	if adopted {
		outcome = "adopted"
	}
	r.EvolutionRuns.WithLabelValues(strategy, outcome).Inc()
	r.EvolutionDelta.WithLabelValues(strategy).Set(delta)
}

// RecordEvolutionFailure records a failed evolution run.
func (r *Registry) RecordEvolutionFailure(strategy string) {
	r.EvolutionRuns.WithLabelValues(strategy, "failed").Inc()
}
