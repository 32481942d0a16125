package agent

import (
	"adaptive-agent-go/internal/evolution"
	"adaptive-agent-go/internal/ids"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/reporter"
	"adaptive-agent-go/internal/statemanager"
	"adaptive-agent-go/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StrategyEvolution is the outcome of evolving one strategy's parameters.
type StrategyEvolution struct {
	Strategy        string        `json:"strategy"`
	OriginalID      string        `json:"original_id"`
	BestID          string        `json:"best_id"`
	Generation      int           `json:"generation"`
	OriginalFitness float64       `json:"original_fitness"`
	BestFitness     float64       `json:"best_fitness"`
	Delta           float64       `json:"delta"`
	Adopted         bool          `json:"adopted"`
	Params          models.Params `json:"params,omitempty"` // full parameter set, only when adopted
}

// EvolutionReport covers one evolution run over every enabled strategy.
type EvolutionReport struct {
	Timestamp  time.Time           `json:"timestamp"`
	Evaluated  int                 `json:"evaluated"`
	Strategies []StrategyEvolution `json:"strategies"`
}

// Adopted lists the strategies whose parameters were replaced.
func (r *EvolutionReport) Adopted() []string {
	var out []string
	for _, s := range r.Strategies {
		if s.Adopted {
			out = append(out, s.Strategy)
		}
	}
	return out
}

func (r *EvolutionReport) adoptedParams() map[string]models.Params {
	out := make(map[string]models.Params)
	for _, s := range r.Strategies {
		if s.Adopted {
			out[s.Strategy] = s.Params
		}
	}
	return out
}

// RunEvolution evolves every enabled strategy once and commits the adopted
// parameter sets. At most one run is active at a time.
func (a *Agent) RunEvolution(ctx context.Context) (*EvolutionReport, error) {
	if !a.evolving.CompareAndSwap(false, true) {
		return nil, ErrEvolutionInProgress
	}
	defer a.evolving.Store(false)
	return a.runEvolution(ctx)
}

// runEvolution assumes the caller holds the evolving flag.
func (a *Agent) runEvolution(ctx context.Context) (*EvolutionReport, error) {
	stop := a.timePhase(PhaseEvolving)
	report, err := a.evolve(ctx)
	stop()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			a.logger.Info("evolution interrupted", zap.Error(err))
			return nil, err
		}
		a.logger.Error("evolution failed", zap.Error(err))
		a.alert(ctx, reporter.EvolutionAlert(err))
		return nil, err
	}

	_, err = a.state.Commit(context.WithoutCancel(ctx), statemanager.NormalizedEvent{
		Type:      statemanager.EvolutionCompletedEvent,
		Timestamp: a.now(),
		Data:      statemanager.EvolutionCompletedData{Params: report.adoptedParams()},
	})
	if err != nil {
		a.logger.Error("failed to persist evolution", zap.Error(err))
		a.alert(ctx, reporter.EvolutionAlert(err))
		return nil, fmt.Errorf("persist evolution: %w", err)
	}

	a.applyEvolution(ctx, report)
	return report, nil
}

// evolve searches a better parameter set for each enabled strategy. Nothing
// is installed here.
func (a *Agent) evolve(ctx context.Context) (*EvolutionReport, error) {
	ecfg := a.cfg.Evolution
	perf := a.recentPerformance(ctx)
	target := evolution.Metrics(ecfg.TargetMetrics)
	limits := evolution.Limits{
		MaxPositionSize: a.cfg.Risk.MaxPositionSize,
		MaxSlippage:     a.cfg.Risk.MaxSlippage,
	}

	report := &EvolutionReport{Timestamp: a.now()}
	for _, s := range a.registry.Enabled() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := s.Parameters()
		p := perf[s.Name()]
		measure := a.measure(evolution.Performance{
			Executions:  p.Executions,
			Successful:  p.Successful,
			TotalProfit: p.TotalProfit,
			WinRate:     p.WinRate,
		}, limits)

		// every candidate is scored as the set it would install, so Delta is
		// the improvement of exactly what Apply receives
		gene := evolution.NewGene(ids.NewGeneID(), s.Name(), current, 0)
		res, err := a.engine.EvolveWith(ctx, gene, target, ecfg.PopulationSize, ecfg.Generations,
			evolution.MergedMeasure(current, measure))
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordEvolutionFailure(s.Name())
			}
			return nil, fmt.Errorf("evolve %s: %w", s.Name(), err)
		}

		se := StrategyEvolution{
			Strategy:        s.Name(),
			OriginalID:      res.Original.ID,
			BestID:          res.Best.ID,
			Generation:      res.Best.Generation,
			OriginalFitness: res.Original.Fitness,
			BestFitness:     res.Best.Fitness,
			Delta:           res.Delta,
			Adopted:         evolution.Adopt(res.Delta, ecfg.AdoptionThreshold),
		}
		if se.Adopted {
			se.Params = evolution.MergeParams(current, res.Best.Params())
		}
		a.logger.Info("strategy evolved",
			zap.String("strategy", se.Strategy),
			zap.String("best_id", se.BestID),
			zap.Float64("delta", se.Delta),
			zap.Bool("adopted", se.Adopted))
		report.Strategies = append(report.Strategies, se)
		report.Evaluated++
	}
	return report, nil
}

// applyEvolution runs after a successful commit: installs adopted parameters
// and records the run.
func (a *Agent) applyEvolution(ctx context.Context, report *EvolutionReport) {
	for name, params := range report.adoptedParams() {
		if err := a.registry.Apply(name, params); err != nil {
			a.logger.Error("failed to apply evolved parameters", zap.String("strategy", name), zap.Error(err))
		}
	}

	for _, se := range report.Strategies {
		if a.metrics != nil {
			a.metrics.RecordEvolution(se.Strategy, se.Delta, se.Adopted)
		}
		if a.log == nil {
			continue
		}
		err := a.log.RecordEvolution(context.WithoutCancel(ctx), storage.EvolutionRecord{
			Strategy:        se.Strategy,
			OriginalID:      se.OriginalID,
			BestID:          se.BestID,
			Generation:      se.Generation,
			OriginalFitness: se.OriginalFitness,
			BestFitness:     se.BestFitness,
			Improvement:     se.Delta,
			Adopted:         se.Adopted,
			CreatedAt:       report.Timestamp,
		})
		if err != nil {
			a.logger.Warn("failed to record evolution", zap.String("strategy", se.Strategy), zap.Error(err))
		}
	}

	adopted := report.Adopted()
	a.notify(ctx, reporter.EvolutionMessage(len(adopted), report.Evaluated, adopted))
	a.publish("evolution", report)
}
