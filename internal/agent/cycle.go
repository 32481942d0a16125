package agent

import (
	"adaptive-agent-go/internal/ids"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/reporter"
	"adaptive-agent-go/internal/statemanager"
	"adaptive-agent-go/internal/strategy"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CycleReport 描述一次已提交的周期
type CycleReport struct {
	CycleID         string                   `json:"cycle_id"`
	ExecutionNumber int                      `json:"execution_number"`
	Results         []models.ExecutionResult `json:"results"`
	Summary         models.Summary           `json:"summary"`
	Beliefs         map[string]float64       `json:"beliefs"`
	Evolution       *EvolutionReport         `json:"evolution,omitempty"`
	Duration        time.Duration            `json:"duration"`
}

// RunCycle 执行一个完整周期：健康检查、并发执行、置信度调整、按需进化、提交。
// 只有提交成功后内存中的置信度和参数才会改变。
func (a *Agent) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !a.cycling.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer a.cycling.Store(false)
	defer a.setPhase(PhaseIdle)

	start := a.now()
	cycleID := ids.NewCycleID()
	log := a.logger.With(zap.String("cycle_id", cycleID))

	// --- 1. 健康检查 ---
	a.setPhase(PhaseHealthChecking)
	stop := a.timePhase(PhaseHealthChecking)
	hctx, cancel := context.WithTimeout(ctx, a.cfg.Agent.HealthTimeout.Duration)
	status := a.health.Check(hctx)
	cancel()
	stop()
	if !status.OK {
		log.Warn("health check failed, skipping cycle", zap.String("detail", status.Detail))
		a.alert(ctx, reporter.HealthAlert(status.Detail))
		a.recordCycle("health_failed")
		return nil, fmt.Errorf("%w: %s", ErrHealthCheckFailed, status.Detail)
	}

	// --- 2. 并发执行所有启用的策略 ---
	a.setPhase(PhaseExecuting)
	stop = a.timePhase(PhaseExecuting)
	results := a.executeAll(ctx, a.registry.Enabled())
	stop()
	summary := Summarize(results)

	// --- 3. 基于整个结果集提出新的置信度 ---
	a.setPhase(PhaseAdapting)
	stop = a.timePhase(PhaseAdapting)
	proposed := a.beliefs.ProposeWithHistory(results, a.ownHistory(ctx))
	stop()

	// --- 4. 到期则进化 ---
	var evo *EvolutionReport
	if a.evolutionDue(a.state.GetStateSnapshot(), start) {
		if !a.cfg.Agent.InlineEvolution {
			a.triggerEvolution()
		} else if a.evolving.CompareAndSwap(false, true) {
			a.setPhase(PhaseEvolving)
			stop = a.timePhase(PhaseEvolving)
			report, err := a.evolve(ctx)
			stop()
			a.evolving.Store(false)
			if err != nil {
				log.Error("inline evolution failed, cycle aborted", zap.Error(err))
				a.alert(ctx, reporter.CycleAlert(err))
				a.recordCycle("failed")
				return nil, fmt.Errorf("evolve: %w", err)
			}
			evo = report
		}
	}

	// --- 5. 一次性提交 ---
	a.setPhase(PhasePersisting)
	stop = a.timePhase(PhasePersisting)
	data := statemanager.CycleCompletedData{
		CycleID: cycleID,
		Summary: summary,
		Beliefs: proposed,
	}
	if evo != nil {
		data.Params = evo.adoptedParams()
		data.Evolved = true
	}
	committed, err := a.state.Commit(context.WithoutCancel(ctx), statemanager.NormalizedEvent{
		Type:      statemanager.CycleCompletedEvent,
		Timestamp: a.now(),
		Data:      data,
	})
	stop()
	if err != nil {
		log.Error("failed to persist cycle", zap.Error(err))
		a.alert(ctx, reporter.CycleAlert(err))
		a.recordCycle("failed")
		return nil, fmt.Errorf("persist cycle %s: %w", cycleID, err)
	}

	a.beliefs.Commit(proposed)
	if evo != nil {
		a.applyEvolution(ctx, evo)
	}

	report := &CycleReport{
		CycleID:         cycleID,
		ExecutionNumber: committed.ExecutionCount,
		Results:         results,
		Summary:         summary,
		Beliefs:         proposed,
		Evolution:       evo,
		Duration:        a.now().Sub(start),
	}
	a.afterCycle(ctx, report, committed)
	return report, nil
}

// executeAll 并发执行策略，并发度受 max_parallel 限制。
// 结果按注册顺序写入固定下标，互不影响。
func (a *Agent) executeAll(ctx context.Context, strategies []strategy.Strategy) []models.ExecutionResult {
	results := make([]models.ExecutionResult, len(strategies))
	sem := make(chan struct{}, a.cfg.Agent.MaxParallel)
	var wg sync.WaitGroup

	for i, s := range strategies {
		wg.Add(1)
		go func(i int, s strategy.Strategy) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.executeOne(ctx, s)
		}(i, s)
	}
	wg.Wait()
	return results
}

// executeOne 在超时内执行一个策略。忽略 ctx 的策略在超时后被记为 timeout，
// 其 goroutine 在策略自行返回后退出。
func (a *Agent) executeOne(ctx context.Context, s strategy.Strategy) models.ExecutionResult {
	belief := a.beliefs.Score(s.Name())
	tctx, cancel := context.WithTimeout(ctx, a.cfg.Agent.StrategyTimeout.Duration)
	defer cancel()

	done := make(chan models.ExecutionResult, 1)
	start := a.now()
	go func() {
		done <- a.runner.Execute(tctx, s, belief)
	}()

	select {
	case r := <-done:
		return r
	case <-tctx.Done():
		a.logger.Warn("strategy timed out",
			zap.String("strategy", s.Name()),
			zap.Duration("timeout", a.cfg.Agent.StrategyTimeout.Duration))
		return models.ExecutionResult{
			Strategy:    s.Name(),
			Reason:      models.ReasonTimeout,
			Error:       tctx.Err().Error(),
			BeliefScore: belief,
			Timestamp:   start,
			Duration:    a.now().Sub(start),
		}
	}
}

// ownHistory 返回各策略近期的累计盈亏，仅在配置了自身历史权重时读取
func (a *Agent) ownHistory(ctx context.Context) map[string]float64 {
	if a.cfg.Confidence.OwnHistoryWeight <= 0 {
		return nil
	}
	perf := a.recentPerformance(ctx)
	if len(perf) == 0 {
		return nil
	}
	history := make(map[string]float64, len(perf))
	for name, p := range perf {
		history[name] = p.TotalProfit
	}
	return history
}

func (a *Agent) evolutionDue(state *models.CycleState, now time.Time) bool {
	if state.LastEvolution == nil {
		return true
	}
	return now.Sub(*state.LastEvolution) >= a.cfg.Agent.EvolutionInterval.Duration
}

// afterCycle 处理提交之后的附带工作，这里的失败只记录日志
func (a *Agent) afterCycle(ctx context.Context, report *CycleReport, committed *models.CycleState) {
	if a.log != nil {
		if err := a.log.LogCycle(context.WithoutCancel(ctx), report.CycleID, report.Results); err != nil {
			a.logger.Warn("failed to append execution log", zap.String("cycle_id", report.CycleID), zap.Error(err))
		}
	}
	if a.metrics != nil {
		a.metrics.RecordResults(report.Results)
		a.metrics.RecordCommitted(committed)
		a.metrics.RecordBeliefs(committed.BeliefScores)
	}
	a.recordCycle("completed")

	a.logger.Info("cycle completed",
		zap.String("cycle_id", report.CycleID),
		zap.Int("execution", report.ExecutionNumber),
		zap.Int("total", report.Summary.Total),
		zap.Int("successful", report.Summary.Successful),
		zap.Int("failed", report.Summary.Failed),
		zap.Float64("total_pnl", report.Summary.TotalPnL),
		zap.Float64("win_rate", report.Summary.WinRate),
		zap.Duration("duration", report.Duration))

	a.notify(ctx, reporter.CycleMessage(report.ExecutionNumber, report.Summary, a.cfg.Market.QuoteAsset))
	a.publish("cycle", report)
}

func (a *Agent) recordCycle(outcome string) {
	if a.metrics != nil {
		a.metrics.RecordCycle(outcome)
	}
}

func (a *Agent) timePhase(p Phase) func() {
	if a.metrics == nil {
		return func() {}
	}
	t := a.metrics.StartPhase(p.String())
	return func() { t.Stop() }
}
