// Package agent runs the adaptive control loop: health check, concurrent
// strategy execution, belief adaptation, periodic evolution and an
// all-or-nothing commit of the cycle state.
package agent

import (
	"adaptive-agent-go/internal/confidence"
	"adaptive-agent-go/internal/config"
	"adaptive-agent-go/internal/evolution"
	"adaptive-agent-go/internal/health"
	"adaptive-agent-go/internal/metrics"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/notify"
	"adaptive-agent-go/internal/statemanager"
	"adaptive-agent-go/internal/storage"
	"adaptive-agent-go/internal/strategy"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrHealthCheckFailed   = errors.New("health check failed")
	ErrCycleInProgress     = errors.New("cycle already in progress")
	ErrEvolutionInProgress = errors.New("evolution already in progress")
)

// Phase 是控制循环当前所处的阶段
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseHealthChecking
	PhaseExecuting
	PhaseAdapting
	PhaseEvolving
	PhasePersisting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHealthChecking:
		return "health_checking"
	case PhaseExecuting:
		return "executing"
	case PhaseAdapting:
		return "adapting"
	case PhaseEvolving:
		return "evolving"
	case PhasePersisting:
		return "persisting"
	}
	return "unknown"
}

// Runner 执行单个策略，*executor.Executor 实现了该接口
type Runner interface {
	Execute(ctx context.Context, s strategy.Strategy, belief float64) models.ExecutionResult
}

// ExecutionLog 是执行记录的持久化，*storage.ExecutionLog 实现了该接口
type ExecutionLog interface {
	LogCycle(ctx context.Context, cycleID string, results []models.ExecutionResult) error
	GetRecentPerformance(ctx context.Context, windowDays int) (map[string]storage.Performance, error)
	RecordEvolution(ctx context.Context, rec storage.EvolutionRecord) error
}

// Publisher 向看板推送事件，*notify.Hub 实现了该接口
type Publisher interface {
	Publish(kind string, payload interface{}) error
}

// MeasureFactory builds the evolution measure for one strategy from its recent
// performance and the risk limits. evolution.PerformanceMeasure is the default.
type MeasureFactory func(perf evolution.Performance, limits evolution.Limits) evolution.MeasureFunc

// Deps 汇总了 Agent 的所有协作者。Log、Publisher、Evolution、Measure 和 Metrics 可以为空。
type Deps struct {
	Config    *models.Config
	Registry  *strategy.Registry
	Runner    Runner
	Beliefs   *confidence.Gate
	Health    health.Probe
	State     *statemanager.StateManager
	Log       ExecutionLog
	Notifier  notify.Notifier
	Publisher Publisher
	Evolution *evolution.Engine
	Measure   MeasureFactory
	Metrics   *metrics.Registry
	Logger    *zap.Logger
	Now       func() time.Time
}

// Agent 是自适应控制循环的核心结构
type Agent struct {
	cfg       models.Config
	registry  *strategy.Registry
	runner    Runner
	beliefs   *confidence.Gate
	health    health.Probe
	state     *statemanager.StateManager
	log       ExecutionLog
	notifier  notify.Notifier
	publisher Publisher
	engine    *evolution.Engine
	measure   MeasureFactory
	metrics   *metrics.Registry
	logger    *zap.Logger
	now       func() time.Time

	phase    atomic.Int32
	cycling  atomic.Bool
	evolving atomic.Bool
	workers  sync.WaitGroup

	// background evolution runs under evolveCtx; Run cancels it on shutdown
	evolveCtx    context.Context
	cancelEvolve context.CancelFunc
}

// New 创建一个 Agent。配置会被复制并补齐默认值。
func New(d Deps) *Agent {
	cfg := models.Config{}
	if d.Config != nil {
		cfg = *d.Config
	}
	config.ApplyDefaults(&cfg)

	a := &Agent{
		cfg:       cfg,
		registry:  d.Registry,
		runner:    d.Runner,
		beliefs:   d.Beliefs,
		health:    d.Health,
		state:     d.State,
		log:       d.Log,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		engine:    d.Evolution,
		measure:   d.Measure,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       d.Now,
	}
	a.evolveCtx, a.cancelEvolve = context.WithCancel(context.Background())
	if a.measure == nil {
		a.measure = evolution.PerformanceMeasure
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.health == nil {
		a.health = health.Static(true, "no probes")
	}
	if a.notifier == nil {
		a.notifier = notify.NewLogNotifier(a.logger)
	}
	if a.engine == nil {
		a.engine = evolution.NewEngine(
			evolution.NewFitnessEvaluator(cfg.Evolution.Weights),
			evolution.Options{
				MutationRate:   cfg.Evolution.MutationRate,
				PatternLibrary: cfg.Evolution.PatternLibrary,
				Seed:           cfg.Evolution.Seed,
			},
			a.logger.Named("evolution"))
	}
	return a
}

// Phase 返回当前周期阶段
func (a *Agent) Phase() Phase {
	return Phase(a.phase.Load())
}

// State 返回已提交状态的快照
func (a *Agent) State() *models.CycleState {
	return a.state.GetStateSnapshot()
}

func (a *Agent) setPhase(p Phase) {
	a.phase.Store(int32(p))
}

// Run 启动控制循环，直到 ctx 被取消。进行中的周期会完整结束，之后的周期不再开始；
// 后台进化在下一代开始前被中断，不提交也不告警。Run 返回后不应再次调用。
func (a *Agent) Run(ctx context.Context) error {
	cycleTicker := time.NewTicker(a.cfg.Agent.CycleInterval.Duration)
	defer cycleTicker.Stop()
	evolutionTicker := time.NewTicker(a.cfg.Agent.EvolutionInterval.Duration)
	defer evolutionTicker.Stop()

	a.logger.Info("agent started",
		zap.Duration("cycle_interval", a.cfg.Agent.CycleInterval.Duration),
		zap.Duration("evolution_interval", a.cfg.Agent.EvolutionInterval.Duration),
		zap.Int("strategies", len(a.registry.Enabled())))

	if a.cfg.Agent.RunOnStart {
		a.scheduledCycle(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping, interrupting background evolution")
			a.cancelEvolve()
			a.workers.Wait()
			return nil
		case <-cycleTicker.C:
			a.scheduledCycle(ctx)
		case <-evolutionTicker.C:
			if ctx.Err() == nil {
				a.triggerEvolution()
			}
		}
	}
}

// scheduledCycle 执行一次定时周期，错误只记录日志，不会终止循环
func (a *Agent) scheduledCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.RunCycle(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("cycle did not complete", zap.Error(err))
	}
}

// triggerEvolution 在后台启动一次进化，已有进化在运行时直接返回
func (a *Agent) triggerEvolution() bool {
	if !a.evolving.CompareAndSwap(false, true) {
		a.logger.Debug("evolution already running, trigger ignored")
		return false
	}
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		defer a.evolving.Store(false)
		if _, err := a.runEvolution(a.evolveCtx); err != nil {
			a.logger.Warn("background evolution failed", zap.Error(err))
		}
	}()
	return true
}

// Wait 等待后台进化结束
func (a *Agent) Wait() {
	a.workers.Wait()
}

func (a *Agent) alert(ctx context.Context, text string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Agent.NotifyTimeout.Duration)
	defer cancel()
	if err := a.notifier.SendAlert(nctx, text); err != nil {
		a.logger.Error("failed to send alert", zap.Error(err))
	}
}

func (a *Agent) notify(ctx context.Context, text string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Agent.NotifyTimeout.Duration)
	defer cancel()
	if err := a.notifier.SendNotification(nctx, text); err != nil {
		a.logger.Warn("failed to send notification", zap.Error(err))
	}
}

func (a *Agent) publish(kind string, payload interface{}) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(kind, payload); err != nil {
		a.logger.Debug("publish failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (a *Agent) recentPerformance(ctx context.Context) map[string]storage.Performance {
	if a.log == nil {
		return nil
	}
	perf, err := a.log.GetRecentPerformance(ctx, a.cfg.Evolution.PerformanceWindowDays)
	if err != nil {
		a.logger.Warn("failed to read recent performance", zap.Error(err))
		return nil
	}
	return perf
}
