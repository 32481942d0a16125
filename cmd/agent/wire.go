package main

import (
	"adaptive-agent-go/internal/agent"
	"adaptive-agent-go/internal/confidence"
	"adaptive-agent-go/internal/evolution"
	"adaptive-agent-go/internal/exchange"
	"adaptive-agent-go/internal/executor"
	"adaptive-agent-go/internal/health"
	"adaptive-agent-go/internal/market"
	"adaptive-agent-go/internal/metrics"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/notify"
	"adaptive-agent-go/internal/persistence"
	"adaptive-agent-go/internal/risk"
	"adaptive-agent-go/internal/statemanager"
	"adaptive-agent-go/internal/storage"
	"adaptive-agent-go/internal/strategy"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// app 持有一次进程运行所需的全部组件
type app struct {
	cfg      *models.Config
	logger   *zap.Logger
	agent    *agent.Agent
	state    *statemanager.StateManager
	repo     persistence.StateRepository
	execLog  *storage.ExecutionLog
	exchange *exchange.SimulatedExchange
	beliefs  *confidence.Gate
	hub      *notify.Hub
	metrics  *metrics.Registry
	servers  []*http.Server
}

// buildRuntime 按配置组装所有组件，失败时释放已经打开的资源
func buildRuntime(cfg *models.Config, logger *zap.Logger) (_ *app, err error) {
	rt := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	// --- 1. 持久化 ---
	rt.repo, err = persistence.NewBadgerRepository(cfg.Storage.StateDBPath, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	state, err := rt.repo.LoadState()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		logger.Info("no persisted state found, starting fresh")
		state = models.NewCycleState()
	}

	logPath := cfg.Storage.ExecutionLogPath
	if cfg.Storage.InMemory {
		logPath = ":memory:"
	}
	rt.execLog, err = storage.InitDB(logPath)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}

	// --- 2. 行情与策略 ---
	feed, err := market.New(cfg.Market)
	if err != nil {
		return nil, err
	}
	registry, err := strategy.BuildRegistry(cfg.Strategies, strategy.Deps{
		Feed:           feed,
		PortfolioValue: cfg.Simulation.PortfolioValue,
	})
	if err != nil {
		return nil, fmt.Errorf("build strategies: %w", err)
	}
	persisted, err := rt.repo.LoadAllStrategyParams()
	if err != nil {
		return nil, fmt.Errorf("load strategy params: %w", err)
	}
	for name, params := range persisted {
		if err := registry.Apply(name, params); err != nil {
			logger.Warn("ignoring persisted params", zap.String("strategy", name), zap.Error(err))
		}
	}

	// --- 3. 置信度、风控与执行 ---
	rt.beliefs = confidence.NewGate(cfg.Confidence, nil)
	for _, s := range cfg.Strategies {
		if s.InitialBelief != nil {
			rt.beliefs.SetInitial(s.Name, *s.InitialBelief)
		}
	}
	rt.beliefs.LoadScores(state.BeliefScores)

	rt.exchange = exchange.NewSimulatedExchange(cfg.Simulation)
	runner := executor.New(rt.beliefs.MinConfidence(), risk.NewGate(cfg.Risk), rt.exchange, logger.Named("executor"))

	// --- 4. 健康检查 ---
	checker := health.NewChecker()
	for _, asset := range strategyAssets(registry) {
		checker.Add("feed:"+asset, health.FeedProbe(feed, asset))
	}
	execLog := rt.execLog
	checker.Add("execution_log", health.Func(func(ctx context.Context) error {
		_, err := execLog.CountExecutions(ctx)
		return err
	}))

	// --- 5. 通知 ---
	notifiers := notify.Multi{notify.NewLogNotifier(logger.Named("notify"))}
	if cfg.Notify.TelegramEnabled {
		tg, err := notify.NewTelegramNotifier(notify.TelegramOptions{
			BaseURL:       cfg.Notify.TelegramBaseURL,
			Token:         cfg.Notify.TelegramToken,
			ChatID:        cfg.Notify.TelegramChatID,
			RatePerMinute: int(cfg.Notify.RatePerMinute),
		}, logger.Named("telegram"))
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
	}
	var publisher agent.Publisher
	if cfg.Notify.HubAddr != "" {
		rt.hub = notify.NewHub(logger.Named("hub"))
		publisher = rt.hub
		notifiers = append(notifiers, rt.hub)
	}
	rt.metrics = metrics.NewRegistry()

	// --- 6. 状态管理与进化 ---
	rt.state = statemanager.NewStateManager(state, rt.repo, logger.Named("state"))
	rt.state.Start()

	engine := evolution.NewEngine(
		evolution.NewFitnessEvaluator(cfg.Evolution.Weights),
		evolution.Options{
			MutationRate:   cfg.Evolution.MutationRate,
			PatternLibrary: cfg.Evolution.PatternLibrary,
			Seed:           cfg.Evolution.Seed,
		},
		logger.Named("evolution"))

	rt.agent = agent.New(agent.Deps{
		Config:    cfg,
		Registry:  registry,
		Runner:    runner,
		Beliefs:   rt.beliefs,
		Health:    checker,
		State:     rt.state,
		Log:       rt.execLog,
		Notifier:  notifiers,
		Publisher: publisher,
		Evolution: engine,
		Metrics:   rt.metrics,
		Logger:    logger.Named("agent"),
	})
	rt.metrics.RecordCommitted(state)
	return rt, nil
}

// serve 启动 /metrics 和 /ws 端点
func (rt *app) serve() {
	if addr := rt.cfg.Agent.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		rt.listen(addr, mux)
	}
	if addr := rt.cfg.Notify.HubAddr; addr != "" && rt.hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", rt.hub)
		rt.listen(addr, mux)
	}
}

func (rt *app) listen(addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	rt.servers = append(rt.servers, srv)
	go func() {
		rt.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("http server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

// Close 按依赖的逆序关闭组件。状态管理器先停，保证进行中的提交落盘。
func (rt *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range rt.servers {
		_ = srv.Shutdown(ctx)
	}
	if rt.hub != nil {
		rt.hub.Close()
	}
	if rt.agent != nil {
		rt.agent.Wait()
	}
	if rt.state != nil {
		rt.state.Stop()
	}
	if rt.execLog != nil {
		if err := rt.execLog.Close(); err != nil {
			rt.logger.Warn("failed to close execution log", zap.Error(err))
		}
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("failed to close state store", zap.Error(err))
		}
	}
}

// strategyAssets 返回启用策略所报价的资产，去重并保持顺序
func strategyAssets(r *strategy.Registry) []string {
	seen := make(map[string]bool)
	var assets []string
	for _, s := range r.Enabled() {
		p := s.Parameters()
		asset := p.String("asset", p.String("gas_asset", ""))
		if asset == "" || seen[asset] {
			continue
		}
		seen[asset] = true
		assets = append(assets, asset)
	}
	return assets
}
