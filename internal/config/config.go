package config

import (
	"adaptive-agent-go/internal/evolution"
	"adaptive-agent-go/internal/models"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 表示配置校验失败
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig 从指定路径加载配置文件 (JSON 或 YAML，按扩展名判断)，
// 填充默认值、读取环境变量中的密钥并完成校验
func LoadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 为未设置的字段填充默认值
func ApplyDefaults(cfg *models.Config) {
	a := &cfg.Agent
	if a.CycleInterval.Duration == 0 {
		a.CycleInterval.Duration = 30 * time.Minute
	}
	if a.EvolutionInterval.Duration == 0 {
		a.EvolutionInterval.Duration = 24 * time.Hour
	}
	if a.MaxParallel <= 0 {
		a.MaxParallel = 4
	}
	if a.StrategyTimeout.Duration == 0 {
		a.StrategyTimeout.Duration = 30 * time.Second
	}
	if a.HealthTimeout.Duration == 0 {
		a.HealthTimeout.Duration = 10 * time.Second
	}
	if a.NotifyTimeout.Duration == 0 {
		a.NotifyTimeout.Duration = 10 * time.Second
	}

	if cfg.Risk.MaxPositionSize == 0 {
		cfg.Risk.MaxPositionSize = 0.10
	}
	if cfg.Risk.MaxSlippage == 0 {
		cfg.Risk.MaxSlippage = 0.02
	}

	c := &cfg.Confidence
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.6
	}
	if c.DefaultBelief == 0 {
		c.DefaultBelief = 0.5
	}
	if c.Step == 0 {
		c.Step = 0.05
	}
	if c.HoldIsNeutral == nil {
		neutral := true
		c.HoldIsNeutral = &neutral
	}

	e := &cfg.Evolution
	if e.PopulationSize == 0 {
		e.PopulationSize = 10
	}
	if e.Generations == 0 {
		e.Generations = 5
	}
	if e.AdoptionThreshold == 0 {
		e.AdoptionThreshold = 0.05
	}
	if e.PerformanceWindowDays == 0 {
		e.PerformanceWindowDays = 7
	}
	if e.MutationRate == 0 {
		e.MutationRate = 0.1
	}

	for i := range cfg.Strategies {
		s := &cfg.Strategies[i]
		if s.Kind == "" {
			s.Kind = s.Name
		}
		s.Params = s.Params.Normalize()
	}

	if cfg.Storage.StateDBPath == "" {
		cfg.Storage.StateDBPath = "data/state"
	}
	if cfg.Storage.ExecutionLogPath == "" {
		cfg.Storage.ExecutionLogPath = "data/executions.db"
	}

	if cfg.Notify.RatePerMinute == 0 {
		cfg.Notify.RatePerMinute = 20
	}

	if cfg.Market.Provider == "" {
		cfg.Market.Provider = "simulated"
	}
	if cfg.Market.Volatility == 0 {
		cfg.Market.Volatility = 0.01
	}
	if cfg.Market.QuoteAsset == "" {
		cfg.Market.QuoteAsset = "USDT"
	}

	if cfg.Simulation.PortfolioValue == 0 {
		cfg.Simulation.PortfolioValue = 10000
	}
	if cfg.Simulation.FeeRate == 0 {
		cfg.Simulation.FeeRate = 0.001
	}
	if cfg.Simulation.EdgeStdDev == 0 {
		cfg.Simulation.EdgeStdDev = 0.01
	}

	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// ApplyEnv 从环境变量读取密钥，密钥不应写在配置文件中
func ApplyEnv(cfg *models.Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
}

// Validate 检查配置的取值范围
func Validate(cfg *models.Config) error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(inUnit(cfg.Risk.MaxPositionSize), "risk.max_position_size must be in [0,1], got %v", cfg.Risk.MaxPositionSize)
	check(inUnit(cfg.Risk.MaxSlippage), "risk.max_slippage must be in [0,1], got %v", cfg.Risk.MaxSlippage)
	check(inUnit(cfg.Confidence.MinConfidence), "confidence.min_confidence must be in [0,1], got %v", cfg.Confidence.MinConfidence)
	check(inUnit(cfg.Confidence.DefaultBelief), "confidence.default_belief must be in [0,1], got %v", cfg.Confidence.DefaultBelief)
	check(inUnit(cfg.Confidence.Step), "confidence.step must be in [0,1], got %v", cfg.Confidence.Step)
	check(inUnit(cfg.Confidence.OwnHistoryWeight), "confidence.own_history_weight must be in [0,1], got %v", cfg.Confidence.OwnHistoryWeight)
	check(cfg.Evolution.PopulationSize >= 2, "evolution.population_size must be >= 2, got %d", cfg.Evolution.PopulationSize)
	check(cfg.Evolution.Generations >= 0, "evolution.generations must be >= 0, got %d", cfg.Evolution.Generations)
	check(cfg.Evolution.AdoptionThreshold >= 0, "evolution.adoption_threshold must be >= 0, got %v", cfg.Evolution.AdoptionThreshold)
	if err := evolution.ValidateWeights(cfg.Evolution.Weights); err != nil {
		problems = append(problems, "evolution.weights: "+err.Error())
	}
	check(cfg.Evolution.PerformanceWindowDays > 0, "evolution.performance_window_days must be > 0, got %d", cfg.Evolution.PerformanceWindowDays)
	check(cfg.Agent.CycleInterval.Duration > 0, "agent.cycle_interval must be positive")
	check(cfg.Agent.EvolutionInterval.Duration > 0, "agent.evolution_interval must be positive")

	seen := make(map[string]bool, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		check(s.Name != "", "strategy name must not be empty")
		check(!seen[s.Name], "duplicate strategy name %q", s.Name)
		seen[s.Name] = true
		if s.InitialBelief != nil {
			check(inUnit(*s.InitialBelief), "strategy %q initial_belief must be in [0,1], got %v", s.Name, *s.InitialBelief)
		}
	}

	switch cfg.Market.Provider {
	case "static", "simulated", "binance":
	default:
		problems = append(problems, fmt.Sprintf("unknown market.provider %q", cfg.Market.Provider))
	}

	if cfg.Notify.TelegramEnabled {
		check(cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "",
			"telegram is enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is not set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
