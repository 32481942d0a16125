package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the agent. It is decoded from a JSON or YAML file.
type Config struct {
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Confidence ConfidenceConfig `json:"confidence" yaml:"confidence"`
	Evolution  EvolutionConfig  `json:"evolution" yaml:"evolution"`
	Strategies []StrategyConfig `json:"strategies" yaml:"strategies"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Market     MarketConfig     `json:"market" yaml:"market"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	LogConfig  LogConfig        `json:"log" yaml:"log"`
}

// AgentConfig controls the control loop and the cycle orchestration.
type AgentConfig struct {
	CycleInterval     Duration `json:"cycle_interval" yaml:"cycle_interval"`         // trading cycle period, default 30m
	EvolutionInterval Duration `json:"evolution_interval" yaml:"evolution_interval"` // evolution period, default 24h
	MaxParallel       int      `json:"max_parallel" yaml:"max_parallel"`             // concurrent strategy executions per cycle
	StrategyTimeout   Duration `json:"strategy_timeout" yaml:"strategy_timeout"`     // per-strategy deadline
	HealthTimeout     Duration `json:"health_timeout" yaml:"health_timeout"`
	NotifyTimeout     Duration `json:"notify_timeout" yaml:"notify_timeout"`
	InlineEvolution   bool     `json:"inline_evolution" yaml:"inline_evolution"` // run evolution inside the cycle before persisting
	RunOnStart        bool     `json:"run_on_start" yaml:"run_on_start"`
	MetricsAddr       string   `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// RiskConfig defines the pre-trade bounds.
type RiskConfig struct {
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"` // fraction of portfolio, default 0.10
	MaxSlippage     float64 `json:"max_slippage" yaml:"max_slippage"`           // default 0.02
}

// ConfidenceConfig defines belief gating and the rewrite policy.
type ConfidenceConfig struct {
	MinConfidence    float64 `json:"min_confidence" yaml:"min_confidence"`         // default 0.6
	DefaultBelief    float64 `json:"default_belief" yaml:"default_belief"`         // default 0.5
	Step             float64 `json:"step" yaml:"step"`                             // max change per cycle, default 0.05
	OwnHistoryWeight float64 `json:"own_history_weight" yaml:"own_history_weight"` // 0 = pure ensemble feedback
	HoldIsNeutral    *bool   `json:"hold_is_neutral,omitempty" yaml:"hold_is_neutral,omitempty"`
}

// EvolutionConfig defines the genetic search.
type EvolutionConfig struct {
	PopulationSize        int                `json:"population_size" yaml:"population_size"`
	Generations           int                `json:"generations" yaml:"generations"`
	AdoptionThreshold     float64            `json:"adoption_threshold" yaml:"adoption_threshold"`
	PerformanceWindowDays int                `json:"performance_window_days" yaml:"performance_window_days"`
	MutationRate          float64            `json:"mutation_rate" yaml:"mutation_rate"`
	Weights               map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	TargetMetrics         map[string]float64 `json:"target_metrics,omitempty" yaml:"target_metrics,omitempty"`
	PatternLibrary        []string           `json:"pattern_library,omitempty" yaml:"pattern_library,omitempty"`
	Seed                  int64              `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// StrategyConfig registers one strategy variant.
type StrategyConfig struct {
	Name          string   `json:"name" yaml:"name"`
	Kind          string   `json:"kind,omitempty" yaml:"kind,omitempty"` // variant, defaults to Name
	Enabled       bool     `json:"enabled" yaml:"enabled"`
	InitialBelief *float64 `json:"initial_belief,omitempty" yaml:"initial_belief,omitempty"`
	Params        Params   `json:"params" yaml:"params"`
}

// StorageConfig points at the durable stores.
type StorageConfig struct {
	StateDBPath      string `json:"state_db_path" yaml:"state_db_path"`           // badger directory
	ExecutionLogPath string `json:"execution_log_path" yaml:"execution_log_path"` // sqlite file
	InMemory         bool   `json:"in_memory,omitempty" yaml:"in_memory,omitempty"`
}

// NotifyConfig configures the notification sinks. Telegram credentials come from the environment.
type NotifyConfig struct {
	TelegramEnabled bool    `json:"telegram_enabled" yaml:"telegram_enabled"`
	TelegramBaseURL string  `json:"telegram_base_url,omitempty" yaml:"telegram_base_url,omitempty"`
	RatePerMinute   float64 `json:"rate_per_minute" yaml:"rate_per_minute"`
	HubAddr         string  `json:"hub_addr,omitempty" yaml:"hub_addr,omitempty"`
	TelegramToken   string  `json:"-" yaml:"-"`
	TelegramChatID  string  `json:"-" yaml:"-"`
}

// MarketConfig selects the price source used by the strategies.
type MarketConfig struct {
	Provider     string             `json:"provider" yaml:"provider"` // "binance", "simulated" or "static"
	QuoteAsset   string             `json:"quote_asset" yaml:"quote_asset"`
	StaticPrices map[string]float64 `json:"static_prices,omitempty" yaml:"static_prices,omitempty"` // 静态价格或随机游走的起点
	Volatility   float64            `json:"volatility,omitempty" yaml:"volatility,omitempty"`       // 随机游走的单步波动率
	Seed         int64              `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// SimulationConfig drives the simulated exchange fills.
type SimulationConfig struct {
	PortfolioValue float64 `json:"portfolio_value" yaml:"portfolio_value"`
	FeeRate        float64 `json:"fee_rate" yaml:"fee_rate"`
	EdgeMean       float64 `json:"edge_mean" yaml:"edge_mean"`
	EdgeStdDev     float64 `json:"edge_std_dev" yaml:"edge_std_dev"`
	Seed           int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// LogConfig defines the logging output.
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Output     string `json:"output" yaml:"output"`           // "console", "file", "both"
	File       string `json:"file" yaml:"file"`               // log file path
	MaxSize    int    `json:"max_size" yaml:"max_size"`       // MB per file
	MaxBackups int    `json:"max_backups" yaml:"max_backups"` // rotated files kept
	MaxAge     int    `json:"max_age" yaml:"max_age"`         // days
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Duration is a time.Duration that decodes from strings such as "30m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value) * time.Second
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
