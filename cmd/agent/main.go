package main

import (
	"adaptive-agent-go/internal/config"
	"adaptive-agent-go/internal/logger"
	"adaptive-agent-go/internal/models"
	"adaptive-agent-go/internal/reporter"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath   string
	historyLimit int
	loadedConfig *models.Config
	rootLogger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Adaptive strategy agent",
	Long: `Runs a set of trading strategies on a schedule, adjusts a belief score per
strategy after every cycle and periodically evolves strategy parameters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 先用默认配置初始化日志，便于记录加载过程
		logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

		if err := godotenv.Load(); err != nil {
			logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
		} else {
			logger.S().Info("成功从 .env 文件加载配置。")
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("无法加载配置文件: %w", err)
		}
		loadedConfig = cfg
		rootLogger = logger.InitLogger(cfg.LogConfig)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.S().Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop until interrupted",
	RunE:  runLoop,
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single cycle and print its results",
	RunE:  runOneCycle,
}

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Run a single evolution pass over every enabled strategy",
	RunE:  runOneEvolution,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the persisted agent state",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the config file (yaml or json)")
	statusCmd.Flags().IntVar(&historyLimit, "history", 10, "number of evolution records to show")
	evolveCmd.Flags().IntVar(&historyLimit, "history", 10, "number of evolution records to show")
	rootCmd.AddCommand(runCmd, cycleCmd, evolveCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runLoop 运行控制循环，收到 SIGINT/SIGTERM 后等待进行中的周期结束再退出
func runLoop(cmd *cobra.Command, args []string) error {
	logger.S().Info("--- 启动自适应代理 ---")
	rt, err := buildRuntime(loadedConfig, rootLogger)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.agent.Run(ctx); err != nil {
		return err
	}
	logger.S().Info("代理已停止，状态已保存。")

	out := cmd.OutOrStdout()
	reporter.StatusReport(out, rt.agent.State(), nil)
	reporter.AccountReport(out, reporter.CalculateMetrics(rt.exchange.Trades(), rt.exchange.Stats()), loadedConfig.Market.QuoteAsset)
	return nil
}

func runOneCycle(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(loadedConfig, rootLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := rt.agent.RunCycle(ctx)
	if err != nil {
		return err
	}
	rt.agent.Wait()

	out := cmd.OutOrStdout()
	reporter.CycleReport(out, report.CycleID, report.ExecutionNumber, report.Results, report.Summary)
	reporter.BeliefReport(out, rt.beliefs.Snapshot(), rt.beliefs.MinConfidence())
	return nil
}

func runOneEvolution(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(loadedConfig, rootLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.agent.RunEvolution(ctx); err != nil {
		return err
	}
	records, err := rt.execLog.RecentEvolutions(ctx, historyLimit)
	if err != nil {
		return err
	}
	reporter.EvolutionReport(cmd.OutOrStdout(), records)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(loadedConfig, rootLogger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	totals, err := rt.execLog.GetStrategyTotals(ctx)
	if err != nil {
		return err
	}
	records, err := rt.execLog.RecentEvolutions(ctx, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	reporter.StatusReport(out, rt.agent.State(), totals)
	reporter.BeliefReport(out, rt.beliefs.Snapshot(), rt.beliefs.MinConfidence())
	if len(records) > 0 {
		reporter.EvolutionReport(out, records)
	}
	return nil
}
