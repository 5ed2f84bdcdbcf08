package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"addrstats/internal/analyzer"
	"addrstats/internal/config"
	"addrstats/internal/format"
	"addrstats/internal/logging"
	"addrstats/internal/validation"
	"addrstats/pkg/models"
)

var (
	configFile   string
	outputPath   string
	outputFormat string
	verbose      bool
	printJSON    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "addrstats",
		Short:         "链上地址活跃度分析工具",
		Long:          `拉取地址的交易历史，计算总量、日/月活跃度、连续活跃天数和地址画像`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "详细输出")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <address>",
		Short: "分析地址",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&outputPath, "output", "", "结果输出目录（覆盖配置）")
	analyzeCmd.Flags().StringVar(&outputFormat, "format", "", "输出格式 (json|kafka|kafka_async|none)")
	analyzeCmd.Flags().BoolVar(&printJSON, "json", false, "打印完整 JSON 结果")

	validateCmd := &cobra.Command{
		Use:   "validate <address>",
		Short: "校验地址格式",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	rootCmd.AddCommand(analyzeCmd, validateCmd)
	return rootCmd
}

// loadConfig 加载配置，默认配置文件不存在时使用内置默认值
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if _, err := os.Stat(path); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if outputPath != "" {
		cfg.Output.Directory = outputPath
	}
	if outputFormat != "" {
		cfg.Output.Format = outputFormat
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger 创建日志器；标准输出留给分析结果，日志写到 stderr
func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logCfg := *cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	if verbose {
		logCfg.Level = "debug"
	}
	return logging.NewLogger(logCfg)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	runtime, err := analyzer.NewRuntime(cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化分析器失败: %w", err)
	}
	defer runtime.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := runtime.Analyze(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if printJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	printSummary(out, result)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	address, err := validation.ValidateSearchInput(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), address.Hex())
	return nil
}

// printSummary 打印人类可读的分析摘要
func printSummary(w io.Writer, a *models.AddressAnalytics) {
	d := format.Summarize(a)

	fmt.Fprintf(w, "地址:         %s\n", d.Address)
	fmt.Fprintf(w, "画像:         %s\n", d.Profile)
	fmt.Fprintf(w, "余额:         %s\n", d.Balance)
	fmt.Fprintf(w, "交易总数:     %s\n", d.TotalTransactions)
	fmt.Fprintf(w, "转账总额:     %s\n", d.TotalValueTransferred)
	fmt.Fprintf(w, "Gas 花费:     %s\n", d.TotalGasSpent)
	fmt.Fprintf(w, "平均 Gas 价格: %s\n", d.AverageGasPrice)
	fmt.Fprintf(w, "合约交互占比: %s\n", d.ContractRatio)
	fmt.Fprintf(w, "交互地址数:   %s\n", d.UniqueInteractions)
	fmt.Fprintf(w, "活跃天数:     %d (活跃月份 %d)\n", a.ActiveDays, a.ActiveMonths)

	streak := a.ActivityStreak
	fmt.Fprintf(w, "连续活跃:     当前 %d 天, 最长 %d 天\n", streak.CurrentStreak, streak.LongestStreak)
	if a.FirstTransactionDate != nil && a.LastTransactionDate != nil {
		fmt.Fprintf(w, "时间范围:     %s ~ %s\n", *a.FirstTransactionDate, *a.LastTransactionDate)
	}
	if a.IgnoredTransactions > 0 {
		fmt.Fprintf(w, "忽略记录:     %d\n", a.IgnoredTransactions)
	}
}
