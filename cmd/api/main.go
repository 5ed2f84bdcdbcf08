package main

import (
	"context"
	"flag"
	"os"

	"addrstats/internal/analyzer"
	"addrstats/internal/api"
	"addrstats/internal/config"
	"addrstats/internal/logging"
	"addrstats/internal/shutdown"

	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
	outputPath = flag.String("output", "", "结果输出目录（覆盖配置）")
	port       = flag.Int("port", 0, "API 服务端口（覆盖配置）")
	verbose    = flag.Bool("verbose", false, "详细输出")
)

func main() {
	flag.Parse()

	// 自动检测并加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	if *outputPath != "" {
		cfg.Output.Directory = *outputPath
	}
	if *port > 0 {
		cfg.API.Port = *port
	}

	logCfg := *cfg.Logging
	if *verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		logrus.Fatalf("创建日志器失败: %v", err)
	}

	runtime, err := analyzer.NewRuntime(cfg, logger)
	if err != nil {
		logger.Fatalf("初始化分析器失败: %v", err)
	}

	graceful := shutdown.NewGracefulShutdown(cfg.API.WriteTimeout, logger)

	// 数据库配置管理接口
	var opts []api.ServerOption
	if dsn := os.Getenv(config.EnvPrefix + "_DB_DSN"); dsn != "" {
		dbConfig, err := config.NewDatabaseConfig(dsn, logger)
		if err != nil {
			logger.Warnf("配置管理接口不可用: %v", err)
		} else {
			opts = append(opts, api.WithConfigManager(api.NewConfigManager(dbConfig, logger)))
			graceful.Register("配置数据库", shutdown.OrderCloseSources, func(ctx context.Context) error {
				return dbConfig.Close()
			})
		}
	}

	server := api.NewServer(runtime, cfg.API, logger, opts...)

	graceful.Register("API服务器", shutdown.OrderStopHTTPServer, server.Stop)
	graceful.Register("分析运行时", shutdown.OrderFlushOutputs, func(ctx context.Context) error {
		return runtime.Close()
	})
	graceful.Listen()

	go func() {
		if err := server.Start(); err != nil {
			logger.Errorf("启动服务器失败: %v", err)
			graceful.Trigger("服务器异常退出")
		}
	}()

	errs := graceful.Wait()
	if len(errs) > 0 {
		logger.WithField("errors", len(errs)).Error("服务器关闭时发生错误")
		os.Exit(1)
	}
	logger.Info("服务器已关闭")
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
