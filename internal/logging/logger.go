package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"` // 日志级别
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`               // 日志格式
	Output string `json:"output" yaml:"output" mapstructure:"output"`                                                   // stdout, stderr 或文件路径
}

// DefaultLogConfig 默认日志配置
var DefaultLogConfig = LogConfig{
	Level:  "info",
	Format: "text",
	Output: "stdout",
}

// NewLogger 根据配置创建 logrus 日志器
func NewLogger(config LogConfig) (*logrus.Logger, error) {
	if config.Level == "" {
		config.Level = DefaultLogConfig.Level
	}
	if config.Format == "" {
		config.Format = DefaultLogConfig.Format
	}
	if config.Output == "" {
		config.Output = DefaultLogConfig.Output
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 '%s': %w", config.Level, err)
	}

	writer, err := getLogWriter(config.Output)
	if err != nil {
		return nil, fmt.Errorf("创建日志输出失败: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(writer)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("不支持的日志格式: %s", config.Format)
	}

	return logger, nil
}

// getLogWriter 获取日志输出
func getLogWriter(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		dir := filepath.Dir(output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}

		return file, nil
	}
}

// NewAnalysisLogger 单次地址分析专用日志器
func NewAnalysisLogger(base *logrus.Logger, runID, address string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component": "analyzer",
		"run_id":    runID,
		"address":   address,
	})
}

// NewProviderLogger 数据源专用日志器
func NewProviderLogger(base *logrus.Logger, provider string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component": "provider",
		"provider":  provider,
	})
}

// NewRPCLogger RPC调用专用日志器
func NewRPCLogger(base *logrus.Logger, method string, nodeURL string) *logrus.Entry {
	return base.WithFields(logrus.Fields{
		"component": "rpc_client",
		"method":    method,
		"node_url":  nodeURL,
	})
}
