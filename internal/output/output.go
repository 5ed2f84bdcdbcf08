package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"addrstats/internal/config"
	"addrstats/pkg/models"

	"github.com/sirupsen/logrus"
)

// 输出格式
const (
	FormatJSON       = "json"
	FormatKafka      = "kafka"
	FormatKafkaAsync = "kafka_async"
	FormatNone       = "none"
)

// Output 分析结果输出接口
type Output interface {
	WriteAnalytics(a *models.AddressAnalytics) error
	Close() error
}

// NewOutput 根据配置创建输出器
func NewOutput(cfg *config.OutputConfig, logger *logrus.Logger) (Output, error) {
	switch cfg.Format {
	case FormatKafka:
		return NewKafkaOutput(cfg.Kafka, logger)
	case FormatKafkaAsync:
		return NewAsyncKafkaOutput(cfg.Kafka, logger)
	case FormatNone:
		return NoopOutput{}, nil
	case FormatJSON, "":
		return NewFileOutput(cfg.Directory, logger)
	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", cfg.Format)
	}
}

// FileOutput 文件输出，每次分析写一行 JSON
type FileOutput struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger *logrus.Logger
}

// NewFileOutput 在目录下创建 analytics_<时间戳>.json
func NewFileOutput(outputPath string, logger *logrus.Logger) (*FileOutput, error) {
	if outputPath == "" {
		outputPath = "."
	}

	// 确保输出目录存在
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(outputPath, fmt.Sprintf("analytics_%s.json", timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("创建分析结果文件失败: %w", err)
	}

	logger.Infof("分析结果将写入 %s", path)
	return &FileOutput{path: path, file: file, logger: logger}, nil
}

// Path 输出文件路径
func (o *FileOutput) Path() string {
	return o.path
}

// WriteAnalytics 写入分析结果
func (o *FileOutput) WriteAnalytics(a *models.AddressAnalytics) error {
	if a == nil {
		return nil
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("序列化分析结果失败: %w", err)
	}

	// 添加换行符
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.file.Write(data); err != nil {
		return fmt.Errorf("写入分析结果文件失败: %w", err)
	}

	// 强制刷新到磁盘
	if err := o.file.Sync(); err != nil {
		return fmt.Errorf("刷新分析结果文件失败: %w", err)
	}

	return nil
}

// Close 关闭文件
func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	o.file = nil
	if err != nil {
		return fmt.Errorf("关闭分析结果文件失败: %w", err)
	}
	return nil
}

// NoopOutput 不输出，用于试运行
type NoopOutput struct{}

// WriteAnalytics 丢弃结果
func (NoopOutput) WriteAnalytics(*models.AddressAnalytics) error { return nil }

// Close 无操作
func (NoopOutput) Close() error { return nil }
