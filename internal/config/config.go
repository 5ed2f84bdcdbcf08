package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"addrstats/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "ADDRSTATS"

// 区块浏览器 API Key 的兼容环境变量，按顺序查找
var explorerKeyEnvs = []string{"BASESCAN_API_KEY", "ETHERSCAN_API_KEY"}

// Config 主配置
type Config struct {
	Chain    *ChainConfig       `mapstructure:"chain" validate:"required"`
	Explorer *ExplorerConfig    `mapstructure:"explorer" validate:"required"`
	RPC      *RPCConfig         `mapstructure:"rpc" validate:"required"`
	Cache    *CacheConfig       `mapstructure:"cache" validate:"required"`
	Output   *OutputConfig      `mapstructure:"output" validate:"required"`
	API      *APIConfig         `mapstructure:"api" validate:"required"`
	Analysis *AnalysisConfig    `mapstructure:"analysis" validate:"required"`
	Logging  *logging.LogConfig `mapstructure:"logging" validate:"required"`
}

// ChainConfig 链配置
type ChainConfig struct {
	ID   int64  `mapstructure:"id" validate:"gt=0"`
	Name string `mapstructure:"name"`
}

// ExplorerConfig 区块浏览器 (Etherscan v2 兼容) 配置
type ExplorerConfig struct {
	BaseURL    string        `mapstructure:"base_url" validate:"required,url"`
	APIKey     string        `mapstructure:"api_key"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	MaxPages   int           `mapstructure:"max_pages" validate:"gte=1,lte=1000"`
	MaxOffset  int           `mapstructure:"max_offset" validate:"gte=1,lte=10000"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Enabled 是否配置了 API Key
func (e *ExplorerConfig) Enabled() bool {
	return e != nil && e.APIKey != ""
}

// RPCConfig 节点 RPC 配置
type RPCConfig struct {
	Nodes                 []*NodeConfig `mapstructure:"nodes" validate:"dive"`
	ScanBlocks            int           `mapstructure:"scan_blocks" validate:"gte=1"`
	Workers               int           `mapstructure:"workers" validate:"gte=0,lte=50"`
	MinTransactionsToStop int           `mapstructure:"min_transactions_to_stop" validate:"gte=1"`
	Timeout               time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// NodeConfig 节点配置
type NodeConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	URL       string `mapstructure:"url" validate:"required"`
	Type      string `mapstructure:"type"`
	RateLimit int    `mapstructure:"rate_limit" validate:"gte=0"`
	Priority  int    `mapstructure:"priority"`
}

// CacheConfig 数据源响应缓存配置
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path" validate:"required_if=Enabled true"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format    string       `mapstructure:"format" validate:"oneof=json kafka kafka_async none"`
	Directory string       `mapstructure:"directory"`
	Kafka     *KafkaConfig `mapstructure:"kafka"`
}

// APIConfig HTTP 服务配置
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	LogBuffer    int           `mapstructure:"log_buffer" validate:"gte=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

// AnalysisConfig 分析流程配置
type AnalysisConfig struct {
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	StrictValidation bool          `mapstructure:"strict_validation"`
}

// LoadConfig 加载配置（自动检测配置源）。
// 顺序：默认值 → YAML 文件 → 环境变量 → 数据库覆盖（设置了 ADDRSTATS_DB_DSN 时）。
func LoadConfig(configPath string) (*Config, error) {
	config, err := LoadConfigFromFile(configPath)
	if err != nil {
		return nil, err
	}

	if dbDSN := os.Getenv(EnvPrefix + "_DB_DSN"); dbDSN != "" {
		logger := logrus.New()
		dbConfig, err := NewDatabaseConfig(dbDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		defer dbConfig.Close()

		if err := dbConfig.Apply(config); err != nil {
			return nil, fmt.Errorf("从数据库加载配置失败: %w", err)
		}
		logger.Info("已从数据库加载配置")
	}

	applyExplorerKeyEnv(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFromFile 从文件和环境变量加载配置，文件路径为空时只使用默认值
func LoadConfigFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, GetDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}

// setDefaults 注册默认值，使 AutomaticEnv 能覆盖所有标量键
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("chain.id", d.Chain.ID)
	v.SetDefault("chain.name", d.Chain.Name)

	v.SetDefault("explorer.base_url", d.Explorer.BaseURL)
	v.SetDefault("explorer.api_key", d.Explorer.APIKey)
	v.SetDefault("explorer.max_retries", d.Explorer.MaxRetries)
	v.SetDefault("explorer.retry_delay", d.Explorer.RetryDelay)
	v.SetDefault("explorer.max_pages", d.Explorer.MaxPages)
	v.SetDefault("explorer.max_offset", d.Explorer.MaxOffset)
	v.SetDefault("explorer.timeout", d.Explorer.Timeout)

	v.SetDefault("rpc.scan_blocks", d.RPC.ScanBlocks)
	v.SetDefault("rpc.workers", d.RPC.Workers)
	v.SetDefault("rpc.min_transactions_to_stop", d.RPC.MinTransactionsToStop)
	v.SetDefault("rpc.timeout", d.RPC.Timeout)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("output.kafka.brokers", d.Output.Kafka.Brokers)
	v.SetDefault("output.kafka.topic", d.Output.Kafka.Topic)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.mode", d.API.Mode)
	v.SetDefault("api.log_buffer", d.API.LogBuffer)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)

	v.SetDefault("analysis.fetch_timeout", d.Analysis.FetchTimeout)
	v.SetDefault("analysis.strict_validation", d.Analysis.StrictValidation)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
}

// applyExplorerKeyEnv 兼容 BASESCAN_API_KEY / ETHERSCAN_API_KEY
func applyExplorerKeyEnv(config *Config) {
	if config.Explorer == nil || config.Explorer.APIKey != "" {
		return
	}
	for _, env := range explorerKeyEnvs {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			config.Explorer.APIKey = key
			return
		}
	}
}

var validate = validator.New()

// Validate 校验配置
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置为空")
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if strings.HasPrefix(config.Output.Format, "kafka") && (config.Output.Kafka == nil || len(config.Output.Kafka.Brokers) == 0) {
		return fmt.Errorf("配置校验失败: kafka 输出需要至少一个 broker")
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Chain: &ChainConfig{
			ID:   8453,
			Name: "base",
		},
		Explorer: &ExplorerConfig{
			BaseURL:    "https://api.etherscan.io/v2/api",
			MaxRetries: 3,
			RetryDelay: time.Second,
			MaxPages:   50,
			MaxOffset:  10000,
			Timeout:    30 * time.Second,
		},
		RPC: &RPCConfig{
			Nodes: []*NodeConfig{
				{
					Name:      "base_public",
					URL:       "https://mainnet.base.org",
					Type:      "public",
					RateLimit: 10,
					Priority:  1,
				},
			},
			ScanBlocks:            500,
			Workers:               4,
			MinTransactionsToStop: 20,
			Timeout:               30 * time.Second,
		},
		Cache: &CacheConfig{
			Enabled: false,
			Path:    "./data/cache.db",
			TTL:     5 * time.Minute,
		},
		Output: &OutputConfig{
			Format:    "json",
			Directory: "./outputs",
			Kafka: &KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Topic:   "address_analytics",
			},
		},
		API: &APIConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			LogBuffer:    1000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Analysis: &AnalysisConfig{
			FetchTimeout:     2 * time.Minute,
			StrictValidation: false,
		},
		Logging: &logging.LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
