package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// 支持的配置表
var configTables = map[string]string{
	"explorer": "explorer_config",
	"analysis": "analysis_config",
}

// DatabaseConfig 数据库配置管理器
type DatabaseConfig struct {
	DB     *sql.DB
	logger *logrus.Logger
}

// NewDatabaseConfig 创建数据库配置管理器
func NewDatabaseConfig(dsn string, logger *logrus.Logger) (*DatabaseConfig, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	return NewDatabaseConfigFromDB(db, logger), nil
}

// NewDatabaseConfigFromDB 使用已有连接创建配置管理器
func NewDatabaseConfigFromDB(db *sql.DB, logger *logrus.Logger) *DatabaseConfig {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DatabaseConfig{
		DB:     db,
		logger: logger,
	}
}

// Apply 用数据库中的配置覆盖 config：浏览器参数、分析参数和 RPC 节点列表
func (dc *DatabaseConfig) Apply(config *Config) error {
	explorer, err := dc.ListConfigs("explorer")
	if err != nil {
		return fmt.Errorf("加载浏览器配置失败: %w", err)
	}
	for key, value := range explorer {
		if err := applyExplorerSetting(config.Explorer, key, value); err != nil {
			dc.logger.Warnf("忽略无效的浏览器配置 %s=%s: %v", key, value, err)
		}
	}

	analysis, err := dc.ListConfigs("analysis")
	if err != nil {
		return fmt.Errorf("加载分析配置失败: %w", err)
	}
	for key, value := range analysis {
		if err := applyAnalysisSetting(config.Analysis, key, value); err != nil {
			dc.logger.Warnf("忽略无效的分析配置 %s=%s: %v", key, value, err)
		}
	}

	nodes, err := dc.LoadNodes()
	if err != nil {
		return fmt.Errorf("加载RPC节点失败: %w", err)
	}
	if len(nodes) > 0 {
		config.RPC.Nodes = nodes
	}

	return nil
}

// LoadNodes 加载启用的 RPC 节点，按优先级排序
func (dc *DatabaseConfig) LoadNodes() ([]*NodeConfig, error) {
	query := `SELECT name, url, node_type, rate_limit, priority FROM rpc_nodes WHERE is_active = true ORDER BY priority`
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*NodeConfig
	for rows.Next() {
		var node NodeConfig
		if err := rows.Scan(&node.Name, &node.URL, &node.Type, &node.RateLimit, &node.Priority); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node)
	}

	return nodes, rows.Err()
}

// applyExplorerSetting 应用单条浏览器配置
func applyExplorerSetting(e *ExplorerConfig, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "base_url":
		e.BaseURL = value
	case "api_key":
		e.APIKey = value
	case "max_retries":
		return setInt(&e.MaxRetries, value)
	case "max_pages":
		return setInt(&e.MaxPages, value)
	case "max_offset":
		return setInt(&e.MaxOffset, value)
	case "retry_delay":
		return setDuration(&e.RetryDelay, value)
	case "timeout":
		return setDuration(&e.Timeout, value)
	default:
		return fmt.Errorf("未知的配置项: %s", key)
	}
	return nil
}

// applyAnalysisSetting 应用单条分析配置
func applyAnalysisSetting(a *AnalysisConfig, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "fetch_timeout":
		return setDuration(&a.FetchTimeout, value)
	case "strict_validation":
		a.StrictValidation = strings.ToLower(value) == "true"
	default:
		return fmt.Errorf("未知的配置项: %s", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// setDuration 支持 "1s" 形式或毫秒整数
func setDuration(dst *time.Duration, value string) error {
	if ms, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// ValidateSetting 检查单条配置能否被应用
func ValidateSetting(configType, key, value string) error {
	scratch := GetDefaultConfig()
	switch configType {
	case "explorer":
		return applyExplorerSetting(scratch.Explorer, key, value)
	case "analysis":
		return applyAnalysisSetting(scratch.Analysis, key, value)
	default:
		_, err := tableFor(configType)
		return err
	}
}

// IsConfigType 是否为支持的配置类型
func IsConfigType(configType string) bool {
	_, ok := configTables[configType]
	return ok
}

func tableFor(configType string) (string, error) {
	tableName, ok := configTables[configType]
	if !ok {
		return "", fmt.Errorf("不支持的配置类型: %s", configType)
	}
	return tableName, nil
}

// UpdateConfig 更新配置
func (dc *DatabaseConfig) UpdateConfig(configType, key, value string) error {
	tableName, err := tableFor(configType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (config_key, config_value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (config_key)
		DO UPDATE SET config_value = $2, updated_at = CURRENT_TIMESTAMP
	`, tableName)

	_, err = dc.DB.Exec(query, key, value)
	return err
}

// GetConfig 获取配置值
func (dc *DatabaseConfig) GetConfig(configType, key string) (string, error) {
	tableName, err := tableFor(configType)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`SELECT config_value FROM %s WHERE config_key = $1 AND is_active = true`, tableName)
	var value string
	err = dc.DB.QueryRow(query, key).Scan(&value)
	return value, err
}

// ListConfigs 列出所有配置
func (dc *DatabaseConfig) ListConfigs(configType string) (map[string]string, error) {
	tableName, err := tableFor(configType)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT config_key, config_value FROM %s WHERE is_active = true`, tableName)
	rows, err := dc.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		configs[key] = value
	}

	return configs, rows.Err()
}

// Close 关闭数据库连接
func (dc *DatabaseConfig) Close() error {
	if dc.DB != nil {
		return dc.DB.Close()
	}
	return nil
}
