package api

import (
	"database/sql"
	stderrors "errors"
	"net/http"

	"addrstats/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ConfigStore 配置存储，由 config.DatabaseConfig 实现
type ConfigStore interface {
	ListConfigs(configType string) (map[string]string, error)
	GetConfig(configType, key string) (string, error)
	UpdateConfig(configType, key, value string) error
	LoadNodes() ([]*config.NodeConfig, error)
}

// ConfigManager 配置管理器
type ConfigManager struct {
	store  ConfigStore
	logger *logrus.Logger
}

// NewConfigManager 创建配置管理器
func NewConfigManager(store ConfigStore, logger *logrus.Logger) *ConfigManager {
	return &ConfigManager{
		store:  store,
		logger: logger,
	}
}

// GetConfig 获取配置，未指定 key 时返回该类型全部配置
func (cm *ConfigManager) GetConfig(c *gin.Context) {
	configType := c.Param("type")
	if !config.IsConfigType(configType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "不支持的配置类型",
			"config_type": configType,
		})
		return
	}

	key := c.Param("key")
	if key == "" {
		// 获取所有配置
		configs, err := cm.store.ListConfigs(configType)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "获取配置失败",
				"message": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"config_type": configType,
			"configs":     configs,
		})
		return
	}

	// 获取单个配置
	value, err := cm.store.GetConfig(configType, key)
	if stderrors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "配置不存在",
			"message": err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "获取配置失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config_type": configType,
		"key":         key,
		"value":       value,
	})
}

// UpdateConfig 更新配置，写入前先校验取值
func (cm *ConfigManager) UpdateConfig(c *gin.Context) {
	configType := c.Param("type")
	key := c.Param("key")

	var req struct {
		Value string `json:"value" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "请求参数错误",
			"message": err.Error(),
		})
		return
	}

	if err := config.ValidateSetting(configType, key, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "配置值无效",
			"message": err.Error(),
		})
		return
	}

	if err := cm.store.UpdateConfig(configType, key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "更新配置失败",
			"message": err.Error(),
		})
		return
	}

	cm.logger.WithFields(logrus.Fields{
		"config_type": configType,
		"key":         key,
	}).Info("配置已更新，重启后生效")

	c.JSON(http.StatusOK, gin.H{
		"message": "配置更新成功",
		"config": gin.H{
			"type":  configType,
			"key":   key,
			"value": req.Value,
		},
	})
}

// GetNodes 获取启用的 RPC 节点配置
func (cm *ConfigManager) GetNodes(c *gin.Context) {
	nodes, err := cm.store.LoadNodes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "获取节点配置失败",
			"message": err.Error(),
		})
		return
	}

	result := make([]gin.H, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, gin.H{
			"name":       node.Name,
			"url":        node.URL,
			"node_type":  node.Type,
			"rate_limit": node.RateLimit,
			"priority":   node.Priority,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"nodes": result,
	})
}
