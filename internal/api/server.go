package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/errors"
	"addrstats/internal/format"
	"addrstats/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AnalyticsService 分析服务
type AnalyticsService interface {
	Analyze(ctx context.Context, address string) (*models.AddressAnalytics, error)
	Stats() map[string]interface{}
}

// Server API服务器
type Server struct {
	service       AnalyticsService
	config        *config.APIConfig
	logger        *logrus.Logger
	logManager    *LogManager
	configManager *ConfigManager
	server        *http.Server
	startedAt     time.Time
	mu            sync.Mutex
}

// ServerOption 服务器选项
type ServerOption func(*Server)

// WithConfigManager 启用数据库配置管理接口
func WithConfigManager(cm *ConfigManager) ServerOption {
	return func(s *Server) {
		s.configManager = cm
	}
}

// NewServer 创建新的API服务器
func NewServer(service AnalyticsService, cfg *config.APIConfig, logger *logrus.Logger, opts ...ServerOption) *Server {
	bufferSize := cfg.LogBuffer
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	// 创建日志管理器并挂到 logger 上
	logManager := NewLogManager(bufferSize)
	logger.AddHook(NewLogHook(logManager))

	s := &Server{
		service:    service,
		config:     cfg,
		logger:     logger,
		logManager: logManager,
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router 构建路由
func (s *Server) Router() *gin.Engine {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	router := gin.New()

	// 添加CORS中间件
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.Use(s.requestLogger())
	router.Use(gin.Recovery())

	s.setupRoutes(router)
	return router
}

// Start 启动API服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Infof("API服务器启动在 %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 停止API服务器
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("正在关闭API服务器...")
	return srv.Shutdown(ctx)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	// 健康检查
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		// 地址分析
		api.GET("/analytics/:address", s.getAnalytics)
		api.GET("/analytics/:address/streak", s.getStreak)
		api.GET("/analytics/:address/daily", s.getDaily)
		api.GET("/analytics/:address/monthly", s.getMonthly)

		// 统计信息
		api.GET("/stats", s.getStats)

		// 日志管理
		api.GET("/logs", s.getLogs)
		api.DELETE("/logs", s.clearLogs)

		// 配置管理
		if s.configManager != nil {
			api.GET("/config/nodes", s.configManager.GetNodes)
			api.GET("/config/:type", s.configManager.GetConfig)
			api.GET("/config/:type/:key", s.configManager.GetConfig)
			api.PUT("/config/:type/:key", s.configManager.UpdateConfig)
		}
	}
}

// requestLogger 使用 logrus 记录请求
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP请求")
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "addrstats-api",
	})
}

// analyticsResponse 完整分析结果加展示文本
type analyticsResponse struct {
	*models.AddressAnalytics
	Display format.Display `json:"display"`
}

// analyze 执行分析，失败时写入错误响应并返回 false
func (s *Server) analyze(c *gin.Context) (*models.AddressAnalytics, bool) {
	result, err := s.service.Analyze(c.Request.Context(), c.Param("address"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return result, true
}

// getAnalytics 获取地址完整分析
func (s *Server) getAnalytics(c *gin.Context) {
	result, ok := s.analyze(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, analyticsResponse{
		AddressAnalytics: result,
		Display:          format.Summarize(result),
	})
}

// getStreak 获取连续活跃信息
func (s *Server) getStreak(c *gin.Context) {
	result, ok := s.analyze(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":         result.Address.Hex(),
		"active_days":     result.ActiveDays,
		"activity_streak": result.ActivityStreak,
	})
}

// getDaily 获取日度活跃，order=asc|desc，默认倒序
func (s *Server) getDaily(c *gin.Context) {
	order := c.DefaultQuery("order", "desc")
	if order != "asc" && order != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order 只能是 asc 或 desc", "code": errors.CodeUnknown})
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	result, ok := s.analyze(c)
	if !ok {
		return
	}

	days := result.DailyActivity
	if order == "asc" {
		days = make([]models.DailyActivity, len(result.DailyActivity))
		for i, d := range result.DailyActivity {
			days[len(days)-1-i] = d
		}
	}
	if limit > 0 && limit < len(days) {
		days = days[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        result.Address.Hex(),
		"order":          order,
		"total":          len(result.DailyActivity),
		"daily_activity": days,
	})
}

// getMonthly 获取月度活跃
func (s *Server) getMonthly(c *gin.Context) {
	result, ok := s.analyze(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":          result.Address.Hex(),
		"active_months":    result.ActiveMonths,
		"monthly_activity": result.MonthlyActivity,
	})
}

// parseLimit 解析可选的 limit 参数
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须是非负整数", "code": errors.CodeUnknown})
		return 0, false
	}
	return limit, true
}

// getStats 获取统计信息
func (s *Server) getStats(c *gin.Context) {
	stats := s.service.Stats()
	stats["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
	stats["buffered_logs"] = s.logManager.Len()

	c.JSON(http.StatusOK, stats)
}

// getLogs 获取日志
func (s *Server) getLogs(c *gin.Context) {
	level := c.Query("level")

	page := 1 // 默认第1页
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	pageSize := 20 // 默认每页20条
	if ps, err := strconv.Atoi(c.Query("pageSize")); err == nil && ps > 0 {
		pageSize = ps
	}

	logs, total := s.logManager.GetLogsWithPagination(level, page, pageSize)

	c.JSON(http.StatusOK, gin.H{
		"logs":     logs,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
		"level":    level,
	})
}

// clearLogs 清空日志
func (s *Server) clearLogs(c *gin.Context) {
	s.logManager.ClearLogs()

	c.JSON(http.StatusOK, gin.H{
		"message": "日志已清空",
	})
}

// statusClientClosedRequest 客户端已断开，沿用 nginx 的 499
const statusClientClosedRequest = 499

// writeError 按错误类型映射 HTTP 状态码和对外错误码
func (s *Server) writeError(c *gin.Context, err error) {
	if stderrors.Is(err, context.Canceled) {
		s.logger.Debugf("客户端已断开，放弃响应: %s", c.Request.URL.Path)
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": errors.CodeUnknown})
		return
	}

	c.JSON(statusFor(appErr), gin.H{
		"error": appErr.Message,
		"code":  appErr.PublicCode(),
	})
}

func statusFor(err *errors.AppError) int {
	switch err.Type {
	case errors.ErrorTypeInvalidAddress:
		return http.StatusBadRequest
	case errors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrorTypeNetwork, errors.ErrorTypeTimeout, errors.ErrorTypeExternalAPI, errors.ErrorTypeRPC:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
