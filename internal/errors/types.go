package errors

import (
	"fmt"
	"time"
)

// ErrorType 错误类型
type ErrorType int

const (
	// 网络相关错误
	ErrorTypeNetwork ErrorType = iota
	ErrorTypeTimeout
	ErrorTypeRateLimit

	// 输入数据错误
	ErrorTypeInvalidAddress
	ErrorTypeInvalidTransaction
	ErrorTypeValidation
	ErrorTypeSerialization

	// 系统相关错误
	ErrorTypeConfig
	ErrorTypeCache

	// 外部服务错误
	ErrorTypeExternalAPI
	ErrorTypeRPC
	ErrorTypeKafka
)

// ErrorSeverity 错误严重级别
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// 对外暴露的错误码，与前端约定保持一致
const (
	CodeInvalidAddress = "INVALID_ADDRESS"
	CodeNetworkError   = "NETWORK_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeNoData         = "NO_DATA"
	CodeUnknown        = "UNKNOWN"
)

// AppError 自定义错误类型
type AppError struct {
	Type      ErrorType              `json:"type"`
	Severity  ErrorSeverity          `json:"severity"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
	Component string                 `json:"component,omitempty"`
	Address   *string                `json:"address,omitempty"`
	TxHash    *string                `json:"tx_hash,omitempty"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较，使预定义错误可以配合 errors.Is 使用
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsRetryable 判断是否可重试
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// WithContext 添加上下文信息
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithComponent 设置出错组件
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithAddress 添加分析地址
func (e *AppError) WithAddress(address string) *AppError {
	e.Address = &address
	return e
}

// WithTxHash 添加交易哈希
func (e *AppError) WithTxHash(txHash string) *AppError {
	if txHash == "" {
		return e
	}
	e.TxHash = &txHash
	return e
}

// Clone 返回副本，Context 单独复制；errors.Is 仍按错误码匹配
func (e *AppError) Clone() *AppError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// PublicCode 返回对外错误码
func (e *AppError) PublicCode() string {
	switch e.Type {
	case ErrorTypeInvalidAddress:
		return CodeInvalidAddress
	case ErrorTypeRateLimit:
		return CodeRateLimited
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeExternalAPI, ErrorTypeRPC:
		return CodeNetworkError
	default:
		return CodeUnknown
	}
}

// NewAppError 创建新的错误
func NewAppError(errorType ErrorType, severity ErrorSeverity, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Severity:  severity,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: determineRetryable(errorType),
	}
}

// WrapError 包装现有错误
func WrapError(err error, errorType ErrorType, severity ErrorSeverity, code, message string) *AppError {
	e := NewAppError(errorType, severity, code, message)
	e.Cause = err
	return e
}

// NewInvalidAddress 地址格式校验失败
func NewInvalidAddress(reason string) *AppError {
	return NewAppError(ErrorTypeInvalidAddress, SeverityLow, CodeInvalidAddress, reason)
}

// NewInvalidTransaction 单条交易记录无效
func NewInvalidTransaction(txHash, reason string) *AppError {
	return NewAppError(ErrorTypeInvalidTransaction, SeverityLow, "INVALID_TRANSACTION", reason).
		WithTxHash(txHash)
}

// determineRetryable 根据错误类型判断是否可重试
func determineRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit:
		return true
	case ErrorTypeExternalAPI, ErrorTypeRPC, ErrorTypeKafka:
		return true
	default:
		return false
	}
}

// AsAppError 将任意错误转换为 AppError
func AsAppError(err error) (*AppError, bool) {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// 预定义错误，仅用于 errors.Is 比较；需要返回或附加信息时先 Clone
var (
	ErrInvalidAddress     = NewInvalidAddress("无效的以太坊地址")
	ErrInvalidTransaction = NewInvalidTransaction("", "无效的交易记录")

	ErrNetworkTimeout = NewAppError(
		ErrorTypeTimeout,
		SeverityMedium,
		"NETWORK_TIMEOUT",
		"网络请求超时",
	)

	ErrRateLimitExceeded = NewAppError(
		ErrorTypeRateLimit,
		SeverityMedium,
		"RATE_LIMIT_EXCEEDED",
		"请求频率超限",
	)

	ErrExplorerAPIFailed = NewAppError(
		ErrorTypeExternalAPI,
		SeverityMedium,
		"EXPLORER_API_FAILED",
		"区块浏览器API调用失败",
	)

	ErrExplorerAPIKey = NewAppError(
		ErrorTypeConfig,
		SeverityHigh,
		"EXPLORER_API_KEY",
		"区块浏览器API Key无效或缺失",
	)

	ErrRPCFailed = NewAppError(
		ErrorTypeRPC,
		SeverityMedium,
		"RPC_FAILED",
		"节点RPC调用失败",
	)

	ErrNoProvider = NewAppError(
		ErrorTypeConfig,
		SeverityCritical,
		"NO_PROVIDER",
		"没有可用的交易数据源",
	)

	ErrSerializationFailed = NewAppError(
		ErrorTypeSerialization,
		SeverityMedium,
		"SERIALIZATION_FAILED",
		"数据序列化失败",
	)

	ErrConfigInvalid = NewAppError(
		ErrorTypeConfig,
		SeverityCritical,
		"CONFIG_INVALID",
		"配置无效",
	)

	ErrKafkaProduceFailed = NewAppError(
		ErrorTypeKafka,
		SeverityHigh,
		"KAFKA_PRODUCE_FAILED",
		"Kafka消息发送失败",
	)
)

// 错误类型字符串映射
var errorTypeNames = map[ErrorType]string{
	ErrorTypeNetwork:            "Network",
	ErrorTypeTimeout:            "Timeout",
	ErrorTypeRateLimit:          "RateLimit",
	ErrorTypeInvalidAddress:     "InvalidAddress",
	ErrorTypeInvalidTransaction: "InvalidTransaction",
	ErrorTypeValidation:         "Validation",
	ErrorTypeSerialization:      "Serialization",
	ErrorTypeConfig:             "Config",
	ErrorTypeCache:              "Cache",
	ErrorTypeExternalAPI:        "ExternalAPI",
	ErrorTypeRPC:                "RPC",
	ErrorTypeKafka:              "Kafka",
}

// String 返回错误类型的字符串表示
func (et ErrorType) String() string {
	if name, exists := errorTypeNames[et]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", et)
}

// 严重级别字符串映射
var severityNames = map[ErrorSeverity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

// String 返回严重级别的字符串表示
func (es ErrorSeverity) String() string {
	if name, exists := severityNames[es]; exists {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", es)
}

// ErrorStats 错误统计
type ErrorStats struct {
	TotalErrors       int            `json:"total_errors"`
	ErrorsByType      map[string]int `json:"errors_by_type"`
	ErrorsBySeverity  map[string]int `json:"errors_by_severity"`
	ErrorsByComponent map[string]int `json:"errors_by_component"`
	RecentErrors      []*AppError    `json:"recent_errors"`
	LastErrorTime     time.Time      `json:"last_error_time"`
}

// NewErrorStats 创建错误统计
func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ErrorsByType:      make(map[string]int),
		ErrorsBySeverity:  make(map[string]int),
		ErrorsByComponent: make(map[string]int),
		RecentErrors:      make([]*AppError, 0),
	}
}

// maxRecentErrors 保留的最近错误条数
const maxRecentErrors = 100

// RecordError 记录错误
func (es *ErrorStats) RecordError(err *AppError) {
	es.TotalErrors++
	es.ErrorsByType[err.Type.String()]++
	es.ErrorsBySeverity[err.Severity.String()]++
	if err.Component != "" {
		es.ErrorsByComponent[err.Component]++
	}

	es.LastErrorTime = err.Timestamp

	es.RecentErrors = append(es.RecentErrors, err)
	if len(es.RecentErrors) > maxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// Count 返回某类错误的数量
func (es *ErrorStats) Count(errorType ErrorType) int {
	return es.ErrorsByType[errorType.String()]
}

// Clone 返回统计副本
func (es *ErrorStats) Clone() *ErrorStats {
	c := NewErrorStats()
	c.TotalErrors = es.TotalErrors
	c.LastErrorTime = es.LastErrorTime
	for k, v := range es.ErrorsByType {
		c.ErrorsByType[k] = v
	}
	for k, v := range es.ErrorsBySeverity {
		c.ErrorsBySeverity[k] = v
	}
	for k, v := range es.ErrorsByComponent {
		c.ErrorsByComponent[k] = v
	}
	c.RecentErrors = append(c.RecentErrors, es.RecentErrors...)
	return c
}

// GetErrorRate 获取错误率（错误/小时）
func (es *ErrorStats) GetErrorRate(duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-duration)
	recentCount := 0

	for _, err := range es.RecentErrors {
		if err.Timestamp.After(cutoff) {
			recentCount++
		}
	}

	return float64(recentCount) / duration.Hours()
}
