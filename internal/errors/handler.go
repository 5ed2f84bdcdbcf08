package errors

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrorHandler 错误处理器：记录统计并按严重级别写日志
type ErrorHandler struct {
	logger    *logrus.Logger
	stats     *ErrorStats
	mu        sync.RWMutex
	callbacks []ErrorCallback
}

// ErrorCallback 错误回调函数
type ErrorCallback func(err *AppError)

// NewErrorHandler 创建错误处理器
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:    logger,
		stats:     NewErrorStats(),
		callbacks: make([]ErrorCallback, 0),
	}
}

// HandleError 处理错误，返回转换后的 AppError
func (eh *ErrorHandler) HandleError(err error) *AppError {
	if err == nil {
		return nil
	}

	appErr, ok := AsAppError(err)
	if !ok {
		appErr = WrapError(err, ErrorTypeNetwork, SeverityMedium, CodeUnknown, "未知错误")
	}

	eh.mu.Lock()
	eh.stats.RecordError(appErr)
	callbacks := make([]ErrorCallback, len(eh.callbacks))
	copy(callbacks, eh.callbacks)
	eh.mu.Unlock()

	eh.log(appErr)

	for _, cb := range callbacks {
		eh.runCallback(cb, appErr)
	}

	return appErr
}

// runCallback 执行回调，回调 panic 不影响主流程
func (eh *ErrorHandler) runCallback(cb ErrorCallback, err *AppError) {
	defer func() {
		if r := recover(); r != nil {
			eh.logger.Errorf("错误回调执行时发生panic: %v", r)
		}
	}()
	cb(err)
}

// log 根据严重级别选择日志级别
func (eh *ErrorHandler) log(err *AppError) {
	fields := logrus.Fields{
		"error_type": err.Type.String(),
		"error_code": err.Code,
		"retryable":  err.Retryable,
	}
	if err.Component != "" {
		fields["component"] = err.Component
	}
	if err.Address != nil {
		fields["address"] = *err.Address
	}
	if err.TxHash != nil {
		fields["tx_hash"] = *err.TxHash
	}
	for k, v := range err.Context {
		fields[k] = v
	}

	entry := eh.logger.WithFields(fields)
	switch err.Severity {
	case SeverityLow:
		entry.Debug(err.Error())
	case SeverityMedium:
		entry.Warn(err.Error())
	default:
		entry.Error(err.Error())
	}
}

// AddCallback 添加错误回调
func (eh *ErrorHandler) AddCallback(callback ErrorCallback) {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.callbacks = append(eh.callbacks, callback)
}

// GetStats 获取错误统计信息副本
func (eh *ErrorHandler) GetStats() *ErrorStats {
	eh.mu.RLock()
	defer eh.mu.RUnlock()
	return eh.stats.Clone()
}

// ClearStats 清除统计信息
func (eh *ErrorHandler) ClearStats() {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.stats = NewErrorStats()
}
