package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppError(t *testing.T) {
	err := NewAppError(ErrorTypeNetwork, SeverityHigh, "TEST_ERROR", "测试错误")

	assert.NotNil(t, err)
	assert.Equal(t, ErrorTypeNetwork, err.Type)
	assert.Equal(t, SeverityHigh, err.Severity)
	assert.Equal(t, "TEST_ERROR", err.Code)
	assert.Equal(t, "测试错误", err.Message)
	assert.True(t, err.Retryable) // 网络错误默认可重试
	assert.False(t, err.Timestamp.IsZero())
}

func TestWrapError(t *testing.T) {
	originalErr := errors.New("原始错误")
	wrappedErr := WrapError(originalErr, ErrorTypeExternalAPI, SeverityMedium, "WRAPPED_ERROR", "包装错误")

	assert.Equal(t, ErrorTypeExternalAPI, wrappedErr.Type)
	assert.Equal(t, originalErr, wrappedErr.Cause)
	assert.Equal(t, "[WRAPPED_ERROR] 包装错误: 原始错误", wrappedErr.Error())
	assert.Equal(t, originalErr, errors.Unwrap(wrappedErr))
}

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrorTypeValidation, SeverityLow, "TEST_CODE", "测试消息")
	assert.Equal(t, "[TEST_CODE] 测试消息", err.Error())
}

func TestAppError_Is(t *testing.T) {
	err := NewInvalidAddress("地址长度必须为42个字符")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	assert.False(t, errors.Is(err, ErrInvalidTransaction))

	wrapped := fmt.Errorf("分析失败: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInvalidAddress))

	txErr := NewInvalidTransaction("0xabc", "缺少必填字段: from")
	assert.True(t, errors.Is(txErr, ErrInvalidTransaction))
	require.NotNil(t, txErr.TxHash)
	assert.Equal(t, "0xabc", *txErr.TxHash)
}

func TestAsAppError(t *testing.T) {
	inner := NewAppError(ErrorTypeRateLimit, SeverityMedium, "RATE_LIMIT_EXCEEDED", "请求频率超限")
	wrapped := fmt.Errorf("第一层: %w", fmt.Errorf("第二层: %w", inner))

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, got)

	_, ok = AsAppError(errors.New("普通错误"))
	assert.False(t, ok)

	_, ok = AsAppError(nil)
	assert.False(t, ok)
}

func TestAppError_PublicCode(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrorTypeInvalidAddress, CodeInvalidAddress},
		{ErrorTypeRateLimit, CodeRateLimited},
		{ErrorTypeNetwork, CodeNetworkError},
		{ErrorTypeTimeout, CodeNetworkError},
		{ErrorTypeExternalAPI, CodeNetworkError},
		{ErrorTypeRPC, CodeNetworkError},
		{ErrorTypeConfig, CodeUnknown},
		{ErrorTypeKafka, CodeUnknown},
	}

	for _, tt := range tests {
		err := NewAppError(tt.errorType, SeverityLow, "X", "x")
		assert.Equal(t, tt.expected, err.PublicCode(), "errorType=%v", tt.errorType)
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrorTypeExternalAPI, SeverityMedium, "API_ERROR", "接口错误")

	err.WithContext("page", 3).WithComponent("explorer").WithAddress("0x4200000000000000000000000000000000000006")

	assert.Equal(t, 3, err.Context["page"])
	assert.Equal(t, "explorer", err.Component)
	require.NotNil(t, err.Address)
	assert.Equal(t, "0x4200000000000000000000000000000000000006", *err.Address)
}

func TestAppError_Clone(t *testing.T) {
	c := ErrNoProvider.Clone().WithComponent("analyzer").WithContext("chain", 8453)

	assert.True(t, errors.Is(c, ErrNoProvider))
	assert.Equal(t, "analyzer", c.Component)
	assert.Empty(t, ErrNoProvider.Component)
	assert.Nil(t, ErrNoProvider.Context)

	orig := NewAppError(ErrorTypeRPC, SeverityLow, "X", "x").WithContext("node", "a")
	cp := orig.Clone().WithContext("node", "b")
	assert.Equal(t, "a", orig.Context["node"])
	assert.Equal(t, "b", cp.Context["node"])
}

func TestDetermineRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeExternalAPI, true},
		{ErrorTypeRPC, true},
		{ErrorTypeKafka, true},
		{ErrorTypeInvalidAddress, false},
		{ErrorTypeInvalidTransaction, false},
		{ErrorTypeConfig, false},
		{ErrorTypeCache, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, determineRetryable(tt.errorType), "errorType=%v", tt.errorType)
	}
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "InvalidAddress", ErrorTypeInvalidAddress.String())
	assert.Equal(t, "InvalidTransaction", ErrorTypeInvalidTransaction.String())
	assert.Equal(t, "Unknown(999)", ErrorType(999).String())
	assert.Equal(t, "Critical", SeverityCritical.String())
	assert.Equal(t, "Unknown(999)", ErrorSeverity(999).String())
}

func TestErrorStats_RecordError(t *testing.T) {
	stats := NewErrorStats()

	err1 := NewInvalidTransaction("0x01", "缺少时间戳").WithComponent("normalizer")
	err2 := NewInvalidTransaction("0x02", "金额格式无效").WithComponent("normalizer")
	err3 := NewAppError(ErrorTypeRateLimit, SeverityMedium, "RATE_LIMIT_EXCEEDED", "限流").WithComponent("explorer")

	stats.RecordError(err1)
	stats.RecordError(err2)
	stats.RecordError(err3)

	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 2, stats.Count(ErrorTypeInvalidTransaction))
	assert.Equal(t, 1, stats.Count(ErrorTypeRateLimit))
	assert.Equal(t, 2, stats.ErrorsBySeverity["Low"])
	assert.Equal(t, 2, stats.ErrorsByComponent["normalizer"])
	assert.Len(t, stats.RecentErrors, 3)
}

func TestErrorStats_RecentErrorsLimit(t *testing.T) {
	stats := NewErrorStats()

	for i := 0; i < 150; i++ {
		stats.RecordError(NewAppError(ErrorTypeNetwork, SeverityLow, "TEST_ERROR", "测试错误"))
	}

	assert.Equal(t, 150, stats.TotalErrors)
	assert.Len(t, stats.RecentErrors, 100) // 应该限制在100个
}

func TestErrorStats_GetErrorRate(t *testing.T) {
	stats := NewErrorStats()
	now := time.Now()

	for i := 0; i < 10; i++ {
		err := NewAppError(ErrorTypeNetwork, SeverityLow, "TEST_ERROR", "测试错误")
		err.Timestamp = now.Add(-time.Duration(i*5) * time.Minute)
		stats.RecentErrors = append(stats.RecentErrors, err)
	}
	for i := 0; i < 5; i++ {
		err := NewAppError(ErrorTypeNetwork, SeverityLow, "OLD_ERROR", "旧错误")
		err.Timestamp = now.Add(-time.Duration(70+i*10) * time.Minute)
		stats.RecentErrors = append(stats.RecentErrors, err)
	}

	assert.Equal(t, 10.0, stats.GetErrorRate(time.Hour))
	assert.Equal(t, 0.0, stats.GetErrorRate(0))
	assert.Equal(t, 12.0, stats.GetErrorRate(30*time.Minute))
}

func TestErrorStats_Clone(t *testing.T) {
	stats := NewErrorStats()
	stats.RecordError(NewInvalidTransaction("0x01", "无效"))

	c := stats.Clone()
	stats.RecordError(NewInvalidTransaction("0x02", "无效"))

	assert.Equal(t, 1, c.TotalErrors)
	assert.Equal(t, 1, c.Count(ErrorTypeInvalidTransaction))
	assert.Equal(t, 2, stats.TotalErrors)
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger := logrus.New()
	handler := NewErrorHandler(logger)

	var seen []*AppError
	handler.AddCallback(func(err *AppError) {
		seen = append(seen, err)
	})
	handler.AddCallback(func(err *AppError) {
		panic("回调异常")
	})

	got := handler.HandleError(NewInvalidTransaction("0x01", "缺少哈希"))
	require.NotNil(t, got)
	assert.Equal(t, ErrorTypeInvalidTransaction, got.Type)

	plain := handler.HandleError(errors.New("connection reset"))
	require.NotNil(t, plain)
	assert.Equal(t, CodeUnknown, plain.Code)

	assert.Nil(t, handler.HandleError(nil))

	stats := handler.GetStats()
	assert.Equal(t, 2, stats.TotalErrors)
	assert.Len(t, seen, 2)

	handler.ClearStats()
	assert.Equal(t, 0, handler.GetStats().TotalErrors)
}

func TestPredefinedErrors(t *testing.T) {
	assert.Equal(t, ErrorTypeTimeout, ErrNetworkTimeout.Type)
	assert.True(t, ErrNetworkTimeout.Retryable)

	assert.Equal(t, ErrorTypeInvalidAddress, ErrInvalidAddress.Type)
	assert.Equal(t, CodeInvalidAddress, ErrInvalidAddress.Code)
	assert.False(t, ErrInvalidAddress.Retryable)

	assert.Equal(t, ErrorTypeConfig, ErrConfigInvalid.Type)
	assert.Equal(t, SeverityCritical, ErrConfigInvalid.Severity)
	assert.False(t, ErrConfigInvalid.Retryable)
}

func BenchmarkErrorStats_RecordError(b *testing.B) {
	stats := NewErrorStats()
	err := NewAppError(ErrorTypeNetwork, SeverityMedium, "BENCH_ERROR", "基准测试错误")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stats.RecordError(err)
	}
}
