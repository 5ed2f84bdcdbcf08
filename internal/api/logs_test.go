package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(level logrus.Level, msg string, data logrus.Fields) *logrus.Entry {
	return &logrus.Entry{Time: time.Now(), Level: level, Message: msg, Data: data}
}

func TestLogManager_RingBuffer(t *testing.T) {
	lm := NewLogManager(3)
	for i := 1; i <= 5; i++ {
		lm.AddLog(entry(logrus.InfoLevel, fmt.Sprintf("日志%d", i), nil))
	}

	assert.Equal(t, 3, lm.Len())
	logs := lm.GetLogs("", 0)
	require.Len(t, logs, 3)
	assert.Equal(t, "日志5", logs[0].Message)
	assert.Equal(t, "日志3", logs[2].Message)

	assert.Len(t, lm.GetLogs("", 2), 2)
}

func TestLogManager_Pagination(t *testing.T) {
	lm := NewLogManager(10)
	for i := 1; i <= 5; i++ {
		level := logrus.InfoLevel
		if i%2 == 0 {
			level = logrus.ErrorLevel
		}
		lm.AddLog(entry(level, fmt.Sprintf("日志%d", i), nil))
	}

	page, total := lm.GetLogsWithPagination("", 2, 2)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "日志3", page[0].Message)

	page, total = lm.GetLogsWithPagination("error", 1, 10)
	assert.Equal(t, 2, total)
	assert.Equal(t, "日志4", page[0].Message)

	page, _ = lm.GetLogsWithPagination("", 9, 10)
	assert.Empty(t, page)
}

func TestLogManager_CopiesFields(t *testing.T) {
	lm := NewLogManager(2)
	data := logrus.Fields{"address": "0x42", "error": fmt.Errorf("超时")}
	lm.AddLog(entry(logrus.WarnLevel, "获取失败", data))
	data["address"] = "changed"

	logs := lm.GetLogs("", 0)
	require.Len(t, logs, 1)
	assert.Equal(t, "0x42", logs[0].Fields["address"])
	assert.Equal(t, "超时", logs[0].Fields["error"])

	lm.ClearLogs()
	assert.Equal(t, 0, lm.Len())
	assert.Empty(t, lm.GetLogs("", 0))
}
