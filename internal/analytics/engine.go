package analytics

import (
	"math/big"
	"time"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Engine 聚合引擎。无共享状态，不同地址的分析可以并发执行。
type Engine struct {
	clock      func() time.Time
	logger     *logrus.Logger
	thresholds ProfileThresholds
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 注入时钟，测试中用于固定“今天”
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger 注入日志
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProfileThresholds 覆盖画像阈值
func WithProfileThresholds(th ProfileThresholds) Option {
	return func(e *Engine) {
		e.thresholds = th
	}
}

// NewEngine 创建聚合引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:      time.Now,
		logger:     logrus.StandardLogger(),
		thresholds: DefaultProfileThresholds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeAnalytics 使用系统时钟计算地址分析结果
func ComputeAnalytics(address common.Address, txs []*models.Transaction, balance *big.Int) *models.AddressAnalytics {
	return NewEngine().ComputeAnalytics(address, txs, balance)
}

// ComputeAnalytics 计算地址分析结果。
// address 需已是规范形式；与该地址无关的交易被忽略并计数；余额原样透传。
func (e *Engine) ComputeAnalytics(address common.Address, txs []*models.Transaction, balance *big.Int) *models.AddressAnalytics {
	now := e.clock().UTC()

	involved := make([]*models.Transaction, 0, len(txs))
	ignored := 0
	for _, tx := range txs {
		if tx == nil || !tx.Involves(address) {
			ignored++
			continue
		}
		involved = append(involved, tx)
	}
	if ignored > 0 {
		e.logger.Debugf("地址 %s 忽略 %d 笔无关交易", address.Hex(), ignored)
	}

	buckets := BucketizeDaily(involved, address)
	ascending := buckets.Ascending()
	monthly := RollupMonthly(ascending)
	streak := ComputeStreak(ascending, now)
	metrics := ComputeMetrics(involved, address)

	ethBalance := new(big.Int)
	if balance != nil {
		ethBalance.Set(balance)
	}

	today := now.Format(models.DateLayout)
	analysisRange := models.AnalysisRange{From: today, To: today}
	if metrics.FirstTransactionDate != nil {
		analysisRange.From = *metrics.FirstTransactionDate
	}

	result := &models.AddressAnalytics{
		Address:                   address,
		TotalTransactions:         metrics.TotalTransactions,
		FirstTransactionDate:      metrics.FirstTransactionDate,
		LastTransactionDate:       metrics.LastTransactionDate,
		TotalValueTransferred:     metrics.TotalValueTransferred,
		TotalGasSpent:             metrics.TotalGasSpent,
		AverageGasPrice:           metrics.AverageGasPrice,
		UniqueInteractedAddresses: metrics.UniqueInteractedAddresses,
		ContractInteractions:      metrics.ContractInteractions,
		ActiveDays:                buckets.Len(),
		ActiveMonths:              len(monthly),
		ActivityStreak:            streak,
		DailyActivity:             buckets.Descending(),
		MonthlyActivity:           monthly,
		EthBalance:                ethBalance,
		IgnoredTransactions:       ignored,
		LastUpdated:               now.UnixMilli(),
		AnalysisRange:             analysisRange,
	}
	result.Profile = ClassifyProfile(ProfileInput{
		TotalTransactions:    result.TotalTransactions,
		ContractInteractions: result.ContractInteractions,
		ActiveDays:           result.ActiveDays,
		Balance:              ethBalance,
	}, e.thresholds)

	e.logger.WithFields(logrus.Fields{
		"address":      address.Hex(),
		"transactions": result.TotalTransactions,
		"active_days":  result.ActiveDays,
		"streak":       streak.CurrentStreak,
		"profile":      result.Profile.Key,
	}).Debug("地址分析计算完成")

	return result
}
