package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DailyActivity 单日活跃度聚合，只为有交易的日期生成记录
type DailyActivity struct {
	Date               string   `json:"date"` // YYYY-MM-DD (UTC)
	TransactionCount   int      `json:"transaction_count"`
	TotalValue         *big.Int `json:"total_value"`
	GasSpent           *big.Int `json:"gas_spent"`
	UniqueInteractions int      `json:"unique_interactions"`

	// Counterparts 当日交互过的对手方集合，月度汇总时用于去重
	Counterparts map[common.Address]struct{} `json:"-"`
}

// Month 返回 YYYY-MM
func (d DailyActivity) Month() string {
	if len(d.Date) < 7 {
		return d.Date
	}
	return d.Date[:7]
}

// MonthlyActivity 月度活跃度，由日度记录折叠而来
type MonthlyActivity struct {
	Month              string   `json:"month"` // YYYY-MM
	TransactionCount   int      `json:"transaction_count"`
	TotalValue         *big.Int `json:"total_value"`
	GasSpent           *big.Int `json:"gas_spent"`
	ActiveDays         int      `json:"active_days"`
	UniqueInteractions int      `json:"unique_interactions"`
}

// ActivityStreak 连续活跃天数
type ActivityStreak struct {
	CurrentStreak      int     `json:"current_streak"`
	LongestStreak      int     `json:"longest_streak"`
	StreakStart        *string `json:"streak_start"`
	StreakEnd          *string `json:"streak_end"`
	IsActive           bool    `json:"is_active"`
	LongestStreakStart *string `json:"longest_streak_start"`
	LongestStreakEnd   *string `json:"longest_streak_end"`
}

// AnalysisRange 分析覆盖的日期范围
type AnalysisRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Profile 地址画像
type Profile struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// AddressAnalytics 单次分析的完整结果
type AddressAnalytics struct {
	Address                   common.Address `json:"address"`
	TotalTransactions         int            `json:"total_transactions"`
	FirstTransactionDate      *string        `json:"first_transaction_date"`
	LastTransactionDate       *string        `json:"last_transaction_date"`
	TotalValueTransferred     *big.Int       `json:"total_value_transferred"`
	TotalGasSpent             *big.Int       `json:"total_gas_spent"`
	AverageGasPrice           *big.Int       `json:"average_gas_price"`
	UniqueInteractedAddresses int            `json:"unique_interacted_addresses"`
	ContractInteractions      int            `json:"contract_interactions"`

	// 活跃度指标
	ActiveDays     int            `json:"active_days"`
	ActiveMonths   int            `json:"active_months"`
	ActivityStreak ActivityStreak `json:"activity_streak"`

	// 时间维度明细
	DailyActivity   []DailyActivity   `json:"daily_activity"`   // 按日期倒序
	MonthlyActivity []MonthlyActivity `json:"monthly_activity"` // 按月份倒序

	EthBalance *big.Int `json:"eth_balance"`
	Profile    Profile  `json:"profile"`

	// IgnoredTransactions 与分析地址无关而被忽略的记录数
	IgnoredTransactions int `json:"ignored_transactions"`

	LastUpdated   int64         `json:"last_updated"` // 毫秒时间戳
	AnalysisRange AnalysisRange `json:"analysis_range"`
}
