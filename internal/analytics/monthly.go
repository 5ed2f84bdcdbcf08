package analytics

import (
	"math/big"
	"sort"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

// RollupMonthly 将日度记录按 YYYY-MM 折叠为月度记录，按月份倒序返回。
// ActiveDays 统计折叠进来的日度记录数量，不是自然日数。
func RollupMonthly(days []models.DailyActivity) []models.MonthlyActivity {
	type monthAcc struct {
		activity models.MonthlyActivity
		peers    map[common.Address]struct{}
	}

	byMonth := make(map[string]*monthAcc)
	for _, day := range days {
		key := day.Month()
		acc, ok := byMonth[key]
		if !ok {
			acc = &monthAcc{
				activity: models.MonthlyActivity{
					Month:      key,
					TotalValue: new(big.Int),
					GasSpent:   new(big.Int),
				},
				peers: make(map[common.Address]struct{}),
			}
			byMonth[key] = acc
		}

		acc.activity.TransactionCount += day.TransactionCount
		if day.TotalValue != nil {
			acc.activity.TotalValue.Add(acc.activity.TotalValue, day.TotalValue)
		}
		if day.GasSpent != nil {
			acc.activity.GasSpent.Add(acc.activity.GasSpent, day.GasSpent)
		}
		acc.activity.ActiveDays++
		for peer := range day.Counterparts {
			acc.peers[peer] = struct{}{}
		}
	}

	months := make([]models.MonthlyActivity, 0, len(byMonth))
	for _, acc := range byMonth {
		acc.activity.UniqueInteractions = len(acc.peers)
		months = append(months, acc.activity)
	}
	// YYYY-MM 字典序即时间顺序
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })

	return months
}
