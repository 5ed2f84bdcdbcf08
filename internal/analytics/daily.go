package analytics

import (
	"math/big"
	"sort"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

// DailyBuckets 按 UTC 日期分桶后的日度活跃记录，
// 升序与倒序视图各排序一次。
type DailyBuckets struct {
	ascending  []models.DailyActivity
	descending []models.DailyActivity
}

// BucketizeDaily 将交易按 UTC 日期累加到日度记录中。
// 输入顺序任意，每笔交易只计入一天，没有交易的日期不生成记录。
func BucketizeDaily(txs []*models.Transaction, address common.Address) *DailyBuckets {
	byDate := make(map[string]*models.DailyActivity)

	for _, tx := range txs {
		if tx == nil {
			continue
		}
		date := tx.Date()
		day, ok := byDate[date]
		if !ok {
			day = &models.DailyActivity{
				Date:         date,
				TotalValue:   new(big.Int),
				GasSpent:     new(big.Int),
				Counterparts: make(map[common.Address]struct{}),
			}
			byDate[date] = day
		}

		day.TransactionCount++
		if tx.Value != nil {
			day.TotalValue.Add(day.TotalValue, tx.Value)
		}
		day.GasSpent.Add(day.GasSpent, tx.GasCost())
		if peer, ok := tx.Counterparty(address); ok {
			day.Counterparts[peer] = struct{}{}
		}
	}

	asc := make([]models.DailyActivity, 0, len(byDate))
	for _, day := range byDate {
		day.UniqueInteractions = len(day.Counterparts)
		asc = append(asc, *day)
	}
	sort.Slice(asc, func(i, j int) bool { return asc[i].Date < asc[j].Date })

	desc := make([]models.DailyActivity, len(asc))
	for i := range asc {
		desc[len(asc)-1-i] = asc[i]
	}

	return &DailyBuckets{ascending: asc, descending: desc}
}

// Len 活跃天数
func (b *DailyBuckets) Len() int {
	return len(b.ascending)
}

// Ascending 按日期升序的副本
func (b *DailyBuckets) Ascending() []models.DailyActivity {
	return cloneDays(b.ascending)
}

// Descending 按日期倒序（最近在前）的副本
func (b *DailyBuckets) Descending() []models.DailyActivity {
	return cloneDays(b.descending)
}

// cloneDays 深拷贝，调用方可以随意修改返回值
func cloneDays(days []models.DailyActivity) []models.DailyActivity {
	out := make([]models.DailyActivity, len(days))
	for i, d := range days {
		out[i] = d
		out[i].TotalValue = new(big.Int).Set(d.TotalValue)
		out[i].GasSpent = new(big.Int).Set(d.GasSpent)
		out[i].Counterparts = make(map[common.Address]struct{}, len(d.Counterparts))
		for addr := range d.Counterparts {
			out[i].Counterparts[addr] = struct{}{}
		}
	}
	return out
}
