package analytics

import (
	"math/big"
	"time"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	addrC = common.HexToAddress("0x3333333333333333333333333333333333333333")
	addrD = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

// at 解析 UTC 时间
func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

// fixedClock 固定时钟
func fixedClock(date string) func() time.Time {
	t := at(date + "T12:00:00Z")
	return func() time.Time { return t }
}

// newTx 构造一笔已规范化交易
func newTx(hash string, when string, from, to common.Address, value int64) *models.Transaction {
	recipient := to
	return &models.Transaction{
		Hash:        hash,
		BlockNumber: big.NewInt(1),
		Timestamp:   at(when).Unix(),
		From:        from,
		To:          &recipient,
		Value:       big.NewInt(value),
		GasUsed:     big.NewInt(21000),
		GasPrice:    big.NewInt(1000000000),
		Status:      models.StatusSuccess,
	}
}

func days(dates ...string) []models.DailyActivity {
	out := make([]models.DailyActivity, 0, len(dates))
	for _, d := range dates {
		out = append(out, models.DailyActivity{
			Date:             d,
			TransactionCount: 1,
			TotalValue:       new(big.Int),
			GasSpent:         new(big.Int),
		})
	}
	return out
}
