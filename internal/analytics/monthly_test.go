package analytics

import (
	"testing"

	"addrstats/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollupMonthly(t *testing.T) {
	txs := []*models.Transaction{
		newTx("0x1", "2023-12-31T10:00:00Z", addrA, addrB, 100),
		newTx("0x2", "2024-01-01T10:00:00Z", addrA, addrB, 200),
		newTx("0x3", "2024-01-01T11:00:00Z", addrC, addrA, 300),
		newTx("0x4", "2024-01-15T10:00:00Z", addrA, addrB, 400),
		newTx("0x5", "2024-02-03T10:00:00Z", addrA, addrD, 500),
	}

	months := RollupMonthly(BucketizeDaily(txs, addrA).Ascending())
	require.Len(t, months, 3)

	assert.Equal(t, "2024-02", months[0].Month)
	assert.Equal(t, "2024-01", months[1].Month)
	assert.Equal(t, "2023-12", months[2].Month)

	jan := months[1]
	assert.Equal(t, 3, jan.TransactionCount)
	assert.Equal(t, 2, jan.ActiveDays)
	assert.Equal(t, int64(900), jan.TotalValue.Int64())
	assert.Equal(t, "63000000000000", jan.GasSpent.String())
	// B 在两天都出现，只计一次
	assert.Equal(t, 2, jan.UniqueInteractions)

	assert.Equal(t, 1, months[0].ActiveDays)
	assert.Equal(t, 1, months[2].TransactionCount)
}

func TestRollupMonthly_FoldInvariant(t *testing.T) {
	var txs []*models.Transaction
	stamps := []string{
		"2024-01-01T00:00:00Z", "2024-01-03T00:00:00Z", "2024-01-03T05:00:00Z",
		"2024-02-28T00:00:00Z", "2024-02-29T00:00:00Z", "2024-03-01T00:00:00Z",
	}
	for i, ts := range stamps {
		txs = append(txs, newTx(string(rune('a'+i)), ts, addrA, addrB, 1))
	}

	daysAsc := BucketizeDaily(txs, addrA).Ascending()
	months := RollupMonthly(daysAsc)

	totalTx, totalDays := 0, 0
	for _, m := range months {
		totalTx += m.TransactionCount
		totalDays += m.ActiveDays
	}
	assert.Equal(t, len(stamps), totalTx)
	assert.Equal(t, len(daysAsc), totalDays)
}

func TestRollupMonthly_Empty(t *testing.T) {
	months := RollupMonthly(nil)
	assert.NotNil(t, months)
	assert.Empty(t, months)
}
