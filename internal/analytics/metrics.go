package analytics

import (
	"math/big"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

// Metrics 地址级汇总指标
type Metrics struct {
	TotalTransactions         int
	TotalValueTransferred     *big.Int
	TotalGasSpent             *big.Int
	AverageGasPrice           *big.Int
	UniqueInteractedAddresses int
	ContractInteractions      int
	FirstTransactionDate      *string
	LastTransactionDate       *string
}

// ComputeMetrics 单次遍历计算汇总指标。没有交易时返回零值与空日期，不会失败。
func ComputeMetrics(txs []*models.Transaction, address common.Address) Metrics {
	m := Metrics{
		TotalValueTransferred: new(big.Int),
		TotalGasSpent:         new(big.Int),
		AverageGasPrice:       new(big.Int),
	}

	peers := make(map[common.Address]struct{})
	gasPriceSum := new(big.Int)
	var (
		first, last int64
		seen        bool
	)

	for _, tx := range txs {
		if tx == nil {
			continue
		}
		m.TotalTransactions++

		if peer, ok := tx.Counterparty(address); ok {
			peers[peer] = struct{}{}
		}
		if tx.Value != nil {
			m.TotalValueTransferred.Add(m.TotalValueTransferred, tx.Value)
		}
		m.TotalGasSpent.Add(m.TotalGasSpent, tx.GasCost())
		if tx.GasPrice != nil {
			gasPriceSum.Add(gasPriceSum, tx.GasPrice)
		}
		if tx.IsContractInteraction {
			m.ContractInteractions++
		}

		if !seen || tx.Timestamp < first {
			first = tx.Timestamp
		}
		if !seen || tx.Timestamp > last {
			last = tx.Timestamp
		}
		seen = true
	}

	m.UniqueInteractedAddresses = len(peers)
	if m.TotalTransactions > 0 {
		m.AverageGasPrice.Quo(gasPriceSum, big.NewInt(int64(m.TotalTransactions)))
	}
	if seen {
		m.FirstTransactionDate = stringPtr(models.DateOf(first))
		m.LastTransactionDate = stringPtr(models.DateOf(last))
	}

	return m
}
