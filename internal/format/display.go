package format

import (
	"addrstats/pkg/models"
)

// Display 分析结果的展示文本，只用于渲染，不回写计算结果
type Display struct {
	Address               string `json:"address"`
	ShortAddress          string `json:"short_address"`
	Balance               string `json:"balance"`
	TotalTransactions     string `json:"total_transactions"`
	TotalValueTransferred string `json:"total_value_transferred"`
	TotalGasSpent         string `json:"total_gas_spent"`
	AverageGasPrice       string `json:"average_gas_price"`
	ContractRatio         string `json:"contract_ratio"`
	UniqueInteractions    string `json:"unique_interactions"`
	Profile               string `json:"profile"`
}

// Summarize 生成展示文本
func Summarize(a *models.AddressAnalytics) Display {
	if a == nil {
		return Display{}
	}
	hex := a.Address.Hex()
	return Display{
		Address:               hex,
		ShortAddress:          ShortAddress(hex),
		Balance:               Eth(a.EthBalance, DefaultEthDecimals) + " ETH",
		TotalTransactions:     Number(float64(a.TotalTransactions)),
		TotalValueTransferred: Eth(a.TotalValueTransferred, DefaultEthDecimals) + " ETH",
		TotalGasSpent:         Eth(a.TotalGasSpent, 6) + " ETH",
		AverageGasPrice:       Gwei(a.AverageGasPrice, 2) + " Gwei",
		ContractRatio:         Percent(a.ContractInteractions, a.TotalTransactions),
		UniqueInteractions:    Number(float64(a.UniqueInteractedAddresses)),
		Profile:               a.Profile.Icon + " " + a.Profile.Name,
	}
}
