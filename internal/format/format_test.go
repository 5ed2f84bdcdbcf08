package format

import (
	"math/big"
	"testing"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{12.5, "12.5"},
		{1000, "1.0K"},
		{1234, "1.2K"},
		{999999, "1000.0K"},
		{1000000, "1.0M"},
		{3450000, "3.5M"},
		{5600000000, "5.6B"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Number(tt.input), "input=%v", tt.input)
	}
}

func TestEth(t *testing.T) {
	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	assert.Equal(t, "1.0000", Eth(oneEth, DefaultEthDecimals))
	assert.Equal(t, "0.0000", Eth(nil, DefaultEthDecimals))
	assert.Equal(t, "0.0000", Eth(big.NewInt(0), DefaultEthDecimals))
	assert.Equal(t, "0.0012", Eth(big.NewInt(1234567890000000), DefaultEthDecimals))
	assert.Equal(t, "1", Eth(oneEth, -3))

	huge, _ := new(big.Int).SetString("123456789123456789123456789", 10)
	assert.Equal(t, "123456789.12", Eth(huge, 2))
}

func TestEth_DoesNotMutateInput(t *testing.T) {
	wei := big.NewInt(1500000000000000000)
	_ = Eth(wei, 2)
	assert.Equal(t, int64(1500000000000000000), wei.Int64())
}

func TestGwei(t *testing.T) {
	assert.Equal(t, "1.50", Gwei(big.NewInt(1500000000), 2))
	assert.Equal(t, "0.00", Gwei(nil, 2))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "50%", Percent(1, 2))
	assert.Equal(t, "33%", Percent(1, 3))
	assert.Equal(t, "67%", Percent(2, 3))
	assert.Equal(t, "0%", Percent(0, 0))
	assert.Equal(t, "300%", Percent(3, 0))
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x4200...0006", ShortAddress("0x4200000000000000000000000000000000000006"))
	assert.Equal(t, "0x1234", ShortAddress("0x1234"))
	assert.Equal(t, "", ShortAddress(""))
}

func TestSummarize(t *testing.T) {
	a := &models.AddressAnalytics{
		Address:                   common.HexToAddress("0x4200000000000000000000000000000000000006"),
		TotalTransactions:         1500,
		TotalValueTransferred:     new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		TotalGasSpent:             big.NewInt(21000000000000),
		AverageGasPrice:           big.NewInt(2500000000),
		EthBalance:                big.NewInt(0),
		ContractInteractions:      750,
		UniqueInteractedAddresses: 12,
		Profile:                   models.Profile{Key: "regular_user", Name: "Regular User", Icon: "👤"},
	}

	d := Summarize(a)
	assert.Equal(t, "0x4200...0006", d.ShortAddress)
	assert.Equal(t, "1.5K", d.TotalTransactions)
	assert.Equal(t, "1.0000 ETH", d.TotalValueTransferred)
	assert.Equal(t, "0.000021 ETH", d.TotalGasSpent)
	assert.Equal(t, "2.50 Gwei", d.AverageGasPrice)
	assert.Equal(t, "50%", d.ContractRatio)
	assert.Equal(t, "12", d.UniqueInteractions)
	assert.Equal(t, "0.0000 ETH", d.Balance)
	assert.Equal(t, "👤 Regular User", d.Profile)

	assert.Equal(t, Display{}, Summarize(nil))
}
