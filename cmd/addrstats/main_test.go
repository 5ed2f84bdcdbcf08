package main

import (
	"bytes"
	"math/big"
	"testing"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", "  0x4200000000000000000000000000000000000006 "})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "0x4200000000000000000000000000000000000006\n", out.String())
}

func TestValidateCommand_Invalid(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "0x123"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_ADDRESS")
}

func TestAnalyzeCommand_RequiresAddress(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze"})

	assert.Error(t, cmd.Execute())
}

func TestPrintSummary(t *testing.T) {
	first, last := "2024-01-01", "2024-01-17"
	a := &models.AddressAnalytics{
		Address:               common.HexToAddress("0x4200000000000000000000000000000000000006"),
		TotalTransactions:     12,
		TotalValueTransferred: big.NewInt(2e18),
		TotalGasSpent:         big.NewInt(1e15),
		AverageGasPrice:       big.NewInt(2e9),
		EthBalance:            big.NewInt(1e18),
		ContractInteractions:  6,
		ActiveDays:            5,
		ActiveMonths:          1,
		FirstTransactionDate:  &first,
		LastTransactionDate:   &last,
		IgnoredTransactions:   2,
		ActivityStreak:        models.ActivityStreak{CurrentStreak: 2, LongestStreak: 3},
		Profile:               models.Profile{Key: "defi", Name: "DeFi用户", Icon: "🏦"},
	}

	var out bytes.Buffer
	printSummary(&out, a)

	text := out.String()
	assert.Contains(t, text, "0x4200000000000000000000000000000000000006")
	assert.Contains(t, text, "🏦 DeFi用户")
	assert.Contains(t, text, "50")
	assert.Contains(t, text, "当前 2 天, 最长 3 天")
	assert.Contains(t, text, "2024-01-01 ~ 2024-01-17")
	assert.Contains(t, text, "忽略记录:     2")
}
