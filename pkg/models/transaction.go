package models

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// DateLayout 日期键格式 (UTC)
const DateLayout = "2006-01-02"

// TransactionStatus 交易执行状态
type TransactionStatus string

const (
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// RawTransaction 数据源返回的原始交易记录
// 字段均为字符串，与区块浏览器 txlist 接口保持一致
type RawTransaction struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	IsError         string `json:"isError"`
	TxReceiptStatus string `json:"txreceipt_status"`
	Input           string `json:"input"`
	ContractAddress string `json:"contractAddress"`
	MethodID        string `json:"methodId"`
	FunctionName    string `json:"functionName"`

	// Source 产生该记录的数据源名称，不参与序列化
	Source string `json:"-"`
}

// Transaction 规范化后的交易
// 规范化之后不再修改，所有聚合结果都是交易列表的纯函数
type Transaction struct {
	Hash                  string            `json:"hash"`
	BlockNumber           *big.Int          `json:"block_number"`
	Timestamp             int64             `json:"timestamp"`
	From                  common.Address    `json:"from"`
	To                    *common.Address   `json:"to"`
	Value                 *big.Int          `json:"value"`
	GasUsed               *big.Int          `json:"gas_used"`
	GasPrice              *big.Int          `json:"gas_price"`
	Status                TransactionStatus `json:"status"`
	MethodID              string            `json:"method_id,omitempty"`
	FunctionName          string            `json:"function_name,omitempty"`
	IsContractInteraction bool              `json:"is_contract_interaction"`
	Source                string            `json:"source,omitempty"`
}

// Date 返回交易所在的 UTC 日期
func (t *Transaction) Date() string {
	return DateOf(t.Timestamp)
}

// GasCost gasUsed × gasPrice
func (t *Transaction) GasCost() *big.Int {
	if t.GasUsed == nil || t.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(t.GasUsed, t.GasPrice)
}

// Involves 交易是否涉及指定地址
func (t *Transaction) Involves(address common.Address) bool {
	if t.From == address {
		return true
	}
	return t.To != nil && *t.To == address
}

// Counterparty 返回相对于 address 的交互对手方。
// 自转账或合约创建时没有对手方。
func (t *Transaction) Counterparty(address common.Address) (common.Address, bool) {
	var peer common.Address
	switch {
	case t.From == address:
		if t.To == nil {
			return common.Address{}, false
		}
		peer = *t.To
	case t.To != nil && *t.To == address:
		peer = t.From
	default:
		return common.Address{}, false
	}

	if peer == address {
		return common.Address{}, false
	}
	return peer, true
}

// DateOf 将秒级时间戳转换为 UTC 日期字符串
func DateOf(timestamp int64) string {
	return time.Unix(timestamp, 0).UTC().Format(DateLayout)
}

// FromEthereumTransaction 从节点返回的交易和回执构造原始记录
func FromEthereumTransaction(tx *types.Transaction, receipt *types.Receipt, from common.Address, blockTime uint64) RawTransaction {
	raw := RawTransaction{
		Hash:      tx.Hash().Hex(),
		TimeStamp: strconv.FormatUint(blockTime, 10),
		From:      from.Hex(),
		Value:     tx.Value().String(),
		Gas:       strconv.FormatUint(tx.Gas(), 10),
		GasPrice:  tx.GasPrice().String(),
		Input:     hexutil.Encode(tx.Data()),
		GasUsed:   "0",
	}

	if tx.To() != nil {
		raw.To = tx.To().Hex()
	}

	if receipt == nil {
		return raw
	}

	raw.GasUsed = strconv.FormatUint(receipt.GasUsed, 10)
	if receipt.BlockNumber != nil {
		raw.BlockNumber = receipt.BlockNumber.String()
	}
	if receipt.EffectiveGasPrice != nil {
		raw.GasPrice = receipt.EffectiveGasPrice.String()
	}
	if receipt.ContractAddress != (common.Address{}) {
		raw.ContractAddress = receipt.ContractAddress.Hex()
	}
	raw.TxReceiptStatus = strconv.FormatUint(receipt.Status, 10)
	if receipt.Status == types.ReceiptStatusFailed {
		raw.IsError = "1"
	} else {
		raw.IsError = "0"
	}

	return raw
}
