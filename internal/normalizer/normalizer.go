package normalizer

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"addrstats/internal/decoder"
	"addrstats/internal/errors"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
)

// ContractGasMargin 普通转账 gas 下限之上的容差，超过即视为合约调用
const ContractGasMargin = 4000

// transferGasFloor 普通转账固定消耗 (21000)
var transferGasFloor = new(big.Int).SetUint64(params.TxGas + ContractGasMargin)

// MaxTimestamp 9999-12-31T23:59:59Z，超过后日期键不再是 YYYY-MM-DD
const MaxTimestamp int64 = 253402300799

// componentName 错误统计中的组件名
const componentName = "normalizer"

// Report 单次规范化的诊断计数
type Report struct {
	Accepted   int                `json:"accepted"`
	Skipped    int                `json:"skipped"`
	Duplicates int                `json:"duplicates"`
	Errors     []*errors.AppError `json:"-"`
}

// Normalizer 交易规范化器
type Normalizer struct {
	logger  *logrus.Logger
	decoder *decoder.SelectorDecoder
	handler *errors.ErrorHandler
}

// NewNormalizer 创建规范化器，handler 可为空
func NewNormalizer(logger *logrus.Logger, handler *errors.ErrorHandler) *Normalizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Normalizer{
		logger:  logger,
		decoder: decoder.NewSelectorDecoder(logger),
		handler: handler,
	}
}

// Decoder 返回使用的方法选择器解码器
func (n *Normalizer) Decoder() *decoder.SelectorDecoder {
	return n.decoder
}

// Normalize 使用默认签名表规范化单条记录
func Normalize(raw models.RawTransaction) (*models.Transaction, error) {
	return normalize(raw, defaultDecoder)
}

var defaultDecoder = decoder.NewSelectorDecoder(nil)

// Normalize 规范化单条记录
func (n *Normalizer) Normalize(raw models.RawTransaction) (*models.Transaction, error) {
	return normalize(raw, n.decoder)
}

// NormalizeAll 按顺序规范化多个数据源批次。
// 以哈希去重，先出现的记录优先，后续重复记录直接忽略；
// 无效记录跳过并计数，不会中断整体处理。
func (n *Normalizer) NormalizeAll(batches ...[]models.RawTransaction) ([]*models.Transaction, *Report) {
	report := &Report{}
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}

	seen := make(map[string]struct{}, total)
	txs := make([]*models.Transaction, 0, total)

	for _, batch := range batches {
		for _, raw := range batch {
			tx, err := n.Normalize(raw)
			if err != nil {
				report.Skipped++
				appErr := n.recordSkip(raw, err)
				report.Errors = append(report.Errors, appErr)
				continue
			}

			if _, dup := seen[tx.Hash]; dup {
				report.Duplicates++
				continue
			}
			seen[tx.Hash] = struct{}{}
			txs = append(txs, tx)
			report.Accepted++
		}
	}

	if report.Skipped > 0 || report.Duplicates > 0 {
		n.logger.Infof("交易规范化完成: 接受 %d, 跳过 %d, 重复 %d",
			report.Accepted, report.Skipped, report.Duplicates)
	}

	return txs, report
}

// recordSkip 记录被跳过的无效交易
func (n *Normalizer) recordSkip(raw models.RawTransaction, err error) *errors.AppError {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewInvalidTransaction(raw.Hash, err.Error())
	}
	appErr.WithComponent(componentName)
	if raw.Source != "" {
		appErr.WithContext("source", raw.Source)
	}

	if n.handler != nil {
		n.handler.HandleError(appErr)
	} else {
		n.logger.WithFields(logrus.Fields{
			"tx_hash": raw.Hash,
			"source":  raw.Source,
		}).Warnf("跳过无效交易: %v", appErr.Message)
	}
	return appErr
}

func normalize(raw models.RawTransaction, dec *decoder.SelectorDecoder) (*models.Transaction, error) {
	hash := strings.TrimSpace(raw.Hash)
	if hash == "" {
		return nil, errors.NewInvalidTransaction("", "缺少必填字段: hash")
	}
	invalid := func(format string, args ...interface{}) error {
		return errors.NewInvalidTransaction(hash, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(raw.TimeStamp) == "" {
		return nil, invalid("缺少必填字段: timeStamp")
	}
	timestamp, err := parseTimestamp(raw.TimeStamp)
	if err != nil {
		return nil, invalid("时间戳无效: %q", raw.TimeStamp)
	}

	if strings.TrimSpace(raw.From) == "" {
		return nil, invalid("缺少必填字段: from")
	}
	if !common.IsHexAddress(strings.TrimSpace(raw.From)) {
		return nil, invalid("发送方地址无效: %q", raw.From)
	}
	from := common.HexToAddress(strings.TrimSpace(raw.From))

	var to *common.Address
	if s := strings.TrimSpace(raw.To); s != "" {
		if !common.IsHexAddress(s) {
			return nil, invalid("接收方地址无效: %q", raw.To)
		}
		addr := common.HexToAddress(s)
		to = &addr
	}

	if strings.TrimSpace(raw.Value) == "" {
		return nil, invalid("缺少必填字段: value")
	}
	value, err := parseBig(raw.Value)
	if err != nil {
		return nil, invalid("金额无效: %q", raw.Value)
	}

	blockNumber, err := parseOptionalBig(raw.BlockNumber)
	if err != nil {
		return nil, invalid("区块号无效: %q", raw.BlockNumber)
	}
	gasUsed, err := parseOptionalBig(raw.GasUsed)
	if err != nil {
		return nil, invalid("gasUsed无效: %q", raw.GasUsed)
	}
	gasPrice, err := parseOptionalBig(raw.GasPrice)
	if err != nil {
		return nil, invalid("gasPrice无效: %q", raw.GasPrice)
	}

	status := models.StatusSuccess
	if strings.TrimSpace(raw.IsError) == "1" || strings.TrimSpace(raw.TxReceiptStatus) == "0" {
		status = models.StatusFailed
	}

	methodID, functionName := dec.Decode(raw.Input, strings.TrimSpace(raw.MethodID), strings.TrimSpace(raw.FunctionName))

	return &models.Transaction{
		Hash:                  hash,
		BlockNumber:           blockNumber,
		Timestamp:             timestamp,
		From:                  from,
		To:                    to,
		Value:                 value,
		GasUsed:               gasUsed,
		GasPrice:              gasPrice,
		Status:                status,
		MethodID:              methodID,
		FunctionName:          functionName,
		IsContractInteraction: isContractInteraction(raw.Input, to, gasUsed),
		Source:                raw.Source,
	}, nil
}

// isContractInteraction 合约交互判定，只依赖记录本身
func isContractInteraction(input string, to *common.Address, gasUsed *big.Int) bool {
	if decoder.HasCallData(input) {
		return true
	}
	if to == nil {
		return true
	}
	return gasUsed.Cmp(transferGasFloor) > 0
}

// parseTimestamp 支持十进制与 0x 十六进制秒级时间戳
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	var (
		v   int64
		err error
	)
	if hasHexPrefix(s) {
		v, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("负数时间戳: %d", v)
	}
	// 毫秒时间戳也会落在这里
	if v > MaxTimestamp {
		return 0, fmt.Errorf("时间戳超出范围: %d", v)
	}
	return v, nil
}

// parseBig 解析非负大整数，十进制或 0x 十六进制
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if hasHexPrefix(s) {
		s, base = s[2:], 16
	}
	if s == "" {
		return nil, fmt.Errorf("空数值")
	}
	if s[0] == '+' || s[0] == '-' {
		return nil, fmt.Errorf("不支持带符号数值: %s", s)
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("无法解析数值: %s", s)
	}
	return v, nil
}

// parseOptionalBig 空值按 0 处理
func parseOptionalBig(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(big.Int), nil
	}
	return parseBig(s)
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
