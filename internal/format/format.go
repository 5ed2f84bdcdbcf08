package format

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// DefaultEthDecimals ETH 默认显示精度
const DefaultEthDecimals = 4

const (
	etherExp = -18
	gweiExp  = -9
)

var (
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
	thousand = decimal.New(1, 3)
	hundred  = decimal.NewFromInt(100)
)

// Number 大数缩写：1.2K / 3.4M / 5.6B，保留一位小数
func Number(n float64) string {
	d := decimal.NewFromFloat(n)
	switch {
	case d.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(1) + "B"
	case d.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(1) + "M"
	case d.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "K"
	default:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// Eth wei 转 ETH 字符串，固定小数位
func Eth(wei *big.Int, decimals int) string {
	return fixed(wei, etherExp, decimals)
}

// Gwei wei 转 Gwei 字符串，固定小数位
func Gwei(wei *big.Int, decimals int) string {
	return fixed(wei, gweiExp, decimals)
}

// Percent part/whole 百分比，四舍五入到整数，分母至少为 1
func Percent(part, whole int) string {
	if whole < 1 {
		whole = 1
	}
	p := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole)))
	return p.Round(0).String() + "%"
}

// ShortAddress 0x1234...abcd
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func fixed(wei *big.Int, exp int32, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if wei == nil {
		return decimal.Zero.StringFixed(int32(decimals))
	}
	// NewFromBigInt 会复制入参
	return decimal.NewFromBigInt(wei, exp).StringFixed(int32(decimals))
}
