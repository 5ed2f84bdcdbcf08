// Package provider 交易与余额数据源。
// 区块浏览器 API 为主数据源，节点 RPC 扫描为兜底；缓存只存在于数据源边界。
package provider

import (
	"context"
	"math/big"
	"sync"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionProvider 交易数据源
type TransactionProvider interface {
	Name() string
	FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error)
}

// BalanceProvider 余额数据源
type BalanceProvider interface {
	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
}

// tagSource 标记记录来源
func tagSource(txs []models.RawTransaction, source string) []models.RawTransaction {
	for i := range txs {
		txs[i].Source = source
	}
	return txs
}

type fetchInfoKey struct{}

// FetchInfo 单次获取的附加信息，由数据源在返回前填写
type FetchInfo struct {
	mu      sync.Mutex
	partial bool
	reason  string
}

// WithFetchInfo 在 ctx 上挂载 FetchInfo，调用返回后可检查结果是否完整
func WithFetchInfo(ctx context.Context) (context.Context, *FetchInfo) {
	info := &FetchInfo{}
	return context.WithValue(ctx, fetchInfoKey{}, info), info
}

// Partial 结果是否不完整，以及原因
func (i *FetchInfo) Partial() (bool, string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.partial, i.reason
}

// markPartial 标记本次结果不完整，ctx 上没有 FetchInfo 时忽略
func markPartial(ctx context.Context, reason string) {
	info, ok := ctx.Value(fetchInfoKey{}).(*FetchInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.partial = true
	info.reason = reason
	info.mu.Unlock()
}
