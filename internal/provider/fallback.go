package provider

import (
	"context"
	"fmt"
	"strings"

	"addrstats/internal/config"
	"addrstats/internal/connection"
	"addrstats/internal/errors"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// FallbackProvider 按顺序尝试多个数据源，返回第一个成功的结果。
// 空结果也是有效结果，不会触发兜底。
type FallbackProvider struct {
	providers []TransactionProvider
	logger    *logrus.Logger
}

// NewFallbackProvider 创建兜底数据源
func NewFallbackProvider(logger *logrus.Logger, providers ...TransactionProvider) *FallbackProvider {
	return &FallbackProvider{
		providers: providers,
		logger:    logger,
	}
}

// Name 返回组合名称，如 fallback(explorer,rpc)
func (f *FallbackProvider) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Providers 返回数据源列表
func (f *FallbackProvider) Providers() []TransactionProvider {
	return f.providers
}

// FetchTransactions 依次尝试各数据源。全部失败时返回首个数据源的错误。
func (f *FallbackProvider) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	if len(f.providers) == 0 {
		return nil, errors.ErrNoProvider.Clone()
	}

	var firstErr error
	for i, p := range f.providers {
		txs, err := p.FetchTransactions(ctx, address)
		if err == nil {
			if i > 0 {
				f.logger.Infof("已切换到兜底数据源 %s，获取 %d 条交易", p.Name(), len(txs))
			}
			return txs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.logger.Warnf("数据源 %s 获取交易失败: %v", p.Name(), err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, fmt.Errorf("所有数据源均失败: %w", firstErr)
}

// Select 根据配置组装数据源：配置了 API Key 时浏览器优先，节点扫描始终作为兜底。
// 余额查询使用节点 RPC，未配置节点时返回 nil。
func Select(cfg *config.Config, pool *connection.ConnectionPool, logger *logrus.Logger) (*FallbackProvider, BalanceProvider, error) {
	providers := make([]TransactionProvider, 0, 2)

	if cfg.Explorer.Enabled() {
		providers = append(providers, NewExplorerProvider(cfg.Explorer, cfg.Chain.ID, logger))
	} else {
		logger.Warn("未配置区块浏览器 API Key，仅使用节点扫描")
	}

	var balance BalanceProvider
	if pool != nil && pool.Size() > 0 {
		rpc := NewRPCProvider(cfg.RPC, cfg.Chain.ID, pool, logger)
		providers = append(providers, rpc)
		balance = rpc
	}

	if len(providers) == 0 {
		return nil, nil, errors.ErrNoProvider.Clone()
	}

	return NewFallbackProvider(logger, providers...), balance, nil
}
