package analyzer

import (
	"context"
	"fmt"

	"addrstats/internal/analytics"
	"addrstats/internal/config"
	"addrstats/internal/connection"
	"addrstats/internal/output"
	"addrstats/internal/provider"
	"addrstats/pkg/models"

	"github.com/sirupsen/logrus"
)

// Runtime 按配置组装好的分析运行时
type Runtime struct {
	Analyzer *Analyzer
	Pool     *connection.ConnectionPool
	Cache    *provider.Cache
	logger   *logrus.Logger
}

// NewRuntime 根据配置创建连接池、数据源、缓存和输出
func NewRuntime(cfg *config.Config, logger *logrus.Logger) (*Runtime, error) {
	pool := connection.NewConnectionPool(cfg.RPC.Nodes, logger)

	transactions, balances, err := provider.Select(cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	rt := &Runtime{Pool: pool, logger: logger}

	var source provider.TransactionProvider = transactions
	if cfg.Cache != nil && cfg.Cache.Enabled {
		cache, err := provider.NewCache(cfg.Cache.Path, cfg.Cache.TTL, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("初始化缓存失败: %w", err)
		}
		if removed, err := cache.PurgeExpired(); err == nil && removed > 0 {
			logger.Infof("已清理 %d 条过期缓存", removed)
		}
		rt.Cache = cache
		source = cache.Wrap(transactions)
	}

	out, err := output.NewOutput(cfg.Output, logger)
	if err != nil {
		rt.closeSources()
		return nil, fmt.Errorf("初始化输出失败: %w", err)
	}

	rt.Analyzer = NewAnalyzer(source, logger,
		WithBalanceProvider(balances),
		WithOutput(out),
		WithEngine(analytics.NewEngine(analytics.WithLogger(logger))),
		WithFetchTimeout(cfg.Analysis.FetchTimeout),
		WithStrictValidation(cfg.Analysis.StrictValidation),
	)

	logger.Infof("分析运行时已就绪，数据源: %s，输出: %s", source.Name(), cfg.Output.Format)
	return rt, nil
}

// Analyze 执行单次分析
func (r *Runtime) Analyze(ctx context.Context, address string) (*models.AddressAnalytics, error) {
	return r.Analyzer.Analyze(ctx, address)
}

// Stats 汇总分析、连接池和缓存统计
func (r *Runtime) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"analyzer": r.Analyzer.Stats(),
		"nodes":    r.Pool.GetStats(),
	}
	if r.Cache != nil {
		stats["cache"] = r.Cache.Stats()
	}
	return stats
}

func (r *Runtime) closeSources() {
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil {
			r.logger.Warnf("关闭缓存失败: %v", err)
		}
	}
	r.Pool.Close()
}

// Close 释放输出、缓存和节点连接
func (r *Runtime) Close() error {
	var err error
	if r.Analyzer != nil {
		err = r.Analyzer.Close()
	}
	r.closeSources()
	return err
}
