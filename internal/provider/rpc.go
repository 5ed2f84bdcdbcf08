package provider

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/connection"
	"addrstats/internal/errors"
	"addrstats/internal/logging"
	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// RPCName 节点扫描数据源名称
const RPCName = "rpc"

// RPCProvider 通过节点 RPC 扫描最近区块查找地址交易，同时提供余额查询
type RPCProvider struct {
	cfg    *config.RPCConfig
	pool   *connection.ConnectionPool
	signer types.Signer
	logger *logrus.Entry
}

// NewRPCProvider 创建节点数据源
func NewRPCProvider(cfg *config.RPCConfig, chainID int64, pool *connection.ConnectionPool, logger *logrus.Logger) *RPCProvider {
	return &RPCProvider{
		cfg:    cfg,
		pool:   pool,
		signer: types.LatestSignerForChainID(big.NewInt(chainID)),
		logger: logging.NewProviderLogger(logger, RPCName),
	}
}

// Name 数据源名称
func (p *RPCProvider) Name() string {
	return RPCName
}

// FetchTransactions 从最新区块向前扫描 scan_blocks 个区块，
// 匹配到 min_transactions_to_stop 条交易后提前结束。
// 扫描超时时返回已找到的部分结果。
func (p *RPCProvider) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	scanCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var latest uint64
	err := p.pool.Do(scanCtx, "eth_blockNumber", func(ctx context.Context, c connection.ChainClient) error {
		var callErr error
		latest, callErr = c.BlockNumber(ctx)
		return callErr
	})
	if err != nil {
		return nil, p.wrap(err, "获取最新区块高度失败", address)
	}

	start := time.Now()
	matches := make([]models.RawTransaction, 0)
	scanned := 0
	window := p.workers()

	// 按窗口并发拉取区块，窗口内仍按从新到旧的顺序匹配
scan:
	for offset := 0; offset < p.cfg.ScanBlocks && uint64(offset) <= latest; offset += window {
		if scanCtx.Err() != nil {
			break
		}

		numbers := make([]uint64, 0, window)
		for i := offset; i < offset+window && i < p.cfg.ScanBlocks && uint64(i) <= latest; i++ {
			numbers = append(numbers, latest-uint64(i))
		}

		for _, block := range p.fetchWindow(scanCtx, numbers) {
			if block == nil {
				continue
			}
			scanned++
			matches = append(matches, p.matchBlock(scanCtx, block, address)...)

			if len(matches) >= p.cfg.MinTransactionsToStop {
				break scan
			}
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if stderrors.Is(scanCtx.Err(), context.DeadlineExceeded) {
		p.logger.Warnf("区块扫描超时，返回部分结果（已扫描 %d 个区块）", scanned)
		markPartial(ctx, "区块扫描超时")
	}

	p.logger.WithFields(logrus.Fields{
		"latest_block":   latest,
		"scanned_blocks": scanned,
		"matched":        len(matches),
		"duration":       time.Since(start).String(),
	}).Info("区块扫描完成")

	return tagSource(matches, RPCName), nil
}

// BalanceAt 查询最新区块的余额
func (p *RPCProvider) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var balance *big.Int
	err := p.pool.Do(ctx, "eth_getBalance", func(ctx context.Context, c connection.ChainClient) error {
		var callErr error
		balance, callErr = c.BalanceAt(ctx, address, nil)
		return callErr
	})
	if err != nil {
		return nil, p.wrap(err, "查询余额失败", address)
	}
	return balance, nil
}

// workers 并发拉取区块的协程数
func (p *RPCProvider) workers() int {
	if p.cfg.Workers < 1 {
		return 1
	}
	return p.cfg.Workers
}

// fetchWindow 并发拉取一组区块，结果与 numbers 顺序一致，拉取失败的位置为 nil
func (p *RPCProvider) fetchWindow(ctx context.Context, numbers []uint64) []*types.Block {
	blocks := make([]*types.Block, len(numbers))

	taskChan := make(chan int, len(numbers))
	for i := range numbers {
		taskChan <- i
	}
	close(taskChan)

	var wg sync.WaitGroup
	for w := 0; w < p.workers() && w < len(numbers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				if ctx.Err() != nil {
					return
				}
				block, err := p.block(ctx, numbers[i])
				if err != nil {
					p.logger.Debugf("跳过区块 %d: %v", numbers[i], err)
					continue
				}
				blocks[i] = block
			}
		}()
	}
	wg.Wait()

	return blocks
}

// matchBlock 找出区块中与地址相关的交易并补全回执信息
func (p *RPCProvider) matchBlock(ctx context.Context, block *types.Block, address common.Address) []models.RawTransaction {
	var matches []models.RawTransaction
	for _, tx := range block.Transactions() {
		from, err := types.Sender(p.signer, tx)
		if err != nil {
			continue
		}
		if from != address && (tx.To() == nil || *tx.To() != address) {
			continue
		}

		receipt, err := p.receipt(ctx, tx.Hash())
		if err != nil {
			p.logger.Debugf("获取交易回执失败 %s: %v", tx.Hash().Hex(), err)
		}

		raw := models.FromEthereumTransaction(tx, receipt, from, block.Time())
		if raw.BlockNumber == "" {
			raw.BlockNumber = block.Number().String()
		}
		matches = append(matches, raw)
	}
	return matches
}

func (p *RPCProvider) block(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := p.pool.Do(ctx, "eth_getBlockByNumber", func(ctx context.Context, c connection.ChainClient) error {
		var callErr error
		block, callErr = c.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		return callErr
	})
	return block, err
}

func (p *RPCProvider) receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := p.pool.Do(ctx, "eth_getTransactionReceipt", func(ctx context.Context, c connection.ChainClient) error {
		var callErr error
		receipt, callErr = c.TransactionReceipt(ctx, hash)
		return callErr
	})
	return receipt, err
}

func (p *RPCProvider) wrap(err error, message string, address common.Address) error {
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.WrapError(err, errors.ErrorTypeRPC, errors.SeverityMedium, "RPC_FAILED", message).
		WithComponent(RPCName).
		WithAddress(address.Hex())
}
