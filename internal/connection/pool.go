package connection

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"addrstats/internal/config"
	"addrstats/internal/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// ChainClient 节点客户端需要提供的能力，*ethclient.Client 满足该接口
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Dialer 建立节点连接
type Dialer func(ctx context.Context, url string) (ChainClient, error)

// EthDialer 使用 ethclient 建立连接
func EthDialer(ctx context.Context, url string) (ChainClient, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ConnectionPool 多节点连接池，按优先级选择健康节点，失败时切换到下一个节点
type ConnectionPool struct {
	nodes       []*config.NodeConfig
	dial        Dialer
	logger      *logrus.Logger
	mu          sync.Mutex
	clients     map[string]ChainClient
	health      map[string]*nodeHealth
	cooldown    time.Duration
	dialTimeout time.Duration
}

type nodeHealth struct {
	failures       int
	lastError      string
	unhealthyUntil time.Time
	lastUsed       time.Time
}

// PoolOption 连接池选项
type PoolOption func(*ConnectionPool)

// WithDialer 替换连接方式
func WithDialer(dial Dialer) PoolOption {
	return func(cp *ConnectionPool) {
		cp.dial = dial
	}
}

// WithCooldown 节点失败后的冷却时间
func WithCooldown(d time.Duration) PoolOption {
	return func(cp *ConnectionPool) {
		cp.cooldown = d
	}
}

// NewConnectionPool 创建连接池，连接在首次使用时建立
func NewConnectionPool(nodes []*config.NodeConfig, logger *logrus.Logger, opts ...PoolOption) *ConnectionPool {
	sorted := make([]*config.NodeConfig, 0, len(nodes))
	for _, n := range nodes {
		if n != nil && n.URL != "" {
			sorted = append(sorted, n)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	cp := &ConnectionPool{
		nodes:       sorted,
		dial:        EthDialer,
		logger:      logger,
		clients:     make(map[string]ChainClient),
		health:      make(map[string]*nodeHealth),
		cooldown:    30 * time.Second,
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cp)
	}
	for _, n := range sorted {
		cp.health[n.Name] = &nodeHealth{}
	}
	return cp
}

// Size 配置的节点数
func (cp *ConnectionPool) Size() int {
	return len(cp.nodes)
}

// Do 依次在健康节点上执行 fn，直到成功。
// 所有节点都处于冷却期时，仍会按优先级尝试一遍。
func (cp *ConnectionPool) Do(ctx context.Context, operation string, fn func(ctx context.Context, client ChainClient) error) error {
	if len(cp.nodes) == 0 {
		return fmt.Errorf("没有配置RPC节点")
	}

	var lastErr error
	for _, node := range cp.candidates() {
		if err := ctx.Err(); err != nil {
			return err
		}

		client, err := cp.client(ctx, node)
		if err != nil {
			cp.markFailure(node.Name, err)
			lastErr = err
			continue
		}

		err = fn(ctx, client)
		if err == nil {
			cp.markSuccess(node.Name)
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		logging.NewRPCLogger(cp.logger, operation, node.URL).Debugf("节点 %s 调用失败: %v", node.Name, err)
		cp.markFailure(node.Name, err)
		cp.dropClient(node.Name)
		lastErr = err
	}

	return fmt.Errorf("所有节点执行 %s 失败: %w", operation, lastErr)
}

// candidates 健康节点在前，冷却中的节点在后
func (cp *ConnectionPool) candidates() []*config.NodeConfig {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	now := time.Now()
	healthy := make([]*config.NodeConfig, 0, len(cp.nodes))
	cooling := make([]*config.NodeConfig, 0)
	for _, n := range cp.nodes {
		if now.Before(cp.health[n.Name].unhealthyUntil) {
			cooling = append(cooling, n)
			continue
		}
		healthy = append(healthy, n)
	}
	return append(healthy, cooling...)
}

// client 获取或建立节点连接
func (cp *ConnectionPool) client(ctx context.Context, node *config.NodeConfig) (ChainClient, error) {
	cp.mu.Lock()
	if c, ok := cp.clients[node.Name]; ok {
		cp.mu.Unlock()
		return c, nil
	}
	cp.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, cp.dialTimeout)
	defer cancel()

	c, err := cp.dial(dialCtx, node.URL)
	if err != nil {
		return nil, fmt.Errorf("连接节点 %s 失败: %w", node.Name, err)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	if existing, ok := cp.clients[node.Name]; ok {
		c.Close()
		return existing, nil
	}
	cp.clients[node.Name] = c
	cp.logger.Infof("节点 %s 连接已建立", node.Name)
	return c, nil
}

func (cp *ConnectionPool) dropClient(name string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if c, ok := cp.clients[name]; ok {
		c.Close()
		delete(cp.clients, name)
	}
}

func (cp *ConnectionPool) markSuccess(name string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	h := cp.health[name]
	h.failures = 0
	h.lastError = ""
	h.unhealthyUntil = time.Time{}
	h.lastUsed = time.Now()
}

func (cp *ConnectionPool) markFailure(name string, err error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	h := cp.health[name]
	h.failures++
	h.lastError = err.Error()
	h.unhealthyUntil = time.Now().Add(cp.cooldown)
	cp.logger.Warnf("节点 %s 标记为不健康（连续失败 %d 次）: %v", name, h.failures, err)
}

// GetStats 获取连接池统计信息
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	now := time.Now()
	stats := make(map[string]interface{}, len(cp.nodes))
	for _, n := range cp.nodes {
		h := cp.health[n.Name]
		_, connected := cp.clients[n.Name]
		nodeStats := map[string]interface{}{
			"priority":   n.Priority,
			"connected":  connected,
			"is_healthy": !now.Before(h.unhealthyUntil),
			"failures":   h.failures,
		}
		if h.lastError != "" {
			nodeStats["last_error"] = h.lastError
		}
		if !h.lastUsed.IsZero() {
			nodeStats["last_used"] = h.lastUsed.Format(time.RFC3339)
		}
		stats[n.Name] = nodeStats
	}

	return stats
}

// Close 关闭所有连接
func (cp *ConnectionPool) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for name, c := range cp.clients {
		c.Close()
		delete(cp.clients, name)
	}
	cp.logger.Info("连接池已关闭")
	return nil
}
