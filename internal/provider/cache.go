package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"addrstats/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultCachePath 默认缓存数据库路径
	DefaultCachePath = "./data/cache.db"

	// TransactionsBucket 交易缓存存储桶
	TransactionsBucket = "transactions"
)

// cacheEntry 缓存的单次拉取结果
type cacheEntry struct {
	StoredAt     time.Time               `json:"stored_at"`
	Source       string                  `json:"source"`
	Transactions []models.RawTransaction `json:"transactions"`
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache 基于 BoltDB 的数据源响应缓存，按 (数据源, 地址) 存储
type Cache struct {
	db     *bolt.DB
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
	path   string

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewCache 打开缓存数据库。ttl <= 0 表示永不过期。
func NewCache(path string, ttl time.Duration, logger *logrus.Logger) (*Cache, error) {
	if path == "" {
		path = DefaultCachePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开缓存数据库失败: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(TransactionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化缓存存储桶失败: %w", err)
	}

	logger.Infof("数据源缓存已启用，路径: %s，TTL: %v", path, ttl)
	return &Cache{
		db:     db,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		path:   path,
	}, nil
}

func cacheKey(provider string, address common.Address) []byte {
	return []byte(provider + "/" + address.Hex())
}

// Get 读取未过期的缓存
func (c *Cache) Get(provider string, address common.Address) ([]models.RawTransaction, bool) {
	var entry *cacheEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(TransactionsBucket)).Get(cacheKey(provider, address))
		if data == nil {
			return nil
		}
		entry = &cacheEntry{}
		return json.Unmarshal(data, entry)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warnf("读取缓存失败: %v", err)
		c.misses++
		return nil, false
	}
	if entry == nil || c.expired(entry) {
		c.misses++
		return nil, false
	}

	c.hits++
	return tagSource(entry.Transactions, entry.Source), true
}

// Put 写入缓存
func (c *Cache) Put(provider string, address common.Address, txs []models.RawTransaction) error {
	entry := cacheEntry{
		StoredAt:     c.now(),
		Transactions: txs,
	}
	if len(txs) > 0 {
		entry.Source = txs[0].Source
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(TransactionsBucket)).Put(cacheKey(provider, address), data)
	})
}

func (c *Cache) expired(entry *cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(entry.StoredAt) > c.ttl
}

// PurgeExpired 删除过期条目，返回删除数量
func (c *Cache) PurgeExpired() (int, error) {
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(TransactionsBucket))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || c.expired(&entry) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Stats 获取缓存统计
func (c *Cache) Stats() CacheStats {
	entries := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		entries = tx.Bucket([]byte(TransactionsBucket)).Stats().KeyN
		return nil
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: entries}
}

// Close 关闭缓存数据库
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Infof("缓存数据库已关闭: %s", c.path)
	return c.db.Close()
}

// Wrap 为数据源加上缓存
func (c *Cache) Wrap(inner TransactionProvider) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c}
}

// CachedProvider 带缓存的数据源，只缓存成功且完整的结果
type CachedProvider struct {
	inner TransactionProvider
	cache *Cache
}

// Name 返回被包装数据源的名称
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// FetchTransactions 优先读取缓存，未命中时访问数据源并回写
func (p *CachedProvider) FetchTransactions(ctx context.Context, address common.Address) ([]models.RawTransaction, error) {
	if txs, ok := p.cache.Get(p.inner.Name(), address); ok {
		p.cache.logger.Debugf("缓存命中: %s", address.Hex())
		return txs, nil
	}

	ctx, info := WithFetchInfo(ctx)
	txs, err := p.inner.FetchTransactions(ctx, address)
	if err != nil {
		return nil, err
	}

	if partial, reason := info.Partial(); partial {
		p.cache.logger.Debugf("结果不完整，不写入缓存: %s (%s)", address.Hex(), reason)
		return txs, nil
	}

	if err := p.cache.Put(p.inner.Name(), address, txs); err != nil {
		p.cache.logger.Warnf("写入缓存失败: %v", err)
	}
	return txs, nil
}
