package cache

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache 基于内存的 TTL 缓存，容量有限，支持并发读写。
// 条目由缓存独占持有，调用方不得原地修改取回的值。
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxKeys    int
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	done       chan struct{}
	closeOnce  sync.Once
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Options 缓存配置
type Options struct {
	DefaultTTL  time.Duration
	CheckPeriod time.Duration
	MaxKeys     int
}

// Stats 缓存运行统计（仅用于观测）
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Keys    int    `json:"keys"`
	HitRate string `json:"hitRate"`
}

// New 创建缓存实例并启动后台清理
func New(opts Options) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.CheckPeriod <= 0 {
		opts.CheckPeriod = time.Minute
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 1000
	}

	c := &Cache{
		entries:    make(map[string]entry),
		maxKeys:    opts.MaxKeys,
		defaultTTL: opts.DefaultTTL,
		done:       make(chan struct{}),
	}
	go c.janitor(opts.CheckPeriod)
	return c
}

// Key 生成确定性的缓存键：类型、引擎、规范化查询与选项指纹。
// 选项按键名排序序列化，传入顺序不影响结果。
func Key(searchType, engineName, query string, opts map[string]any) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, opts[name]))
	}

	return searchType + ":" + engineName + ":" + normalized + ":" + strings.Join(parts, "&")
}

// Get 读取缓存值，过期条目按未命中处理并顺手删除
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		log.Printf("📭 Cache MISS: %s", truncKey(key))
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		log.Printf("📭 Cache MISS: %s", truncKey(key))
		return nil, false
	}

	c.hits++
	log.Printf("📦 Cache HIT: %s", truncKey(key))
	return e.value, true
}

// Set 写入缓存值；ttl <= 0 时使用默认 TTL。
// 容量已满时先清理过期条目，仍然满则随机淘汰一条（尽力而为，不保证顺序）。
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxKeys {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxKeys {
			for k := range c.entries {
				delete(c.entries, k)
				break
			}
		}
	}

	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	log.Printf("💾 Cached: %s (TTL: %ds)", truncKey(key), int(ttl.Seconds()))
}

// Delete 删除指定键
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear 清空全部条目
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	log.Printf("🗑️ Cache cleared")
}

// Stats 返回命中统计
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := "0%"
	if total > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(c.hits)/float64(total)*100)
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Keys:    len(c.entries),
		HitRate: rate,
	}
}

// Close 停止后台清理
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// janitor 周期性清理过期条目
func (c *Cache) janitor(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

func truncKey(key string) string {
	if len(key) > 50 {
		return key[:50] + "..."
	}
	return key
}
