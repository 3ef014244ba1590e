package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// item 包装缓存数据和过期时间
type item struct {
	Data      json.RawMessage
	ExpiresAt time.Time
	Stale     bool
}

// LRU 进程内缓存；mu 保证 Invalidate 的 Peek/Add 不会覆盖并发 Set 写入的新数据
type LRU struct {
	mu  sync.Mutex
	lru *lru.Cache[string, item]
	ttl ttls
	now func() time.Time
}

// NewLRU 创建容量为 size 的缓存，过期的条目视为 stale
func NewLRU(size int, ttl time.Duration, opts ...Option) (*LRU, error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &LRU{lru: l, ttl: newTTLs(ttl, opts), now: time.Now}, nil
}

func (c *LRU) Get(_ context.Context, key Key) (Entry, bool, error) {
	val, ok := c.lru.Get(key.String())
	if !ok {
		return Entry{}, false, nil
	}
	stale := val.Stale || !c.now().Before(val.ExpiresAt)
	return Entry{Data: val.Data, Stale: stale}, true, nil
}

func (c *LRU) Set(_ context.Context, key Key, data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key.String(), item{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl.of(key)),
	})
	return nil
}

// Invalidate 标记为 stale，保留数据
func (c *LRU) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	val, ok := c.lru.Peek(k)
	if !ok {
		return nil
	}
	val.Stale = true
	c.lru.Add(k, val)
	return nil
}
