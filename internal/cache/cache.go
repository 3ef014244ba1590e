// Package cache is the query-result cache that sits between the services
// and the gateway. Entries are keyed by entity type and id and are never
// served once stale: invalidation only flags them so the next read refetches.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key 例如 comments:42、votes:42、posts:0
type Key struct {
	Entity string
	ID     int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Entity, k.ID)
}

// Entry 缓存条目，Stale 表示已失效需要重新获取
type Entry struct {
	Data  json.RawMessage
	Stale bool
}

type Store interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Set(ctx context.Context, key Key, data json.RawMessage) error
	Invalidate(ctx context.Context, key Key) error
}

// Load 读取未失效的缓存并解码到 T，ok 为 false 表示需要回源
func Load[T any](ctx context.Context, s Store, key Key) (v T, ok bool, err error) {
	e, found, err := s.Get(ctx, key)
	if err != nil || !found || e.Stale {
		return v, false, err
	}
	v, err = Decode[T](key, e)
	return v, err == nil, err
}

// Decode 解码条目数据，不检查 Stale
func Decode[T any](key Key, e Entry) (v T, err error) {
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return v, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return v, nil
}

// Save 编码并写入缓存
func Save[T any](ctx context.Context, s Store, key Key, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

const defaultTTL = 30 * time.Second

// Option 缓存构造选项
type Option func(*ttls)

// ttls 默认 TTL 和按实体类型覆盖的 TTL
type ttls struct {
	fallback  time.Duration
	perEntity map[string]time.Duration
}

// WithEntityTTL 为某类实体单独设置 TTL，例如评论的 TTL 不超过轮询间隔
func WithEntityTTL(entity string, ttl time.Duration) Option {
	return func(t *ttls) {
		if ttl > 0 {
			t.perEntity[entity] = ttl
		}
	}
}

func newTTLs(ttl time.Duration, opts []Option) ttls {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	t := ttls{fallback: ttl, perEntity: map[string]time.Duration{}}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t ttls) of(key Key) time.Duration {
	if ttl, ok := t.perEntity[key.Entity]; ok {
		return ttl
	}
	return t.fallback
}
