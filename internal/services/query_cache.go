package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"plaza/internal/cache"
	"plaza/internal/metrics"
)

// 缓存失败只记录日志，不影响回源读取

// queryCache 在 cache.Store 之上记录每个 key 的失效次数。
// 读取前记下 generation，期间发生过失效的结果不会写回为新鲜数据。
type queryCache struct {
	store cache.Store
	log   *zap.SugaredLogger

	mu   sync.Mutex
	gens map[cache.Key]uint64
}

func newQueryCache(store cache.Store, log *zap.SugaredLogger) *queryCache {
	return &queryCache{store: store, log: log, gens: make(map[cache.Key]uint64)}
}

// generation 回源前调用，结果交给 saveCached
func (q *queryCache) generation(key cache.Key) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gens[key]
}

func (q *queryCache) changedSince(key cache.Key, gen uint64) bool {
	return q.generation(key) != gen
}

func loadCached[T any](ctx context.Context, q *queryCache, key cache.Key) (T, bool) {
	var zero T
	if q.store == nil {
		return zero, false
	}
	e, found, err := q.store.Get(ctx, key)
	switch {
	case err != nil:
		q.log.Warnf("query cache get %s: %v", key, err)
		metrics.ObserveCacheLookup(key.Entity, "error")
		return zero, false
	case !found:
		metrics.ObserveCacheLookup(key.Entity, "miss")
		return zero, false
	case e.Stale:
		metrics.ObserveCacheLookup(key.Entity, "stale")
		return zero, false
	}
	v, err := cache.Decode[T](key, e)
	if err != nil {
		q.log.Warnf("query cache get %s: %v", key, err)
		metrics.ObserveCacheLookup(key.Entity, "error")
		return zero, false
	}
	metrics.ObserveCacheLookup(key.Entity, "hit")
	return v, true
}

// saveCached 写回 gen 时刻开始读取的结果；gen 之后有过失效则丢弃
func saveCached[T any](ctx context.Context, q *queryCache, key cache.Key, gen uint64, v T) {
	if q.store == nil || q.changedSince(key, gen) {
		return
	}
	if err := cache.Save(ctx, q.store, key, v); err != nil {
		q.log.Warnf("query cache set %s: %v", key, err)
		return
	}
	// 写入与并发失效交错时，补一次失效
	if q.changedSince(key, gen) {
		q.markStale(ctx, key)
	}
}

// invalidate 先递增 generation 再标记 stale
func (q *queryCache) invalidate(ctx context.Context, keys ...cache.Key) {
	q.mu.Lock()
	for _, key := range keys {
		q.gens[key]++
	}
	q.mu.Unlock()

	if q.store == nil {
		return
	}
	for _, key := range keys {
		q.markStale(ctx, key)
	}
}

func (q *queryCache) markStale(ctx context.Context, key cache.Key) {
	if err := q.store.Invalidate(ctx, key); err != nil {
		q.log.Warnf("query cache invalidate %s: %v", key, err)
	}
}
