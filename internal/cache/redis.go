package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 多实例部署时共享的缓存，过期由 redis 负责，过期即视为未命中
type Redis struct {
	client *redis.Client
	prefix string
	ttl    ttls
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Stale bool            `json:"stale"`
}

func NewRedis(client *redis.Client, ttl time.Duration, opts ...Option) *Redis {
	return &Redis{client: client, prefix: "plaza:query:", ttl: newTTLs(ttl, opts)}
}

func (c *Redis) key(key Key) string {
	return c.prefix + key.String()
}

func (c *Redis) Get(ctx context.Context, key Key) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, false, err
	}
	return Entry{Data: env.Data, Stale: env.Stale}, true, nil
}

func (c *Redis) Set(ctx context.Context, key Key, data json.RawMessage) error {
	raw, err := json.Marshal(envelope{Data: data})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, c.ttl.of(key)).Err()
}

// Invalidate 标记为 stale 并保留剩余 TTL
func (c *Redis) Invalidate(ctx context.Context, key Key) error {
	e, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	raw, err := json.Marshal(envelope{Data: e.Data, Stale: true})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, redis.KeepTTL).Err()
}
