// Package app wires configuration into gateways, caches and services for the
// plaza binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plaza/internal/auth"
	"plaza/internal/cache"
	"plaza/internal/config"
	"plaza/internal/gateway"
	"plaza/internal/gateway/memstore"
	"plaza/internal/gateway/rest"
	"plaza/internal/gateway/sqlstore"
	"plaza/internal/models"
	"plaza/internal/services"
)

type Gateway struct {
	Records gateway.Records
	Blobs   gateway.Blobs
	Auth    gateway.Auth
}

func restClient(cfg *config.Config, logger *zap.Logger, persistSession bool) *rest.Client {
	return rest.New(rest.Config{
		URL:            cfg.Gateway.URL,
		AnonKey:        cfg.Gateway.AnonKey,
		RedirectURL:    cfg.SiteURL + "/auth/callback",
		Timeout:        cfg.Gateway.Timeout,
		PersistSession: persistSession,
	}, logger)
}

func devAuth(cfg *config.Config) *memstore.Store {
	return memstore.New(memstore.WithDevUser(cfg.SiteURL+"/auth/callback", models.Identity{DisplayName: "dev"}))
}

// OpenGateway 按 gateway.driver 创建网关。persistSession 只应在单用户进程中为 true
func OpenGateway(cfg *config.Config, logger *zap.Logger, persistSession bool) (*Gateway, error) {
	switch cfg.Gateway.Driver {
	case "rest":
		client := restClient(cfg, logger, persistSession)
		return &Gateway{Records: client, Blobs: client, Auth: client}, nil

	case "sql":
		store, err := sqlstore.Open(cfg.Gateway.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		gw := &Gateway{
			Records: store,
			Blobs:   &sqlstore.DiskBlobs{Dir: cfg.Gateway.BlobDir, BaseURL: cfg.SiteURL + "/files"},
		}
		if cfg.Gateway.URL != "" {
			gw.Auth = restClient(cfg, logger, persistSession)
		} else {
			logger.Warn("GATEWAY_URL not set, using the built-in dev login")
			gw.Auth = devAuth(cfg)
		}
		return gw, nil

	case "memory":
		store := devAuth(cfg)
		return &Gateway{Records: store, Blobs: store, Auth: store}, nil
	}
	return nil, fmt.Errorf("unknown gateway driver %q", cfg.Gateway.Driver)
}

// CacheOptions 评论条目的 TTL 不超过轮询间隔，其他客户端写入的评论在下一次轮询可见
func CacheOptions(cfg *config.Config) []cache.Option {
	ttl := cfg.Cache.TTL
	if interval := cfg.Refresh.Interval; interval > 0 && (ttl <= 0 || interval < ttl) {
		ttl = interval
	}
	return []cache.Option{cache.WithEntityTTL(gateway.Comments, ttl)}
}

// OpenCache 按 cache.backend 创建查询缓存
func OpenCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	opts := CacheOptions(cfg)
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		pong, err := rdb.Ping(ctx).Result()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Sugar().Infof("Successfully connected to Redis: %s", pong)
		return cache.NewRedis(rdb, cfg.Cache.TTL, opts...), nil
	}
	return cache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL, opts...)
}

// Resolver 配置了 JWT 密钥时本地校验，否则请求网关认证服务
func Resolver(cfg *config.Config, gw *Gateway) auth.Resolver {
	if cfg.Gateway.JWTSecret != "" {
		return auth.NewVerifier(cfg.Gateway.JWTSecret)
	}
	return auth.GatewayResolver{Auth: gw.Auth}
}

type Services struct {
	Comments    *services.CommentService
	Votes       *services.VoteService
	Posts       *services.PostService
	Communities *services.CommunityService
	Refresher   *services.Refresher
}

func NewServices(cfg *config.Config, gw *Gateway, store cache.Store, logger *zap.Logger) *Services {
	counter := services.NewAggregateCounter(gw.Records, services.AggregateStrategy(cfg.Aggregate.Strategy), cfg.Aggregate.Concurrency, logger)
	comments := services.NewCommentService(gw.Records, store, logger)
	return &Services{
		Comments:    comments,
		Votes:       services.NewVoteService(gw.Records, store, logger),
		Posts:       services.NewPostService(gw.Records, gw.Blobs, counter, logger),
		Communities: services.NewCommunityService(gw.Records, store, logger),
		Refresher:   services.NewRefresher(comments, cfg.Refresh.Interval, logger),
	}
}
