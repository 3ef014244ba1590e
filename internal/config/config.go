// Package config loads runtime settings from .env, an optional app.yaml and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	SiteURL       string
	SessionSecret string
	CORSOrigins   []string

	Gateway   GatewayConfig
	Cache     CacheConfig
	Refresh   RefreshConfig
	Aggregate AggregateConfig
	Log       LogConfig
}

type GatewayConfig struct {
	Driver      string // rest | sql | memory
	URL         string
	AnonKey     string
	JWTSecret   string
	DatabaseURL string
	BlobDir     string
	Timeout     time.Duration
}

type CacheConfig struct {
	Backend   string // lru | redis
	Size      int
	TTL       time.Duration
	RedisAddr string
}

type RefreshConfig struct {
	Interval time.Duration
}

type AggregateConfig struct {
	Strategy    string // fanout | grouped
	Concurrency int
}

type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("session_secret", "secret")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("gateway.driver", "rest")
	v.SetDefault("gateway.blob_dir", "./data/blobs")
	v.SetDefault("gateway.timeout", "30s")

	v.SetDefault("cache.backend", "lru")
	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("refresh.interval", "5s")

	v.SetDefault("aggregate.strategy", "fanout")
	v.SetDefault("aggregate.concurrency", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// 兼容不带前缀的环境变量名
var plainEnv = map[string]string{
	"port":                 "PORT",
	"site_url":             "SITE_URL",
	"session_secret":       "SESSION_SECRET",
	"gateway.url":          "GATEWAY_URL",
	"gateway.anon_key":     "GATEWAY_ANON_KEY",
	"gateway.jwt_secret":   "GATEWAY_JWT_SECRET",
	"gateway.database_url": "DATABASE_URL",
	"cache.redis_addr":     "REDIS_ADDR",
}

// Load 读取 .env（可选）、app.yaml（可选）和环境变量
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName("app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read app.yaml: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper 在给定的 viper 实例上绑定环境变量并解析配置
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("PLAZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range plainEnv {
		prefixed := "PLAZA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:          v.GetString("port"),
		SiteURL:       strings.TrimRight(v.GetString("site_url"), "/"),
		SessionSecret: v.GetString("session_secret"),
		CORSOrigins:   v.GetStringSlice("cors_origins"),
		Gateway: GatewayConfig{
			Driver:      v.GetString("gateway.driver"),
			URL:         v.GetString("gateway.url"),
			AnonKey:     v.GetString("gateway.anon_key"),
			JWTSecret:   v.GetString("gateway.jwt_secret"),
			DatabaseURL: v.GetString("gateway.database_url"),
			BlobDir:     v.GetString("gateway.blob_dir"),
			Timeout:     v.GetDuration("gateway.timeout"),
		},
		Cache: CacheConfig{
			Backend:   v.GetString("cache.backend"),
			Size:      v.GetInt("cache.size"),
			TTL:       v.GetDuration("cache.ttl"),
			RedisAddr: v.GetString("cache.redis_addr"),
		},
		Refresh: RefreshConfig{
			Interval: v.GetDuration("refresh.interval"),
		},
		Aggregate: AggregateConfig{
			Strategy:    v.GetString("aggregate.strategy"),
			Concurrency: v.GetInt("aggregate.concurrency"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Gateway.Driver {
	case "rest":
		if c.Gateway.URL == "" {
			return errors.New("GATEWAY_URL is required for the rest gateway")
		}
	case "sql", "memory":
	default:
		return fmt.Errorf("unknown gateway driver %q", c.Gateway.Driver)
	}
	switch c.Cache.Backend {
	case "lru", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Aggregate.Strategy {
	case "fanout", "grouped":
	default:
		return fmt.Errorf("unknown aggregate strategy %q", c.Aggregate.Strategy)
	}
	return nil
}
