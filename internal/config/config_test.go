package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PLAZA_GATEWAY_DRIVER", "memory")

	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.Cache.Backend != "lru" || cfg.Cache.Size != 500 {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if cfg.Refresh.Interval != 5*time.Second {
		t.Errorf("Expected refresh interval 5s, got %v", cfg.Refresh.Interval)
	}
	if cfg.Aggregate.Strategy != "fanout" || cfg.Aggregate.Concurrency != 8 {
		t.Errorf("Expected fanout with concurrency 8, got %+v", cfg.Aggregate)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://demo.gateway.example/")
	t.Setenv("GATEWAY_ANON_KEY", "anon")
	t.Setenv("PORT", "9000")
	t.Setenv("PLAZA_SITE_URL", "https://plaza.example/")
	t.Setenv("PLAZA_CACHE_TTL", "1m")
	t.Setenv("PLAZA_AGGREGATE_STRATEGY", "grouped")

	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}
	if cfg.Gateway.URL != "https://demo.gateway.example/" || cfg.Gateway.AnonKey != "anon" {
		t.Errorf("Expected gateway settings from plain env, got %+v", cfg.Gateway)
	}
	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.SiteURL != "https://plaza.example" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.SiteURL)
	}
	if cfg.Cache.TTL != time.Minute || cfg.Aggregate.Strategy != "grouped" {
		t.Errorf("Expected prefixed overrides, got ttl=%v strategy=%s", cfg.Cache.TTL, cfg.Aggregate.Strategy)
	}
}

func TestPrefixedBeatsPlain(t *testing.T) {
	t.Setenv("PLAZA_GATEWAY_DRIVER", "memory")
	t.Setenv("PORT", "9000")
	t.Setenv("PLAZA_PORT", "9100")

	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Expected PLAZA_PORT to win, got %s", cfg.Port)
	}
}

func TestYAMLConfig(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yaml := `
gateway:
  driver: sql
  database_url: sqlite:plaza.db
cache:
  backend: redis
refresh:
  interval: 2s
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper failed: %v", err)
	}
	if cfg.Gateway.Driver != "sql" || cfg.Gateway.DatabaseURL != "sqlite:plaza.db" || cfg.Cache.Backend != "redis" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Refresh.Interval != 2*time.Second {
		t.Errorf("Expected 2s, got %v", cfg.Refresh.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"rest without url", map[string]string{"PLAZA_GATEWAY_DRIVER": "rest"}},
		{"unknown driver", map[string]string{"PLAZA_GATEWAY_DRIVER": "mongo"}},
		{"unknown cache", map[string]string{"PLAZA_GATEWAY_DRIVER": "memory", "PLAZA_CACHE_BACKEND": "memcached"}},
		{"unknown strategy", map[string]string{"PLAZA_GATEWAY_DRIVER": "memory", "PLAZA_AGGREGATE_STRATEGY": "magic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromViper(viper.New()); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}
