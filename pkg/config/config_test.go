package config_test

import (
	"testing"
	"time"

	"github.com/shubham-shewale/market-data-relay/pkg/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Refresh.Interval != 15*time.Second {
		t.Errorf("Expected 15s refresh interval, got %s", cfg.Refresh.Interval)
	}
	if cfg.Market.Timezone != "Asia/Kolkata" {
		t.Errorf("Expected Asia/Kolkata, got %s", cfg.Market.Timezone)
	}
	if cfg.Market.Open != "09:15" || cfg.Market.Close != "15:30" {
		t.Errorf("Unexpected market window %s-%s", cfg.Market.Open, cfg.Market.Close)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Error("Mirrors should be disabled by default")
	}
	if cfg.Upstream.CookieURL != "https://fc.yahoo.com" {
		t.Errorf("Expected default session cookie url, got %s", cfg.Upstream.CookieURL)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", ":9999")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("REFRESH_WORKERS", "3")
	t.Setenv("CONTEST_ACTIVE_SYMBOLS_URL", "http://contest.local/active")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("UPSTREAM_COOKIE_URL", "http://yahoo.local/cookie")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.App.Port != ":9999" {
		t.Errorf("Expected :9999, got %s", cfg.App.Port)
	}
	if cfg.Refresh.Interval != 30*time.Second {
		t.Errorf("Expected 30s, got %s", cfg.Refresh.Interval)
	}
	if cfg.Refresh.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Refresh.Workers)
	}
	if cfg.Upstream.CookieURL != "http://yahoo.local/cookie" {
		t.Errorf("Expected cookie url override, got %s", cfg.Upstream.CookieURL)
	}
	if cfg.Contest.ActiveSymbolsURL != "http://contest.local/active" {
		t.Errorf("Unexpected contest url %s", cfg.Contest.ActiveSymbolsURL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			Market:   config.MarketConfig{Timezone: "Asia/Kolkata"},
			Contest:  config.ContestConfig{ActiveSymbolsURL: "http://x"},
			Upstream: config.UpstreamConfig{FastPath: "chart"},
			Refresh:  config.RefreshConfig{Interval: time.Second, Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"valid", func(c *config.Config) {}, false},
		{"empty contest url", func(c *config.Config) { c.Contest.ActiveSymbolsURL = "" }, true},
		{"zero interval", func(c *config.Config) { c.Refresh.Interval = 0 }, true},
		{"no workers", func(c *config.Config) { c.Refresh.Workers = 0 }, true},
		{"unknown fast path", func(c *config.Config) { c.Upstream.FastPath = "bloomberg" }, true},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "debug", Encoding: "console"}); err != nil {
		t.Errorf("Expected console logger, got %v", err)
	}
	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}
