package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Market   MarketConfig   `mapstructure:"market"`
	Contest  ContestConfig  `mapstructure:"contest"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // json or console
}

// MarketConfig describes the trading session used to decide between cached and fresh prices.
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
	Open     string `mapstructure:"open"`  // HH:MM, inclusive
	Close    string `mapstructure:"close"` // HH:MM, inclusive
}

type ContestConfig struct {
	ActiveSymbolsURL string        `mapstructure:"active_symbols_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	CookieURL string        `mapstructure:"cookie_url"` // session cookie source for the quoteSummary crumb
	FastPath  string        `mapstructure:"fast_path"`  // "chart" or "financego"
}

type RefreshConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Workers      int           `mapstructure:"workers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults
	setDefaults(v)

	// 3. Map dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys so flat env vars reach nested structs
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "market.timezone", "market.open", "market.close")
	bindEnv(v, "contest.active_symbols_url", "contest.timeout")
	bindEnv(v, "upstream.base_url", "upstream.timeout", "upstream.user_agent", "upstream.cookie_url", "upstream.fast_path")
	bindEnv(v, "refresh.interval", "refresh.workers", "refresh.fetch_timeout")
	bindEnv(v, "redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.ttl")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8000")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")

	v.SetDefault("contest.active_symbols_url", "http://localhost:8080/api/contests/active-symbols")
	v.SetDefault("contest.timeout", 10*time.Second)

	v.SetDefault("upstream.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.user_agent", "Mozilla/5.0 (compatible; market-data-relay/1.0)")
	v.SetDefault("upstream.cookie_url", "https://fc.yahoo.com")
	v.SetDefault("upstream.fast_path", "chart")

	v.SetDefault("refresh.interval", 15*time.Second)
	v.SetDefault("refresh.workers", 8)
	v.SetDefault("refresh.fetch_timeout", 10*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_prices")
}

// Validate reports the first configuration problem that would prevent startup.
func (c *Config) Validate() error {
	if c.Contest.ActiveSymbolsURL == "" {
		return fmt.Errorf("contest active symbols url cannot be empty")
	}
	if c.Market.Timezone == "" {
		return fmt.Errorf("market timezone cannot be empty")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.Workers < 1 {
		return fmt.Errorf("refresh workers must be at least 1, got %d", c.Refresh.Workers)
	}
	switch c.Upstream.FastPath {
	case "chart", "financego":
	default:
		return fmt.Errorf("unknown upstream fast path %q", c.Upstream.FastPath)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
