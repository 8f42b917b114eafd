package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/webguard/webguard/internal/domain"
)

type ServerCfg struct {
	Addr           string   `mapstructure:"addr"`
	PublicAPIKeys  []string `mapstructure:"public_api_keys"`
	AdminAPIKeys   []string `mapstructure:"admin_api_keys"`
	PublicRPM      int      `mapstructure:"public_rpm"`
	PublicBurst    int      `mapstructure:"public_burst"`
	AdminRPM       int      `mapstructure:"admin_rpm"`
	AdminBurst     int      `mapstructure:"admin_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogCfg struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

type DBCfg struct {
	// Driver is sqlite, postgres or memory.
	Driver string `mapstructure:"driver"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `mapstructure:"dsn"`
}

type SchedCfg struct {
	Tick                time.Duration `mapstructure:"tick"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"`
	Concurrency         int           `mapstructure:"concurrency"`
	DefaultIntervalSec  int           `mapstructure:"default_interval_sec"`
	MinIntervalSec      int           `mapstructure:"min_interval_sec"`
	StoreRetryAttempts  int           `mapstructure:"store_retry_attempts"`
	StoreRetryBackoffMS int           `mapstructure:"store_retry_backoff_ms"`
}

type StatusCfg struct {
	LatencyWarnMS int64 `mapstructure:"latency_warn_ms"`
	RecentWindow  int   `mapstructure:"recent_window"`
	UptimeWindow  int   `mapstructure:"uptime_window"`
}

type NotifyCfg struct {
	Cooldown         time.Duration `mapstructure:"cooldown"`
	SlackWebhook     string        `mapstructure:"slack_webhook"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramChatID   string        `mapstructure:"telegram_chat_id"`
}

type Config struct {
	Server ServerCfg `mapstructure:"server"`
	Log    LogCfg    `mapstructure:"log"`
	DB     DBCfg     `mapstructure:"db"`
	Sched  SchedCfg  `mapstructure:"sched"`
	Status StatusCfg `mapstructure:"status"`
	Notify NotifyCfg `mapstructure:"notify"`
}

// Load reads an optional YAML file and environment overrides
// (SERVER_ADDR, DB_DRIVER, SCHED_PROBE_TIMEOUT, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.public_rpm", 240)
	v.SetDefault("server.public_burst", 60)
	v.SetDefault("server.admin_rpm", 120)
	v.SetDefault("server.admin_burst", 30)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/webguard.db")

	v.SetDefault("sched.tick", "1s")
	v.SetDefault("sched.probe_timeout", "10s")
	v.SetDefault("sched.concurrency", 8)
	v.SetDefault("sched.default_interval_sec", 300)
	v.SetDefault("sched.min_interval_sec", 60)
	v.SetDefault("sched.store_retry_attempts", 3)
	v.SetDefault("sched.store_retry_backoff_ms", 300)

	v.SetDefault("status.latency_warn_ms", 2000)
	v.SetDefault("status.recent_window", 5)
	v.SetDefault("status.uptime_window", 100)

	v.SetDefault("notify.cooldown", "5m")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: unknown db driver %q", domain.ErrInvalidConfiguration, c.DB.Driver)
	}
	if c.Sched.MinIntervalSec <= 0 || c.Sched.DefaultIntervalSec <= 0 {
		return fmt.Errorf("%w: check intervals must be positive", domain.ErrInvalidConfiguration)
	}
	if c.Sched.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", domain.ErrInvalidConfiguration)
	}
	return nil
}

// ValidateSiteURL enforces the registration URL contract.
func ValidateSiteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must start with http:// or https://", domain.ErrInvalidConfiguration)
	}
	return nil
}
