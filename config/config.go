package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Session    SessionConfig    `mapstructure:"session"`
	Game       GameConfig       `mapstructure:"game"`
	Commentary CommentaryConfig `mapstructure:"commentary"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// GameConfig holds table rules. Stakes is the fixed menu a wager amount must
// be picked from.
type GameConfig struct {
	StartingBalance int64         `mapstructure:"starting_balance"`
	Stakes          []int64       `mapstructure:"stakes"`
	DefaultStake    int64         `mapstructure:"default_stake"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	HistoryCap      int           `mapstructure:"history_cap"`
	TranscriptCap   int           `mapstructure:"transcript_cap"`
	EngineIdleTTL   time.Duration `mapstructure:"engine_idle_ttl"`
}

type CommentaryConfig struct {
	Provider    string        `mapstructure:"provider"` // anthropic, scripted
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BaseURL     string        `mapstructure:"base_url"` // optional override, mostly for local proxies
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type JobsConfig struct {
	ReapSchedule string `mapstructure:"reap_schedule"` // cron spec
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: TXD_.
// Nested keys use underscore: TXD_DATABASE_HOST, TXD_COMMENTARY_API_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "taixiu")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "taixiu-dealer")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("game.starting_balance", 1_000_000)
	v.SetDefault("game.stakes", []int64{1000, 5000, 10000, 50000, 100000, 500000})
	v.SetDefault("game.default_stake", 10000)
	v.SetDefault("game.settle_delay", "1500ms")
	v.SetDefault("game.history_cap", 20)
	v.SetDefault("game.transcript_cap", 100)
	v.SetDefault("game.engine_idle_ttl", "30m")
	v.SetDefault("commentary.provider", "scripted")
	v.SetDefault("commentary.api_key", "")
	v.SetDefault("commentary.model", "claude-3-5-haiku-latest")
	v.SetDefault("commentary.max_tokens", 120)
	v.SetDefault("commentary.temperature", 0.8)
	v.SetDefault("commentary.timeout", "8s")
	v.SetDefault("commentary.base_url", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("jobs.reap_schedule", "@every 5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: TXD_DATABASE_HOST -> database.host
	v.SetEnvPrefix("TXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Game.StartingBalance <= 0 {
		return fmt.Errorf("game.starting_balance must be positive")
	}
	if len(c.Game.Stakes) == 0 {
		return fmt.Errorf("game.stakes must not be empty")
	}
	for _, s := range c.Game.Stakes {
		if s <= 0 {
			return fmt.Errorf("game.stakes entries must be positive, got %d", s)
		}
	}
	if !slices.Contains(c.Game.Stakes, c.Game.DefaultStake) {
		return fmt.Errorf("game.default_stake %d is not on the stake menu", c.Game.DefaultStake)
	}
	if c.Game.SettleDelay <= 0 {
		return fmt.Errorf("game.settle_delay must be positive, got %s", c.Game.SettleDelay)
	}
	if c.Game.HistoryCap <= 0 {
		return fmt.Errorf("game.history_cap must be positive")
	}
	if c.Game.TranscriptCap <= 0 {
		return fmt.Errorf("game.transcript_cap must be positive")
	}
	if c.Game.EngineIdleTTL < 0 {
		return fmt.Errorf("game.engine_idle_ttl must not be negative")
	}
	return nil
}
