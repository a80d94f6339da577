package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	App        AppConfig       `mapstructure:"app"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Feed       FeedConfig      `mapstructure:"feed"`
	Pending    PendingConfig   `mapstructure:"pending"`
	Breaker    BreakerConfig   `mapstructure:"breaker"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	CountsChannel string        `mapstructure:"counts_channel"`
	CountsKey     string        `mapstructure:"counts_key"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	Topics         []string      `mapstructure:"topics"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
}

type FeedConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Workers       int    `mapstructure:"workers"`
	TimestampUnit string `mapstructure:"timestamp_unit"` // ms | us
}

type PendingConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout"`
	ApplicationRule   string        `mapstructure:"application_rule"` // legacy | strict
	EchoTTL           time.Duration `mapstructure:"echo_ttl"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (MKTADM_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (MKTADM_PENDING_RECONCILE_INTERVAL, ...)
	v.SetEnvPrefix("MKTADM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Pending.ReconcileInterval <= 0 {
		return fmt.Errorf("pending.reconcile_interval must be positive, got %s", c.Pending.ReconcileInterval)
	}
	if c.Pending.StoreTimeout <= 0 {
		return fmt.Errorf("pending.store_timeout must be positive, got %s", c.Pending.StoreTimeout)
	}
	switch c.Pending.ApplicationRule {
	case "legacy", "strict":
	default:
		return fmt.Errorf("pending.application_rule must be legacy or strict, got %q", c.Pending.ApplicationRule)
	}
	switch c.Feed.TimestampUnit {
	case "ms", "us":
	default:
		return fmt.Errorf("feed.timestamp_unit must be ms or us, got %q", c.Feed.TimestampUnit)
	}
	if c.Feed.Enabled && len(c.Kafka.Topics) == 0 {
		return fmt.Errorf("feed enabled but kafka.topics is empty")
	}
	return nil
}
