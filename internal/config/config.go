// Package config loads the collector configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/leshachaplin/testgenie/internal/storage/event/clickhouse"
	"github.com/leshachaplin/testgenie/internal/storage/event/memory"
	"github.com/leshachaplin/testgenie/internal/storage/event/postgres"
	"github.com/leshachaplin/testgenie/internal/storage/event/sqlite"
	"github.com/leshachaplin/testgenie/internal/worker"
)

const (
	envPrefix = "COLLECTOR"

	DriverMemory = "memory"
)

// Config is the main config for the application
type Config struct {
	LogLevel   string            `mapstructure:"log_level"`
	Addr       string            `mapstructure:"addr"`
	Store      Store             `mapstructure:"store"`
	Postgres   postgres.Config   `mapstructure:"postgres"`
	SQLite     sqlite.Config     `mapstructure:"sqlite"`
	Clickhouse clickhouse.Config `mapstructure:"clickhouse"`
	Live       Live              `mapstructure:"live"`
}

type Store struct {
	// Driver is one of memory, sqlite, postgres, clickhouse.
	Driver         string `mapstructure:"driver"`
	BufferCapacity int    `mapstructure:"buffer_capacity"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// Live configures the optional Redpanda fan-out of live events. It stays off
// while Brokers is empty.
type Live struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Worker        worker.Config `mapstructure:"worker"`
}

func (l Live) Enabled() bool { return len(l.Brokers) > 0 }

// Load reads .env from the working directory if present; variables already in the
// environment win over the file.
func Load() (Config, error) {
	return LoadFile(".env")
}

func LoadFile(path string) (Config, error) {
	if err := exportDotEnv(path); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := v.BindEnv("postgres.url", envPrefix+"_POSTGRES_URL", "DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("port", "PORT"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	// PORT is honoured unless the address is given explicitly
	if port := v.GetString("port"); port != "" && os.Getenv(envPrefix+"_ADDR") == "" {
		cfg.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// exportDotEnv copies the entries of an env file into the process environment
// without overriding variables that are already set.
func exportDotEnv(path string) error {
	f := viper.New()
	f.SetConfigFile(path)
	f.SetConfigType("env")
	if err := f.ReadInConfig(); err != nil {
		return nil // missing file is fine
	}

	for _, key := range f.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, f.GetString(key)); err != nil {
			return fmt.Errorf("config: export %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")
	v.SetDefault("addr", ":3001")
	v.SetDefault("port", "")

	v.SetDefault("store.driver", sqlite.Driver)
	v.SetDefault("store.buffer_capacity", memory.DefaultCapacity)
	v.SetDefault("store.migrate_on_start", true)

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("sqlite.path", filepath.Join("data", "analytics.db"))

	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.db", "default")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.password", "")
	v.SetDefault("clickhouse.debug", false)

	v.SetDefault("live.brokers", []string{})
	v.SetDefault("live.topic", "testgenie-live")
	v.SetDefault("live.consumer_group", "testgenie-collector")
	v.SetDefault("live.retry_attempts", 3)
	v.SetDefault("live.retry_delay", time.Second)
	v.SetDefault("live.worker.num_workers", 4)
	v.SetDefault("live.worker.queue_size", 64)
	v.SetDefault("live.worker.outbox_size", 256)
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, sqlite.Driver, clickhouse.Driver:
	case postgres.Driver:
		if c.Postgres.URL == "" {
			return fmt.Errorf("config: postgres driver needs %s_POSTGRES_URL or DATABASE_URL", envPrefix)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Addr == "" {
		return fmt.Errorf("config: %s_ADDR must be set", envPrefix)
	}
	if c.Store.BufferCapacity <= 0 {
		return fmt.Errorf("config: %s_STORE_BUFFER_CAPACITY must be positive", envPrefix)
	}
	if c.Live.Enabled() && c.Live.Topic == "" {
		return fmt.Errorf("config: %s_LIVE_TOPIC must be set when brokers are configured", envPrefix)
	}
	return nil
}
