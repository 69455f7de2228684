package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config holds everything heraldd reads at startup. Values come from
// heraldd.yaml, overridden by HERALD_* environment variables
// (HERALD_STORE_DRIVER=postgres overrides store.driver).
type config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	StoreDriver   string
	StoreDSN      string
	MongoDatabase string

	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	TestTimeout    time.Duration

	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration

	HistoryLimit  int
	StrictCatalog bool

	MetricsEnabled  bool
	ShutdownTimeout time.Duration
}

func loadConfig() (*config, error) {
	v := viper.New()
	v.SetConfigName("heraldd")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/herald")
	v.AddConfigPath(".")
	v.SetEnvPrefix("herald")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.mongo_database", "herald")
	v.SetDefault("delivery.concurrency", 10)
	v.SetDefault("delivery.poll_interval", "1s")
	v.SetDefault("delivery.batch_size", 50)
	v.SetDefault("delivery.request_timeout", "30s")
	v.SetDefault("delivery.test_timeout", "10s")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_delay", "60s")
	v.SetDefault("history.limit", 1000)
	v.SetDefault("catalog.strict", false)
	v.SetDefault("metrics.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; defaults and env vars carry the day.
	}

	cfg := &config{
		Addr:              v.GetString("server.addr"),
		ShutdownTimeout:   v.GetDuration("server.shutdown_timeout"),
		LogLevel:          v.GetString("log.level"),
		LogFormat:         v.GetString("log.format"),
		StoreDriver:       v.GetString("store.driver"),
		StoreDSN:          v.GetString("store.dsn"),
		MongoDatabase:     v.GetString("store.mongo_database"),
		Concurrency:       v.GetInt("delivery.concurrency"),
		PollInterval:      v.GetDuration("delivery.poll_interval"),
		BatchSize:         v.GetInt("delivery.batch_size"),
		RequestTimeout:    v.GetDuration("delivery.request_timeout"),
		TestTimeout:       v.GetDuration("delivery.test_timeout"),
		MaxRetries:        v.GetInt("retry.max_attempts"),
		InitialDelay:      v.GetDuration("retry.initial_delay"),
		BackoffMultiplier: v.GetFloat64("retry.multiplier"),
		MaxDelay:          v.GetDuration("retry.max_delay"),
		HistoryLimit:      v.GetInt("history.limit"),
		StrictCatalog:     v.GetBool("catalog.strict"),
		MetricsEnabled:    v.GetBool("metrics.enabled"),
	}

	switch cfg.StoreDriver {
	case "memory", "redis", "postgres", "mongo":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver != "memory" && cfg.StoreDSN == "" {
		return nil, fmt.Errorf("store.dsn is required for the %s driver", cfg.StoreDriver)
	}
	return cfg, nil
}
