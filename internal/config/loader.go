// Package config loads nodequery settings from config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/nodequery/internal/logging"
	"github.com/rpattn/nodequery/internal/nodeloader"
	"github.com/rpattn/nodequery/internal/resolve"
)

// EnvPrefix prefixes environment overrides, e.g. NODEQUERY_STORE_DRIVER.
const EnvPrefix = "NODEQUERY"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every nodequery setting.
type Config struct {
	Resolver ResolverConfig
	Log      logging.Config
	Store    StoreConfig
	Schema   SchemaConfig
	// File is the config file that was read, empty when none was found.
	File string
}

// ResolverConfig tunes field resolution.
type ResolverConfig struct {
	Concurrency   int
	BatchWait     time.Duration
	BatchCapacity int
}

// LoaderOptions converts the batching settings for the node loader.
func (c ResolverConfig) LoaderOptions() nodeloader.Options {
	return nodeloader.Options{Wait: c.BatchWait, BatchCapacity: c.BatchCapacity}
}

// StoreConfig selects the node store.
type StoreConfig struct {
	Driver string
	DSN    string
	// Fixtures lists node files (JSON, YAML, CSV or XLSX) loaded into the
	// store at startup.
	Fixtures []string
}

// SchemaConfig locates the SDL schema.
type SchemaConfig struct {
	Path string
}

// Default returns the built-in defaults.
func Default() Config {
	batch := nodeloader.DefaultOptions()
	return Config{
		Resolver: ResolverConfig{
			Concurrency:   resolve.DefaultConcurrency,
			BatchWait:     batch.Wait,
			BatchCapacity: batch.BatchCapacity,
		},
		Log:   logging.Config{Level: "info", Format: logging.FormatText},
		Store: StoreConfig{Driver: DriverMemory},
	}
}

var keys = []string{
	"resolver.concurrency",
	"resolver.batch_wait",
	"resolver.batch_capacity",
	"log.level",
	"log.format",
	"store.driver",
	"store.dsn",
	"store.fixtures",
	"schema.path",
}

// Load reads config.yaml from configPath when present and applies
// NODEQUERY_* environment overrides on top of the defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			cfg.File = v.ConfigFileUsed()
		}
	}

	if v.IsSet("resolver.concurrency") {
		cfg.Resolver.Concurrency = v.GetInt("resolver.concurrency")
	}
	if v.IsSet("resolver.batch_wait") {
		cfg.Resolver.BatchWait = v.GetDuration("resolver.batch_wait")
	}
	if v.IsSet("resolver.batch_capacity") {
		cfg.Resolver.BatchCapacity = v.GetInt("resolver.batch_capacity")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}
	if v.IsSet("store.driver") {
		cfg.Store.Driver = strings.ToLower(v.GetString("store.driver"))
	}
	if v.IsSet("store.dsn") {
		cfg.Store.DSN = v.GetString("store.dsn")
	}
	if v.IsSet("store.fixtures") {
		cfg.Store.Fixtures = v.GetStringSlice("store.fixtures")
	}
	if v.IsSet("schema.path") {
		cfg.Schema.Path = v.GetString("schema.path")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have a closed set of values.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Resolver.Concurrency < 0 {
		return fmt.Errorf("resolver.concurrency must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
