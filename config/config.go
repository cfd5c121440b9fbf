/*
Package config loads runtime configuration for the tutoring ledger service.

PURPOSE:
  Central place for every tunable: HTTP port, storage driver selection,
  and the ledger policy knobs (hour caps, rate bounds, balance floor).

SOURCES (highest wins):
  1. Environment variables (TUTORS_ prefix, e.g. TUTORS_STORE_DRIVER)
  2. Optional config file (config.yaml in the working directory)
  3. Built-in defaults

USAGE:
  cfg, err := config.Load()
  if err != nil {
      log.Fatal(err)
  }
  store := ... // per cfg.StoreDriver
*/
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

// Storage driver names accepted by StoreDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all runtime settings.
type Config struct {
	Port        int    `mapstructure:"port"`
	StoreDriver string `mapstructure:"store_driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	MaxHoursPerTransaction int64 `mapstructure:"max_hours_per_transaction"`
	MinHourlyRate          int64 `mapstructure:"min_hourly_rate"`
	MaxHourlyRate          int64 `mapstructure:"max_hourly_rate"`
	EnforceBalanceFloor    bool  `mapstructure:"enforce_balance_floor"`
}

// Ledger converts the policy knobs into a ledger.Config.
func (c Config) Ledger() ledger.Config {
	return ledger.Config{
		MaxHoursPerTransaction: c.MaxHoursPerTransaction,
		MinHourlyRate:          c.MinHourlyRate,
		MaxHourlyRate:          c.MaxHourlyRate,
		EnforceBalanceFloor:    c.EnforceBalanceFloor,
	}
}

// Load reads configuration from defaults, an optional config file, and
// the environment.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "./data/tutors.db")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("max_hours_per_transaction", ledger.DefaultMaxHours)
	v.SetDefault("min_hourly_rate", ledger.DefaultMinHourlyRate)
	v.SetDefault("max_hourly_rate", ledger.DefaultMaxHourlyRate)
	v.SetDefault("enforce_balance_floor", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TUTORS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; only a malformed one is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q (want %s, %s, or %s)",
			c.StoreDriver, DriverMemory, DriverSQLite, DriverPostgres)
	}
	if c.StoreDriver == DriverPostgres && c.PostgresDSN == "" {
		return fmt.Errorf("store driver %q requires TUTORS_POSTGRES_DSN", DriverPostgres)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MinHourlyRate > c.MaxHourlyRate {
		return fmt.Errorf("min hourly rate %d exceeds max %d", c.MinHourlyRate, c.MaxHourlyRate)
	}
	return nil
}
