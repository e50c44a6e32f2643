// Package daemon manages the Kudimu daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/kudimu-insights/kudimu/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Database   DatabaseConfig   `toml:"database"`
	Withdrawal WithdrawalConfig `toml:"withdrawal"`
	Logging    LoggingConfig    `toml:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Health     HealthConfig     `toml:"health"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

// WithdrawalConfig seeds the withdrawal_settings row on first start.
// Once the row exists the database copy is authoritative.
type WithdrawalConfig struct {
	MinAmount       string `toml:"min_amount"`
	MinDaysBetween  int    `toml:"min_days_between"`
	ProcessingHours int    `toml:"processing_hours"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console | json
}

// TelemetryConfig toggles the Prometheus endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// HealthConfig controls the periodic health checks.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8787,
			CORSOrigins:    []string{"*"},
			RequestTimeout: "30s",
		},
		Database: DatabaseConfig{
			Dir: kudimuHome(),
		},
		Withdrawal: WithdrawalConfig{
			MinAmount:       "1000",
			MinDaysBetween:  7,
			ProcessingHours: 48,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
	}
}

// WithdrawalSettings converts the seed values to domain settings.
func (c WithdrawalConfig) WithdrawalSettings() (domain.WithdrawalSettings, error) {
	min, err := decimal.NewFromString(c.MinAmount)
	if err != nil {
		return domain.WithdrawalSettings{}, fmt.Errorf("withdrawal.min_amount %q: %w", c.MinAmount, err)
	}
	return domain.WithdrawalSettings{
		MinAmount:       min,
		MinDaysBetween:  c.MinDaysBetween,
		ProcessingHours: c.ProcessingHours,
	}, nil
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(kudimuHome(), "config.toml")
}

// LoadConfig reads config from ~/.kudimu/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.Dir == "" {
		cfg.Database.Dir = kudimuHome()
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.kudimu/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// kudimuHome returns the Kudimu data directory.
func kudimuHome() string {
	if env := os.Getenv("KUDIMU_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kudimu")
}

// Home is exported for use by other packages.
func Home() string {
	return kudimuHome()
}
