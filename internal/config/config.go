// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Engine configuration
	Engine EngineConfig `toml:"engine"`

	// Result cache configuration
	Cache CacheConfig `toml:"cache"`

	// Explanation generator configuration
	Generator GeneratorConfig `toml:"generator"`

	// Database configuration
	Database DatabaseConfig `toml:"database"`
}

// EngineConfig contains suggestion engine settings.
type EngineConfig struct {
	DetectorWorkers    int     `toml:"detector_workers"`     // Combo lookup pool size
	ExplainWorkers     int     `toml:"explain_workers"`      // Explanation pool size (kept below the detector pool)
	MaxSuggestions     int     `toml:"max_suggestions"`      // Default suggestion cap when the constraint leaves it unset
	BudgetCeilingRatio float64 `toml:"budget_ceiling_ratio"` // Hard filter: drop combos above budget * (1 + ratio)
	BudgetPenaltyFloor float64 `toml:"budget_penalty_floor"` // Lowest budget-factor contribution
	PowerTierTolerance int     `toml:"power_tier_tolerance"` // Allowed distance for a power-level match
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`  // Enable caching
	TTL     string `toml:"ttl"`      // Entry TTL (e.g., "10m")
	MaxSize int    `toml:"max_size"` // Max cache entries (0 = unlimited)
}

// GeneratorConfig contains explanation generator settings.
type GeneratorConfig struct {
	BaseURL        string  `toml:"base_url"`        // Text-generation endpoint
	Model          string  `toml:"model"`           // Model name
	RequestTimeout string  `toml:"request_timeout"` // Per-call timeout (e.g., "20s")
	RatePerSecond  float64 `toml:"rate_per_second"` // Request rate cap for the endpoint
	RateBurst      int     `toml:"rate_burst"`      // Burst allowance for the rate limiter
}

// DatabaseConfig contains card/combo database settings.
type DatabaseConfig struct {
	Path        string `toml:"path"`         // SQLite database file
	AutoMigrate bool   `toml:"auto_migrate"` // Apply schema migrations on open
	WatchFile   bool   `toml:"watch_file"`   // Invalidate caches when the file changes
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DetectorWorkers:    8,
			ExplainWorkers:     2,
			MaxSuggestions:     10,
			BudgetCeilingRatio: 0.5,
			BudgetPenaltyFloor: -20,
			PowerTierTolerance: 1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "10m",
			MaxSize: 0,
		},
		Generator: GeneratorConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "qwen3:8b",
			RequestTimeout: "20s",
			RatePerSecond:  2,
			RateBurst:      4,
		},
		Database: DatabaseConfig{
			Path:        "",
			AutoMigrate: true,
			WatchFile:   true,
		},
	}
}

// configPath returns the path to the configuration file.
func configPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".deck-assistant")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// Load loads the configuration from disk. Returns default config if the
// file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// Save saves the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Engine.DetectorWorkers <= 0 {
		return fmt.Errorf("detector workers must be positive: %d", c.Engine.DetectorWorkers)
	}
	if c.Engine.ExplainWorkers <= 0 {
		return fmt.Errorf("explain workers must be positive: %d", c.Engine.ExplainWorkers)
	}
	if c.Engine.ExplainWorkers > c.Engine.DetectorWorkers {
		return fmt.Errorf("explain workers (%d) must not exceed detector workers (%d)",
			c.Engine.ExplainWorkers, c.Engine.DetectorWorkers)
	}
	if c.Engine.MaxSuggestions <= 0 {
		return fmt.Errorf("max suggestions must be positive: %d", c.Engine.MaxSuggestions)
	}
	if c.Engine.BudgetCeilingRatio < 0 {
		return fmt.Errorf("budget ceiling ratio cannot be negative: %f", c.Engine.BudgetCeilingRatio)
	}
	if c.Engine.BudgetPenaltyFloor > 0 {
		return fmt.Errorf("budget penalty floor must not be positive: %f", c.Engine.BudgetPenaltyFloor)
	}

	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache TTL %q: %w", c.Cache.TTL, err)
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max size cannot be negative: %d", c.Cache.MaxSize)
	}

	if _, err := time.ParseDuration(c.Generator.RequestTimeout); err != nil {
		return fmt.Errorf("invalid generator timeout %q: %w", c.Generator.RequestTimeout, err)
	}
	if c.Generator.RatePerSecond <= 0 {
		return fmt.Errorf("generator rate must be positive: %f", c.Generator.RatePerSecond)
	}

	return nil
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// GetGeneratorTimeout returns the generator request timeout as a duration.
func (c *Config) GetGeneratorTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Generator.RequestTimeout)
}
