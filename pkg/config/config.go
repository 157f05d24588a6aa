package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pario-ai/faqbot/pkg/models"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all faqbot configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	DBPath    string             `yaml:"db_path"`
	LogLevel  string             `yaml:"log_level"`
	Store     StoreConfig        `yaml:"store"`
	Cache     CacheConfig        `yaml:"cache"`
	Generator GeneratorConfig    `yaml:"generator"`
	History   HistoryConfig      `yaml:"history"`
	Audit     models.AuditConfig `yaml:"audit"`
	Budget    BudgetConfig       `yaml:"budget"`
}

// StoreConfig selects the FAQ record store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig controls the semantic cache.
// DistanceThreshold is a cosine distance: lower values make matching stricter.
type CacheConfig struct {
	Enabled           bool    `yaml:"enabled"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
}

// GeneratorConfig controls the generative fallback.
type GeneratorConfig struct {
	Enabled      bool             `yaml:"enabled"`
	Timeout      time.Duration    `yaml:"timeout"`
	Temperature  float64          `yaml:"temperature"`
	MaxTokens    int              `yaml:"max_tokens"`
	SystemPrompt string           `yaml:"system_prompt"`
	Chain        []string         `yaml:"chain"`
	Providers    []ProviderConfig `yaml:"providers"`
}

// ProviderConfig defines an upstream generation provider.
// Type is "openai" (default), "anthropic" or "google".
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// HistoryConfig controls conversation history.
type HistoryConfig struct {
	MaxTurns   int           `yaml:"max_turns"`
	GapTimeout time.Duration `yaml:"gap_timeout"`
}

// BudgetConfig controls generator quota enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:   ":5000",
		DBPath:   "faqbot.db",
		LogLevel: "info",
		Store: StoreConfig{
			Driver: DriverCSV,
			Path:   "data/faq.csv",
		},
		Cache: CacheConfig{
			Enabled:           true,
			DistanceThreshold: 0.2,
		},
		Generator: GeneratorConfig{
			Enabled:     true,
			Timeout:     30 * time.Second,
			Temperature: 0.2,
			MaxTokens:   1024,
		},
		History: HistoryConfig{
			MaxTurns:   5,
			GapTimeout: 30 * time.Minute,
		},
		Audit: models.AuditConfig{
			Enabled:        true,
			RetentionDays:  90,
			IncludeAnswers: true,
			MaxBodySize:    8192,
		},
	}
}

// Load reads a YAML config file, expands environment variables and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverCSV, DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for driver %q", c.Store.Driver))
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for driver \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Cache.DistanceThreshold < 0 || c.Cache.DistanceThreshold > 2 {
		errs = append(errs, fmt.Errorf("cache.distance_threshold %v outside [0, 2]", c.Cache.DistanceThreshold))
	}
	if c.Generator.Timeout < 0 {
		errs = append(errs, errors.New("generator.timeout must not be negative"))
	}
	if c.History.MaxTurns <= 0 {
		errs = append(errs, errors.New("history.max_turns must be positive"))
	}
	if c.Budget.Enabled && !c.Audit.Enabled {
		errs = append(errs, errors.New("budget requires audit.enabled"))
	}
	for _, p := range c.Budget.Policies {
		if p.MaxGenerations <= 0 {
			errs = append(errs, errors.New("budget policy max_generations must be positive"))
		}
		switch p.Period {
		case models.BudgetDaily, models.BudgetWeekly, models.BudgetMonthly:
		default:
			errs = append(errs, fmt.Errorf("unknown budget period %q", p.Period))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// AuditDBPath returns the audit database path, falling back to DBPath.
func (c *Config) AuditDBPath() string {
	if c.Audit.DBPath != "" {
		return c.Audit.DBPath
	}
	return c.DBPath
}
