// Package config loads the application settings from the environment (and
// an optional .env file) plus the engine settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"bizplan/pkg/core/pipeline"
	"bizplan/pkg/core/projection"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	StoreDriver      string
	DatabaseURL      string
	SQLitePath       string
	RunCacheDir      string
	Port             int
	LogLevel         string
	LogPretty        bool
	CORSOrigins      []string
	EngineConfigPath string
	Engine           EngineConfig
}

// EngineConfig is the YAML-configurable part of a plan run.
type EngineConfig struct {
	Params     projection.Params `yaml:"params"`
	Horizon    int               `yaml:"horizon"`
	Validation ValidationConfig  `yaml:"validation"`
}

// ValidationConfig mirrors pipeline.ValidationConfig in YAML.
type ValidationConfig struct {
	Strict              bool    `yaml:"strict"`
	Tolerance           float64 `yaml:"tolerance"`
	OutlierThresholdPct float64 `yaml:"outlier_threshold_pct"`
}

// DefaultEngineConfig returns the pipeline defaults.
func DefaultEngineConfig() EngineConfig {
	def := pipeline.DefaultConfig()
	return EngineConfig{
		Params:  def.Params,
		Horizon: def.DefaultHorizon,
		Validation: ValidationConfig{
			Strict:              def.Validation.EnableStrictValidation,
			Tolerance:           def.Validation.Tolerance,
			OutlierThresholdPct: def.Validation.OutlierThresholdPct,
		},
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/business_plan.db"),
		RunCacheDir:      getEnv("RUN_CACHE_DIR", ".cache/runs"),
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"*"}),
		EngineConfigPath: getEnv("ENGINE_CONFIG", ""),
		Engine:           DefaultEngineConfig(),
	}

	if cfg.EngineConfigPath != "" {
		engine, err := LoadEngineConfig(cfg.EngineConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEngineConfig reads a YAML engine file. Keys left out keep their
// defaults; unknown keys are rejected.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read engine config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Engine.Horizon < 1 {
		return fmt.Errorf("engine horizon must be at least 1, got %d", c.Engine.Horizon)
	}
	p := c.Engine.Params
	// the engine reads a zero tax rate as unset
	if p.TaxRate <= 0 || p.TaxRate >= 1 {
		return fmt.Errorf("engine tax_rate must be in (0, 1), got %g", p.TaxRate)
	}
	if p.VATFactor < 0 || p.DayBasis < 0 || p.Tolerance < 0 || p.MaxIterations < 0 {
		return fmt.Errorf("engine params must not be negative")
	}
	return nil
}

// Pipeline returns the orchestrator configuration.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Params:         c.Engine.Params,
		DefaultHorizon: c.Engine.Horizon,
		Validation: pipeline.ValidationConfig{
			EnableStrictValidation: c.Engine.Validation.Strict,
			Tolerance:              c.Engine.Validation.Tolerance,
			OutlierThresholdPct:    c.Engine.Validation.OutlierThresholdPct,
		},
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
