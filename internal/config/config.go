package config

import (
	"os"
	"strconv"
	"time"

	"infleval/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Results    ResultsConfig
	Simulation SimulationConfig
	Data       DataConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ResultsConfig holds result persistence settings
type ResultsConfig struct {
	Dir string
}

// SimulationConfig holds simulation engine defaults
type SimulationConfig struct {
	Replications int
	BaseSeed     int64
	Workers      int
	TrainCutoff  time.Time
}

// DataConfig holds data ingestion settings
type DataConfig struct {
	ExcelFile string
	Sheets    string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			Enabled: getEnvBoolOrDefault("DATABASE_ENABLED", false),
		},
		Results: ResultsConfig{
			Dir: getEnvOrDefault("RESULTS_DIR", "./results"),
		},
		Simulation: SimulationConfig{
			Replications: getEnvIntOrDefault("REPLICATIONS", 10000),
			BaseSeed:     int64(getEnvIntOrDefault("BASE_SEED", 0)),
			Workers:      getEnvIntOrDefault("WORKERS", 4),
		},
		Data: DataConfig{
			ExcelFile: getEnvOrDefault("EXCEL_FILE", ""),
			Sheets:    getEnvOrDefault("EXCEL_SHEETS", ""),
		},
	}

	if cutoff := os.Getenv("TRAIN_CUTOFF"); cutoff != "" {
		t, err := time.Parse("2006-01", cutoff)
		if err != nil {
			return nil, errors.Wrap(err, "parsing TRAIN_CUTOFF, expected YYYY-MM")
		}
		config.Simulation.TrainCutoff = t
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Database.Enabled && config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required when DATABASE_ENABLED is set")
	}
	if config.Simulation.Replications <= 0 {
		return errors.ConfigInvalid("REPLICATIONS must be positive")
	}
	if config.Simulation.Workers <= 0 {
		return errors.ConfigInvalid("WORKERS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
