// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Classifier boundary
	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierModel   string
	ClassifierTimeout time.Duration

	// Notification boundary
	WebhookURL string

	// Cycle loop
	CycleInterval       time.Duration
	CycleBackoff        time.Duration
	ClassifyConcurrency int

	// Business rules and state seed
	RulesPath    string
	SnapshotPath string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:         getEnv("DATABASE_URL", "file:autonomos.db?cache=shared&mode=rwc"),
		ClassifierURL:       getEnv("CLASSIFIER_URL", ""),
		ClassifierAPIKey:    getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierModel:     getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		ClassifierTimeout:   time.Duration(getEnvInt("CLASSIFIER_TIMEOUT_MS", 30000)) * time.Millisecond,
		WebhookURL:          getEnv("WEBHOOK_URL", ""),
		CycleInterval:       time.Duration(getEnvInt("CYCLE_INTERVAL_MS", 300000)) * time.Millisecond,
		CycleBackoff:        time.Duration(getEnvInt("CYCLE_BACKOFF_MS", 60000)) * time.Millisecond,
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 4),
		RulesPath:           getEnv("RULES_PATH", ""),
		SnapshotPath:        getEnv("SNAPSHOT_PATH", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
