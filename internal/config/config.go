// Package config provides configuration for the assistant backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Databases
	DatabaseURL string
	VectorURL   string

	// Tool policy file (shell allowlist, query templates)
	PolicyFile string

	// Timeouts and intervals
	ToolTimeout     time.Duration
	ApprovalTimeout time.Duration
	SweepInterval   time.Duration

	// Retrieval
	ContextSearchK int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", "file:jarvisd.db?cache=shared&mode=rwc"),
		VectorURL:       getEnv("VECTOR_URL", "file:vectors.db?cache=shared&mode=rwc"),
		PolicyFile:      getEnv("POLICY_FILE", "configs/policies.yaml"),
		ToolTimeout:     time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 60000)) * time.Millisecond,
		ApprovalTimeout: time.Duration(getEnvInt("APPROVAL_TIMEOUT_MS", 600000)) * time.Millisecond,
		SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_MS", 60000)) * time.Millisecond,
		ContextSearchK:  getEnvInt("CONTEXT_SEARCH_K", 50),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
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
