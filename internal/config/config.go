// Package config reads process environment variables into a plain struct
// with explicit defaults. There is no flags or config-framework dependency:
// the core is a library, and this package only supports cmd/coredemo.
package config

import "os"

// Config holds the settings the demo entrypoint needs to open a store and a logger.
type Config struct {
	DatabaseURL string
	LogLevel    string
	LogFormat   string
}

// Load reads Config from the environment, falling back to local-dev defaults.
func Load() Config {
	return Config{
		DatabaseURL: getenv("CLOBCORE_DATABASE_URL", "postgres://localhost:5432/clobcore?sslmode=disable"),
		LogLevel:    getenv("CLOBCORE_LOG_LEVEL", "info"),
		LogFormat:   getenv("CLOBCORE_LOG_FORMAT", "console"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
