// Package config resolves runtime settings for the catalog.
//
// Settings come from the environment, with an optional .env file in the
// working directory loaded first. Flags parsed in main take precedence over
// everything here.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// EnvDir overrides the data directory (default ~/.prompt-catalog).
	EnvDir = "PROMPT_CATALOG_DIR"
	// EnvPort overrides the API server port.
	EnvPort = "PROMPT_CATALOG_PORT"

	defaultPort = 8080
)

// Config holds resolved runtime settings
type Config struct {
	RootDir string // data directory; empty means the storage default
	Port    int    // API server port
}

// Load reads configuration from .env (when present) and the environment.
func Load() *Config {
	// A missing .env file is the normal case, not an error.
	_ = godotenv.Load()

	cfg := &Config{
		RootDir: os.Getenv(EnvDir),
		Port:    defaultPort,
	}

	if raw := os.Getenv(EnvPort); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			cfg.Port = port
		}
	}

	return cfg
}
