// Package config loads service configuration from the environment,
// honoring a .env file when one is present.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends the server can be wired against.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the full runtime configuration of the server.
type Config struct {
	HTTPAddr       string
	StorageBackend string
	PostgresDSN    string
	// KafkaBrokers empty means event publishing is disabled.
	KafkaBrokers []string
}

// Load reads configuration from a .env file (if any) and the environment.
func Load() (Config, error) {
	// Missing .env is fine; explicit env vars always win.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		StorageBackend: getEnv("STORAGE_BACKEND", BackendMemory),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("config: STORAGE_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
