// Package config loads runtime configuration from the environment. A .env
// file in the working directory is applied best-effort before reading; every
// knob has a workable default so the binary runs with no configuration at
// all (memory backend, filesystem photo store).
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every runtime knob.
type Config struct {
	HTTPAddr string

	// UseDB gates the document-database backend: when false the fallback
	// chain starts at the file backend.
	UseDB    bool
	MongoURI string
	MongoDB  string

	// DataDir is the file backend's snapshot directory.
	DataDir string

	JWTSecret string

	LogLevel string
	LogDev   bool
}

// Load reads configuration, applying .env first when present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:  getenv("FIELDOPS_HTTP_ADDR", ":8080"),
		UseDB:     boolish(os.Getenv("FIELDOPS_USE_DB")),
		MongoURI:  getenv("FIELDOPS_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getenv("FIELDOPS_MONGO_DB", "fieldops"),
		DataDir:   getenv("FIELDOPS_DATA_DIR", "./fieldopsdata"),
		JWTSecret: getenv("FIELDOPS_JWT_SECRET", "dev-only-secret"),
		LogLevel:  os.Getenv("FIELDOPS_LOG_LEVEL"),
		LogDev:    boolish(os.Getenv("FIELDOPS_LOG_DEV")),
	}
	if cfg.LogLevel == "" {
		if cfg.LogDev {
			cfg.LogLevel = "debug"
		} else {
			cfg.LogLevel = "info"
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// boolish accepts the usual spellings of true.
func boolish(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
