package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Storage. DatabaseURL selects Postgres when set; otherwise the
	// server runs on the embedded SQLite file at DatabasePath.
	DatabaseURL  string
	DatabasePath string

	// RedisURL enables the rate limiter when set.
	RedisURL string

	// HistoryJoinFloor restricts history reads to messages sent at or
	// after the reader's join time.
	HistoryJoinFloor bool

	// RateLimitWhitelist lists IPs or CIDRs exempt from rate limiting.
	RateLimitWhitelist []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/chat.db"),
		RedisURL:         os.Getenv("REDIS_URL"),
		HistoryJoinFloor: getEnv("HISTORY_JOIN_FLOOR", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require a real database
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
