// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the API service.
type Config struct {
	Addr            string
	DatabaseDSN     string
	VerifySecret    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	InviteTTL       time.Duration
	StoreTimeout    time.Duration
	RateBurst       int
	RatePerSecond   int
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Load reads configuration from VIBEBIZ_* environment variables. A .env file
// in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            getEnv("VIBEBIZ_ADDR", ":8080"),
		DatabaseDSN:     getEnv("VIBEBIZ_PG_DSN", ""),
		VerifySecret:    getEnv("VIBEBIZ_VERIFY_SECRET", ""),
		AccessTTL:       getDuration("VIBEBIZ_ACCESS_TTL", 24*time.Hour),
		RefreshTTL:      getDuration("VIBEBIZ_REFRESH_TTL", 30*24*time.Hour),
		InviteTTL:       getDuration("VIBEBIZ_INVITE_TTL", 7*24*time.Hour),
		StoreTimeout:    getDuration("VIBEBIZ_STORE_TIMEOUT", 5*time.Second),
		RateBurst:       getInt("VIBEBIZ_RATE_BURST", 50),
		RatePerSecond:   getInt("VIBEBIZ_RATE_PER_SECOND", 25),
		MaxBodyBytes:    int64(getInt("VIBEBIZ_MAX_BODY_BYTES", 1<<20)),
		ShutdownTimeout: getDuration("VIBEBIZ_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.InviteTTL <= 0 {
		return nil, fmt.Errorf("config: token lifetimes must be positive")
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("config: store timeout must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
