// Package config provides centralized configuration loaded from environment
// variables. Shared by the serve and sweep commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default alert thresholds applied when a subscription carries no override.
const (
	DefaultTemperatureThreshold = 28.0 // °C
	DefaultHumidityThreshold    = 70.0 // %
	DefaultUVThreshold          = 10.0
)

// Daily send caps and cooldowns.
const (
	ReminderDailyCap      = 6
	ClimateTypeDailyCap   = 3
	ClimateCombinedDayCap = 6
	ReminderCooldown      = 4 * time.Hour
	MinCronSecretLength   = 32
)

// Config is populated from environment variables.
type Config struct {
	// Database
	DatabaseURL string

	// Redis (weather response cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP server
	Port        int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// VAPID key material, base64 in any common variant.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string // contact URI, e.g. mailto:support@drysense.app

	// Auth
	CronSecret string
	JWTSecret  string

	// Weather provider
	WeatherBaseURL        string
	WeatherRequestsPerMin int
	WeatherCacheTTL       time.Duration

	// Climate sweep jitter upper bound.
	ClimateJitterMax time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return &Config{
		DatabaseURL: dbURL,

		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		Port:        envInt("PORT", 8080),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		VAPIDPublicKey:  envOr("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: envOr("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    envOr("VAPID_SUBJECT", "mailto:support@drysense.app"),

		CronSecret: envOr("CRON_SECRET", ""),
		JWTSecret:  envOr("JWT_SECRET", ""),

		WeatherBaseURL:        envOr("WEATHER_BASE_URL", "https://api.open-meteo.com/v1"),
		WeatherRequestsPerMin: envInt("WEATHER_REQUESTS_PER_MINUTE", 300),
		WeatherCacheTTL:       time.Duration(envInt("WEATHER_CACHE_TTL_SECONDS", 600)) * time.Second,

		ClimateJitterMax: time.Duration(envInt("CLIMATE_JITTER_MAX_SECONDS", 30)) * time.Second,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
