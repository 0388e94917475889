// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Plan store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Identity modes.
const (
	AuthPermissive = "permissive"
	AuthVerify     = "verify"
)

// Config holds all configuration values for the server and the worker.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["*"]. Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// PlanStore selects the plan store backend: "postgres" or "mongo".
	PlanStore     string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// GeminiAPIKey may be empty. Each completion call then fails on its own;
	// the process still starts.
	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiModel       string
	CompletionTimeout time.Duration

	NATSURL     string
	QueueStream string

	// RedisURL enables the cross-process notification relay when set.
	RedisURL string

	AuthMode         string
	AuthHMACSecret   string
	AuthRSAPublicKey string
	DevToken         string
	DevUser          string

	MaxBodyBytes   int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load merges an optional .env file from the working directory into the
// environment and reads the configuration.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit .env path. A missing file is not an
// error; variables already set in the environment win over the file.
func LoadFrom(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config.Load: %s: %w", envFile, err)
	}

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		PlanStore:        getEnv("PLAN_STORE", StorePostgres),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "travel"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		NATSURL:          getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		QueueStream:      getEnv("QUEUE_STREAM", "TRAVEL_PLANS"),
		RedisURL:         os.Getenv("REDIS_URL"),
		AuthMode:         getEnv("AUTH_MODE", AuthPermissive),
		AuthHMACSecret:   os.Getenv("AUTH_HMAC_SECRET"),
		AuthRSAPublicKey: os.Getenv("AUTH_RSA_PUBLIC_KEY"),
		DevToken:         getEnv("DEV_TOKEN", "test-token"),
		DevUser:          getEnv("DEV_USER", "dev@example.com"),
	}

	var problems []string
	var err error

	if cfg.CompletionTimeout, err = time.ParseDuration(getEnv("COMPLETION_TIMEOUT", "120s")); err != nil || cfg.CompletionTimeout <= 0 {
		problems = append(problems, "COMPLETION_TIMEOUT must be a positive duration")
	}
	if cfg.MaxBodyBytes, err = strconv.ParseInt(getEnv("MAX_BODY_BYTES", "10485760"), 10, 64); err != nil || cfg.MaxBodyBytes <= 0 {
		problems = append(problems, "MAX_BODY_BYTES must be a positive integer")
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "2"), 64); err != nil || cfg.RateLimitRPS < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must be a non-negative number (0 disables limiting)")
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "5")); err != nil || cfg.RateLimitBurst < 1 {
		problems = append(problems, "RATE_LIMIT_BURST must be a positive integer")
	}

	var missing []string
	switch cfg.PlanStore {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		problems = append(problems, fmt.Sprintf("PLAN_STORE must be %q or %q, got %q", StorePostgres, StoreMongo, cfg.PlanStore))
	}
	switch cfg.AuthMode {
	case AuthPermissive:
	case AuthVerify:
		if cfg.AuthHMACSecret == "" && cfg.AuthRSAPublicKey == "" {
			missing = append(missing, "AUTH_HMAC_SECRET or AUTH_RSA_PUBLIC_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("AUTH_MODE must be %q or %q, got %q", AuthPermissive, AuthVerify, cfg.AuthMode))
	}

	if len(missing) > 0 {
		problems = append([]string{"required environment variables not set: " + strings.Join(missing, ", ")}, problems...)
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("config.Load: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
