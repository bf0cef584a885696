package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP server
	Server ServerConfig

	// External storefront backend
	Backend BackendConfig

	// Visitor sessions
	Session SessionConfig

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Session purge schedule
	Purge PurgeConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Address        string
	AllowedOrigins []string
}

// BackendConfig describes the external HTTP backend
type BackendConfig struct {
	URL           string
	OAuthURL      string        // Full-page OAuth initiation URL hosted by the backend
	SessionCookie string        // Name of the backend's session cookie
	Timeout       time.Duration // Per-request timeout
}

// SessionConfig holds visitor session settings
type SessionConfig struct {
	Store        string // memory, sqlite, redis
	Secret       string // Cookie signing secret, generated at startup when empty
	TTL          time.Duration
	SecureCookie bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// PurgeConfig holds the expired-session purge schedule
type PurgeConfig struct {
	Schedule string // Cron expression, empty when disabled
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	backendTimeout, err := durationEnv("BACKEND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := durationEnv("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	store := strings.ToLower(stringEnv("SESSION_STORE", StoreSQLite))
	switch store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q (want memory, sqlite or redis)", store)
	}

	// "off" disables the purge scheduler
	purgeSchedule := stringEnv("PURGE_SCHEDULE", "0 * * * *")
	if strings.EqualFold(purgeSchedule, "off") {
		purgeSchedule = ""
	}

	backendURL := strings.TrimRight(stringEnv("BACKEND_URL", "http://localhost:3000"), "/")

	return &Config{
		Server: ServerConfig{
			Address:        stringEnv("SERVER_ADDRESS", ":8080"),
			AllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Backend: BackendConfig{
			URL:           backendURL,
			OAuthURL:      stringEnv("BACKEND_OAUTH_URL", backendURL+"/auth/google"),
			SessionCookie: stringEnv("BACKEND_SESSION_COOKIE", "connect.sid"),
			Timeout:       backendTimeout,
		},
		Session: SessionConfig{
			Store:        store,
			Secret:       os.Getenv("SESSION_SECRET"),
			TTL:          sessionTTL,
			SecureCookie: os.Getenv("SESSION_SECURE_COOKIE") == "true",
		},
		Database: DatabaseConfig{
			URL: stringEnv("DATABASE_URL", "storefront.sqlite"),
		},
		Redis: RedisConfig{
			Address: stringEnv("REDIS_ADDRESS", "localhost:6379"),
		},
		Purge: PurgeConfig{
			Schedule: purgeSchedule,
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func listEnv(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
