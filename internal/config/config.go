// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultPlantNetBaseURL = "https://my-api.plantnet.org/v2/identify/all"
)

// Config carries every externally supplied setting. It is built once in main
// and handed to the components that need it.
type Config struct {
	Addr            string
	LogLevel        string
	ShutdownTimeout time.Duration

	MediaRoot     string
	MediaURL      string
	MaxUploadSize int64

	PlantNetBaseURL string
	PlantNetAPIKey  string

	DatabaseDriver string
	DatabaseDSN    string
	RedisAddr      string

	JWTSecret    string
	JWTAudience  string
	SessionTTL   time.Duration
	CookieSecure bool

	GRPCHealthAddr string
}

// Load reads an optional .env file followed by the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{
		Addr:            getEnv("ADDR", ":8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		MediaRoot:       getEnv("MEDIA_ROOT", "media"),
		MediaURL:        getEnv("MEDIA_URL", "/media/"),
		MaxUploadSize:   getInt64("MAX_UPLOAD_SIZE", 10<<20),
		PlantNetBaseURL: getEnv("PLANTNET_BASE_URL", defaultPlantNetBaseURL),
		PlantNetAPIKey:  os.Getenv("PLANTNET_API_KEY"),
		DatabaseDriver:  strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres)),
		DatabaseDSN:     getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=plantid port=5432 sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		SessionTTL:      getDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure:    getBool("COOKIE_SECURE", false),
		GRPCHealthAddr:  os.Getenv("GRPC_HEALTH_ADDR"),
	}

	if !strings.HasPrefix(cfg.MediaURL, "/") {
		cfg.MediaURL = "/" + cfg.MediaURL
	}
	if !strings.HasSuffix(cfg.MediaURL, "/") {
		cfg.MediaURL += "/"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.SessionTTL <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("durations must be > 0 (got session=%s, shutdown=%s)", c.SessionTTL, c.ShutdownTimeout)
	}
	if strings.TrimSpace(c.MediaRoot) == "" {
		return errors.New("MEDIA_ROOT must not be empty")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}
