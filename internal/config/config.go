package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLen = 32

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string
	PostgresDSN string
	MongoURI    string
	MongoDB     string

	// RedisAddr is optional; when empty logged-out sessions are not
	// tracked server-side and only the cookie is cleared.
	RedisAddr     string
	RedisPassword string

	SessionSecret      string
	SessionIdleTimeout time.Duration
	SessionMaxLifetime time.Duration
	CookieSecure       bool

	CORSAllowedOrigins []string

	LogLevel string
	LogJSON  bool
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getenv("PORT", "8080"),
		PostgresDSN:        getenv("POSTGRES_DSN", ""),
		MongoURI:           getenv("MONGO_URI", ""),
		MongoDB:            getenv("MONGO_DB", "task_tracker"),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		SessionSecret:      getenv("SESSION_SECRET", ""),
		SessionIdleTimeout: getduration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionMaxLifetime: getduration("SESSION_MAX_LIFETIME", 12*time.Hour),
		CookieSecure:       getenv("COOKIE_SECURE", "false") == "true",
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "")),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogJSON:            getenv("LOG_FORMAT", "text") == "json",
	}
}

// Validate reports the first missing or unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.PostgresDSN == "":
		return errors.New("POSTGRES_DSN is not set")
	case c.MongoURI == "":
		return errors.New("MONGO_URI is not set")
	case c.SessionSecret == "":
		return errors.New("SESSION_SECRET is not set")
	case len(c.SessionSecret) < minSecretLen:
		return errors.New("SESSION_SECRET must be at least 32 bytes")
	case c.SessionIdleTimeout <= 0 || c.SessionMaxLifetime <= 0:
		return errors.New("session timeouts must be positive")
	case c.SessionIdleTimeout > c.SessionMaxLifetime:
		return errors.New("SESSION_IDLE_TIMEOUT exceeds SESSION_MAX_LIFETIME")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
