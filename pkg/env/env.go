package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string

	LogLevel           string
	CORSAllowedOrigins string

	// Tenant store
	StoreDriver string
	MongoURI    string
	DBName      string

	// Empty disables rate limiting, idempotency keys and the voice cache
	RedisURL string

	// Agent platform (Millis AI)
	MillisAPIURL      string
	MillisAPIToken    string
	MillisAPIAuth     string
	PlatformTimeoutMs int

	WebhookSecret string

	// Empty disables bearer auth on /api resource routes
	JWTSecret    string
	JWTIssuer    string
	AccessTTLMin int

	StagingDir string
	GCSEnabled bool

	VoiceLanguage    string
	VoiceCacheTTLSec int
	APIRateLimitRPM  int

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env is fine, production reads the process environment
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "3001"),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		StoreDriver: getEnv("STORE_DRIVER", "mongo"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "agent_console"),

		RedisURL: getEnv("REDIS_URL", ""),

		MillisAPIURL:      getEnv("MILLIS_API_URL", "https://api-west.millis.ai"),
		MillisAPIToken:    getEnv("MILLIS_API_TOKEN", ""),
		MillisAPIAuth:     getEnv("MILLIS_API_AUTH", ""),
		PlatformTimeoutMs: getEnvInt("PLATFORM_TIMEOUT_MS", 30000),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "agent-console"),
		AccessTTLMin: getEnvInt("ACCESS_TTL_MIN", 60),

		StagingDir: getEnv("STAGING_DIR", os.TempDir()),
		GCSEnabled: getEnvBool("GCS_ENABLED", false),

		VoiceLanguage:    getEnv("VOICE_LANGUAGE", "en"),
		VoiceCacheTTLSec: getEnvInt("VOICE_CACHE_TTL_SEC", 600),
		APIRateLimitRPM:  getEnvInt("API_RATE_LIMIT_RPM", 180),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.MillisAPIToken == "" {
		return fmt.Errorf("required environment variable MILLIS_API_TOKEN is not set")
	}

	switch strings.ToLower(c.StoreDriver) {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want mongo or memory)", c.StoreDriver)
	}

	if c.PlatformTimeoutMs <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT_MS must be positive, got %d", c.PlatformTimeoutMs)
	}

	return nil
}

func (c *Config) PlatformTimeout() time.Duration {
	return time.Duration(c.PlatformTimeoutMs) * time.Millisecond
}

func (c *Config) VoiceCacheTTL() time.Duration {
	return time.Duration(c.VoiceCacheTTLSec) * time.Second
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
