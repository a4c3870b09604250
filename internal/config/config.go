package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabasePath   string
	MigrationsPath string
	LogLevel       string
	PublicBaseURL  string

	// S3
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3UseSSL          bool
	S3PublicURL       string

	// Hosted model API (OpenAI-compatible chat completions)
	AIAPIURL            string
	AIAPIKey            string
	AIModel             string
	AIVisionModel       string
	AITimeout           time.Duration
	AIRequestsPerSecond float64

	// Speech-to-text
	SpeechAPIURL string
	SpeechAPIKey string
	SpeechModel  string

	// Reverse geocoding
	GeocoderURL       string
	GeocoderUserAgent string

	// Redis (optional, shared rate-limit counters)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Only honour X-Forwarded-For / X-Real-IP behind a proxy that overwrites them
	TrustProxyHeaders bool

	OfficerJWTSecret string

	// Upload limits
	MaxUploadSize int64
	MaxImages     int

	SessionTTL time.Duration

	// TrueType font for PDF reports; needed for Devanagari text
	ReportFontPath string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "data/unitydesk.db"),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "internal/db/migrations"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		S3Endpoint:          getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKeyID:       getEnv("S3_ACCESS_KEY_ID", "minioadmin"),
		S3SecretAccessKey:   getEnv("S3_SECRET_ACCESS_KEY", "minioadmin"),
		S3BucketName:        getEnv("S3_BUCKET_NAME", "complaints"),
		S3UseSSL:            getEnvBool("S3_USE_SSL", false),
		S3PublicURL:         getEnv("S3_PUBLIC_URL", ""),
		AIAPIURL:            getEnv("AI_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		AIAPIKey:            getEnv("AI_API_KEY", ""),
		AIModel:             getEnv("AI_MODEL", "openai/gpt-4o-mini"),
		AIVisionModel:       getEnv("AI_VISION_MODEL", "openai/gpt-4o-mini"),
		AITimeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
		AIRequestsPerSecond: getEnvFloat("AI_REQUESTS_PER_SECOND", 5),
		SpeechAPIURL:        getEnv("SPEECH_API_URL", "https://api.openai.com/v1/audio/transcriptions"),
		SpeechAPIKey:        getEnv("SPEECH_API_KEY", ""),
		SpeechModel:         getEnv("SPEECH_MODEL", "whisper-1"),
		GeocoderURL:         getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org/reverse"),
		GeocoderUserAgent:   getEnv("GEOCODER_USER_AGENT", "unitydesk-api/1.0"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RateLimitRequests:   getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		TrustProxyHeaders:   getEnvBool("TRUST_PROXY_HEADERS", false),
		OfficerJWTSecret:    getEnv("OFFICER_JWT_SECRET", ""),
		MaxUploadSize:       int64(getEnvInt("MAX_UPLOAD_SIZE", 20*1024*1024)),
		MaxImages:           getEnvInt("MAX_IMAGES", 5),
		SessionTTL:          getEnvDuration("SESSION_TTL", time.Hour),
		ReportFontPath:      getEnv("REPORT_FONT_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first configuration problem that would prevent startup.
func (c *Config) Validate() error {
	if c.AIAPIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.OfficerJWTSecret == "" {
		return fmt.Errorf("OFFICER_JWT_SECRET is required")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.MaxImages <= 0 {
		return fmt.Errorf("MAX_IMAGES must be positive, got %d", c.MaxImages)
	}
	return nil
}

// SpeechEnabled reports whether voice recordings can be transcribed.
func (c *Config) SpeechEnabled() bool {
	return c.SpeechAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
