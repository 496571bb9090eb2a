package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Appraisal backend (branch search, valuation, journey, booking)
	BackendBaseURL     string
	BackendAPIKey      string
	BackendTimeout     time.Duration
	BackendMaxAttempts int
	BackendBackoff     time.Duration

	// SMS (one-time passcode delivery)
	SMSProvider           string
	SMSBaseURL            string
	SMSAPIKey             string
	SMSMessagingProfileID string
	SMSFromNumber         string

	// OTP gate
	OTPMaxAttempts       int
	OTPCodeTTL           time.Duration
	OTPRequestsPerSecond float64
	OTPBurst             int

	// Session snapshots
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	DatabaseURL    string
	SlotWindowDays int

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		BackendBaseURL:     getEnv("BACKEND_BASE_URL", ""),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		BackendTimeout:     getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
		BackendMaxAttempts: getEnvAsInt("BACKEND_MAX_ATTEMPTS", 3),
		BackendBackoff:     getEnvAsDuration("BACKEND_BACKOFF", 250*time.Millisecond),

		SMSProvider:           strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "telnyx"))),
		SMSBaseURL:            getEnv("SMS_BASE_URL", "https://api.telnyx.com/v2"),
		SMSAPIKey:             getEnv("SMS_API_KEY", ""),
		SMSMessagingProfileID: getEnv("SMS_MESSAGING_PROFILE_ID", ""),
		SMSFromNumber:         getEnv("SMS_FROM_NUMBER", ""),

		OTPMaxAttempts:       getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
		OTPCodeTTL:           getEnvAsDuration("OTP_CODE_TTL", 5*time.Minute),
		OTPRequestsPerSecond: getEnvAsFloat("OTP_REQUESTS_PER_SECOND", 0.2),
		OTPBurst:             getEnvAsInt("OTP_BURST", 3),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SlotWindowDays: getEnvAsInt("SLOT_WINDOW_DAYS", 14),

		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
