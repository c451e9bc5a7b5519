// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// WhatsApp Cloud API settings
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAPIBase       string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	LLMProvider     string
	CompletionModel string
	EmbeddingModel  string

	// Geocoding settings
	GoogleMapsAPIKey string
	CountryName      string
	CountryCode      string

	// Matching settings
	MatchSymptomWeight float64
	MatchServiceWeight float64
	MatchThreshold     float64
	MatchRadiusKM      float64
	MatchTopK          int

	// ProviderTimeout bounds every geocoding, completion and embedding call.
	ProviderTimeout time.Duration
	// HandleTimeout bounds the processing of one inbound message.
	HandleTimeout time.Duration

	// Event stream
	NATSURL   string
	NATSToken string

	// Admin API
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),

		// WhatsApp
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_HOOK_TOKEN", ""),
		WhatsAppAPIBase:       getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v18.0"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMProvider:     getEnv("LLM_PROVIDER", "openai"),
		CompletionModel: getEnv("COMPLETION_MODEL", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		// Geocoding
		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		CountryName:      getEnv("TARGET_COUNTRY", "Guatemala"),
		CountryCode:      getEnv("TARGET_COUNTRY_CODE", "GT"),

		// Matching
		MatchSymptomWeight: getFloatEnv("MATCH_SYMPTOM_WEIGHT", 0.7),
		MatchServiceWeight: getFloatEnv("MATCH_SERVICE_WEIGHT", 0.3),
		MatchThreshold:     getFloatEnv("MATCH_THRESHOLD", 0.35),
		MatchRadiusKM:      getFloatEnv("MATCH_RADIUS_KM", 15),
		MatchTopK:          getIntEnv("MATCH_TOP_K", 2),

		// Timeouts
		ProviderTimeout: getDurationEnv("PROVIDER_TIMEOUT", 15*time.Second),
		HandleTimeout:   getDurationEnv("HANDLE_TIMEOUT", 60*time.Second),

		// Event stream
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// Admin API
		JWTSecret:         getEnv("JWT_SECRET", "development-secret-change-in-production"),
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
