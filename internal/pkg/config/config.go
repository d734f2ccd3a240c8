package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// GatewayConfig points at the LLM gateway that hosts the intake classifier and
// itinerary generator functions.
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestsPerSec float64
}

type AuthConfig struct {
	SecretKey       string
	TokenExpiration time.Duration
}

// IntakeConfig carries the product policy knobs of the trip intake flow. The
// acknowledgement words and premium airline list are market-specific
// heuristics, kept injectable rather than hard-coded.
type IntakeConfig struct {
	FreeMessageLimit     int
	AcknowledgementWords []string
	PremiumAirlines      []string
	SessionTTL           time.Duration
}

type LocationConfig struct {
	GeocoderBaseURL string
	LogoBaseURL     string
	CacheTTL        time.Duration
}

type Config struct {
	Repositories RepositoriesConfig
	Gateway      GatewayConfig
	Auth         AuthConfig
	Intake       IntakeConfig
	Location     LocationConfig
	ServerPort   string
}

var defaultAcknowledgements = []string{
	"gracias", "ok", "okay", "vale", "perfecto", "genial", "excelente",
	"thanks", "thank you", "great", "perfect", "awesome", "nice", "cool",
}

var defaultPremiumAirlines = []string{
	"emirates", "qatar", "singapore", "ana", "cathay", "lufthansa",
	"air france", "klm", "turkish", "etihad",
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "travesia"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnvOrDefault("GATEWAY_BASE_URL", "http://localhost:54321/functions/v1"),
			APIKey:         os.Getenv("GATEWAY_API_KEY"),
			Timeout:        getDurationOrDefault("GATEWAY_TIMEOUT", 90*time.Second),
			MaxRetries:     getIntOrDefault("GENERATION_MAX_RETRIES", 2),
			RetryBackoff:   getDurationOrDefault("GENERATION_RETRY_BACKOFF", time.Second),
			RequestsPerSec: getFloatOrDefault("GATEWAY_REQUESTS_PER_SEC", 5),
		},
		Auth: AuthConfig{
			SecretKey:       getEnvOrDefault("JWT_SECRET_KEY", ""),
			TokenExpiration: getDurationOrDefault("JWT_TOKEN_EXPIRATION", 24*time.Hour),
		},
		Intake: IntakeConfig{
			FreeMessageLimit:     getIntOrDefault("FREE_MESSAGE_LIMIT", 1),
			AcknowledgementWords: getListOrDefault("ACKNOWLEDGEMENT_WORDS", defaultAcknowledgements),
			PremiumAirlines:      getListOrDefault("PREMIUM_AIRLINES", defaultPremiumAirlines),
			SessionTTL:           getDurationOrDefault("SESSION_TTL", 2*time.Hour),
		},
		Location: LocationConfig{
			GeocoderBaseURL: getEnvOrDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
			LogoBaseURL:     getEnvOrDefault("LOGO_BASE_URL", "https://img.logo.dev"),
			CacheTTL:        getDurationOrDefault("LOCATION_CACHE_TTL", 15*time.Minute),
		},
		ServerPort: getEnvOrDefault("SERVER_PORT", "8091"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
