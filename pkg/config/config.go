package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string

	// VaultMasterKey keys national-ID encryption. Startup fails without it.
	VaultMasterKey string
	JWTSecret      string
	TokenTTL       time.Duration

	FaceAPIURL         string
	FaceMatchThreshold float64
	FaceMatchTimeout   time.Duration
	EmbedCacheTTL      time.Duration
	WarmInterval       time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("FACE_MATCH_THRESHOLD", "0.4"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FACE_MATCH_THRESHOLD: %w", err)
	}

	matchTimeout, err := strconv.Atoi(getEnv("FACE_MATCH_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid FACE_MATCH_TIMEOUT_SECONDS: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("EMBED_CACHE_TTL_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_CACHE_TTL_HOURS: %w", err)
	}

	warmInterval, err := strconv.Atoi(getEnv("EMBED_WARM_INTERVAL_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_WARM_INTERVAL_MINUTES: %w", err)
	}

	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_MINUTES", "480"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL_MINUTES: %w", err)
	}

	masterKey := os.Getenv("VAULT_MASTER_KEY")
	if masterKey == "" {
		return nil, errors.New("VAULT_MASTER_KEY is required")
	}

	return &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             dbPort,
		DBUser:             getEnv("DB_USER", "gatehouse"),
		DBPassword:         getEnv("DB_PASSWORD", "dev"),
		DBName:             getEnv("DB_NAME", "gatehouse"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		VaultMasterKey:     masterKey,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           time.Duration(tokenTTL) * time.Minute,
		FaceAPIURL:         getEnv("FACE_API_URL", "http://localhost:8501"),
		FaceMatchThreshold: threshold,
		FaceMatchTimeout:   time.Duration(matchTimeout) * time.Second,
		EmbedCacheTTL:      time.Duration(cacheTTL) * time.Hour,
		WarmInterval:       time.Duration(warmInterval) * time.Minute,
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
