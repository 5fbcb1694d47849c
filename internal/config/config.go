package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port               string
	StoreBackend       string
	PostgresURL        string
	TemporalAddress    string
	TemporalTaskQueue  string
	SecretsKey         string
	DefaultModel       string
	OpenRouterBaseURL  string
	HuggingFaceBaseURL string
	AnswerTimeout      int
	DetailedTimeout    int
	DefaultTemperature float64
	DefaultMaxTokens   int
}

func Load() Config {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:               getEnv("ANSWERD_PORT", "8090"),
		StoreBackend:       getEnv("ANSWERD_STORE", "postgres"),
		PostgresURL:        postgresURL,
		TemporalAddress:    getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:  getEnv("TEMPORAL_TASK_QUEUE", "answerd-asks"),
		SecretsKey:         getEnv("ANSWERD_SECRETS_KEY", ""),
		DefaultModel:       getEnv("ANSWERD_DEFAULT_MODEL", "amazon/nova-2-lite-v1:free"),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co"),
		AnswerTimeout:      getEnvInt("ANSWERD_TIMEOUT_SECONDS", 30),
		DetailedTimeout:    getEnvInt("ANSWERD_DETAILED_TIMEOUT_SECONDS", 120),
		DefaultTemperature: getEnvFloat("ANSWERD_DEFAULT_TEMPERATURE", 0.7),
		DefaultMaxTokens:   getEnvInt("ANSWERD_DEFAULT_MAX_TOKENS", 400),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "answerd")
	password := getEnv("POSTGRES_PASSWORD", "answerd")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "answerd")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
