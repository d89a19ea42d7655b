package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOffline   = "offline"
)

type Config struct {
	AIProvider      string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GenerationModel string
	EmbeddingModel  string

	EmbeddingDimensions int
	AITimeout           time.Duration
	AIRequestsPerSecond float64
	AIBurst             int

	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	JWTSecret string
	JWTTTL    time.Duration

	RateLimitCleanupInterval time.Duration
}

var AppConfig Config

// LoadConfig reads envFile (or .env when empty) if present, then the process
// environment, into AppConfig. It exits on an invalid configuration.
func LoadConfig(envFile string) {
	files := []string{}
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = FromEnv()

	if err := Validate(AppConfig); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() Config {
	return Config{
		AIProvider:      strings.ToLower(getEnv("AI_PROVIDER", ProviderGemini)),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GenerationModel: getEnv("GENERATION_MODEL", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", ""),

		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
		AITimeout:           getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
		AIRequestsPerSecond: getEnvAsFloat("AI_REQUESTS_PER_SECOND", 5),
		AIBurst:             getEnvAsInt("AI_BURST", 5),

		DatabaseURL: getEnv("DATABASE_URL", "writing_studio.db"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		RateLimitCleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

func Validate(cfg Config) error {
	var errs []error

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}

	switch cfg.AIProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required for the gemini provider"))
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is required for the openai provider"))
		}
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY environment variable is required for the anthropic provider"))
		}
	case ProviderOffline:
	default:
		errs = append(errs, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider))
	}

	if cfg.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingDimensions))
	}
	if cfg.AITimeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Debugf logs only when LOG_LEVEL is DEBUG.
func Debugf(format string, args ...any) {
	if AppConfig.LogLevel == "DEBUG" {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
