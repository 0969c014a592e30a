package config

import (
	"os"
	"strconv"
	"time"

	"attune/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	AI       AIConfig
	Server   ServerConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// AIConfig holds oracle/drafter LLM settings
type AIConfig struct {
	OpenAIKey   string
	OpenAIModel string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// EngineConfig holds reconciliation engine tuning
type EngineConfig struct {
	// MaxRefinementCycles caps refinement loops per direction before the
	// circuit breaker forces ready
	MaxRefinementCycles int
	// OracleMaxAttempts bounds oracle retries before failing safe to ready
	OracleMaxAttempts int
	// OracleBackoffBase is the first retry delay; doubles per attempt
	OracleBackoffBase time.Duration
	// OfferTTL is how long a share offer stays open before expiry
	OfferTTL time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}
	config.AI = *aiConfig

	config.Server = *loadServerConfig()
	config.Engine = *loadEngineConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:     url,
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadAIConfig() (*AIConfig, error) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return nil, errors.ConfigInvalid("OPENAI_API_KEY is required")
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &AIConfig{
		OpenAIKey:   openaiKey,
		OpenAIModel: model,
		MaxTokens:   getEnvIntOrDefault("MAX_TOKENS", 1024),
		Temperature: getEnvFloatOrDefault("TEMPERATURE", 0.2),
		Timeout:     getEnvDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxRefinementCycles: getEnvIntOrDefault("MAX_REFINEMENT_CYCLES", 3),
		OracleMaxAttempts:   getEnvIntOrDefault("ORACLE_MAX_ATTEMPTS", 4),
		OracleBackoffBase:   getEnvDurationOrDefault("ORACLE_BACKOFF_BASE", 500*time.Millisecond),
		OfferTTL:            getEnvDurationOrDefault("OFFER_TTL", 24*time.Hour),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.AI.OpenAIKey == "" {
		return errors.ConfigInvalid("OpenAI API key is required")
	}
	if config.Engine.MaxRefinementCycles < 1 {
		return errors.ConfigInvalid("MAX_REFINEMENT_CYCLES must be at least 1")
	}
	if config.Engine.OracleMaxAttempts < 1 {
		return errors.ConfigInvalid("ORACLE_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
