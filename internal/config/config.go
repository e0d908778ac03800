// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
	CacheBackendS3     = "s3"
)

// LLM providers
const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for the cache database and file cache (always absolute)
	LogLevel        string
	Port            int
	DevMode         bool
	MaxLookbackDays int
	Credentials     Credentials
	Cache           CacheConfig
	LLM             LLMConfig
}

// Credentials holds provider API keys. An empty key means the provider is not configured.
type Credentials struct {
	FinnhubAPIKey      string
	AlphaVantageAPIKey string
	TwelveDataAPIKey   string
}

// CacheConfig configures the durable fact cache
type CacheConfig struct {
	Backend         string
	TTL             time.Duration
	Retention       time.Duration // Entries older than this are pruned by the cleanup job
	CleanupSchedule string        // cron expression with seconds field
	S3              S3Config
}

// S3Config configures the object-store cache backend (AWS S3 or Cloudflare R2)
type S3Config struct {
	Bucket          string
	Endpoint        string // Empty for AWS, account endpoint for R2
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// LLMConfig configures the rate-limited LLM client
type LLMConfig struct {
	Provider        string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MaxRPS          int
	RetryAttempts   int
	RetryDelay      time.Duration
	Timeout         time.Duration
}

// APIKey returns the key for the configured provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == LLMProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("MARKETFACTS_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         dataDir,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		MaxLookbackDays: getEnvAsInt("MAX_LOOKBACK_DAYS", 7),
		Credentials: Credentials{
			FinnhubAPIKey:      getEnv("FINNHUB_API_KEY", ""),
			AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
			TwelveDataAPIKey:   getEnv("TWELVEDATA_API_KEY", ""),
		},
		Cache: CacheConfig{
			Backend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendSQLite)),
			TTL:             getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			Retention:       getEnvAsDuration("CACHE_RETENTION", 366*24*time.Hour),
			CleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "0 30 3 * * *"),
			S3: S3Config{
				Bucket:          getEnv("CACHE_S3_BUCKET", ""),
				Endpoint:        getEnv("CACHE_S3_ENDPOINT", ""),
				Region:          getEnv("CACHE_S3_REGION", "auto"),
				AccessKeyID:     getEnv("CACHE_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("CACHE_S3_SECRET_ACCESS_KEY", ""),
				Prefix:          getEnv("CACHE_S3_PREFIX", "fact-cache/"),
			},
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderOpenAI)),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			MaxRPS:          getEnvAsInt("LLM_MAX_RPS", 3),
			RetryAttempts:   getEnvAsInt("OPENAI_RETRY_ATTEMPTS", 3),
			RetryDelay:      time.Duration(getEnvAsInt("OPENAI_RETRY_DELAY_MS", 2000)) * time.Millisecond,
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendFile, CacheBackendMemory:
	case CacheBackendS3:
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("CACHE_S3_BUCKET is required for the s3 cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}

	if c.LLM.MaxRPS <= 0 {
		return fmt.Errorf("LLM_MAX_RPS must be positive, got %d", c.LLM.MaxRPS)
	}
	if c.LLM.RetryAttempts < 1 {
		c.LLM.RetryAttempts = 1
	}
	if c.MaxLookbackDays < 0 {
		return fmt.Errorf("MAX_LOOKBACK_DAYS must not be negative, got %d", c.MaxLookbackDays)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
