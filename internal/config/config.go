package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the bot.
//
// Environment Variables:
// - GENAI_API_KEY: API key for the text generation service (required)
// - GENAI_BASE_URL: OpenAI-compatible endpoint (default: Gemini OpenAI endpoint)
// - GENAI_MODEL: Model name (default: gemini-2.0-flash)
// - GENAI_TIMEOUT: Request timeout (default: 30s)
// - PORT: Status page port (default: 3000)
// - CATALOG_BASE_URL: Base URL of the catalog backend (default: http://localhost:8000)
// - IMAGE_PROXY_URL: Image proxy used when a page host refuses us (default: https://wsrv.nl/)
// - COMMAND_PREFIX: Prefix required in group chats (default: .nime)
// - SESSION_DB: whatsmeow sqlite store DSN (default: file:session.db?_foreign_keys=on)
// - LOG_LEVEL: debug, info, warn, error (default: info)
type Config struct {
	GenAI   GenAIConfig
	Catalog CatalogConfig

	Port          string
	CommandPrefix string
	SessionDB     string
	LogLevel      string
}

type GenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type CatalogConfig struct {
	BaseURL       string
	ImageProxyURL string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GenAI: GenAIConfig{
			APIKey:  getEnvString("GENAI_API_KEY", ""),
			BaseURL: getEnvString("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
			Model:   getEnvString("GENAI_MODEL", "gemini-2.0-flash"),
			Timeout: getEnvDuration("GENAI_TIMEOUT", 30*time.Second),
		},
		Catalog: CatalogConfig{
			BaseURL:       strings.TrimRight(getEnvString("CATALOG_BASE_URL", "http://localhost:8000"), "/"),
			ImageProxyURL: getEnvString("IMAGE_PROXY_URL", "https://wsrv.nl/"),
		},
		Port:          getEnvString("PORT", "3000"),
		CommandPrefix: getEnvString("COMMAND_PREFIX", ".nime"),
		SessionDB:     getEnvString("SESSION_DB", "file:session.db?_foreign_keys=on"),
		LogLevel:      getEnvString("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GenAI.APIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be blank")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
