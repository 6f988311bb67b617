package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/provider"
)

// Settings holds process-level configuration resolved from the
// environment and the optional local config file.
//
// Environment Variables:
// Provider Configuration:
// - OPEN_API_KEY: API key for the translation provider (preferred)
// - OPENAI_API_KEY / LLM_API_KEY: API key fallbacks
// - LLM_MODEL: Model name (fallback: OPENAI_MODEL)
// - LLM_PROVIDER: Provider kind, "openai" or "compatible"
// - OPENAI_BASE_URL: Base URL for the openai provider
// - LLM_BASE_URL: Base URL for compatible providers (also openai fallback)
// - OPENAI_ENDPOINT / LLM_ENDPOINT: Endpoint path override
// - LLM_TIMEOUT: Request timeout in seconds (default: 120)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.3)
//
// Server Configuration:
// - HTTP_ADDR: Listen address for serve mode (default: :8080)
// - DATA_DIR: State directory for jobs and the SQLite store (default: ./data)
// - CRON_EXPR: Schedule for watch mode (default: "*/5 * * * *")
// - WATCH_DIR: Directory scanned in watch mode
// - LOG_LEVEL: debug, info, warn or error (default: info)
type Settings struct {
	Provider ProviderSettings `json:"provider"`
	Server   ServerSettings   `json:"server"`
	LogLevel string           `json:"log_level"`
}

// ProviderSettings is the environment-derived default provider profile.
type ProviderSettings struct {
	Kind           string  `json:"kind"`
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	BaseURL        string  `json:"base_url"`
	Endpoint       string  `json:"endpoint"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	Temperature    float64 `json:"temperature"`
}

// ServerSettings configures serve and watch modes.
type ServerSettings struct {
	HTTPAddr string `json:"http_addr"`
	DataDir  string `json:"data_dir"`
	CronExpr string `json:"cron_expr"`
	WatchDir string `json:"watch_dir"`
}

// Option is a function type for configuring Settings.
type Option func(*Settings)

// NewFromEnv creates Settings from environment variables and options.
func NewFromEnv(opts ...Option) *Settings {
	settings := &Settings{
		Provider: ProviderSettings{
			Kind:           getEnvString("LLM_PROVIDER", ""),
			APIKey:         firstEnv("OPEN_API_KEY", "OPENAI_API_KEY", "LLM_API_KEY"),
			Model:          firstEnv("LLM_MODEL", "OPENAI_MODEL"),
			BaseURL:        "",
			Endpoint:       firstEnv("OPENAI_ENDPOINT", "LLM_ENDPOINT"),
			TimeoutSeconds: getEnvInt("LLM_TIMEOUT", 120),
			Temperature:    getEnvFloat("LLM_TEMPERATURE", 0.3),
		},
		Server: ServerSettings{
			HTTPAddr: getEnvString("HTTP_ADDR", ":8080"),
			DataDir:  getEnvString("DATA_DIR", "./data"),
			CronExpr: getEnvString("CRON_EXPR", "*/5 * * * *"),
			WatchDir: getEnvString("WATCH_DIR", ""),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}
	settings.Provider.BaseURL = settings.providerBaseURL()

	for _, opt := range opts {
		opt(settings)
	}
	return settings
}

// providerBaseURL resolves the base URL with kind-dependent precedence:
// the openai kind prefers OPENAI_BASE_URL, compatible kinds use
// LLM_BASE_URL only.
func (s *Settings) providerBaseURL() string {
	if provider.KindOf(s.Provider.Kind) == provider.KindOpenAI {
		return firstEnv("OPENAI_BASE_URL", "LLM_BASE_URL")
	}
	return getEnvString("LLM_BASE_URL", "")
}

// Profile converts the provider settings into a named profile.
func (p ProviderSettings) Profile(name string) provider.Profile {
	return provider.Profile{
		Name:     name,
		Provider: provider.KindOf(p.Kind),
		Model:    p.Model,
		BaseURL:  p.BaseURL,
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
	}
}

// DBPath returns the SQLite store location under the data dir.
func (s ServerSettings) DBPath() string {
	return strings.TrimSuffix(s.DataDir, "/") + "/doc-translator.db"
}

// Validate checks settings needed before any translation can run.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Provider.APIKey) == "" {
		return fmt.Errorf("provider API key is required (set OPEN_API_KEY)")
	}
	if strings.TrimSpace(s.Provider.Model) == "" {
		return fmt.Errorf("provider model is required (set LLM_MODEL)")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv returns the first non-empty value among the given keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
