package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

const DefaultRuntimeSettingsFile = "settings.json"

// RuntimeSettings are the knobs adjustable through the web API while
// the server runs. They survive restarts via the settings file.
type RuntimeSettings struct {
	LLMModel       string `json:"llm_model"`
	LLMAPIKey      string `json:"llm_api_key"`
	LLMBaseURL     string `json:"llm_base_url"`
	CronExpr       string `json:"cron_expr"`
	WatchDir       string `json:"watch_dir"`
	TargetLanguage string `json:"target_language"`
	RateLimitRPM   int    `json:"rate_limit_rpm"`
	BatchSize      int    `json:"batch_size"`
}

func RuntimeSettingsFilePath(dataDir string) string {
	return filepath.Join(dataDir, getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile))
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.LLMModel) == "" {
		return fmt.Errorf("llm_model is required")
	}
	if strings.TrimSpace(s.LLMAPIKey) == "" {
		return fmt.Errorf("llm_api_key is required")
	}
	if strings.TrimSpace(s.CronExpr) != "" {
		if _, err := cron.ParseStandard(s.CronExpr); err != nil {
			return fmt.Errorf("invalid cron_expr: %w", err)
		}
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language: %w", err)
	}
	if s.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must not be negative")
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	return nil
}

// RuntimeSettings derives the initial mutable settings from the
// environment-resolved configuration.
func (s *Settings) RuntimeSettings(targetLang string) RuntimeSettings {
	return RuntimeSettings{
		LLMModel:       s.Provider.Model,
		LLMAPIKey:      s.Provider.APIKey,
		LLMBaseURL:     s.Provider.BaseURL,
		CronExpr:       s.Server.CronExpr,
		WatchDir:       s.Server.WatchDir,
		TargetLanguage: targetLang,
		RateLimitRPM:   DefaultRateLimitRPM,
		BatchSize:      DefaultBatchSize,
	}
}

// WithRuntimeSettings overlays mutable settings onto Settings.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Settings) {
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.Provider.Model = settings.LLMModel
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.Provider.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMBaseURL) != "" {
			c.Provider.BaseURL = settings.LLMBaseURL
		}
		if strings.TrimSpace(settings.CronExpr) != "" {
			c.Server.CronExpr = settings.CronExpr
		}
		if strings.TrimSpace(settings.WatchDir) != "" {
			c.Server.WatchDir = settings.WatchDir
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore serializes concurrent reads and updates of the
// mutable settings and keeps the settings file in sync.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

// NewRuntimeSettingsStore accepts an incomplete initial snapshot — a
// fresh install has no credentials yet. Validate gates updates, not
// construction, so the web API can supply the missing fields later.
func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
