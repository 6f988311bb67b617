package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/MimeLyc/doc-translator/internal/provider"
)

// DefaultLocalConfigFile is looked up in the working directory when no
// explicit path is given. Environment variables win over its values.
const DefaultLocalConfigFile = "local.config.json"

// Local mirrors the optional local config file. Keys match the
// environment variable names so one document serves both worlds.
type Local struct {
	OpenAPIKey    string         `json:"OPEN_API_KEY,omitempty"`
	LLMAPIKey     string         `json:"LLM_API_KEY,omitempty"`
	LLMModel      string         `json:"LLM_MODEL,omitempty"`
	LLMProvider   string         `json:"LLM_PROVIDER,omitempty"`
	OpenAIBaseURL string         `json:"OPENAI_BASE_URL,omitempty"`
	LLMBaseURL    string         `json:"LLM_BASE_URL,omitempty"`
	LLMEndpoint   string         `json:"LLM_ENDPOINT,omitempty"`
	Profiles      []LocalProfile `json:"LLM_PROFILES,omitempty"`
}

// LocalProfile is a named provider candidate declared in the local
// config file, used by the comparison step.
type LocalProfile struct {
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// LoadLocal reads the local config file. A missing file is not an
// error; it yields an empty overlay.
func LoadLocal(path string) (Local, error) {
	if path == "" {
		path = DefaultLocalConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Local{}, nil
		}
		return Local{}, fmt.Errorf("read local config %s: %w", path, err)
	}
	var local Local
	if err := json.Unmarshal(data, &local); err != nil {
		return Local{}, fmt.Errorf("parse local config %s: %w", path, err)
	}
	return local, nil
}

// Apply overlays local config values onto settings fields the
// environment left empty.
func (l Local) Apply(s *Settings) {
	if s.Provider.APIKey == "" {
		s.Provider.APIKey = firstNonEmpty(l.OpenAPIKey, l.LLMAPIKey)
	}
	if s.Provider.Model == "" {
		s.Provider.Model = l.LLMModel
	}
	if s.Provider.Kind == "" {
		s.Provider.Kind = l.LLMProvider
	}
	if s.Provider.BaseURL == "" {
		if provider.KindOf(s.Provider.Kind) == provider.KindOpenAI {
			s.Provider.BaseURL = firstNonEmpty(l.OpenAIBaseURL, l.LLMBaseURL)
		} else {
			s.Provider.BaseURL = l.LLMBaseURL
		}
	}
	if s.Provider.Endpoint == "" {
		s.Provider.Endpoint = l.LLMEndpoint
	}
}

// Candidates assembles the ordered provider candidate list for a
// comparison run: the job's default profile first, then the models
// the job names, then profiles declared in the local config file.
// Later duplicates (by name) are dropped, so declaration order is the
// tie-break order downstream.
func Candidates(job *Job, settings *Settings, local Local) []provider.Profile {
	base := job.Profile(settings.Provider)

	candidates := []provider.Profile{base}
	for _, model := range job.Compare.Models {
		candidate := base
		candidate.Name = model
		candidate.Model = model
		candidates = append(candidates, candidate)
	}
	for _, lp := range local.Profiles {
		candidate := provider.Profile{
			Name:     lp.Name,
			Provider: provider.KindOf(firstNonEmpty(lp.Provider, string(base.Provider))),
			Model:    firstNonEmpty(lp.Model, base.Model),
			BaseURL:  firstNonEmpty(lp.BaseURL, base.BaseURL),
			Endpoint: firstNonEmpty(lp.Endpoint, base.Endpoint),
			APIKey:   firstNonEmpty(lp.APIKey, base.APIKey),
		}
		if candidate.Name == "" {
			candidate.Name = candidate.Model
		}
		candidates = append(candidates, candidate)
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, candidate := range candidates {
		if candidate.Name == "" || seen[candidate.Name] {
			continue
		}
		seen[candidate.Name] = true
		unique = append(unique, candidate)
	}
	return unique
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
