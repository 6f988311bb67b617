package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/doc-translator/internal/provider"
)

func TestLoadLocal_MissingFileIsEmpty(t *testing.T) {
	local, err := LoadLocal(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Local{}, local)
}

func TestLoadLocal_ParsesEnvNamedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"OPEN_API_KEY": "file-key",
		"LLM_MODEL": "file-model",
		"LLM_PROVIDER": "compatible",
		"LLM_BASE_URL": "https://file.example.com",
		"LLM_PROFILES": [
			{"name": "alt", "model": "alt-model", "api_key": "alt-key"}
		]
	}`), 0o644))

	local, err := LoadLocal(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", local.OpenAPIKey)
	assert.Equal(t, "file-model", local.LLMModel)
	require.Len(t, local.Profiles, 1)
	assert.Equal(t, "alt", local.Profiles[0].Name)
}

func TestLoadLocal_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := LoadLocal(path)
	require.Error(t, err)
}

func TestLocal_ApplyOnlyFillsGaps(t *testing.T) {
	local := Local{
		OpenAPIKey: "file-key",
		LLMModel:   "file-model",
		LLMBaseURL: "https://file.example.com",
	}

	// Environment already set the key; the file fills the rest.
	s := &Settings{Provider: ProviderSettings{APIKey: "env-key"}}
	local.Apply(s)
	assert.Equal(t, "env-key", s.Provider.APIKey)
	assert.Equal(t, "file-model", s.Provider.Model)
	assert.Equal(t, "https://file.example.com", s.Provider.BaseURL)
}

func TestLocal_ApplyBaseURLDependsOnKind(t *testing.T) {
	local := Local{
		OpenAIBaseURL: "https://openai.example.com",
		LLMBaseURL:    "https://compat.example.com",
	}

	s := &Settings{Provider: ProviderSettings{Kind: "openai"}}
	local.Apply(s)
	assert.Equal(t, "https://openai.example.com", s.Provider.BaseURL)

	s = &Settings{Provider: ProviderSettings{Kind: "compatible"}}
	local.Apply(s)
	assert.Equal(t, "https://compat.example.com", s.Provider.BaseURL)
}

func TestCandidates_OrderAndDedupe(t *testing.T) {
	settings := &Settings{Provider: ProviderSettings{
		Kind:   "openai",
		APIKey: "env-key",
		Model:  "base-model",
	}}
	job := validJob()
	job.Compare = Compare{Enabled: true, Models: []string{"m1", "m2", "m1"}}
	local := Local{Profiles: []LocalProfile{
		{Name: "alt", Provider: "compatible", Model: "alt-model", BaseURL: "https://alt.example.com"},
		{Name: "m2", Model: "shadowed"},
		{Model: "nameless-model"},
	}}

	candidates := Candidates(&job, settings, local)

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	// Base profile first, then compare models, then local profiles;
	// later duplicates dropped, nameless profiles named by model.
	assert.Equal(t, []string{"default", "m1", "m2", "alt", "nameless-model"}, names)

	// Compare models inherit the base credentials.
	assert.Equal(t, "env-key", candidates[1].APIKey)
	assert.Equal(t, "m1", candidates[1].Model)

	// Local profiles inherit gaps and resolve their own kind.
	assert.Equal(t, provider.KindOpenAICompatible, candidates[3].Provider)
	assert.Equal(t, "env-key", candidates[3].APIKey)

	// The duplicated "m2" kept the compare-model definition.
	assert.Equal(t, "m2", candidates[2].Model)
}
