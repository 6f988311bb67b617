package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		LLMModel:       "gpt-test",
		LLMAPIKey:      "key",
		CronExpr:       "*/5 * * * *",
		WatchDir:       "/watch",
		TargetLanguage: "zh",
		RateLimitRPM:   60,
		BatchSize:      20,
	}
}

func TestRuntimeSettings_Validate(t *testing.T) {
	require.NoError(t, validRuntimeSettings().Validate())

	s := validRuntimeSettings()
	s.LLMModel = " "
	require.Error(t, s.Validate())

	s = validRuntimeSettings()
	s.LLMAPIKey = ""
	require.Error(t, s.Validate())

	s = validRuntimeSettings()
	s.CronExpr = "not a cron"
	require.Error(t, s.Validate())

	// An empty cron expression just disables the schedule.
	s = validRuntimeSettings()
	s.CronExpr = ""
	require.NoError(t, s.Validate())

	s = validRuntimeSettings()
	s.TargetLanguage = "!!bad!!"
	require.Error(t, s.Validate())

	s = validRuntimeSettings()
	s.RateLimitRPM = -1
	require.Error(t, s.Validate())
}

func TestSettings_RuntimeSettings(t *testing.T) {
	settings := &Settings{
		Provider: ProviderSettings{Model: "m", APIKey: "k", BaseURL: "https://x"},
		Server:   ServerSettings{CronExpr: "0 * * * *", WatchDir: "/docs"},
	}

	rs := settings.RuntimeSettings("ja")
	assert.Equal(t, "m", rs.LLMModel)
	assert.Equal(t, "0 * * * *", rs.CronExpr)
	assert.Equal(t, "ja", rs.TargetLanguage)
	assert.Equal(t, DefaultRateLimitRPM, rs.RateLimitRPM)
	assert.Equal(t, DefaultBatchSize, rs.BatchSize)
}

func TestWithRuntimeSettings_OverlaysNonEmptyFields(t *testing.T) {
	settings := &Settings{
		Provider: ProviderSettings{Model: "env-model", APIKey: "env-key"},
		Server:   ServerSettings{CronExpr: "*/5 * * * *"},
	}

	WithRuntimeSettings(RuntimeSettings{LLMModel: "override", CronExpr: ""})(settings)
	assert.Equal(t, "override", settings.Provider.Model)
	assert.Equal(t, "env-key", settings.Provider.APIKey)
	assert.Equal(t, "*/5 * * * *", settings.Server.CronExpr)
}

func TestRuntimeSettingsFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := validRuntimeSettings()
	require.NoError(t, WriteRuntimeSettingsFile(path, original))

	loaded, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	_, err = os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRuntimeSettingsFile_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	invalid := validRuntimeSettings()
	invalid.LLMModel = ""
	require.Error(t, WriteRuntimeSettingsFile(path, invalid))

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRuntimeSettingsStore_UpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewRuntimeSettingsStore(path, validRuntimeSettings())
	require.NoError(t, err)

	next := validRuntimeSettings()
	next.LLMModel = "updated-model"
	updated, err := store.UpdateRuntimeSettings(next)
	require.NoError(t, err)
	assert.Equal(t, "updated-model", updated.LLMModel)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, "updated-model", current.LLMModel)

	persisted, err := LoadRuntimeSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, "updated-model", persisted.LLMModel)
}

func TestRuntimeSettingsStore_AcceptsIncompleteInitial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	// A fresh install has neither credentials nor a settings file; the
	// store must still come up so the API can receive them.
	store, err := NewRuntimeSettingsStore(path, RuntimeSettings{})
	require.NoError(t, err)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Empty(t, current.LLMModel)

	// The first valid update brings the settings file into existence.
	saved, err := store.UpdateRuntimeSettings(validRuntimeSettings())
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", saved.LLMModel)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestRuntimeSettingsStore_RejectsInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store, err := NewRuntimeSettingsStore(path, validRuntimeSettings())
	require.NoError(t, err)

	bad := validRuntimeSettings()
	bad.LLMAPIKey = ""
	_, err = store.UpdateRuntimeSettings(bad)
	require.Error(t, err)

	current, err := store.GetRuntimeSettings()
	require.NoError(t, err)
	assert.Equal(t, "key", current.LLMAPIKey)
}
