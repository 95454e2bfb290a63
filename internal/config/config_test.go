package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "CLASSIFIER_PROVIDER", "CLASSIFIER_MAX_TOKENS", "CLASSIFIER_TEMPERATURE", "NATS_URL", "AZURE_STORAGE_CONNECTION_STRING", "MAX_DELIVER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ProviderAzure, cfg.Provider)
	assert.Equal(t, "2025-01-01-preview", cfg.AzureAPIVersion)
	assert.Equal(t, 20, cfg.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.Equal(t, "cr001", cfg.ArtifactContainer)
	assert.Equal(t, "LogsAzFnOpenAI", cfg.ArtifactPrefix)
	assert.Equal(t, 30*time.Second, cfg.MaxAge)
	assert.Equal(t, 5, cfg.MaxDeliver)
	assert.Empty(t, cfg.NatsURL)
	assert.Empty(t, cfg.StorageConnectionString)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CLASSIFIER_PROVIDER", "Anthropic")
	t.Setenv("CLASSIFIER_MAX_TOKENS", "32")
	t.Setenv("CLASSIFIER_TEMPERATURE", "0.25")
	t.Setenv("QUEUE_MAX_AGE", "not-a-duration")
	t.Setenv("WORKER_CONCURRENCY", "x")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, 32, cfg.MaxTokens)
	assert.InDelta(t, 0.25, cfg.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.MaxAge)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, cfg.AnthropicModel, cfg.ClassifierModel())
}

func TestLoadEnvFile(t *testing.T) {
	// t.Setenv restores the original value; the variable must be unset for the file to apply
	t.Setenv("AZURE_OPENAI_MODEL", "")
	require.NoError(t, os.Unsetenv("AZURE_OPENAI_MODEL"))
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://already-set.example.com")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "# comment\nAZURE_OPENAI_MODEL=gpt-4o-mini\nAZURE_OPENAI_ENDPOINT=https://from-file.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.AzureModel)
	// variables already present in the environment win over the file
	assert.Equal(t, "https://already-set.example.com", cfg.AzureEndpoint)
	assert.Equal(t, "gpt-4o-mini", cfg.ClassifierModel())
}

func TestLoadMissingEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
