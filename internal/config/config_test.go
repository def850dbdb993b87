package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Session.MaxRounds)
	assert.Equal(t, "python:3.11-slim", cfg.Execution.DockerImage)
	assert.True(t, cfg.Execution.InstallDependencies)
	assert.Equal(t, 60*time.Second, cfg.Execution.GetInstallTimeout())
	assert.Equal(t, []string{"gemini", "nvidia", "openai"}, cfg.LLM.Providers)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
session:
  max_rounds: 4
  budget: 90s
execution:
  sandbox: direct
  timeout: 5s
llm:
  providers: [gemini]
  specialists:
    scraping:
      model: gemini-2.5-pro
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Session.MaxRounds)
	assert.Equal(t, 90*time.Second, cfg.Session.GetBudget())
	assert.Equal(t, "direct", cfg.Execution.Sandbox)
	assert.Equal(t, 5*time.Second, cfg.Execution.GetTimeout())
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Specialists["scraping"].Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("ANALYST_SANDBOX_IMAGE", "python:3.12-slim")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "python:3.12-slim", cfg.Execution.DockerImage)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Session.MaxRounds = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Providers = nil
	assert.Error(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Default()
	cfg.LLM.Timeout = "not-a-duration"
	assert.Equal(t, 60*time.Second, cfg.LLM.GetTimeout())
	assert.Equal(t, cfg.Cache.GetTTL()/2, cfg.Cache.GetExecutionTTL())
}
