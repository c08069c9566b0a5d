// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "loopguard", cfg.Logger.ServiceName)
	assert.Equal(t, 100*time.Millisecond, cfg.Runner.TickInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Runner.ActionDelay)
	assert.Equal(t, BackendFake, cfg.Backend.Kind)
	assert.Equal(t, 1, cfg.Backend.HashDownscale)
	assert.Equal(t, ProviderMock, cfg.LLM.Provider)
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 128, cfg.OCR.CacheSize)
	assert.True(t, cfg.Backend.Browser.Humanoid.Enabled)
	assert.Equal(t, 24, cfg.Backend.Browser.Humanoid.Steps)
	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Runner Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		invalidTick := *cfg
		invalidTick.Runner.TickInterval = 0
		err := invalidTick.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runner.tick_interval must be a positive duration")

		invalidBuffer := *cfg
		invalidBuffer.Runner.EventBuffer = -1
		err = invalidBuffer.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runner.event_buffer must be a positive integer")
	})

	t.Run("Backend Validation", func(t *testing.T) {
		valid := BackendConfig{Kind: BackendFake, HashDownscale: 1}
		assert.NoError(t, valid.Validate())

		unknown := valid
		unknown.Kind = "x11"
		err := unknown.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `got "x11"`)

		browser := valid
		browser.Kind = BackendBrowser
		err = browser.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.width and browser.height must be positive")
	})

	t.Run("LLM Validation", func(t *testing.T) {
		mock := LLMConfig{Provider: ProviderMock}
		assert.NoError(t, mock.Validate(), "the mock provider needs no credentials")

		valid := LLMConfig{Provider: ProviderGemini, APIKey: "k", MaxTokens: 300, Temperature: 0.7}
		assert.NoError(t, valid.Validate())

		missingKey := valid
		missingKey.APIKey = ""
		err := missingKey.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key is required")

		badTemp := valid
		badTemp.Temperature = 3
		err = badTemp.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temperature must be between 0.0 and 2.0")

		unknown := valid
		unknown.Provider = "ollama"
		err = unknown.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown provider "ollama"`)
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
runner:
  tick_interval: 250ms
backend:
  kind: browser
  browser:
    url: "http://localhost:3000"
ocr:
  enabled: true
  cache_size: 16
journal:
  enabled: false
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 250*time.Millisecond, cfg.Runner.TickInterval)
		assert.Equal(t, BackendBrowser, cfg.Backend.Kind)
		assert.Equal(t, "http://localhost:3000", cfg.Backend.Browser.URL)
		assert.Equal(t, 16, cfg.OCR.CacheSize)
		// Defaults survive alongside file values.
		assert.Equal(t, 1280, cfg.Backend.Browser.Width)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("runner.event_buffer", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "runner.event_buffer must be a positive integer")
	})

	t.Run("Provider Environment Variables", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENAI_MODEL", "gpt-4.1-mini")
		t.Setenv("OPENAI_API_ENDPOINT", "http://localhost:8080/v1")

		v := viper.New()
		SetDefaults(v)
		v.Set("llm.provider", "openai")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sk-test", cfg.LLM.APIKey)
		assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
		assert.Equal(t, "http://localhost:8080/v1", cfg.LLM.Endpoint)
	})

	t.Run("Fake Flags Override Selection", func(t *testing.T) {
		t.Setenv("LOOPGUARD_FAKE_LLM", "true")
		t.Setenv("LOOPGUARD_BACKEND", "fake")

		v := viper.New()
		SetDefaults(v)
		v.Set("llm.provider", "gemini")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err, "a fake provider needs no API key")
		assert.Equal(t, ProviderMock, cfg.LLM.Provider)
		assert.Equal(t, BackendFake, cfg.Backend.Kind)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home, err := homedir.Dir()
		require.NoError(t, err)

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config/loopguard/profiles.yaml"), cfg.Profiles.Path)
	})
}
