// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	Alarm    AlarmConfig    `mapstructure:"alarm" yaml:"alarm"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Profiles ProfilesConfig `mapstructure:"profiles" yaml:"profiles"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// RunnerConfig controls the host polling loop.
type RunnerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	ActionDelay  time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	EventBuffer  int           `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// Backend kinds.
const (
	BackendFake    = "fake"
	BackendBrowser = "browser"
)

// BackendConfig selects the screen capture and input synthesis implementation.
type BackendConfig struct {
	Kind          string        `mapstructure:"kind" yaml:"kind"`
	HashDownscale int           `mapstructure:"hash_downscale" yaml:"hash_downscale"`
	Browser       BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Fake          FakeConfig    `mapstructure:"fake" yaml:"fake"`
}

// BrowserConfig configures the chromedp-driven backend.
type BrowserConfig struct {
	URL      string         `mapstructure:"url" yaml:"url"`
	Headless bool           `mapstructure:"headless" yaml:"headless"`
	Width    int            `mapstructure:"width" yaml:"width"`
	Height   int            `mapstructure:"height" yaml:"height"`
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// FakeConfig sizes the in-memory display of the fake backend.
type FakeConfig struct {
	DisplayWidth  int `mapstructure:"display_width" yaml:"display_width"`
	DisplayHeight int `mapstructure:"display_height" yaml:"display_height"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderMock   LLMProvider = "mock"
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig defines the configuration for the prompt-generation model.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	Fake              bool          `mapstructure:"fake" yaml:"fake"`
}

// OCRConfig configures text extraction.
type OCRConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	TesseractPath string `mapstructure:"tesseract_path" yaml:"tesseract_path"`
	Language      string `mapstructure:"language" yaml:"language"`
	CacheSize     int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// AlarmConfig configures operator alerts.
type AlarmConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Notify  bool   `mapstructure:"notify" yaml:"notify"`
	Beep    bool   `mapstructure:"beep" yaml:"beep"`
	Title   string `mapstructure:"title" yaml:"title"`
}

// JournalConfig configures durable event sinks.
type JournalConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Path        string `mapstructure:"path" yaml:"path"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// ProfilesConfig locates the profile document.
type ProfilesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "loopguard")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Runner --
	v.SetDefault("runner.tick_interval", "100ms")
	v.SetDefault("runner.action_delay", "50ms")
	v.SetDefault("runner.event_buffer", 256)

	// -- Backend --
	v.SetDefault("backend.kind", BackendFake)
	v.SetDefault("backend.hash_downscale", 1)
	v.SetDefault("backend.browser.url", "about:blank")
	v.SetDefault("backend.browser.headless", false)
	v.SetDefault("backend.browser.width", 1280)
	v.SetDefault("backend.browser.height", 800)
	v.SetDefault("backend.fake.display_width", 1920)
	v.SetDefault("backend.fake.display_height", 1080)
	setHumanoidDefaults(v)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderMock))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.max_retry_elapsed", "30s")
	v.SetDefault("llm.fake", false)

	// -- OCR --
	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.cache_size", 128)

	// -- Alarm --
	v.SetDefault("alarm.enabled", true)
	v.SetDefault("alarm.notify", true)
	v.SetDefault("alarm.beep", true)
	v.SetDefault("alarm.title", "loopguard")

	// -- Journal --
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "~/.local/state/loopguard/events.jsonl")
	v.SetDefault("journal.max_size", 20)
	v.SetDefault("journal.max_backups", 5)
	v.SetDefault("journal.max_age", 30)
	v.SetDefault("journal.compress", false)

	// -- Profiles --
	v.SetDefault("profiles.path", "~/.config/loopguard/profiles.yaml")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Provider credentials are usually exported under their vendor names.
	v.BindEnv("llm.api_key", "LOOPGUARD_LLM_API_KEY")
	v.BindEnv("llm.fake", "LOOPGUARD_FAKE_LLM")
	v.BindEnv("backend.kind", "LOOPGUARD_BACKEND")
	v.BindEnv("journal.postgres_url", "LOOPGUARD_JOURNAL_POSTGRES_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.LLM.applyProviderEnv()

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyProviderEnv fills credentials and model overrides from the
// provider's conventional environment variables.
func (l *LLMConfig) applyProviderEnv() {
	switch l.Provider {
	case ProviderOpenAI:
		if l.APIKey == "" {
			l.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if l.Endpoint == "" {
			l.Endpoint = os.Getenv("OPENAI_API_ENDPOINT")
		}
		if m := os.Getenv("OPENAI_MODEL"); m != "" && l.Model == "" {
			l.Model = m
		}
		if l.Model == "" {
			l.Model = "gpt-4o-mini"
		}
	case ProviderGemini:
		if l.APIKey == "" {
			l.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		if l.Model == "" {
			l.Model = "gemini-2.5-flash"
		}
	}
	if l.Fake {
		l.Provider = ProviderMock
	}
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Journal.Path, &c.Profiles.Path} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Runner.TickInterval <= 0 {
		return fmt.Errorf("runner.tick_interval must be a positive duration")
	}
	if c.Runner.ActionDelay < 0 {
		return fmt.Errorf("runner.action_delay must not be negative")
	}
	if c.Runner.EventBuffer <= 0 {
		return fmt.Errorf("runner.event_buffer must be a positive integer")
	}
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend configuration invalid: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.OCR.Enabled && c.OCR.CacheSize <= 0 {
		return fmt.Errorf("ocr.cache_size must be a positive integer")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}

// Validate checks the backend selection.
func (b *BackendConfig) Validate() error {
	switch strings.ToLower(b.Kind) {
	case BackendFake, BackendBrowser:
	default:
		return fmt.Errorf("kind must be one of %q or %q, got %q", BackendFake, BackendBrowser, b.Kind)
	}
	if b.HashDownscale <= 0 {
		return fmt.Errorf("hash_downscale must be a positive integer")
	}
	if strings.EqualFold(b.Kind, BackendBrowser) && (b.Browser.Width <= 0 || b.Browser.Height <= 0) {
		return fmt.Errorf("browser.width and browser.height must be positive")
	}
	return nil
}

// Validate checks the LLM settings.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderMock:
		return nil
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", l.Provider)
	}
	if l.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", l.Provider)
	}
	if l.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be a positive integer")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
