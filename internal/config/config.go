// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// Components depend on it so tests can hand them a trimmed config.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	LLM() LLMConfig
	Screenshot() ScreenshotConfig
	Files() FilesConfig

	// Setters used by CLI flag overrides.
	SetBrowserHeadless(bool)
	SetAgentMaxSteps(int)
	SetAgentActionDelay(time.Duration)
	SetAgentEnableMarking(bool)
	SetFilesProfile(string)
	SetFilesResume(string)
	SetFilesCoverLetter(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AgentCfg      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	LLMCfg        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	ScreenshotCfg ScreenshotConfig `mapstructure:"screenshot" yaml:"screenshot"`
	FilesCfg      FilesConfig      `mapstructure:"files" yaml:"files"`
}

var _ Interface = (*Config)(nil)

// --- Getters ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig           { return c.AgentCfg }
func (c *Config) LLM() LLMConfig               { return c.LLMCfg }
func (c *Config) Screenshot() ScreenshotConfig { return c.ScreenshotCfg }
func (c *Config) Files() FilesConfig           { return c.FilesCfg }

// --- Setters ---

func (c *Config) SetBrowserHeadless(b bool)           { c.BrowserCfg.Headless = b }
func (c *Config) SetAgentMaxSteps(n int)              { c.AgentCfg.MaxSteps = n }
func (c *Config) SetAgentActionDelay(d time.Duration) { c.AgentCfg.ActionDelay = d }
func (c *Config) SetAgentEnableMarking(b bool)        { c.AgentCfg.EnableMarking = b }
func (c *Config) SetFilesProfile(p string)            { c.FilesCfg.Profile = p }
func (c *Config) SetFilesResume(p string)             { c.FilesCfg.Resume = p }
func (c *Config) SetFilesCoverLetter(p string)        { c.FilesCfg.CoverLetter = p }

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

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the run journal connection. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the Chromium instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	SkipInstall       bool          `mapstructure:"skip_install" yaml:"skip_install"`
}

// AgentConfig drives the decision loop.
type AgentConfig struct {
	MaxSteps      int           `mapstructure:"max_steps" yaml:"max_steps"`
	ActionDelay   time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	EnableMarking bool          `mapstructure:"enable_marking" yaml:"enable_marking"`
	// PrefillResume uploads the resume once before the first oracle call.
	PrefillResume bool          `mapstructure:"prefill_resume" yaml:"prefill_resume"`
	HistoryWindow int           `mapstructure:"history_window" yaml:"history_window"`
	ScrollDelta   float64       `mapstructure:"scroll_delta" yaml:"scroll_delta"`
	WaitInterval  time.Duration `mapstructure:"wait_interval" yaml:"wait_interval"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMConfig defines the vision model used as the decision oracle.
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
}

// ScreenshotConfig controls what the oracle sees and what is kept on disk.
type ScreenshotConfig struct {
	Width    int    `mapstructure:"width" yaml:"width"`
	Quality  int    `mapstructure:"quality" yaml:"quality"`
	FullPage bool   `mapstructure:"full_page" yaml:"full_page"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	KeepLast int    `mapstructure:"keep_last" yaml:"keep_last"`
}

// FilesConfig points at the applicant's data on disk.
type FilesConfig struct {
	Profile     string `mapstructure:"profile" yaml:"profile"`
	Resume      string `mapstructure:"resume" yaml:"resume"`
	CoverLetter string `mapstructure:"cover_letter" yaml:"cover_letter"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "visionfill")
	v.SetDefault("logger.log_file", "visionfill.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.args", []string{"--disable-blink-features=AutomationControlled"})
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.skip_install", false)

	// -- Agent --
	v.SetDefault("agent.max_steps", 30)
	v.SetDefault("agent.action_delay", "1s")
	v.SetDefault("agent.enable_marking", false)
	v.SetDefault("agent.prefill_resume", false)
	v.SetDefault("agent.history_window", 5)
	v.SetDefault("agent.scroll_delta", 500.0)
	v.SetDefault("agent.wait_interval", "2s")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.requests_per_minute", 30)
	v.SetDefault("llm.max_retry_elapsed", "2m")

	// -- Screenshot --
	v.SetDefault("screenshot.width", 1024)
	v.SetDefault("screenshot.quality", 85)
	v.SetDefault("screenshot.full_page", false)
	v.SetDefault("screenshot.dir", "screenshots")
	v.SetDefault("screenshot.keep_last", 10)

	// -- Files --
	v.SetDefault("files.profile", "user_data/profile.json")
	v.SetDefault("files.resume", "")
	v.SetDefault("files.cover_letter", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Provider keys usually live in the environment under their vendor names.
	_ = v.BindEnv("llm.api_key", "VISIONFILL_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("database.url", "VISIONFILL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.AgentCfg.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.AgentCfg.ActionDelay < 0 {
		return fmt.Errorf("agent.action_delay must not be negative")
	}
	if c.AgentCfg.HistoryWindow <= 0 {
		return fmt.Errorf("agent.history_window must be a positive integer")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.ScreenshotCfg.Validate(); err != nil {
		return fmt.Errorf("screenshot configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the LLM settings. The API key is checked when the client
// is built, so commands that never call the model still work without one.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}

// Validate checks the screenshot settings.
func (s *ScreenshotConfig) Validate() error {
	if s.Width <= 0 {
		return fmt.Errorf("width must be a positive integer")
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100")
	}
	return nil
}
