package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	LLM         LLMConfig      `toml:"llm"`
	Brief       BriefConfig    `toml:"brief"`
	Schedule    ScheduleConfig `toml:"schedule"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key (falls back to GEMINI_API_KEY)
	Model       string  `toml:"model"`       // Model for analysis calls (default: "gemini-3-flash-preview")
	Thinking    string  `toml:"thinking"`    // Default thinking level: MINIMAL, LOW, MEDIUM, HIGH
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (falls back to ANTHROPIC_API_KEY)
	Model       string  `toml:"model"`       // Model for analysis calls (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// BriefConfig contains the pipeline coordination knobs
type BriefConfig struct {
	LeaseTTL         string `toml:"lease_ttl"`         // Pending lease lifetime (default: "10m")
	ResultTTL        string `toml:"result_ttl"`        // Completed result lifetime (default: "36h")
	CallTimeout      string `toml:"call_timeout"`      // Per analysis call (default: "2m")
	SynthesisTimeout string `toml:"synthesis_timeout"` // Final synthesis call (default: "5m")
	MaxTokens        int    `toml:"max_tokens"`        // Response cap per call (default: 4096)
}

// ScheduleConfig contains the daily trigger configuration
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"` // Run the cron trigger (default: false; requires a corpus source)
	Cron    string `toml:"cron"`    // Cron schedule (default: "0 6 * * *")
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in meridian.toml; coordination
// defaults live here.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/meridian",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Thinking:    "",
			RateLimit:   "4s",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Brief: BriefConfig{
			LeaseTTL:         "10m",
			ResultTTL:        "36h",
			CallTimeout:      "2m",
			SynthesisTimeout: "5m",
			MaxTokens:        4096,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "0 6 * * *",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each TOML file in
// order (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MERIDIAN_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("MERIDIAN_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MERIDIAN_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("MERIDIAN_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("MERIDIAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MERIDIAN_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
	}

	if provider := os.Getenv("MERIDIAN_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// API keys: service-specific variables win, the SDK-conventional names
	// are the fallback so existing shell profiles keep working.
	if key := os.Getenv("MERIDIAN_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if config.Gemini.APIKey == "" {
		config.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if key := os.Getenv("MERIDIAN_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if config.Claude.APIKey == "" {
		config.Claude.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// parseDurationOr parses a duration string, falling back when empty or invalid
func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetLeaseTTL returns the pending lease lifetime
func (c *BriefConfig) GetLeaseTTL() time.Duration {
	return parseDurationOr(c.LeaseTTL, 10*time.Minute)
}

// GetResultTTL returns the completed result lifetime
func (c *BriefConfig) GetResultTTL() time.Duration {
	return parseDurationOr(c.ResultTTL, 36*time.Hour)
}

// GetCallTimeout returns the per-call timeout for analysis calls
func (c *BriefConfig) GetCallTimeout() time.Duration {
	return parseDurationOr(c.CallTimeout, 2*time.Minute)
}

// GetSynthesisTimeout returns the timeout for the final synthesis call.
// It is the longest per-call timeout in the pipeline.
func (c *BriefConfig) GetSynthesisTimeout() time.Duration {
	timeout := parseDurationOr(c.SynthesisTimeout, 5*time.Minute)
	if call := c.GetCallTimeout(); timeout < call {
		return call
	}
	return timeout
}

// GetRateLimit returns the minimum spacing between Gemini requests
func (c *GeminiConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, 4*time.Second)
}

// GetRateLimit returns the minimum spacing between Claude requests
func (c *ClaudeConfig) GetRateLimit() time.Duration {
	return parseDurationOr(c.RateLimit, time.Second)
}
