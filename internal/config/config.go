// Package config loads conductor's configuration from YAML or JSON5
// files with environment expansion and $include resolution.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Agent         AgentConfig         `yaml:"agent"`
	Tools         ToolsConfig         `yaml:"tools"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	// Path to the SQLite database file. Empty keeps everything in
	// memory.
	Path string `yaml:"path"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type AgentConfig struct {
	SystemPrompt  string `yaml:"system_prompt"`
	MaxIterations int    `yaml:"max_iterations"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"websearch"`
	SubAgent  SubAgentConfig  `yaml:"subagent"`
}

type WebSearchConfig struct {
	Enabled    bool          `yaml:"enabled"`
	SearXNGURL string        `yaml:"searxng_url"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

type SubAgentConfig struct {
	Enabled      bool   `yaml:"enabled"`
	SystemPrompt string `yaml:"system_prompt"`
}

type ScheduleConfig struct {
	// Jobs are cron-triggered autonomous runs.
	Jobs []ScheduledJob `yaml:"jobs"`
}

type ScheduledJob struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"`
	ActorID string `yaml:"actor_id"`
	Prompt  string `yaml:"prompt"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
}

// Load reads, merges, decodes, defaults, and validates the
// configuration at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 4096
	}
	if cfg.Tools.WebSearch.CacheTTL == 0 {
		cfg.Tools.WebSearch.CacheTTL = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks cross-field constraints not expressible in the
// schema.
func (cfg *Config) Validate() error {
	if len(cfg.LLM.Providers) > 0 {
		if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
			return fmt.Errorf("config: llm.default_provider %q is not in llm.providers", cfg.LLM.DefaultProvider)
		}
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: logging.format %q is not one of json, text", cfg.Logging.Format)
	}
	for i, job := range cfg.Schedule.Jobs {
		if job.Name == "" {
			return fmt.Errorf("config: schedule.jobs[%d] has no name", i)
		}
		if job.Cron == "" {
			return fmt.Errorf("config: schedule job %q has no cron expression", job.Name)
		}
		if job.Prompt == "" {
			return fmt.Errorf("config: schedule job %q has no prompt", job.Name)
		}
	}
	return nil
}
