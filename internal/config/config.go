// Package config holds all analyst configuration. Configuration is loaded
// once at startup from a YAML file plus environment overrides and passed by
// value into the components that need it; nothing in this package is mutated
// after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all analyst configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider chain and specialist routing
	LLM LLMConfig `yaml:"llm"`

	// Sandboxed code execution
	Execution ExecutionConfig `yaml:"execution"`

	// Result cache
	Cache CacheConfig `yaml:"cache"`

	// Feedback-loop session policy
	Session SessionConfig `yaml:"session"`

	// HTTP serving layer
	Server ServerConfig `yaml:"server"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name:      "analyst",
		Version:   "0.3.0",
		LLM:       DefaultLLMConfig(),
		Execution: DefaultExecutionConfig(),
		Cache:     DefaultCacheConfig(),
		Session:   DefaultSessionConfig(),
		Server:    DefaultServerConfig(),
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults plus environment overrides are returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.Validate()
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Session.MaxRounds <= 0 {
		return fmt.Errorf("session.max_rounds must be positive, got %d", c.Session.MaxRounds)
	}
	if c.Session.MaxParseFailures <= 0 {
		return fmt.Errorf("session.max_parse_failures must be positive, got %d", c.Session.MaxParseFailures)
	}
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("llm.providers must name at least one provider")
	}
	for _, name := range c.LLM.Providers {
		switch name {
		case "gemini", "openai", "nvidia":
		default:
			return fmt.Errorf("unknown provider %q in llm.providers", name)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. API keys are
// always taken from the environment when present so they never have to live
// in a config file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.GeminiAPIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.OpenAIAPIKey = key
	}
	if key := os.Getenv("NVIDIA_API_KEY"); key != "" {
		c.LLM.NvidiaAPIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.LLM.GeminiModel = model
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.LLM.OpenAIModel = model
	}
	if model := os.Getenv("NVIDIA_MODEL"); model != "" {
		c.LLM.NvidiaModel = model
	}
	if image := os.Getenv("ANALYST_SANDBOX_IMAGE"); image != "" {
		c.Execution.DockerImage = image
	}
	if dir := os.Getenv("ANALYST_CACHE_PATH"); dir != "" {
		c.Cache.Path = dir
	}
}
