package config

import "time"

// LLMConfig configures the model client chain.
type LLMConfig struct {
	// Providers is the fallback order. Recognized names: gemini, nvidia, openai.
	Providers []string `yaml:"providers"`

	GeminiModel  string `yaml:"gemini_model"`
	GeminiAPIKey string `yaml:"gemini_api_key"`

	OpenAIModel  string `yaml:"openai_model"`
	OpenAIAPIKey string `yaml:"openai_api_key"`

	NvidiaModel   string `yaml:"nvidia_model"`
	NvidiaAPIKey  string `yaml:"nvidia_api_key"`
	NvidiaBaseURL string `yaml:"nvidia_base_url"`

	// Timeout is the per-completion-call timeout.
	Timeout string `yaml:"timeout"`

	// MaxRetries is the per-provider retry budget for transient failures.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the initial retry delay; doubles per attempt, capped at 8s.
	BackoffBase string `yaml:"backoff_base"`

	// BreakerThreshold is the consecutive-failure count that opens a
	// provider's circuit breaker; BreakerCooldown is how long it stays open.
	BreakerThreshold int    `yaml:"breaker_threshold"`
	BreakerCooldown  string `yaml:"breaker_cooldown"`

	// Specialists routes delegated sub-instructions to alternate model
	// configurations. Keys are specialist names (scraping, visualization, ...).
	Specialists map[string]SpecialistConfig `yaml:"specialists"`
}

// SpecialistConfig is one entry in the specialist routing table.
type SpecialistConfig struct {
	// Provider overrides the default provider for this specialist (optional).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model (optional).
	Model string `yaml:"model"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Providers:        []string{"gemini", "nvidia", "openai"},
		GeminiModel:      "gemini-2.5-flash",
		OpenAIModel:      "gpt-4o-mini",
		NvidiaModel:      "nvidia/llama-3.3-nemotron-70b-instruct",
		NvidiaBaseURL:    "https://integrate.api.nvidia.com/v1",
		Timeout:          "60s",
		MaxRetries:       2,
		BackoffBase:      "1s",
		BreakerThreshold: 3,
		BreakerCooldown:  "120s",
		Specialists: map[string]SpecialistConfig{
			"scraping":      {},
			"visualization": {},
			"analysis":      {},
			"ml":            {},
			"cleaning":      {},
		},
	}
}

// GetTimeout returns the per-call timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// GetBackoffBase returns the initial retry delay as a duration.
func (c LLMConfig) GetBackoffBase() time.Duration {
	return parseDuration(c.BackoffBase, time.Second)
}

// GetBreakerCooldown returns the breaker cooldown as a duration.
func (c LLMConfig) GetBreakerCooldown() time.Duration {
	return parseDuration(c.BreakerCooldown, 120*time.Second)
}

// SpecialistNames returns the set of recognized specialist names.
func (c LLMConfig) SpecialistNames() []string {
	names := make([]string, 0, len(c.Specialists))
	for name := range c.Specialists {
		names = append(names, name)
	}
	return names
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
