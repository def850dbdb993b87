package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"analyst/internal/config"
)

// backoffCap bounds the exponential retry backoff.
const backoffCap = 8 * time.Second

// route sends a specialist's requests to a specific provider and model.
type route struct {
	provider string
	model    string
}

// Chain fans a completion request across providers in order, with per-call
// retries and a per-provider circuit breaker. The first provider to answer
// wins; a request fails only when every provider is down or exhausted.
type Chain struct {
	clients     []Client
	breakers    map[string]*breaker
	routes      map[string]route
	maxRetries  int
	backoffBase time.Duration
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewChain builds the provider chain from configuration. Providers without
// an API key are skipped with a warning; at least one must remain.
func NewChain(cfg config.LLMConfig, logger *zap.Logger) (*Chain, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var clients []Client
	for _, name := range cfg.Providers {
		client, err := buildClient(name, cfg)
		if err != nil {
			logger.Warn("provider unavailable", zap.String("provider", name), zap.Error(err))
			continue
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return nil, errors.New("no usable LLM provider configured")
	}

	chain := NewChainWithClients(clients, cfg.MaxRetries, cfg.GetBackoffBase(),
		cfg.BreakerThreshold, cfg.GetBreakerCooldown(), logger)
	for specialist, sc := range cfg.Specialists {
		if sc.Provider == "" && sc.Model == "" {
			continue // no overrides, follow the default order
		}
		chain.routes[strings.ToLower(specialist)] = route{provider: sc.Provider, model: sc.Model}
	}
	return chain, nil
}

// NewChainWithClients builds a chain over pre-constructed clients.
func NewChainWithClients(clients []Client, maxRetries int, backoffBase time.Duration,
	breakerThreshold int, breakerCooldown time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	breakers := make(map[string]*breaker, len(clients))
	for _, c := range clients {
		breakers[c.Name()] = newBreaker(breakerThreshold, breakerCooldown)
	}
	return &Chain{
		clients:     clients,
		breakers:    breakers,
		routes:      make(map[string]route),
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func buildClient(name string, cfg config.LLMConfig) (Client, error) {
	switch name {
	case "gemini":
		return NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OpenAI API key is required")
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:    "openai",
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.GetTimeout(),
		}), nil
	case "nvidia":
		if cfg.NvidiaAPIKey == "" {
			return nil, errors.New("NVIDIA API key is required")
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:    "nvidia",
			APIKey:  cfg.NvidiaAPIKey,
			BaseURL: cfg.NvidiaBaseURL,
			Model:   cfg.NvidiaModel,
			Timeout: cfg.GetTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func (c *Chain) Name() string { return "chain" }

// Complete tries each provider in order until one answers. A specialist
// route moves its provider to the front and pins its model.
func (c *Chain) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	order := c.clients
	if opts.Specialist != "" {
		if r, ok := c.routes[strings.ToLower(opts.Specialist)]; ok {
			order = c.reorder(r.provider)
			if opts.Model == "" {
				opts.Model = r.model
			}
		}
	}

	var failures []error
	for _, client := range order {
		name := client.Name()
		br := c.breakers[name]
		if br != nil && !br.Allow() {
			c.logger.Debug("provider breaker open, skipping", zap.String("provider", name))
			failures = append(failures, fmt.Errorf("%s: circuit open", name))
			continue
		}

		text, err := c.completeWithRetry(ctx, client, prompt, opts)
		if err == nil {
			if br != nil {
				br.Success()
			}
			return text, nil
		}
		if br != nil {
			br.Failure()
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("provider failed, falling back",
			zap.String("provider", name), zap.Error(err))
		failures = append(failures, err)
	}

	return "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(failures...))
}

// completeWithRetry retries one provider on retryable failures with
// exponential backoff.
func (c *Chain) completeWithRetry(ctx context.Context, client Client, prompt string, opts Options) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase << (attempt - 1)
			if delay > backoffCap {
				delay = backoffCap
			}
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := client.Complete(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var perr *ProviderError
		if errors.As(err, &perr) && !perr.Retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

// reorder returns the clients with the named provider first.
func (c *Chain) reorder(first string) []Client {
	ordered := make([]Client, 0, len(c.clients))
	for _, client := range c.clients {
		if client.Name() == first {
			ordered = append(ordered, client)
		}
	}
	for _, client := range c.clients {
		if client.Name() != first {
			ordered = append(ordered, client)
		}
	}
	return ordered
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
