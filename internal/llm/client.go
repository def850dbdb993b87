package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted reports that every configured provider failed for a request.
var ErrExhausted = errors.New("all providers failed")

// Options tunes one completion request. Zero values mean provider defaults.
type Options struct {
	// Specialist routes the request to a specialist model when the chain
	// has a route for it. Unrouted names fall through to the default order.
	Specialist string

	// Model overrides the client's configured model for this request.
	Model string

	// System is an optional system prompt.
	System string

	Temperature float64
	MaxTokens   int
}

// Client produces one completion for one prompt.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	Name() string
}

// Func adapts a plain function to Client. The zero name is "func".
type Func func(ctx context.Context, prompt string, opts Options) (string, error)

func (f Func) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

func (f Func) Name() string { return "func" }

// ProviderError is a failure from one provider. Status carries the HTTP
// status when there was one; zero means a transport or SDK failure.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether retrying the same provider can help:
// rate limits, server-side errors, and transport failures qualify.
func (e *ProviderError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
