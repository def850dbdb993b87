package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient produces completions through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

// Complete sends one generation request.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	genCfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", &ProviderError{Provider: "gemini", Err: err}
	}

	text := result.Text()
	if text == "" {
		return "", &ProviderError{Provider: "gemini", Err: fmt.Errorf("response has no text")}
	}
	return text, nil
}
