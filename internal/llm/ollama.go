package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient implements Client against a local Ollama server through langchaingo.
// The request deadline comes from ctx; callers bound every call with a timeout.
type OllamaClient struct {
	config     *Config
	httpClient *http.Client
}

// NewOllamaClient creates a client for the server in config.BaseURL.
func NewOllamaClient(config *Config) (*OllamaClient, error) {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	return &OllamaClient{config: config, httpClient: http.DefaultClient}, nil
}

// GenerateContent generates free text.
func (c *OllamaClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, false)
}

// GenerateJSON runs the model with Ollama's JSON format constraint. Reasoning
// models may still emit <think> blocks, which are stripped here.
func (c *OllamaClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(StripThinking(text)), nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt string, tier ModelTier, asJSON bool) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	opts := []ollama.Option{
		ollama.WithModel(modelName),
		ollama.WithServerURL(c.config.BaseURL),
		ollama.WithHTTPClient(c.httpClient),
	}
	if asJSON {
		opts = append(opts, ollama.WithFormat("json"))
	}

	model, err := ollama.New(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create ollama model %s: %w", modelName, err)
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithTemperature(0.1))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return text, nil
}

// GetModel returns the model name for a tier
func (c *OllamaClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client is shared.
func (c *OllamaClient) Close() error {
	return nil
}
