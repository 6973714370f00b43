// Package llm provides model configuration and client abstractions for the classifier stages.
// Local Ollama models serve the cheap stages; Gemini can take over the confirmation stage.
package llm

// ModelTier represents the cost/capability level of a model
type ModelTier string

const (
	// TierLite is the bulk batch classifier (bouncer)
	TierLite ModelTier = "lite"
	// TierStandard is the per-item confirmation classifier
	TierStandard ModelTier = "standard"
	// TierAdvanced is query brainstorming
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

const (
	// ProviderOllama is a local Ollama server
	ProviderOllama Provider = "ollama"
	// ProviderGemini is the Google Gemini API
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for one provider
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// BaseURL is only used by providers that talk to a self-hosted server.
	BaseURL string
}

// DefaultOllamaConfig returns the local DeepSeek configuration
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider: ProviderOllama,
		BaseURL:  "http://localhost:11434",
		Models: map[ModelTier]string{
			TierLite:     "deepseek-r1:8b",
			TierStandard: "deepseek-r1:8b",
			TierAdvanced: "deepseek-r1:8b",
		},
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-flash",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of the config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := &Config{
		Provider: c.Provider,
		BaseURL:  c.BaseURL,
		Models:   make(map[ModelTier]string, len(c.Models)+1),
	}
	for k, v := range c.Models {
		next.Models[k] = v
	}
	if model != "" {
		next.Models[tier] = model
	}
	return next
}
