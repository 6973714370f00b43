package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOllamaConfig(t *testing.T) {
	cfg := DefaultOllamaConfig()
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, "deepseek-r1:8b", cfg.GetModel(TierLite))
}

func TestGetModel_Fallback(t *testing.T) {
	cfg := &Config{Models: map[ModelTier]string{TierStandard: "std"}}
	assert.Equal(t, "std", cfg.GetModel(TierAdvanced))

	cfg = &Config{Models: map[ModelTier]string{TierLite: "lite"}}
	assert.Equal(t, "lite", cfg.GetModel(TierAdvanced))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	cfg := &Config{Models: map[ModelTier]string{}}
	assert.Empty(t, cfg.GetModel(TierLite))
}

func TestWithModel(t *testing.T) {
	base := DefaultOllamaConfig()
	next := base.WithModel(TierStandard, "qwen3:14b")

	assert.Equal(t, "qwen3:14b", next.GetModel(TierStandard))
	assert.Equal(t, "deepseek-r1:8b", base.GetModel(TierStandard))
	assert.Equal(t, base.BaseURL, next.BaseURL)

	// empty model names keep the existing mapping
	assert.Equal(t, "deepseek-r1:8b", base.WithModel(TierLite, "").GetModel(TierLite))
}

func TestNewClient_Providers(t *testing.T) {
	client, err := NewClient(context.Background(), DefaultOllamaConfig(), "")
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, client)
	assert.Equal(t, "deepseek-r1:8b", client.GetModel(TierStandard))
	assert.NoError(t, client.Close())

	_, err = NewClient(context.Background(), DefaultGeminiConfig(), "")
	assert.ErrorContains(t, err, "API key is required")

	_, err = NewClient(context.Background(), &Config{Provider: "openai"}, "")
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	_, err := NewOllamaClient(&Config{Provider: ProviderOllama})
	assert.Error(t, err)
}
