package memory

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultEmbeddingModel is the local embedding model.
const DefaultEmbeddingModel = "nomic-embed-text"

// NewOllamaEmbedder returns a langchaingo embedder backed by a local Ollama model.
func NewOllamaEmbedder(serverURL, model string) (*embeddings.EmbedderImpl, error) {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedding model %s: %w", model, err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}
