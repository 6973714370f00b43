package classify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-scout/internal/llm"
	"github.com/jonathan/research-scout/internal/prompts"
	"github.com/jonathan/research-scout/internal/types"
)

// DefaultBatchTimeout bounds one bulk classification request.
const DefaultBatchTimeout = 120 * time.Second

// BatchClassifier issues one bulk request per batch of candidates.
type BatchClassifier struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewBatchClassifier wraps client's lite tier.
func NewBatchClassifier(client llm.Client, timeout time.Duration, logger *zap.Logger) *BatchClassifier {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchClassifier{client: client, timeout: timeout, logger: logger}
}

type batchInput struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BuildBatchPrompt renders the bulk triage prompt for items.
func BuildBatchPrompt(items []types.Item) (string, error) {
	inputs := make([]batchInput, len(items))
	for i, it := range items {
		inputs[i] = batchInput{Index: i, Title: it.Title, Content: it.Snippet}
	}
	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", err
	}
	return prompts.Format(prompts.MustGet(prompts.TriageFile, prompts.KeyBatchTriage), map[string]string{
		"Snippets": string(data),
	}), nil
}

// Classify returns one entry per item the model answered for. An error
// (UnavailableError or MalformedResponseError) means the whole batch must be
// re-routed through confirmation.
func (b *BatchClassifier) Classify(ctx context.Context, items []types.Item) ([]BatchEntry, error) {
	if b.client == nil {
		return nil, &UnavailableError{Message: "no batch classifier configured"}
	}

	prompt, err := BuildBatchPrompt(items)
	if err != nil {
		return nil, &UnavailableError{Message: "failed to build prompt", Cause: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	raw, err := b.client.GenerateJSON(callCtx, prompt, llm.TierLite)
	if err != nil {
		return nil, &UnavailableError{Message: "batch request failed", Cause: err}
	}

	entries, strategy, err := ParseBatchResponse(llm.StripThinking(raw), len(items))
	if err != nil {
		b.logger.Warn("batch response unparseable", zap.Error(err))
		return nil, err
	}
	b.logger.Debug("batch response parsed",
		zap.String("strategy", strategy),
		zap.Int("items", len(items)),
		zap.Int("entries", len(entries)))
	return entries, nil
}
