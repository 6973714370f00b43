package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/research-scout/internal/llm"
	"github.com/jonathan/research-scout/internal/llm/llmtest"
	"github.com/jonathan/research-scout/internal/types"
)

var sampleItems = []types.Item{
	{Title: "Port Infrastructure Report", Link: "https://a", Snippet: "emergency override at ports"},
	{Title: "SCADA patching", Link: "https://b", Snippet: "patch cadence"},
}

func TestBuildBatchPrompt_IncludesIndexedItems(t *testing.T) {
	prompt, err := BuildBatchPrompt(sampleItems)
	require.NoError(t, err)

	assert.Contains(t, prompt, `"index": 0`)
	assert.Contains(t, prompt, `"index": 1`)
	assert.Contains(t, prompt, `"title": "Port Infrastructure Report"`)
	assert.Contains(t, prompt, `"content": "patch cadence"`)
	assert.NotContains(t, prompt, "{{.Snippets}}")
}

func TestBatchClassifier_Classify(t *testing.T) {
	mock := &llmtest.MockClient{
		GenerateJSONFunc: func(_ context.Context, _ string, tier llm.ModelTier) (string, error) {
			assert.Equal(t, llm.TierLite, tier)
			return "<think>hmm</think>{\"results\": [{\"index\": 1, \"relevance\": \"LOW\", \"rationale\": \"IT only\"}]}", nil
		},
	}

	entries, err := NewBatchClassifier(mock, 0, nil).Classify(context.Background(), sampleItems)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, types.RelevanceLow, entries[0].Verdict.Relevance)
	assert.Equal(t, 1, mock.JSONCalls())
}

func TestBatchClassifier_TransportFailure(t *testing.T) {
	mock := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "", errors.New("connection refused")
		},
	}

	_, err := NewBatchClassifier(mock, 0, nil).Classify(context.Background(), sampleItems)
	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestBatchClassifier_Timeout(t *testing.T) {
	mock := &llmtest.MockClient{
		GenerateJSONFunc: func(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	_, err := NewBatchClassifier(mock, 10*time.Millisecond, nil).Classify(context.Background(), sampleItems)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBatchClassifier_Malformed(t *testing.T) {
	mock := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "the model rambled", nil
		},
	}

	_, err := NewBatchClassifier(mock, 0, nil).Classify(context.Background(), sampleItems)
	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestBatchClassifier_NilClient(t *testing.T) {
	_, err := NewBatchClassifier(nil, 0, nil).Classify(context.Background(), sampleItems)
	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}
