// Package llmtest provides an llm.Client test double.
package llmtest

import (
	"context"
	"sync"

	"github.com/jonathan/research-scout/internal/llm"
)

// MockClient implements llm.Client for testing and counts calls per method.
type MockClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GetModelFunc        func(tier llm.ModelTier) string
	CloseFunc           func() error

	mu           sync.Mutex
	contentCalls int
	jsonCalls    int
	prompts      []string
}

func (m *MockClient) record(prompt string, json bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if json {
		m.jsonCalls++
	} else {
		m.contentCalls++
	}
	m.prompts = append(m.prompts, prompt)
}

func (m *MockClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt, false)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "NO\nMock rationale.", nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	m.record(prompt, true)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `{"results": []}`, nil
}

func (m *MockClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ContentCalls returns how many GenerateContent calls were made.
func (m *MockClient) ContentCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contentCalls
}

// JSONCalls returns how many GenerateJSON calls were made.
func (m *MockClient) JSONCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jsonCalls
}

// Prompts returns every prompt received, in call order.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
