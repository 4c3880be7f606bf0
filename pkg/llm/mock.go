package llm

import (
	"context"
	"sync"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests.
type MockLLMClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns an empty result and nil error.
	CompleteFunc func(ctx context.Context, messages []Message) (*CompletionResult, error)

	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns nil slice and nil error.
	CreateEmbeddingFunc func(ctx context.Context, input string, model string) ([]float32, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	mu sync.Mutex
	// Call tracking for verification
	CompleteCalls        int
	CreateEmbeddingCalls int
	// LastMessages holds the messages of the most recent Complete call.
	LastMessages []Message
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{Model: "mock-model"}
}

// Complete implements Completer.
func (m *MockLLMClient) Complete(ctx context.Context, messages []Message) (*CompletionResult, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.LastMessages = messages
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return &CompletionResult{Model: m.Model}, nil
}

// CreateEmbedding implements Embedder.
func (m *MockLLMClient) CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error) {
	m.mu.Lock()
	m.CreateEmbeddingCalls++
	fn := m.CreateEmbeddingFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, input, model)
	}
	return nil, nil
}

// GetModel implements Completer.
func (m *MockLLMClient) GetModel() string {
	return m.Model
}

var (
	_ Completer = (*MockLLMClient)(nil)
	_ Embedder  = (*MockLLMClient)(nil)
)
