// Package llm talks to completion and embedding backends (OpenAI-compatible
// endpoints, Ollama and Anthropic).
package llm

import (
	"context"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent to a completion backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionResult holds the completion text with usage statistics.
type CompletionResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer produces a chat completion.
// Use this interface for dependency injection to enable mocking in tests.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*CompletionResult, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Embedder produces embedding vectors.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error)
}

// SystemAndUser builds the two-message conversation used for single-shot prompts.
func SystemAndUser(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}
