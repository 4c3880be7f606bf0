package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// CompleterOptions tune a completion backend built from a URI.
type CompleterOptions struct {
	// APIKey overrides the key embedded in the URI when set.
	APIKey      string
	Temperature float64
	MaxTokens   int
	// Breaker guards the backend when Threshold > 0.
	Breaker CircuitBreakerConfig
}

// NewCompleter builds a completion backend from an LLM URI such as
// llm+openai://gpt-4o@sk-xxx@https://api.openai.com/v1.
func NewCompleter(rawURI string, opts CompleterOptions, logger *zap.Logger) (Completer, error) {
	u, err := ParseAIURI(rawURI)
	if err != nil {
		return nil, err
	}
	if u.ModelType != ModelTypeLLM {
		return nil, fmt.Errorf("expected an llm URI, got %s", u)
	}

	cfg := &Config{
		Model:       u.Model,
		APIKey:      firstNonEmpty(opts.APIKey, u.APIKey),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var completer Completer
	switch u.APIType {
	case APITypeAnthropic:
		cfg.Endpoint = u.Endpoint
		completer, err = NewAnthropicClient(cfg, logger)
	default:
		cfg.Endpoint = u.OpenAIBaseURL()
		completer, err = NewClient(cfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", u.APIType, err)
	}

	if opts.Breaker.Threshold > 0 {
		return WithCircuitBreaker(completer, opts.Breaker), nil
	}
	return completer, nil
}

// NewEmbedder builds an embedding backend from an embedding URI such as
// embedding+ollama://bge-m3@http://localhost:11434. It returns the client
// and the model name to request.
func NewEmbedder(rawURI, apiKey string, logger *zap.Logger) (*Client, string, error) {
	u, err := ParseAIURI(rawURI)
	if err != nil {
		return nil, "", err
	}
	if u.ModelType != ModelTypeEmbedding {
		return nil, "", fmt.Errorf("expected an embedding URI, got %s", u)
	}

	client, err := NewClient(&Config{
		Endpoint: u.OpenAIBaseURL(),
		Model:    u.Model,
		APIKey:   firstNonEmpty(apiKey, u.APIKey),
	}, logger)
	if err != nil {
		return nil, "", fmt.Errorf("create embedder: %w", err)
	}
	return client, u.Model, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
