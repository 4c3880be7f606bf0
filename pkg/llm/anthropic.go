package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/metrics"
)

// DefaultAnthropicMaxTokens is used when no max token count is configured;
// the Messages API requires one.
const DefaultAnthropicMaxTokens = 2048

// AnthropicClient completes prompts through the Anthropic Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewAnthropicClient creates a client. cfg.Endpoint may be empty for the
// public API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logger.Named("llm"),
	}, nil
}

// Complete sends messages to the Messages API. System messages are joined
// into the request's system prompt.
func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (*CompletionResult, error) {
	var (
		system []string
		msgs   []anthropic.Message
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantTextMessage(m.Content))
		default:
			msgs = append(msgs, anthropic.NewUserTextMessage(m.Content))
		}
	}

	temperature := float32(c.temperature)
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Int("prompt_len", promptLength(messages)))

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, req)
	elapsed := time.Since(start)
	metrics.ObserveCompletionLatency(elapsed)
	if err != nil {
		classified := ClassifyError(err)
		classified.Model = c.model
		classified.Endpoint = c.endpoint
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", elapsed),
			zap.String("error", logging.SanitizeError(classified)))
		return nil, classified
	}

	content := extractAnthropicText(resp)
	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", elapsed))

	return &CompletionResult{
		Content:          content,
		Model:            c.model,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

func extractAnthropicText(resp anthropic.MessagesResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			parts = append(parts, *block.Text)
		}
	}
	return strings.Join(parts, "")
}

var _ Completer = (*AnthropicClient)(nil)
