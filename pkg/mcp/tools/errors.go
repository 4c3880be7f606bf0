package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/llm"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to the calling model
// as a successful tool result, ensuring error details are visible
// rather than being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidParameters    = "invalid_parameters"
	CodeUnsupportedDialect   = "unsupported_dialect"
	CodeRetrievalUnavailable = "retrieval_unavailable"
	CodeTableNotFound        = "table_not_found"
	CodeBackendUnavailable   = "backend_unavailable"
)

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors the caller should see and
// can potentially fix (e.g., invalid parameters, resource not found).
//
// Do NOT use this for system failures (database connection errors,
// internal server errors) - those should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorResultFor maps known domain errors to structured results. It returns
// nil for everything else, which the caller should surface as a Go error.
func errorResultFor(err error) *mcp.CallToolResult {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return NewErrorResult(CodeInvalidParameters, err.Error())
	case errors.Is(err, apperrors.ErrUnsupportedDialect):
		return NewErrorResult(CodeUnsupportedDialect, err.Error())
	case errors.Is(err, apperrors.ErrRetrievalUnavailable):
		return NewErrorResult(CodeRetrievalUnavailable,
			"reference retrieval is not configured: set embedding.uri and vector_store")
	case errors.Is(err, apperrors.ErrTableNotFound):
		return NewErrorResult(CodeTableNotFound, err.Error())
	case errors.Is(err, llm.ErrCircuitOpen):
		return NewErrorResult(CodeBackendUnavailable, logging.SanitizeError(err))
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return NewErrorResultWithDetails(CodeBackendUnavailable, logging.SanitizeError(err),
			map[string]any{"type": string(llmErr.Type), "retryable": llmErr.Retryable})
	}
	return nil
}
