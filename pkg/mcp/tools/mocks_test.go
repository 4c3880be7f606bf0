package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/schema"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/services"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, req services.GenerateRequest) (*services.GenerationResult, error)
	agenticFunc  func(ctx context.Context, req services.GenerateRequest) (*services.GenerationResult, error)
	optimizeFunc func(ctx context.Context, req services.OptimizeRequest) (*services.GenerationResult, error)
	describeFunc func(ctx context.Context, tables []string, schemaName string, sampleLimit int) ([]schema.TableMetadata, error)

	lastGenerate services.GenerateRequest
	lastOptimize services.OptimizeRequest
}

func (m *mockGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerationResult, error) {
	m.lastGenerate = req
	return m.generateFunc(ctx, req)
}

func (m *mockGenerator) GenerateAgentic(ctx context.Context, req services.GenerateRequest) (*services.GenerationResult, error) {
	m.lastGenerate = req
	return m.agenticFunc(ctx, req)
}

func (m *mockGenerator) Optimize(ctx context.Context, req services.OptimizeRequest) (*services.GenerationResult, error) {
	m.lastOptimize = req
	return m.optimizeFunc(ctx, req)
}

func (m *mockGenerator) DescribeTables(ctx context.Context, tables []string, schemaName string, sampleLimit int) ([]schema.TableMetadata, error) {
	return m.describeFunc(ctx, tables, schemaName, sampleLimit)
}

type mockSearcher struct {
	enabled bool
	refs    retrieval.References
	err     error

	lastLimit int
	lastTags  []string
}

func (m *mockSearcher) Enabled() bool { return m.enabled }

func (m *mockSearcher) Search(_ context.Context, _ string, limit int, tags []string) (retrieval.References, error) {
	m.lastLimit = limit
	m.lastTags = tags
	return m.refs, m.err
}

type mockIndexer struct {
	enabled bool
	err     error
	entries []retrieval.SeedEntry
}

func (m *mockIndexer) Enabled() bool { return m.enabled }

func (m *mockIndexer) Add(_ context.Context, entries []retrieval.SeedEntry) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.entries = append(m.entries, entries...)
	return len(entries), nil
}

func newTestServer(deps *ToolDeps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps)
	return s
}

// callTool sends a tools/call request through the server and returns the
// tool result. A JSON-RPC error fails the test unless wantRPCError is set.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resp, ok := s.HandleMessage(context.Background(), raw).(mcp.JSONRPCResponse)
	require.True(t, ok, "expected a JSON-RPC response for %s", name)
	return toolResult(t, resp.Result)
}

// toolResult accepts the result by value, as the server returns it, or by
// pointer.
func toolResult(t *testing.T, result any) *mcp.CallToolResult {
	t.Helper()
	switch r := result.(type) {
	case mcp.CallToolResult:
		return &r
	case *mcp.CallToolResult:
		return r
	}
	require.Failf(t, "unexpected result type", "expected CallToolResult, got %T", result)
	return nil
}

// callToolExpectingRPCError asserts that the handler returned a Go error.
func callToolExpectingRPCError(t *testing.T, s *server.MCPServer, name string, args map[string]any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	_, isError := s.HandleMessage(context.Background(), raw).(mcp.JSONRPCError)
	require.True(t, isError, "expected a JSON-RPC error for %s", name)
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, "unexpected error result: %s", getTextContent(result))
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), v))
}
