package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return trimString(val)
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	val, ok := arguments(req)[key].(bool)
	return val, ok
}

// getOptionalInt extracts an optional integer argument. JSON numbers arrive
// as float64; fractional values are rejected.
func getOptionalInt(req mcp.CallToolRequest, key string) (int, bool, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
	if f != float64(int(f)) {
		return 0, false, fmt.Errorf("%s must be an integer", key)
	}
	return int(f), true, nil
}

// getStringSlice extracts an optional string array argument. Some clients
// send arrays as JSON-encoded strings, so those are decoded too. Blank
// entries are dropped.
func getStringSlice(req mcp.CallToolRequest, key string) ([]string, error) {
	items, err := stringItems(req, key)
	if err != nil || items == nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// getTableNames is getStringSlice for table lists. A list whose names are all
// blank is rejected instead of being read as every table.
func getTableNames(req mcp.CallToolRequest, key string) ([]string, error) {
	names, err := getStringSlice(req, key)
	if err != nil || len(names) > 0 {
		return names, err
	}
	if items, _ := stringItems(req, key); len(items) > 0 {
		return nil, fmt.Errorf("%s must name at least one table", key)
	}
	return nil, nil
}

// stringItems returns the trimmed entries of an array argument, blanks
// included.
func stringItems(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		if trimString(v) == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, fmt.Errorf("%s must be an array of strings", key)
		}
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be an array of strings", key)
		}
		out = append(out, trimString(s))
	}
	return out, nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
