package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// SchemaResult holds a schema-constrained completion's parsed payload
// alongside the raw response it was parsed from.
type SchemaResult[T any] struct {
	Data     T
	Response *CompletionResponse
}

// ExecuteWithSchema is the only way stage handlers make schema-constrained
// calls: it requires a non-empty schema, strictly parses the response, and
// never silently falls back on a parse failure.
func ExecuteWithSchema[T any](ctx context.Context, client Client, req CompletionRequest) (*SchemaResult[T], error) {
	if req.JSONSchema == "" {
		return nil, fmt.Errorf("llmclient: schema is required for ExecuteWithSchema")
	}

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("schema execution failed: %w", err)
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("empty response content from model (may have returned no output)")
	}

	var data T
	if err := json.Unmarshal([]byte(resp.Content), &data); err != nil {
		return nil, fmt.Errorf("schema response parse failed (content=%q): %w", truncate(resp.Content, 200), err)
	}

	return &SchemaResult[T]{Data: data, Response: resp}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
