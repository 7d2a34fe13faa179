package llmclient

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type mockClient struct {
	response string
	err      error
}

func (m *mockClient) Complete(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &CompletionResponse{Content: m.response}, nil
}

type planOutput struct {
	Plan []string `json:"plan"`
}

func TestExecuteWithSchemaSuccess(t *testing.T) {
	data := planOutput{Plan: []string{"step 1", "step 2"}}
	raw, _ := json.Marshal(data)
	client := &mockClient{response: string(raw)}

	result, err := ExecuteWithSchema[planOutput](context.Background(), client, CompletionRequest{
		JSONSchema: `{"type":"object"}`,
	})
	if err != nil {
		t.Fatalf("ExecuteWithSchema: %v", err)
	}
	if len(result.Data.Plan) != 2 {
		t.Errorf("unexpected plan: %+v", result.Data.Plan)
	}
}

func TestExecuteWithSchemaRequiresSchema(t *testing.T) {
	client := &mockClient{response: "{}"}
	if _, err := ExecuteWithSchema[planOutput](context.Background(), client, CompletionRequest{}); err == nil {
		t.Error("expected error when schema is empty")
	}
}

func TestExecuteWithSchemaEmptyContent(t *testing.T) {
	client := &mockClient{response: ""}
	_, err := ExecuteWithSchema[planOutput](context.Background(), client, CompletionRequest{JSONSchema: `{"type":"object"}`})
	if err == nil || !strings.Contains(err.Error(), "empty response content") {
		t.Errorf("expected empty content error, got %v", err)
	}
}

func TestExecuteWithSchemaParseFailure(t *testing.T) {
	client := &mockClient{response: "not json"}
	_, err := ExecuteWithSchema[planOutput](context.Background(), client, CompletionRequest{JSONSchema: `{"type":"object"}`})
	if err == nil {
		t.Error("expected parse error")
	}
}
