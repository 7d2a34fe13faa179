package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a Client using the given API key. Pass "" to
// fall back to the ANTHROPIC_API_KEY environment variable, matching the
// SDK's own default resolution.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.JSONSchema != "" {
		params.Tools = []anthropic.ToolUnionParam{schemaTool(req.JSONSchema)}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: schemaToolName},
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}

	return &CompletionResponse{
		Content:      extractContent(msg, req.JSONSchema != ""),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
	}, nil
}

const schemaToolName = "emit_structured_output"

// schemaTool wraps a JSON schema in a forced tool call, the same technique
// the reference gate evaluator relies on for structured model output.
func schemaTool(schema string) anthropic.ToolUnionParam {
	var parsed struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		parsed.Properties = map[string]any{}
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        schemaToolName,
			Description: anthropic.String("Emit the response as structured JSON matching the required schema."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: parsed.Properties,
				Required:   parsed.Required,
			},
		},
	}
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func extractContent(msg *anthropic.Message, wantToolUse bool) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if wantToolUse {
			if tu := block.AsToolUse(); tu.Name == schemaToolName {
				return string(tu.Input)
			}
			continue
		}
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

func rawSchemaProperties(schema string) any {
	// The schema is accepted pre-serialized as a JSON object string; passed
	// through untouched so callers own their own schema definitions.
	return anthropic.RawJSON(schema)
}
