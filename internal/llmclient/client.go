// Package llmclient abstracts the model backend behind stage handlers so
// they depend on a small vendor-neutral interface rather than a concrete SDK.
package llmclient

import "context"

// Role identifies the speaker of a message in a completion request.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a completion request.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a vendor-neutral model call.
type CompletionRequest struct {
	Model      string
	Messages   []Message
	System     string
	MaxTokens  int
	JSONSchema string // when set, the response must validate against this JSON schema
}

// CompletionResponse is the vendor-neutral model reply.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// Client is the only way stage handlers talk to a model. Implementations
// must be safe for concurrent use by the job runner's worker pool.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
