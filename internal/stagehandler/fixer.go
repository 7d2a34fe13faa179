package stagehandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/limaronaldo/orc-task/internal/llmclient"
)

const fixerSchema = `{
	"type": "object",
	"properties": {
		"diff": {"type": "string"},
		"commit_message": {"type": "string"},
		"fix_description": {"type": "string"},
		"files_modified": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["diff", "commit_message", "fix_description", "files_modified"]
}`

type fixerResponse struct {
	Diff          string   `json:"diff"`
	CommitMessage string   `json:"commit_message"`
	FixDescription string  `json:"fix_description"`
	FilesModified []string `json:"files_modified"`
}

// FixerHandler repairs a failing diff using review feedback or test failure
// output; its output diff must be complete, not a patch-on-a-patch.
type FixerHandler struct {
	client llmclient.Client
}

// NewFixerHandler creates a Fixer stage handler.
func NewFixerHandler(client llmclient.Client) *FixerHandler {
	return &FixerHandler{client: client}
}

func (h *FixerHandler) Kind() Kind { return KindFix }

func (h *FixerHandler) Run(ctx context.Context, modelID string, in Input) (Output, *HandlerError) {
	prompt := fmt.Sprintf(
		"Definition of done:\n%s\n\nPlan:\n%s\n\nCurrent diff:\n%s\n\nError logs:\n%s\n\nProduce a complete replacement diff that fixes the failure while preserving the original intent.",
		strings.Join(in.DefinitionOfDone, "\n"), strings.Join(in.Plan, "\n"), in.CurrentDiff, in.ErrorLogs,
	)

	result, err := llmclient.ExecuteWithSchema[fixerResponse](ctx, h.client, llmclient.CompletionRequest{
		Model:      modelID,
		Messages:   []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
		JSONSchema: fixerSchema,
	})
	if err != nil {
		return Output{}, classifyError(err)
	}

	if err := validateDiff(result.Data.Diff); err != nil {
		return Output{}, &HandlerError{Code: ErrInvalidOutput, Message: err.Error()}
	}

	return Output{
		Diff:           result.Data.Diff,
		CommitMessage:  result.Data.CommitMessage,
		FixDescription: result.Data.FixDescription,
		FilesModified:  result.Data.FilesModified,
	}, nil
}
