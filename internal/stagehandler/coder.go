package stagehandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/limaronaldo/orc-task/internal/llmclient"
)

const coderSchema = `{
	"type": "object",
	"properties": {
		"diff": {"type": "string"},
		"commit_message": {"type": "string"},
		"files_modified": {"type": "array", "items": {"type": "string"}},
		"notes": {"type": "string"}
	},
	"required": ["diff", "commit_message", "files_modified"]
}`

type coderResponse struct {
	Diff          string   `json:"diff"`
	CommitMessage string   `json:"commit_message"`
	FilesModified []string `json:"files_modified"`
	Notes         string   `json:"notes"`
}

// CoderHandler turns a plan into a unified diff applying against the base
// branch.
type CoderHandler struct {
	client llmclient.Client
}

// NewCoderHandler creates a Coder stage handler.
func NewCoderHandler(client llmclient.Client) *CoderHandler {
	return &CoderHandler{client: client}
}

func (h *CoderHandler) Kind() Kind { return KindCode }

func (h *CoderHandler) Run(ctx context.Context, modelID string, in Input) (Output, *HandlerError) {
	prompt := fmt.Sprintf(
		"Plan:\n%s\n\nDefinition of done:\n%s\n\nTarget files: %s\n\nRepository context:\n%s\n\nProduce a single unified diff implementing the plan.",
		strings.Join(in.Plan, "\n"), strings.Join(in.DefinitionOfDone, "\n"), strings.Join(in.TargetFiles, ", "), in.RepoContext,
	)

	result, err := llmclient.ExecuteWithSchema[coderResponse](ctx, h.client, llmclient.CompletionRequest{
		Model:      modelID,
		Messages:   []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
		JSONSchema: coderSchema,
	})
	if err != nil {
		return Output{}, classifyError(err)
	}

	if err := validateDiff(result.Data.Diff); err != nil {
		return Output{}, &HandlerError{Code: ErrInvalidOutput, Message: err.Error()}
	}

	return Output{
		Diff:          result.Data.Diff,
		CommitMessage: result.Data.CommitMessage,
		FilesModified: result.Data.FilesModified,
		Notes:         result.Data.Notes,
	}, nil
}

// validateDiff checks that a diff looks like a unified diff and does not
// smuggle diff-header markers inside code content (§4.4).
func validateDiff(diff string) error {
	if strings.TrimSpace(diff) == "" {
		return fmt.Errorf("diff is empty")
	}
	if !strings.Contains(diff, "@@") {
		return fmt.Errorf("diff does not contain a unified-diff hunk header")
	}
	if !strings.HasPrefix(diff, "diff --git") && !strings.HasPrefix(diff, "---") {
		return fmt.Errorf("diff does not start with a unified-diff header")
	}
	for _, line := range strings.Split(diff, "\n") {
		if line == "" || !strings.ContainsRune("+- ", rune(line[0])) {
			continue
		}
		for _, marker := range []string{"diff --git ", "@@ ", "+++ ", "--- "} {
			if strings.HasPrefix(line[1:], marker) {
				return fmt.Errorf("diff embeds a diff-header marker inside code content: %q", line)
			}
		}
	}
	return nil
}
