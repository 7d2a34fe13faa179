package stagehandler

import (
	"context"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/llmclient"
)

const reviewerSchema = `{
	"type": "object",
	"properties": {
		"verdict": {"type": "string", "enum": ["APPROVE", "REQUEST_CHANGES", "NEEDS_DISCUSSION"]},
		"summary": {"type": "string"},
		"comments": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"file": {"type": "string"},
					"line": {"type": "integer"},
					"severity": {"type": "string"},
					"comment": {"type": "string"}
				},
				"required": ["file", "severity", "comment"]
			}
		},
		"suggested_changes": {"type": "string"}
	},
	"required": ["verdict", "summary", "comments"]
}`

type reviewerResponse struct {
	Verdict          string           `json:"verdict"`
	Summary          string           `json:"summary"`
	Comments         []reviewerComment `json:"comments"`
	SuggestedChanges string           `json:"suggested_changes"`
}

type reviewerComment struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Comment  string `json:"comment"`
}

// ReviewerHandler evaluates a diff against the issue and plan.
type ReviewerHandler struct {
	client llmclient.Client
}

// NewReviewerHandler creates a Reviewer stage handler.
func NewReviewerHandler(client llmclient.Client) *ReviewerHandler {
	return &ReviewerHandler{client: client}
}

func (h *ReviewerHandler) Kind() Kind { return KindReview }

func (h *ReviewerHandler) Run(ctx context.Context, modelID string, in Input) (Output, *HandlerError) {
	prompt := fmt.Sprintf(
		"Issue: %s\n\n%s\n\nPlan:\n%v\n\nDiff to review:\n%s\n\nEvaluate whether the diff satisfies the plan and definition of done.",
		in.Title, in.Body, in.Plan, in.CurrentDiff,
	)

	result, err := llmclient.ExecuteWithSchema[reviewerResponse](ctx, h.client, llmclient.CompletionRequest{
		Model:      modelID,
		Messages:   []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
		JSONSchema: reviewerSchema,
	})
	if err != nil {
		return Output{}, classifyError(err)
	}

	verdict := ReviewVerdict(result.Data.Verdict)
	switch verdict {
	case VerdictApprove, VerdictRequestChanges, VerdictNeedsDiscussion:
	default:
		return Output{}, &HandlerError{Code: ErrInvalidOutput, Message: fmt.Sprintf("unrecognized verdict %q", result.Data.Verdict)}
	}

	comments := make([]ReviewComment, len(result.Data.Comments))
	for i, c := range result.Data.Comments {
		comments[i] = ReviewComment{File: c.File, Line: c.Line, Severity: c.Severity, Comment: c.Comment}
	}

	return Output{
		Verdict:          verdict,
		Summary:          result.Data.Summary,
		Comments:         comments,
		SuggestedChanges: result.Data.SuggestedChanges,
	}, nil
}
