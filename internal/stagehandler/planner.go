package stagehandler

import (
	"context"
	"errors"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/llmclient"
	"github.com/limaronaldo/orc-task/internal/task"
)

const plannerSchema = `{
	"type": "object",
	"properties": {
		"definition_of_done": {"type": "array", "items": {"type": "string"}},
		"plan": {"type": "array", "items": {"type": "string"}},
		"target_files": {"type": "array", "items": {"type": "string"}},
		"estimated_complexity": {"type": "string", "enum": ["XS", "S", "M", "L", "XL"]},
		"estimated_effort": {"type": "string", "enum": ["low", "medium", "high"]},
		"risks": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["definition_of_done", "plan", "target_files", "estimated_complexity"]
}`

type plannerResponse struct {
	DefinitionOfDone    []string `json:"definition_of_done"`
	Plan                []string `json:"plan"`
	TargetFiles         []string `json:"target_files"`
	EstimatedComplexity string   `json:"estimated_complexity"`
	EstimatedEffort     string   `json:"estimated_effort"`
	Risks               []string `json:"risks"`
}

// PlannerHandler turns an issue's title/body into a definition of done,
// a plan, and a complexity/effort estimate.
type PlannerHandler struct {
	client llmclient.Client
}

// NewPlannerHandler creates a Planner stage handler.
func NewPlannerHandler(client llmclient.Client) *PlannerHandler {
	return &PlannerHandler{client: client}
}

func (h *PlannerHandler) Kind() Kind { return KindPlan }

func (h *PlannerHandler) Run(ctx context.Context, modelID string, in Input) (Output, *HandlerError) {
	prompt := fmt.Sprintf(
		"Issue: %s\n\n%s\n\nRepository context:\n%s\n\nProduce a definition of done, an ordered plan, the target files to change, and an estimated complexity/effort.",
		in.Title, in.Body, in.RepoContext,
	)

	result, err := llmclient.ExecuteWithSchema[plannerResponse](ctx, h.client, llmclient.CompletionRequest{
		Model:      modelID,
		Messages:   []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
		JSONSchema: plannerSchema,
	})
	if err != nil {
		return Output{}, classifyError(err)
	}

	complexity := task.Complexity(result.Data.EstimatedComplexity)
	if !task.IsValidComplexity(complexity) {
		return Output{}, &HandlerError{Code: ErrInvalidOutput, Message: fmt.Sprintf("unrecognized complexity %q", result.Data.EstimatedComplexity)}
	}

	return Output{
		DefinitionOfDone:    result.Data.DefinitionOfDone,
		Plan:                result.Data.Plan,
		TargetFiles:         result.Data.TargetFiles,
		EstimatedComplexity: complexity,
		EstimatedEffort:     task.Effort(result.Data.EstimatedEffort),
		Risks:               result.Data.Risks,
	}, nil
}

// classifyError wraps an ExecuteWithSchema failure as a HandlerError,
// distinguishing a context deadline (TimedOut, recoverable) from everything
// else (treated as InvalidOutput — malformed JSON or a schema mismatch,
// where retrying the same prompt rarely helps).
func classifyError(err error) *HandlerError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &HandlerError{Code: ErrTimedOut, Message: "model call exceeded its deadline", Cause: err}
	}
	return &HandlerError{Code: ErrInvalidOutput, Message: "schema-constrained call failed", Cause: err}
}
