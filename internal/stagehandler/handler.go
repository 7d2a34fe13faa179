// Package stagehandler implements the Planner, Coder, Reviewer, and Fixer
// stages as a closed tagged union the task driver dispatches by Kind,
// rather than an open interface hierarchy discovered by reflection.
package stagehandler

import (
	"context"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/task"
)

// Kind identifies which stage a Handler implements.
type Kind string

const (
	KindPlan   Kind = "plan"
	KindCode   Kind = "code"
	KindReview Kind = "review"
	KindFix    Kind = "fix"
)

// ErrorCode classifies a stage failure so the task driver can decide
// whether to retry, escalate, or fail the task outright (§4.5).
type ErrorCode string

const (
	ErrValidationFailed ErrorCode = "validation_failed"
	ErrModelUnavailable ErrorCode = "model_unavailable"
	ErrInvalidOutput    ErrorCode = "invalid_output"
	ErrTimedOut         ErrorCode = "timed_out"
)

// HandlerError wraps a stage failure with the classification the driver
// needs to route it.
type HandlerError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *HandlerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// Recoverable reports whether the driver should retry this step (possibly
// escalating model tier) rather than fail the task outright.
func (e *HandlerError) Recoverable() bool {
	return e.Code == ErrModelUnavailable || e.Code == ErrTimedOut
}

// Input is the handler_input(task) projection from §4.5: the fields a
// stage needs, never the whole Task.
type Input struct {
	Title            string
	Body             string
	RepoContext      string
	DefinitionOfDone []string
	Plan             []string
	TargetFiles      []string
	CurrentDiff      string
	ErrorLogs        string
	FileContents     map[string]string
}

// Output carries whichever stage's result fields are populated; the task
// driver reads only the fields relevant to the Kind it invoked.
type Output struct {
	// Planner
	DefinitionOfDone    []string
	Plan                []string
	TargetFiles         []string
	EstimatedComplexity task.Complexity
	EstimatedEffort     task.Effort
	Risks               []string

	// Coder / Fixer
	Diff          string
	CommitMessage string
	FilesModified []string
	Notes         string
	FixDescription string

	// Reviewer
	Verdict           ReviewVerdict
	Summary           string
	Comments          []ReviewComment
	SuggestedChanges  string
}

// ReviewVerdict is the Reviewer stage's outcome classification.
type ReviewVerdict string

const (
	VerdictApprove          ReviewVerdict = "APPROVE"
	VerdictRequestChanges   ReviewVerdict = "REQUEST_CHANGES"
	VerdictNeedsDiscussion  ReviewVerdict = "NEEDS_DISCUSSION"
)

// ReviewComment is one reviewer finding.
type ReviewComment struct {
	File     string
	Line     int
	Severity string
	Comment  string
}

// Handler runs one stage against a model.
type Handler interface {
	Kind() Kind
	Run(ctx context.Context, modelID string, in Input) (Output, *HandlerError)
}

// Registry dispatches to the concrete Handler for a Kind, the driver's
// only point of contact with the stage implementations (§9 polymorphism
// guidance: dispatch by enum, not reflection over an open interface set).
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry builds a Registry from the four stage handlers.
func NewRegistry(plan, code, review, fix Handler) *Registry {
	return &Registry{handlers: map[Kind]Handler{
		KindPlan:   plan,
		KindCode:   code,
		KindReview: review,
		KindFix:    fix,
	}}
}

// Handler returns the registered Handler for kind, or an error if none is
// registered — a programming error, since the four kinds are fixed.
func (r *Registry) Handler(kind Kind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("stagehandler: no handler registered for kind %q", kind)
	}
	return h, nil
}
