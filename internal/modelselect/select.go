// Package modelselect chooses a concrete model for a stage invocation from
// complexity, effort, and attempt count, backed by a refreshable config cache.
package modelselect

import (
	"context"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/task"
)

// Stage identifies which handler is asking for a model.
type Stage string

const (
	StagePlan   Stage = "plan"
	StageCode   Stage = "code"
	StageReview Stage = "review"
	StageFix    Stage = "fix"
)

// Input is the context a selection decision is made from.
type Input struct {
	Stage        Stage
	Complexity   task.Complexity
	Effort       task.Effort
	AttemptCount int
}

// Decision is the outcome of a selection: the model to use, its tier label,
// and a human-readable reason (surfaced in events and logs).
type Decision struct {
	ModelID string
	Tier    string
	Reason  string
}

// RequiresBreakdown reports whether the decision routes the task to
// WAITING_HUMAN instead of invoking a handler.
func (d Decision) RequiresBreakdown() bool {
	return d.Reason == reasonRequiresBreakdown
}

const (
	reasonRequiresBreakdown = "requires breakdown"
	tierStandard            = "standard"
)

// hardcodedDefaults is the last-resort fallback used when the config cache
// has no entry for a position and the universal safe fallback must apply.
var hardcodedDefaults = map[string]string{
	"planner":       "claude-sonnet-4-5",
	"reviewer":      "claude-sonnet-4-5",
	"fixer":         "claude-sonnet-4-5",
	"escalation_1":  "claude-opus-4-1",
	"escalation_2":  "claude-opus-4-1",
	"universal_safe_fallback": "claude-haiku-4-5",
}

// Selector implements the model-selection rule ladder (§4.3): escalation
// first, then stage-specific lookups, backed by a ConfigSource the caller
// refreshes independently (see Cache).
type Selector struct {
	configs ConfigSource
}

// ConfigSource resolves a position (e.g. "coder_m_high", "escalation_1") to
// a model ID. Implementations typically wrap Cache over a taskstore.Store.
type ConfigSource interface {
	Resolve(ctx context.Context, position string) (string, bool)
}

// New creates a Selector backed by the given config source.
func New(configs ConfigSource) *Selector {
	return &Selector{configs: configs}
}

// Select applies the rule ladder from §4.3 in order; the first matching
// rule decides the outcome.
func (s *Selector) Select(ctx context.Context, in Input) (Decision, error) {
	// Rule 2: escalation ladder applies to any stage once a retry is underway.
	// Rule 3 only ever fires at attempt 0 for the code stage.
	if in.AttemptCount >= 1 {
		position := "escalation_1"
		if in.AttemptCount >= 2 {
			position = "escalation_2"
		}
		return s.resolve(ctx, position, fmt.Sprintf("escalation attempt %d", in.AttemptCount))
	}

	switch in.Stage {
	case StageCode:
		return s.selectCode(ctx, in)
	case StagePlan:
		return s.resolve(ctx, "planner", "configured planner position")
	case StageReview:
		return s.resolve(ctx, "reviewer", "configured reviewer position")
	case StageFix:
		return s.resolve(ctx, "fixer", "configured fixer position")
	default:
		return Decision{}, fmt.Errorf("modelselect: unknown stage %q", in.Stage)
	}
}

func (s *Selector) selectCode(ctx context.Context, in Input) (Decision, error) {
	if task.RequiresBreakdown(in.Complexity) {
		return Decision{Tier: tierStandard, Reason: reasonRequiresBreakdown}, nil
	}

	// Rule 3: XS/S/M are symmetric at attempt 0 — all three use the direct
	// coder_{complexity}_{effort} lookup, never the escalation ladder.
	effort := string(in.Effort)
	if effort == "" {
		effort = "default"
	}
	position := fmt.Sprintf("coder_%s_%s", lowerComplexity(in.Complexity), effort)
	return s.resolve(ctx, position, "coder complexity/effort lookup")
}

func (s *Selector) resolve(ctx context.Context, position, reason string) (Decision, error) {
	if modelID, ok := s.configs.Resolve(ctx, position); ok {
		return Decision{ModelID: modelID, Tier: position, Reason: reason}, nil
	}
	if modelID, ok := hardcodedDefaults[position]; ok {
		return Decision{ModelID: modelID, Tier: position, Reason: reason + " (hardcoded default)"}, nil
	}
	return Decision{
		ModelID: hardcodedDefaults["universal_safe_fallback"],
		Tier:    "universal_safe_fallback",
		Reason:  reason + " (universal safe fallback)",
	}, nil
}

func lowerComplexity(c task.Complexity) string {
	switch c {
	case task.ComplexityXS:
		return "xs"
	case task.ComplexityS:
		return "s"
	case task.ComplexityM:
		return "m"
	default:
		return string(c)
	}
}
