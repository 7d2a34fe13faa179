package modelselect

import (
	"context"
	"testing"

	"github.com/limaronaldo/orc-task/internal/task"
)

type fakeSource map[string]string

func (f fakeSource) Resolve(_ context.Context, position string) (string, bool) {
	v, ok := f[position]
	return v, ok
}

func TestSelectCodeStageDirectLookupAtAttemptZero(t *testing.T) {
	sel := New(fakeSource{"coder_m_high": "claude-sonnet-4-5"})
	d, err := sel.Select(context.Background(), Input{
		Stage: StageCode, Complexity: task.ComplexityM, Effort: task.EffortHigh, AttemptCount: 0,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.ModelID != "claude-sonnet-4-5" || d.Tier != "coder_m_high" {
		t.Errorf("unexpected decision: %+v", d)
	}
}

func TestSelectCodeStageSymmetryForSAndXS(t *testing.T) {
	sel := New(fakeSource{"coder_s_low": "m1", "coder_xs_low": "m2"})

	dS, err := sel.Select(context.Background(), Input{Stage: StageCode, Complexity: task.ComplexityS, Effort: task.EffortLow, AttemptCount: 0})
	if err != nil {
		t.Fatalf("select S: %v", err)
	}
	dXS, err := sel.Select(context.Background(), Input{Stage: StageCode, Complexity: task.ComplexityXS, Effort: task.EffortLow, AttemptCount: 0})
	if err != nil {
		t.Fatalf("select XS: %v", err)
	}
	if dS.Tier != "coder_s_low" || dXS.Tier != "coder_xs_low" {
		t.Errorf("expected both to use direct lookup at attempt 0, got %+v / %+v", dS, dXS)
	}
}

func TestSelectEscalationLadder(t *testing.T) {
	sel := New(fakeSource{"escalation_1": "esc1", "escalation_2": "esc2"})

	d1, err := sel.Select(context.Background(), Input{Stage: StageCode, Complexity: task.ComplexityM, AttemptCount: 1})
	if err != nil {
		t.Fatalf("select attempt 1: %v", err)
	}
	if d1.ModelID != "esc1" {
		t.Errorf("expected escalation_1 at attempt 1, got %+v", d1)
	}

	d2, err := sel.Select(context.Background(), Input{Stage: StageReview, AttemptCount: 3})
	if err != nil {
		t.Fatalf("select attempt 3: %v", err)
	}
	if d2.ModelID != "esc2" {
		t.Errorf("expected escalation_2 at attempt >= 2, got %+v", d2)
	}
}

func TestSelectLargeComplexityRequiresBreakdown(t *testing.T) {
	sel := New(fakeSource{})
	d, err := sel.Select(context.Background(), Input{Stage: StageCode, Complexity: task.ComplexityL, AttemptCount: 0})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !d.RequiresBreakdown() {
		t.Errorf("expected L complexity to require breakdown, got %+v", d)
	}
}

func TestSelectFallsBackToHardcodedDefaults(t *testing.T) {
	sel := New(fakeSource{})
	d, err := sel.Select(context.Background(), Input{Stage: StagePlan, AttemptCount: 0})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.ModelID == "" {
		t.Error("expected a non-empty fallback model id")
	}
}

func TestSelectUnknownStageErrors(t *testing.T) {
	sel := New(fakeSource{})
	if _, err := sel.Select(context.Background(), Input{Stage: Stage("bogus")}); err == nil {
		t.Error("expected an error for unknown stage")
	}
}
