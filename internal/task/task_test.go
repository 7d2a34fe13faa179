package task

import (
	"testing"

	"github.com/limaronaldo/orc-task/internal/taskstate"
)

func TestNewTask(t *testing.T) {
	tk := New("acme/widgets", 42, "Fix the thing", "It's broken")

	if tk.ID == "" {
		t.Error("expected a generated ID")
	}
	if tk.Status != taskstate.StatusNew {
		t.Errorf("expected status NEW, got %s", tk.Status)
	}
	if tk.MaxAttempts != 3 {
		t.Errorf("expected default max_attempts 3, got %d", tk.MaxAttempts)
	}
	if tk.CreatedAt.IsZero() || tk.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestToSummary(t *testing.T) {
	tk := New("acme/widgets", 1, "t", "b")
	tk.CurrentDiff = "a very long diff that should not appear in the summary view"
	tk.EstimatedComplexity = ComplexityS

	s := tk.ToSummary()
	if s.ID != tk.ID || s.EstimatedComplexity != ComplexityS {
		t.Error("summary should carry id and complexity through")
	}
}

func TestRequiresBreakdown(t *testing.T) {
	for c, want := range map[Complexity]bool{
		ComplexityXS: false, ComplexityS: false, ComplexityM: false,
		ComplexityL: true, ComplexityXL: true,
	} {
		if got := RequiresBreakdown(c); got != want {
			t.Errorf("RequiresBreakdown(%s) = %v, want %v", c, got, want)
		}
	}
}

func TestNewJobSummaryInvariant(t *testing.T) {
	j := NewJob("acme/widgets", []string{"a", "b", "c"})
	if j.Summary.Total != len(j.TaskIDs) {
		t.Errorf("summary.total = %d, want %d", j.Summary.Total, len(j.TaskIDs))
	}
	sum := j.Summary.Completed + j.Summary.Failed + j.Summary.InProgress + j.Summary.Pending
	if sum != j.Summary.Total {
		t.Errorf("summary counters sum to %d, want %d", sum, j.Summary.Total)
	}
}
