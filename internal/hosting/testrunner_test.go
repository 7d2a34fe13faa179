package hosting

import (
	"context"
	"testing"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
)

type fakeCheckRunProvider struct {
	Provider
	calls int
	runs  [][]CheckRun
	err   error
}

func (f *fakeCheckRunProvider) GetCheckRuns(context.Context, string) ([]CheckRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	if i >= len(f.runs) {
		i = len(f.runs) - 1
	}
	f.calls++
	return f.runs[i], nil
}

func TestCheckRunTestRunnerPassesWhenAllChecksSucceed(t *testing.T) {
	fp := &fakeCheckRunProvider{runs: [][]CheckRun{
		{{Name: "build", Status: "completed", Conclusion: "success"}},
	}}
	r := NewCheckRunTestRunner(func(string) (Provider, error) { return fp, nil }, time.Millisecond, time.Second)

	result, err := r.RunTests(context.Background(), task.New("acme/widgets", 1, "t", ""))
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckRunTestRunnerFailsOnFailedCheck(t *testing.T) {
	fp := &fakeCheckRunProvider{runs: [][]CheckRun{
		{{Name: "build", Status: "completed", Conclusion: "success"},
			{Name: "lint", Status: "completed", Conclusion: "failure"}},
	}}
	r := NewCheckRunTestRunner(func(string) (Provider, error) { return fp, nil }, time.Millisecond, time.Second)

	result, err := r.RunTests(context.Background(), task.New("acme/widgets", 1, "t", ""))
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if result.Passed {
		t.Fatal("expected failure")
	}
}

func TestCheckRunTestRunnerPollsUntilComplete(t *testing.T) {
	fp := &fakeCheckRunProvider{runs: [][]CheckRun{
		{{Name: "build", Status: "in_progress"}},
		{{Name: "build", Status: "in_progress"}},
		{{Name: "build", Status: "completed", Conclusion: "success"}},
	}}
	r := NewCheckRunTestRunner(func(string) (Provider, error) { return fp, nil }, time.Millisecond, time.Second)

	result, err := r.RunTests(context.Background(), task.New("acme/widgets", 1, "t", ""))
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass after polling, got %+v", result)
	}
	if fp.calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", fp.calls)
	}
}

func TestCheckRunTestRunnerTimesOut(t *testing.T) {
	fp := &fakeCheckRunProvider{runs: [][]CheckRun{
		{{Name: "build", Status: "in_progress"}},
	}}
	r := NewCheckRunTestRunner(func(string) (Provider, error) { return fp, nil }, time.Millisecond, 5*time.Millisecond)

	result, err := r.RunTests(context.Background(), task.New("acme/widgets", 1, "t", ""))
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if result.Passed {
		t.Fatal("expected timeout to report failure")
	}
}
