package hosting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskdriver"
)

// CheckRunTestRunner implements taskdriver.TestRunner by polling the
// hosting provider's CI check runs for a task's branch — CI itself runs
// externally, triggered by the branch's push; this only observes it.
type CheckRunTestRunner struct {
	providerFor ProviderFactory
	pollEvery   time.Duration
	timeout     time.Duration
}

// NewCheckRunTestRunner builds a CheckRunTestRunner. pollEvery and timeout
// default to 15s and 10 minutes when zero.
func NewCheckRunTestRunner(providerFor ProviderFactory, pollEvery, timeout time.Duration) *CheckRunTestRunner {
	if pollEvery <= 0 {
		pollEvery = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &CheckRunTestRunner{providerFor: providerFor, pollEvery: pollEvery, timeout: timeout}
}

var _ taskdriver.TestRunner = (*CheckRunTestRunner)(nil)

// RunTests polls GetCheckRuns for t.BranchName until every run completes,
// or until timeout elapses.
func (r *CheckRunTestRunner) RunTests(ctx context.Context, t *task.Task) (taskdriver.TestResult, error) {
	provider, err := r.providerFor(t.Repo)
	if err != nil {
		return taskdriver.TestResult{}, fmt.Errorf("resolve hosting provider: %w", err)
	}

	deadline := time.Now().Add(r.timeout)
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		runs, err := provider.GetCheckRuns(ctx, t.BranchName)
		if err != nil {
			return taskdriver.TestResult{}, fmt.Errorf("get check runs: %w", err)
		}
		if done, result := summarizeChecks(runs); done {
			return result, nil
		}
		if time.Now().After(deadline) {
			return taskdriver.TestResult{Passed: false, Logs: "timed out waiting for check runs to complete"}, nil
		}

		select {
		case <-ctx.Done():
			return taskdriver.TestResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// summarizeChecks reports whether every run has completed and, if so,
// whether they all passed. An empty result set counts as not-yet-done —
// CI may not have reported its first check run yet.
func summarizeChecks(runs []CheckRun) (done bool, result taskdriver.TestResult) {
	if len(runs) == 0 {
		return false, taskdriver.TestResult{}
	}

	var failed []string
	for _, r := range runs {
		if r.Status != "completed" {
			return false, taskdriver.TestResult{}
		}
		switch r.Conclusion {
		case "success", "neutral", "skipped":
		default:
			failed = append(failed, r.Name)
		}
	}

	if len(failed) > 0 {
		return true, taskdriver.TestResult{Passed: false, Logs: "failed checks: " + strings.Join(failed, ", ")}
	}
	return true, taskdriver.TestResult{Passed: true}
}
