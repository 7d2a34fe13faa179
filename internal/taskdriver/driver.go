// Package taskdriver implements the per-task step function (§4.5): one
// call advances a task by exactly one stage, persists the result, and
// returns. It holds no state across calls — a crashed or restarted
// process resumes by re-reading the task's row and calling Step again.
package taskdriver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/limaronaldo/orc-task/internal/modelselect"
	"github.com/limaronaldo/orc-task/internal/stagehandler"
	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskerr"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// MaxSteps bounds how many stages a single Run invocation will advance a
// task through before yielding, guarding against a misconfigured loop.
const MaxSteps = 50

// WallClock bounds the total time Run spends on one task.
const WallClock = 15 * time.Minute

// RepoContextFunc supplies repository context for handler prompts (file
// tree, README, relevant source) — sourced outside the driver itself.
type RepoContextFunc func(ctx context.Context, repo string) (string, error)

// TestResult is the outcome of running a task's branch through CI/tests.
type TestResult struct {
	Passed bool
	Logs   string
}

// TestRunner executes the TEST action. It is not an LLM stage handler —
// it drives an external test/CI process for the task's branch.
type TestRunner interface {
	RunTests(ctx context.Context, t *task.Task) (TestResult, error)
}

// PRCreator executes the OPEN_PR action against a hosting provider (C12).
type PRCreator interface {
	OpenPR(ctx context.Context, t *task.Task) (prNumber int, prURL string, err error)
}

// PathValidator enforces the configured allowed/blocked path policy (C10)
// against a plan's target files. Validate returns the first offending
// path, or "" if every target file is in policy.
type PathValidator interface {
	Validate(targetFiles []string) (violation string)
}

// Driver advances tasks through the state machine one stage at a time.
type Driver struct {
	store       taskstore.Store
	registry    *stagehandler.Registry
	selector    *modelselect.Selector
	tests       TestRunner
	pr          PRCreator
	paths       PathValidator
	repoContext RepoContextFunc
	logger      *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger overrides the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithRepoContext overrides how repository context is fetched for prompts.
func WithRepoContext(fn RepoContextFunc) Option {
	return func(d *Driver) { d.repoContext = fn }
}

// WithPathValidator attaches the allowed/blocked path policy check run
// against a plan's target files before it is accepted.
func WithPathValidator(v PathValidator) Option {
	return func(d *Driver) { d.paths = v }
}

// New creates a Driver.
func New(store taskstore.Store, registry *stagehandler.Registry, selector *modelselect.Selector, tests TestRunner, pr PRCreator, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		registry: registry,
		selector: selector,
		tests:    tests,
		pr:       pr,
		logger:   slog.Default(),
		repoContext: func(context.Context, string) (string, error) {
			return "", nil
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run advances t repeatedly until it is terminal, suspended, or the step/
// wall-clock budget is exhausted.
func (d *Driver) Run(ctx context.Context, t *task.Task) (*task.Task, error) {
	deadline := time.Now().Add(WallClock)

	for steps := 0; steps < MaxSteps; steps++ {
		if time.Now().After(deadline) {
			taskerr.Fail(t, taskerr.New(taskerr.CodeBudgetExceeded, "task exceeded its wall-clock budget"))
			if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
				return t, fmt.Errorf("persist budget-exceeded failure: %w", err)
			}
			return t, nil
		}

		next, err := d.Step(ctx, t)
		if err != nil {
			return t, err
		}
		t = next

		if taskstate.IsTerminal(t.Status) || taskstate.IsSuspended(t.Status) {
			return t, nil
		}
	}

	taskerr.Fail(t, taskerr.New(taskerr.CodeBudgetExceeded, fmt.Sprintf("task exceeded %d steps", MaxSteps)))
	if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
		return t, fmt.Errorf("persist budget-exceeded failure: %w", err)
	}
	return t, nil
}

// Step advances t through exactly one stage and persists the result. It
// never mutates in-memory state it does not also write to the store, so a
// caller crashing immediately after Step returns loses nothing it needed.
func (d *Driver) Step(ctx context.Context, t *task.Task) (*task.Task, error) {
	action := taskstate.NextAction(t.Status)

	switch action {
	case taskstate.ActionWait, taskstate.ActionDone, taskstate.ActionFail:
		return t, nil
	case taskstate.ActionTest:
		return d.stepTest(ctx, t)
	case taskstate.ActionOpenPR:
		return d.stepOpenPR(ctx, t)
	}

	spec, ok := actionSpecs[action]
	if !ok {
		taskerr.Fail(t, taskerr.New(taskerr.CodeInvalidState, fmt.Sprintf("no driver spec for action %s", action)))
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
			return t, fmt.Errorf("persist invalid-state failure: %w", err)
		}
		return t, nil
	}

	if err := spec.checkPreconditions(t); err != nil {
		taskerr.Fail(t, err)
		if uerr := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); uerr != nil {
			return t, fmt.Errorf("persist precondition failure: %w", uerr)
		}
		return t, nil
	}

	if spec.requiresBreakdown != nil && spec.requiresBreakdown(t) {
		t.Status = taskstate.StatusWaitingHuman
		t.UpdatedAt = time.Now()
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("BREAKDOWN_REQUIRED"))); err != nil {
			return t, fmt.Errorf("persist breakdown-required: %w", err)
		}
		return t, nil
	}

	handler, err := d.registry.Handler(spec.kind)
	if err != nil {
		taskerr.Fail(t, taskerr.Wrap(taskerr.CodeInvalidState, "no handler registered", err))
		if uerr := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); uerr != nil {
			return t, fmt.Errorf("persist handler-missing failure: %w", uerr)
		}
		return t, nil
	}

	decision, err := d.selector.Select(ctx, modelselect.Input{
		Stage:        spec.stage,
		Complexity:   t.EstimatedComplexity,
		Effort:       t.EstimatedEffort,
		AttemptCount: t.AttemptCount,
	})
	if err != nil {
		taskerr.Fail(t, taskerr.Wrap(taskerr.CodeInvalidState, "model selection failed", err))
		if uerr := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); uerr != nil {
			return t, fmt.Errorf("persist selection failure: %w", uerr)
		}
		return t, nil
	}
	if decision.RequiresBreakdown() {
		t.Status = taskstate.StatusWaitingHuman
		t.UpdatedAt = time.Now()
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("BREAKDOWN_REQUIRED"))); err != nil {
			return t, fmt.Errorf("persist breakdown-required: %w", err)
		}
		return t, nil
	}

	repoContext, _ := d.repoContext(ctx, t.Repo)
	input := spec.buildInput(t, repoContext)

	out, hErr := handler.Run(ctx, decision.ModelID, input)
	if hErr != nil {
		return d.handleStageError(ctx, t, spec, hErr)
	}

	if spec.kind == stagehandler.KindPlan && d.paths != nil {
		if violation := d.paths.Validate(out.TargetFiles); violation != "" {
			return d.handleStageError(ctx, t, spec, &stagehandler.HandlerError{
				Code:    stagehandler.ErrValidationFailed,
				Message: fmt.Sprintf("target file %q is outside the allowed path policy", violation),
			})
		}
	}

	t.Status = spec.successStatus
	spec.applyOutput(t, out)
	t.UpdatedAt = time.Now()

	ev := task.NewEvent(t.ID, spec.successEvent)
	ev.Agent = string(spec.kind)
	if err := d.store.UpdateTask(ctx, t, ev); err != nil {
		return t, fmt.Errorf("persist %s success: %w", action, err)
	}

	d.logger.Info("stage completed", "task_id", t.ID, "action", action, "status", t.Status)
	return t, nil
}

// stepTest runs a task's branch through CI/tests. TEST is not an LLM stage
// handler, so it bypasses actionSpecs entirely and talks to d.tests instead.
func (d *Driver) stepTest(ctx context.Context, t *task.Task) (*task.Task, error) {
	if t.BranchName == "" || t.CurrentDiff == "" {
		taskerr.Fail(t, taskerr.New(taskerr.CodePreconditionViolation, "TEST requires a branch name and current diff"))
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
			return t, fmt.Errorf("persist precondition failure: %w", err)
		}
		return t, nil
	}

	result, err := d.tests.RunTests(ctx, t)
	if err != nil {
		taskerr.Fail(t, taskerr.Wrap(taskerr.CodeInvalidState, "test run failed", err))
		if uerr := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); uerr != nil {
			return t, fmt.Errorf("persist test-run failure: %w", uerr)
		}
		return t, nil
	}

	if result.Passed {
		t.Status = taskstate.StatusTestsPassed
		t.LastError = ""
	} else {
		t.Status = taskstate.StatusTestsFailed
		t.LastError = result.Logs
	}
	t.UpdatedAt = time.Now()

	if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventTested)); err != nil {
		return t, fmt.Errorf("persist test result: %w", err)
	}
	d.logger.Info("stage completed", "task_id", t.ID, "action", taskstate.ActionTest, "status", t.Status)
	return t, nil
}

// stepOpenPR opens a pull request against the hosting provider for a task
// whose tests have passed. It is not an LLM stage handler either.
func (d *Driver) stepOpenPR(ctx context.Context, t *task.Task) (*task.Task, error) {
	if t.Status != taskstate.StatusTestsPassed {
		taskerr.Fail(t, taskerr.New(taskerr.CodePreconditionViolation, "OPEN_PR requires tests_passed status"))
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
			return t, fmt.Errorf("persist precondition failure: %w", err)
		}
		return t, nil
	}

	prNumber, prURL, err := d.pr.OpenPR(ctx, t)
	if err != nil {
		taskerr.Fail(t, taskerr.Wrap(taskerr.CodeInvalidState, "opening pull request failed", err))
		if uerr := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); uerr != nil {
			return t, fmt.Errorf("persist pr-open failure: %w", uerr)
		}
		return t, nil
	}

	t.PRNumber = prNumber
	t.PRURL = prURL
	t.Status = taskstate.StatusPRCreated
	t.UpdatedAt = time.Now()

	if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventPROpened)); err != nil {
		return t, fmt.Errorf("persist pr-created: %w", err)
	}
	d.logger.Info("stage completed", "task_id", t.ID, "action", taskstate.ActionOpenPR, "status", t.Status)
	return t, nil
}

func (d *Driver) handleStageError(ctx context.Context, t *task.Task, spec actionSpec, hErr *stagehandler.HandlerError) (*task.Task, error) {
	switch hErr.Code {
	case stagehandler.ErrModelUnavailable, stagehandler.ErrTimedOut:
		t.AttemptCount++
		if t.AttemptCount > t.MaxAttempts {
			taskerr.Fail(t, taskerr.Wrap(taskerr.CodeTimedOut, "model unavailable after escalation", hErr))
			if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
				return t, fmt.Errorf("persist escalation-exhausted failure: %w", err)
			}
			return t, nil
		}
		// Stay at the same status; the next Step call re-selects a model,
		// and the escalation ladder in modelselect picks up the higher tier
		// from the incremented attempt count.
		t.UpdatedAt = time.Now()
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("RETRY_ESCALATED"))); err != nil {
			return t, fmt.Errorf("persist retry: %w", err)
		}
		return t, nil

	default: // ValidationFailed, InvalidOutput
		t.AttemptCount++
		if t.AttemptCount > t.MaxAttempts {
			taskerr.Fail(t, taskerr.Wrap(taskerr.CodeInvalidOutput, "attempts exhausted", hErr))
			if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventFailed)); err != nil {
				return t, fmt.Errorf("persist attempts-exhausted failure: %w", err)
			}
			return t, nil
		}
		if spec.retryStatus == "" {
			t.UpdatedAt = time.Now()
			if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("RETRY"))); err != nil {
				return t, fmt.Errorf("persist retry: %w", err)
			}
			return t, nil
		}
		t.Status = spec.retryStatus
		t.LastError = hErr.Error()
		t.UpdatedAt = time.Now()
		if err := d.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("RETRY"))); err != nil {
			return t, fmt.Errorf("persist retry-to-fixing: %w", err)
		}
		return t, nil
	}
}
