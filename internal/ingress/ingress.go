package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// ErrRepoNotAllowed is returned when an event's repo is not on the
// allowlist. Callers should treat it as "dropped silently" at their
// boundary (§4.8) rather than surface it to the external source.
var ErrRepoNotAllowed = errors.New("ingress: repo not on allowlist")

// Ingress normalizes external events into Tasks and Jobs. Its caller is the
// HTTP webhook handler; the direct API handlers (POST /api/tasks,
// POST /api/jobs) create tasks and jobs without going through it, so the
// allowlist is not applied to them. The one evaluation path mirrors the
// reference TriggerRunner's single-synchronous-evaluation-function shape.
type Ingress struct {
	store        taskstore.Store
	allowedRepos map[string]bool
	autoDevLabel string
	batchLabel   string
	logger       *slog.Logger

	dropped atomic.Int64
}

// Option configures an Ingress.
type Option func(*Ingress)

// WithLogger overrides the ingress logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingress) { i.logger = logger }
}

// New creates an Ingress. allowedRepos holds "owner/repo" strings; an
// empty list allows nothing, per the fail-closed allowlist policy.
func New(store taskstore.Store, allowedRepos []string, autoDevLabel, batchLabel string, opts ...Option) *Ingress {
	allowed := make(map[string]bool, len(allowedRepos))
	for _, r := range allowedRepos {
		allowed[r] = true
	}
	i := &Ingress{
		store:        store,
		allowedRepos: allowed,
		autoDevLabel: autoDevLabel,
		batchLabel:   batchLabel,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// DroppedCount reports how many events have been dropped for failing the
// repo allowlist since process start.
func (i *Ingress) DroppedCount() int64 {
	return i.dropped.Load()
}

// Normalize is the single entry point for webhook events (§4.8). It respects ctx cancellation the way the reference
// executeTrigger does: the evaluation runs in a goroutine and a select
// races it against ctx.Done().
func (i *Ingress) Normalize(ctx context.Context, ev RawEvent) (*task.Task, *task.Job, error) {
	if !i.allowedRepos[ev.Repo] {
		i.dropped.Add(1)
		i.logger.Warn("ingress: dropping event for disallowed repo", "repo", ev.Repo, "kind", ev.Kind)
		return nil, nil, ErrRepoNotAllowed
	}

	type result struct {
		t   *task.Task
		j   *task.Job
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, j, err := i.normalize(ctx, ev)
		ch <- result{t, j, err}
	}()

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		return res.t, res.j, res.err
	}
}

func (i *Ingress) normalize(ctx context.Context, ev RawEvent) (*task.Task, *task.Job, error) {
	switch ev.Kind {
	case KindIssueLabeled:
		switch ev.Label {
		case i.autoDevLabel:
			return i.createSingleTask(ctx, ev)
		case i.batchLabel:
			return i.createOrJoinBatchJob(ctx, ev)
		default:
			return nil, nil, nil
		}
	case KindCheckRunCompleted:
		t, err := i.reawakenFromCheckRun(ctx, ev)
		return t, nil, err
	case KindPRMerged:
		t, err := i.completeFromPRMerge(ctx, ev)
		return t, nil, err
	default:
		return nil, nil, fmt.Errorf("ingress: unknown event kind %q", ev.Kind)
	}
}

func (i *Ingress) createSingleTask(ctx context.Context, ev RawEvent) (*task.Task, *task.Job, error) {
	t := task.New(ev.Repo, ev.IssueNumber, ev.Title, ev.Body)
	if err := i.store.CreateTask(ctx, t); err != nil {
		return nil, nil, fmt.Errorf("create task: %w", err)
	}
	if err := i.store.AppendEvent(ctx, task.NewEvent(t.ID, task.EventCreated)); err != nil {
		return nil, nil, fmt.Errorf("append created event: %w", err)
	}
	return t, nil, nil
}

// createOrJoinBatchJob implements the batch-label trigger: create the
// task, then attach it to an already-open Job for the same repo or start
// a new one. One open batch-trigger Job per repo at a time is the
// resolved behavior for "all sibling issues with the same label" — the
// Job type carries no label field, so repo is the grouping key.
func (i *Ingress) createOrJoinBatchJob(ctx context.Context, ev RawEvent) (*task.Task, *task.Job, error) {
	t, _, err := i.createSingleTask(ctx, ev)
	if err != nil {
		return nil, nil, err
	}

	active, err := i.store.ListActiveJobs(ctx)
	if err != nil {
		return t, nil, fmt.Errorf("list active jobs: %w", err)
	}
	for _, j := range active {
		if j.Repo != ev.Repo {
			continue
		}
		j.TaskIDs = append(j.TaskIDs, t.ID)
		j.Summary.Total++
		j.Summary.Pending++
		j.UpdatedAt = time.Now()
		if err := i.store.UpdateJob(ctx, j); err != nil {
			return t, nil, fmt.Errorf("attach task to job: %w", err)
		}
		t.JobID = j.ID
		if err := i.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("JOB_ATTACHED"))); err != nil {
			return t, j, fmt.Errorf("record job attachment: %w", err)
		}
		return t, j, nil
	}

	j := task.NewJob(ev.Repo, []string{t.ID})
	if err := i.store.CreateJob(ctx, j); err != nil {
		return t, nil, fmt.Errorf("create job: %w", err)
	}
	t.JobID = j.ID
	if err := i.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("JOB_ATTACHED"))); err != nil {
		return t, j, fmt.Errorf("record job attachment: %w", err)
	}
	return t, j, nil
}

// reawakenFromCheckRun locates the task whose branch the check-run
// belongs to among tasks currently TESTING, and records the outcome.
func (i *Ingress) reawakenFromCheckRun(ctx context.Context, ev RawEvent) (*task.Task, error) {
	if ev.CheckRun == nil {
		return nil, fmt.Errorf("ingress: check_run_completed event missing check_run payload")
	}
	t, err := i.findTaskByBranch(ctx, ev.Repo, ev.CheckRun.BranchName, taskstate.StatusTesting)
	if err != nil || t == nil {
		return nil, err
	}

	if ev.CheckRun.Conclusion == "success" {
		t.Status = taskstate.StatusTestsPassed
		t.LastError = ""
	} else {
		t.Status = taskstate.StatusTestsFailed
		t.LastError = ev.CheckRun.Logs
	}
	t.UpdatedAt = time.Now()
	if err := i.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventTested)); err != nil {
		return nil, fmt.Errorf("persist check-run result: %w", err)
	}
	return t, nil
}

// completeFromPRMerge walks a merged PR's owning task from PR_CREATED
// through WAITING_HUMAN to COMPLETED — the two hops the transition table
// allows (§4.1) — in two serialized writes so the audit trail shows both.
func (i *Ingress) completeFromPRMerge(ctx context.Context, ev RawEvent) (*task.Task, error) {
	if ev.PR == nil {
		return nil, fmt.Errorf("ingress: pr_merged event missing pr payload")
	}
	t, err := i.findTaskByPR(ctx, ev.Repo, ev.PR.Number)
	if err != nil || t == nil {
		return nil, err
	}

	if t.Status == taskstate.StatusPRCreated {
		t.Status = taskstate.StatusWaitingHuman
		t.UpdatedAt = time.Now()
		if err := i.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("PR_MERGED"))); err != nil {
			return nil, fmt.Errorf("persist pr-merged transition: %w", err)
		}
	}

	if t.Status != taskstate.StatusWaitingHuman {
		return t, fmt.Errorf("ingress: task %s in status %s cannot be completed from a PR merge", t.ID, t.Status)
	}

	t.Status = taskstate.StatusCompleted
	t.UpdatedAt = time.Now()
	if err := i.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventCompleted)); err != nil {
		return nil, fmt.Errorf("persist completion: %w", err)
	}
	return t, nil
}

func (i *Ingress) findTaskByBranch(ctx context.Context, repo, branch string, status taskstate.Status) (*task.Task, error) {
	candidates, err := i.store.ListTasksByStatus(ctx, []taskstate.Status{status})
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	for _, t := range candidates {
		if t.Repo == repo && t.BranchName == branch {
			return t, nil
		}
	}
	return nil, nil
}

func (i *Ingress) findTaskByPR(ctx context.Context, repo string, prNumber int) (*task.Task, error) {
	candidates, err := i.store.ListTasksByStatus(ctx, []taskstate.Status{taskstate.StatusPRCreated, taskstate.StatusWaitingHuman})
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	for _, t := range candidates {
		if t.Repo == repo && t.PRNumber == prNumber {
			return t, nil
		}
	}
	return nil, nil
}
