// Package jobrunner implements the bounded-concurrency batch executor
// (§4.7): it drives every task in a Job through its Task Driver, up to
// max_parallel at a time, and aggregates the Job's summary as tasks reach
// suspension or a terminal status.
package jobrunner

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskdriver"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// DefaultMaxParallel is the default worker-pool size for a Job (§4.7).
const DefaultMaxParallel = 3

// Coalescer runs the review-approval-time batching decision (C6) for a
// task that just reached REVIEW_APPROVED. Declared here, rather than
// imported from its implementing package, so the runner depends only on
// the behavior it needs.
type Coalescer interface {
	OnReviewApproved(ctx context.Context, t *task.Task) error
}

// Runner drives every task in a Job through its Task Driver with a
// fixed-size worker pool.
type Runner struct {
	store     taskstore.Store
	driver    *taskdriver.Driver
	coalescer Coalescer
	logger    *slog.Logger

	maxParallel     int
	continueOnError bool

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxParallel overrides the worker-pool size. Values <= 0 fall back
// to DefaultMaxParallel.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithContinueOnError overrides whether a failed task stops the Job from
// reaching "completed" status outright (see finalStatus).
func WithContinueOnError(v bool) Option {
	return func(r *Runner) { r.continueOnError = v }
}

// WithCoalescer attaches a Coalescer invoked whenever a task reaches
// REVIEW_APPROVED after a driver run.
func WithCoalescer(c Coalescer) Option {
	return func(r *Runner) { r.coalescer = c }
}

// WithLogger overrides the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner.
func New(store taskstore.Store, driver *taskdriver.Driver, opts ...Option) *Runner {
	r := &Runner{
		store:           store,
		driver:          driver,
		logger:          slog.Default(),
		maxParallel:     DefaultMaxParallel,
		continueOnError: true,
		cancels:         map[string]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CancelJob signals cancellation for a Job currently inside Run. It
// returns false if no such Job is running. Cancellation is cooperative:
// in-flight tasks finish their current driver step before stopping.
func (r *Runner) CancelJob(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) registerCancel(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *Runner) unregisterCancel(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// taskOutcome is what a worker reports back to the summary goroutine
// after running one task to suspension or terminal status.
type taskOutcome struct {
	taskID string
	result *task.Task
	err    error
}

// summaryEvent is either a dispatch notification (a task left Pending)
// or a finished outcome. Routing both through one channel, consumed by
// one goroutine, is what makes Job.Summary updates serialized (§4.7,
// §5 "update_job_summary is serialized per Job").
type summaryEvent struct {
	started bool
	outcome taskOutcome
}

// Run drives every task in job to suspension or terminal status, up to
// r.maxParallel concurrently, then resolves the Job's final status.
// ctx governs the whole run; cancelling it (directly, or via CancelJob)
// stops new dispatch and lets in-flight tasks finish their current step.
func (r *Runner) Run(ctx context.Context, job *task.Job) (*task.Job, error) {
	if job.Status != task.JobStatusPending {
		return job, fmt.Errorf("jobrunner: job %s is not pending (status %s)", job.ID, job.Status)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.registerCancel(job.ID, cancel)
	defer r.unregisterCancel(job.ID)
	defer cancel()

	job.Status = task.JobStatusRunning
	job.UpdatedAt = time.Now()
	if err := r.store.UpdateJob(ctx, job); err != nil {
		return job, fmt.Errorf("mark job running: %w", err)
	}

	queue := make(readyQueue, 0, len(job.TaskIDs))
	heap.Init(&queue)
	for _, id := range job.TaskIDs {
		heap.Push(&queue, &readyItem{taskID: id, priority: PriorityDefault, submitted: time.Now()})
	}

	dispatchCh := make(chan *readyItem)
	events := make(chan summaryEvent, len(job.TaskIDs)*2)

	var workers sync.WaitGroup
	workers.Add(r.maxParallel)
	for i := 0; i < r.maxParallel; i++ {
		go func() {
			defer workers.Done()
			for item := range dispatchCh {
				events <- summaryEvent{started: true, outcome: taskOutcome{taskID: item.taskID}}
				events <- summaryEvent{outcome: r.runOne(jobCtx, item.taskID)}
			}
		}()
	}

	go func() {
		defer close(dispatchCh)
		for queue.Len() > 0 {
			select {
			case <-jobCtx.Done():
				return
			default:
			}
			next := NextReady(&queue, 1)
			if len(next) == 0 {
				return
			}
			select {
			case dispatchCh <- next[0]:
			case <-jobCtx.Done():
				return
			}
		}
	}()

	summaryDone := make(chan struct{})
	var completed, failed, dispatched int
	outcomes := make([]taskOutcome, 0, len(job.TaskIDs))
	go func() {
		defer close(summaryDone)
		for ev := range events {
			if ev.started {
				dispatched++
				job.Summary.Pending--
				job.Summary.InProgress++
			} else {
				outcomes = append(outcomes, ev.outcome)
				switch {
				case ev.outcome.err != nil:
					failed++
					job.Summary.InProgress--
					job.Summary.Failed++
				case ev.outcome.result != nil && ev.outcome.result.Status == taskstate.StatusCompleted:
					completed++
					job.Summary.InProgress--
					job.Summary.Completed++
					if ev.outcome.result.PRURL != "" {
						job.Summary.PRsCreated = append(job.Summary.PRsCreated, ev.outcome.result.PRURL)
					}
				case ev.outcome.result != nil && ev.outcome.result.Status == taskstate.StatusFailed:
					failed++
					job.Summary.InProgress--
					job.Summary.Failed++
				}
			}
			job.UpdatedAt = time.Now()
			if err := r.store.UpdateJob(ctx, job); err != nil {
				r.logger.Error("update job summary", "job_id", job.ID, "error", err)
			}
		}
	}()

	workers.Wait()
	close(events)
	<-summaryDone

	job.Status = r.finalStatus(jobCtx, job, completed, failed)
	job.UpdatedAt = time.Now()
	if err := r.store.UpdateJob(ctx, job); err != nil {
		return job, fmt.Errorf("persist final job status: %w", err)
	}
	return job, nil
}

// finalStatus resolves the Job's terminal status per §4.7. A Job with
// tasks still suspended (neither COMPLETED nor FAILED) and no failures
// stays "running": those tasks await an external event (human approval,
// batch processing, CI completion) delivered through Ingress.
func (r *Runner) finalStatus(jobCtx context.Context, job *task.Job, completed, failed int) task.JobStatus {
	if jobCtx.Err() != nil {
		return task.JobStatusCancelled
	}
	total := job.Summary.Total
	if failed > 0 && !r.continueOnError {
		return task.JobStatusFailed
	}
	if completed == total {
		return task.JobStatusCompleted
	}
	if failed > 0 {
		return task.JobStatusPartial
	}
	return task.JobStatusRunning
}

// runOne loads the task and drives it to suspension or terminal status.
// On reaching REVIEW_APPROVED it hands off to the Coalescer, if any.
func (r *Runner) runOne(ctx context.Context, taskID string) taskOutcome {
	t, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return taskOutcome{taskID: taskID, err: fmt.Errorf("load task %s: %w", taskID, err)}
	}

	result, err := r.driver.Run(ctx, t)
	if err != nil {
		return taskOutcome{taskID: taskID, result: result, err: err}
	}

	if r.coalescer != nil && result.Status == taskstate.StatusReviewApproved {
		if err := r.coalescer.OnReviewApproved(ctx, result); err != nil {
			r.logger.Error("batch coalescing failed", "task_id", taskID, "error", err)
		}
	}

	return taskOutcome{taskID: taskID, result: result}
}
