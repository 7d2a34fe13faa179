// Package taskstore persists tasks, jobs, batches, and model configuration
// behind a single dialect-neutral interface backed by internal/dbdriver.
package taskstore

import (
	"context"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

// Store defines the durable operations the task driver, job runner, and
// ingress layer need. Every write that touches a task's status also appends
// the corresponding event in the same transaction, so a reader never
// observes a status change without its event.
type Store interface {
	// Task operations
	CreateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	UpdateTask(ctx context.Context, t *task.Task, ev task.Event) error
	ListTasksByStatus(ctx context.Context, statuses []taskstate.Status) ([]*task.Task, error)
	ListTasksByJob(ctx context.Context, jobID string) ([]*task.Task, error)
	ListTasksByBatch(ctx context.Context, batchID string) ([]*task.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Event log
	AppendEvent(ctx context.Context, ev task.Event) error
	ListEvents(ctx context.Context, taskID string) ([]task.Event, error)

	// Job operations
	CreateJob(ctx context.Context, j *task.Job) error
	GetJob(ctx context.Context, id string) (*task.Job, error)
	UpdateJob(ctx context.Context, j *task.Job) error
	ListActiveJobs(ctx context.Context) ([]*task.Job, error)

	// Batch operations
	CreateBatch(ctx context.Context, b *task.Batch) error
	GetBatch(ctx context.Context, id string) (*task.Batch, error)
	UpdateBatch(ctx context.Context, b *task.Batch) error
	FindOpenBatch(ctx context.Context, repo, baseBranch string) (*task.Batch, error)

	// Model configuration. Position is a selector key such as "coder_m_high"
	// or "escalation_1", not a repo — model configuration is global.
	GetModelConfig(ctx context.Context, position string) (*task.ModelConfig, error)
	ListModelConfigs(ctx context.Context) ([]*task.ModelConfig, error)
	SetModelConfig(ctx context.Context, cfg *task.ModelConfig) error

	Close() error
}

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = taskNotFoundError{}

type taskNotFoundError struct{}

func (taskNotFoundError) Error() string { return "taskstore: not found" }
