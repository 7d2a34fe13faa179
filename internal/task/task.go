// Package task defines the durable domain objects the orchestrator core
// operates on: Task, TaskEvent, Job, Batch, and ModelConfig.
package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

// Complexity is the planner's size estimate for a task.
type Complexity string

const (
	ComplexityXS Complexity = "XS"
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

var validComplexities = map[Complexity]bool{
	ComplexityXS: true, ComplexityS: true, ComplexityM: true,
	ComplexityL: true, ComplexityXL: true,
}

// IsValidComplexity reports whether c is a known complexity value.
func IsValidComplexity(c Complexity) bool { return validComplexities[c] }

// RequiresBreakdown reports whether a task of complexity c cannot be coded
// directly and must be routed to WAITING_HUMAN for manual breakdown (§4.3 rule 4).
func RequiresBreakdown(c Complexity) bool {
	return c == ComplexityL || c == ComplexityXL
}

// Effort is the planner's estimate of how much reasoning a stage needs.
type Effort string

const (
	EffortLow        Effort = "low"
	EffortMedium     Effort = "medium"
	EffortHigh       Effort = "high"
	EffortUnspecified Effort = ""
)

var validEfforts = map[Effort]bool{
	EffortLow: true, EffortMedium: true, EffortHigh: true, EffortUnspecified: true,
}

// IsValidEffort reports whether e is a known effort value.
func IsValidEffort(e Effort) bool { return validEfforts[e] }

// Task is the durable unit of work flowing through the state machine.
type Task struct {
	ID          string          `json:"id"`
	Repo        string          `json:"repo"`
	IssueNumber int             `json:"issue_number"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	BaseBranch  string          `json:"base_branch"`

	Status       taskstate.Status `json:"status"`
	AttemptCount int              `json:"attempt_count"`
	MaxAttempts  int              `json:"max_attempts"`

	DefinitionOfDone    []string   `json:"definition_of_done,omitempty"`
	Plan                []string   `json:"plan,omitempty"`
	TargetFiles         []string   `json:"target_files,omitempty"`
	EstimatedComplexity Complexity `json:"estimated_complexity,omitempty"`
	EstimatedEffort     Effort     `json:"estimated_effort,omitempty"`
	BranchName          string     `json:"branch_name,omitempty"`
	CurrentDiff         string     `json:"current_diff,omitempty"`
	CommitMessage       string     `json:"commit_message,omitempty"`
	PRNumber            int        `json:"pr_number,omitempty"`
	PRURL               string     `json:"pr_url,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobID   string `json:"job_id,omitempty"`
	BatchID string `json:"batch_id,omitempty"`
}

// New creates a Task in status NEW for the given issue.
func New(repo string, issueNumber int, title, body string) *Task {
	now := time.Now()
	return &Task{
		ID:          uuid.NewString(),
		Repo:        repo,
		IssueNumber: issueNumber,
		Title:       title,
		Body:        body,
		BaseBranch:  "main",
		Status:      taskstate.StatusNew,
		MaxAttempts: 3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Summary is the reduced Task view returned by list endpoints (§6):
// identity, status, attempt counts, complexity, PR URL, last error and
// timestamps. The issue body, plan, definition of done, target files,
// branch, diffs, PR number and job/batch IDs are left out.
type Summary struct {
	ID                  string           `json:"id"`
	Repo                string           `json:"repo"`
	IssueNumber         int              `json:"issue_number"`
	Title               string           `json:"title"`
	Status              taskstate.Status `json:"status"`
	AttemptCount        int              `json:"attempt_count"`
	MaxAttempts         int              `json:"max_attempts"`
	EstimatedComplexity Complexity       `json:"estimated_complexity,omitempty"`
	PRURL               string           `json:"pr_url,omitempty"`
	LastError           string           `json:"last_error,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ToSummary projects a Task down to its list-view Summary.
func (t *Task) ToSummary() Summary {
	return Summary{
		ID:                  t.ID,
		Repo:                t.Repo,
		IssueNumber:         t.IssueNumber,
		Title:               t.Title,
		Status:              t.Status,
		AttemptCount:        t.AttemptCount,
		MaxAttempts:         t.MaxAttempts,
		EstimatedComplexity: t.EstimatedComplexity,
		PRURL:               t.PRURL,
		LastError:           t.LastError,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// EventType enumerates the append-only audit entries recorded per task.
type EventType string

const (
	EventCreated   EventType = "CREATED"
	EventPlanned   EventType = "PLANNED"
	EventCoded     EventType = "CODED"
	EventReviewed  EventType = "REVIEWED"
	EventTested    EventType = "TESTED"
	EventFixed     EventType = "FIXED"
	EventPROpened  EventType = "PR_OPENED"
	EventConsensus EventType = "CONSENSUS"
	EventFailed    EventType = "FAILED"
	EventCompleted EventType = "COMPLETED"
)

// Event is an append-only audit entry for a task.
type Event struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	EventType     EventType      `json:"event_type"`
	Agent         string         `json:"agent,omitempty"`
	OutputSummary string         `json:"output_summary,omitempty"`
	TokensUsed    int            `json:"tokens_used,omitempty"`
	DurationMS    int64          `json:"duration_ms,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewEvent creates an Event with a generated ID and the current timestamp.
func NewEvent(taskID string, eventType EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		EventType: eventType,
		CreatedAt: time.Now(),
	}
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobSummary is the aggregate task-outcome counters for a Job.
// Invariant: Total == len(TaskIDs) == Completed+Failed+InProgress+Pending.
type JobSummary struct {
	Total      int      `json:"total"`
	Completed  int      `json:"completed"`
	Failed     int      `json:"failed"`
	InProgress int      `json:"in_progress"`
	Pending    int      `json:"pending"`
	PRsCreated []string `json:"prs_created,omitempty"`
}

// Job groups tasks scheduled together by the Job Runner.
type Job struct {
	ID        string     `json:"id"`
	Status    JobStatus  `json:"status"`
	TaskIDs   []string   `json:"task_ids"`
	Repo      string     `json:"repo"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Summary   JobSummary `json:"summary"`
}

// NewJob creates a pending Job over the given task IDs.
func NewJob(repo string, taskIDs []string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		TaskIDs:   taskIDs,
		Repo:      repo,
		CreatedAt: now,
		UpdatedAt: now,
		Summary:   JobSummary{Total: len(taskIDs), Pending: len(taskIDs)},
	}
}

// BatchStatus is the lifecycle state of a Batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Batch is the ephemeral coalescence of tasks whose diffs touch overlapping
// files and are merged into one change set before test/PR.
type Batch struct {
	ID          string      `json:"id"`
	Repo        string      `json:"repo"`
	BaseBranch  string      `json:"base_branch"`
	TargetFiles []string    `json:"target_files"`
	Status      BatchStatus `json:"status"`
	TaskIDs     []string    `json:"task_ids"`
	PRURL       string      `json:"pr_url,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewBatch creates a pending Batch for a repo/base-branch pair.
func NewBatch(repo, baseBranch string) *Batch {
	return &Batch{
		ID:         uuid.NewString(),
		Repo:       repo,
		BaseBranch: baseBranch,
		Status:     BatchStatusPending,
		CreatedAt:  time.Now(),
	}
}

// ModelConfig maps a selection position to a concrete model identifier.
type ModelConfig struct {
	Position  string    `json:"position"`
	ModelID   string    `json:"model_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
