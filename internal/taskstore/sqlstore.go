package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/dbdriver"
	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskerr"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

// SQLStore is a Store backed by internal/dbdriver, working unmodified
// against either SQLite or PostgreSQL.
type SQLStore struct {
	driver dbdriver.Driver
}

// Open opens dsn under the given dialect and migrates it to the latest
// schema version.
func Open(ctx context.Context, dialect dbdriver.Dialect, dsn string) (*SQLStore, error) {
	drv, err := dbdriver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	if err := drv.Migrate(ctx, embedSchemaFS{}, "task"); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{driver: drv}, nil
}

func (s *SQLStore) Close() error { return s.driver.Close() }

func (s *SQLStore) CreateTask(ctx context.Context, t *task.Task) error {
	dod, err := json.Marshal(t.DefinitionOfDone)
	if err != nil {
		return err
	}
	plan, err := json.Marshal(t.Plan)
	if err != nil {
		return err
	}
	targets, err := json.Marshal(t.TargetFiles)
	if err != nil {
		return err
	}

	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		INSERT INTO tasks (
			id, repo, issue_number, title, body, base_branch, status, attempt_count, max_attempts,
			definition_of_done, plan, target_files, estimated_complexity, estimated_effort,
			branch_name, current_diff, commit_message, pr_number, pr_url, last_error,
			created_at, updated_at, job_id, batch_id
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`),
		t.ID, t.Repo, t.IssueNumber, t.Title, t.Body, t.BaseBranch, string(t.Status), t.AttemptCount, t.MaxAttempts,
		string(dod), string(plan), string(targets), string(t.EstimatedComplexity), string(t.EstimatedEffort),
		t.BranchName, t.CurrentDiff, t.CommitMessage, t.PRNumber, t.PRURL, t.LastError,
		t.CreatedAt, t.UpdatedAt, t.JobID, t.BatchID,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.driver.QueryRow(ctx, rebind(s.driver, `
		SELECT id, repo, issue_number, title, body, base_branch, status, attempt_count, max_attempts,
			definition_of_done, plan, target_files, estimated_complexity, estimated_effort,
			branch_name, current_diff, commit_message, pr_number, pr_url, last_error,
			created_at, updated_at, job_id, batch_id
		FROM tasks WHERE id = ?
	`), id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes the task's current fields and appends ev in the same
// transaction, so no reader ever sees a status change without its event.
// Every status write funnels through here, so this is the single point
// that validates it against taskstate.Transition (§4.1) before committing.
func (s *SQLStore) UpdateTask(ctx context.Context, t *task.Task, ev task.Event) error {
	dod, err := json.Marshal(t.DefinitionOfDone)
	if err != nil {
		return err
	}
	plan, err := json.Marshal(t.Plan)
	if err != nil {
		return err
	}
	targets, err := json.Marshal(t.TargetFiles)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return err
	}

	tx, err := s.driver.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	var prevStatus string
	row := tx.QueryRow(ctx, rebind(s.driver, `SELECT status FROM tasks WHERE id = ?`), t.ID)
	if err := row.Scan(&prevStatus); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("read previous status: %w", err)
	}
	from := taskstate.Status(prevStatus)
	if from != t.Status && !taskstate.Transition(from, t.Status) {
		_ = tx.Rollback()
		return taskerr.New(taskerr.CodeInvalidStateTransition,
			fmt.Sprintf("cannot move task %s from %s to %s", t.ID, from, t.Status))
	}

	_, err = tx.Exec(ctx, rebind(s.driver, `
		UPDATE tasks SET
			status = ?, attempt_count = ?, max_attempts = ?,
			definition_of_done = ?, plan = ?, target_files = ?,
			estimated_complexity = ?, estimated_effort = ?,
			branch_name = ?, current_diff = ?, commit_message = ?,
			pr_number = ?, pr_url = ?, last_error = ?, updated_at = ?,
			job_id = ?, batch_id = ?
		WHERE id = ?
	`),
		string(t.Status), t.AttemptCount, t.MaxAttempts,
		string(dod), string(plan), string(targets),
		string(t.EstimatedComplexity), string(t.EstimatedEffort),
		t.BranchName, t.CurrentDiff, t.CommitMessage,
		t.PRNumber, t.PRURL, t.LastError, t.UpdatedAt,
		t.JobID, t.BatchID, t.ID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update task: %w", err)
	}

	if _, err := tx.Exec(ctx, rebind(s.driver, `
		INSERT INTO task_events (id, task_id, event_type, agent, output_summary, tokens_used, duration_ms, metadata, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)
	`), ev.ID, ev.TaskID, string(ev.EventType), ev.Agent, ev.OutputSummary, ev.TokensUsed, ev.DurationMS, string(metadata), ev.CreatedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append event: %w", err)
	}

	return tx.Commit()
}

func (s *SQLStore) ListTasksByStatus(ctx context.Context, statuses []taskstate.Status) ([]*task.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	query := fmt.Sprintf(`
		SELECT id, repo, issue_number, title, body, base_branch, status, attempt_count, max_attempts,
			definition_of_done, plan, target_files, estimated_complexity, estimated_effort,
			branch_name, current_diff, commit_message, pr_number, pr_url, last_error,
			created_at, updated_at, job_id, batch_id
		FROM tasks WHERE status IN (%s) ORDER BY created_at ASC
	`, joinPlaceholders(placeholders))
	return s.queryTasks(ctx, rebind(s.driver, query), args...)
}

func (s *SQLStore) ListTasksByJob(ctx context.Context, jobID string) ([]*task.Task, error) {
	return s.queryTasks(ctx, rebind(s.driver, `
		SELECT id, repo, issue_number, title, body, base_branch, status, attempt_count, max_attempts,
			definition_of_done, plan, target_files, estimated_complexity, estimated_effort,
			branch_name, current_diff, commit_message, pr_number, pr_url, last_error,
			created_at, updated_at, job_id, batch_id
		FROM tasks WHERE job_id = ? ORDER BY created_at ASC
	`), jobID)
}

func (s *SQLStore) ListTasksByBatch(ctx context.Context, batchID string) ([]*task.Task, error) {
	return s.queryTasks(ctx, rebind(s.driver, `
		SELECT id, repo, issue_number, title, body, base_branch, status, attempt_count, max_attempts,
			definition_of_done, plan, target_files, estimated_complexity, estimated_effort,
			branch_name, current_diff, commit_message, pr_number, pr_url, last_error,
			created_at, updated_at, job_id, batch_id
		FROM tasks WHERE batch_id = ? ORDER BY created_at ASC
	`), batchID)
}

func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	_, err := s.driver.Exec(ctx, rebind(s.driver, `DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendEvent(ctx context.Context, ev task.Event) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return err
	}
	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		INSERT INTO task_events (id, task_id, event_type, agent, output_summary, tokens_used, duration_ms, metadata, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)
	`), ev.ID, ev.TaskID, string(ev.EventType), ev.Agent, ev.OutputSummary, ev.TokensUsed, ev.DurationMS, string(metadata), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *SQLStore) ListEvents(ctx context.Context, taskID string) ([]task.Event, error) {
	rows, err := s.driver.Query(ctx, rebind(s.driver, `
		SELECT id, task_id, event_type, agent, output_summary, tokens_used, duration_ms, metadata, created_at
		FROM task_events WHERE task_id = ? ORDER BY created_at ASC
	`), taskID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []task.Event
	for rows.Next() {
		var ev task.Event
		var eventType, metadata string
		if err := rows.Scan(&ev.ID, &ev.TaskID, &eventType, &ev.Agent, &ev.OutputSummary, &ev.TokensUsed, &ev.DurationMS, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.EventType = task.EventType(eventType)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLStore) CreateJob(ctx context.Context, j *task.Job) error {
	taskIDs, err := json.Marshal(j.TaskIDs)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(j.Summary)
	if err != nil {
		return err
	}
	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		INSERT INTO jobs (id, status, task_ids, repo, created_at, updated_at, summary)
		VALUES (?,?,?,?,?,?,?)
	`), j.ID, string(j.Status), string(taskIDs), j.Repo, j.CreatedAt, j.UpdatedAt, string(summary))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SQLStore) GetJob(ctx context.Context, id string) (*task.Job, error) {
	row := s.driver.QueryRow(ctx, rebind(s.driver, `
		SELECT id, status, task_ids, repo, created_at, updated_at, summary FROM jobs WHERE id = ?
	`), id)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *SQLStore) UpdateJob(ctx context.Context, j *task.Job) error {
	taskIDs, err := json.Marshal(j.TaskIDs)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(j.Summary)
	if err != nil {
		return err
	}
	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		UPDATE jobs SET status = ?, task_ids = ?, updated_at = ?, summary = ? WHERE id = ?
	`), string(j.Status), string(taskIDs), j.UpdatedAt, string(summary), j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *SQLStore) ListActiveJobs(ctx context.Context) ([]*task.Job, error) {
	rows, err := s.driver.Query(ctx, rebind(s.driver, `
		SELECT id, status, task_ids, repo, created_at, updated_at, summary
		FROM jobs WHERE status IN (?, ?) ORDER BY created_at ASC
	`), string(task.JobStatusPending), string(task.JobStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*task.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *SQLStore) CreateBatch(ctx context.Context, b *task.Batch) error {
	targetFiles, err := json.Marshal(b.TargetFiles)
	if err != nil {
		return err
	}
	taskIDs, err := json.Marshal(b.TaskIDs)
	if err != nil {
		return err
	}
	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		INSERT INTO batches (id, repo, base_branch, target_files, status, task_ids, pr_url, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`), b.ID, b.Repo, b.BaseBranch, string(targetFiles), string(b.Status), string(taskIDs), b.PRURL, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (s *SQLStore) GetBatch(ctx context.Context, id string) (*task.Batch, error) {
	row := s.driver.QueryRow(ctx, rebind(s.driver, `
		SELECT id, repo, base_branch, target_files, status, task_ids, pr_url, created_at
		FROM batches WHERE id = ?
	`), id)
	b, err := scanBatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *SQLStore) UpdateBatch(ctx context.Context, b *task.Batch) error {
	targetFiles, err := json.Marshal(b.TargetFiles)
	if err != nil {
		return err
	}
	taskIDs, err := json.Marshal(b.TaskIDs)
	if err != nil {
		return err
	}
	_, err = s.driver.Exec(ctx, rebind(s.driver, `
		UPDATE batches SET target_files = ?, status = ?, task_ids = ?, pr_url = ? WHERE id = ?
	`), string(targetFiles), string(b.Status), string(taskIDs), b.PRURL, b.ID)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// FindOpenBatch returns the most recent pending/processing batch for a
// repo/base-branch pair, used by the coalescer to find a merge candidate.
func (s *SQLStore) FindOpenBatch(ctx context.Context, repo, baseBranch string) (*task.Batch, error) {
	row := s.driver.QueryRow(ctx, rebind(s.driver, `
		SELECT id, repo, base_branch, target_files, status, task_ids, pr_url, created_at
		FROM batches WHERE repo = ? AND base_branch = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1
	`), repo, baseBranch, string(task.BatchStatusPending), string(task.BatchStatusProcessing))
	b, err := scanBatch(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open batch: %w", err)
	}
	return b, nil
}

func (s *SQLStore) GetModelConfig(ctx context.Context, position string) (*task.ModelConfig, error) {
	row := s.driver.QueryRow(ctx, rebind(s.driver, `
		SELECT position, model_id, updated_at FROM model_configs WHERE position = ?
	`), position)
	var cfg task.ModelConfig
	if err := row.Scan(&cfg.Position, &cfg.ModelID, &cfg.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get model config: %w", err)
	}
	return &cfg, nil
}

func (s *SQLStore) ListModelConfigs(ctx context.Context) ([]*task.ModelConfig, error) {
	rows, err := s.driver.Query(ctx, `SELECT position, model_id, updated_at FROM model_configs`)
	if err != nil {
		return nil, fmt.Errorf("list model configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var configs []*task.ModelConfig
	for rows.Next() {
		var cfg task.ModelConfig
		if err := rows.Scan(&cfg.Position, &cfg.ModelID, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan model config: %w", err)
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

func (s *SQLStore) SetModelConfig(ctx context.Context, cfg *task.ModelConfig) error {
	query := rebind(s.driver, `
		INSERT INTO model_configs (position, model_id, updated_at) VALUES (?,?,?)
		ON CONFLICT (position) DO UPDATE SET model_id = excluded.model_id, updated_at = excluded.updated_at
	`)
	_, err := s.driver.Exec(ctx, query, cfg.Position, cfg.ModelID, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set model config: %w", err)
	}
	return nil
}

func (s *SQLStore) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.driver.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(scan func(dest ...any) error) (*task.Task, error) {
	var t task.Task
	var status, dod, plan, targets, complexity, effort string
	if err := scan(
		&t.ID, &t.Repo, &t.IssueNumber, &t.Title, &t.Body, &t.BaseBranch, &status, &t.AttemptCount, &t.MaxAttempts,
		&dod, &plan, &targets, &complexity, &effort,
		&t.BranchName, &t.CurrentDiff, &t.CommitMessage, &t.PRNumber, &t.PRURL, &t.LastError,
		&t.CreatedAt, &t.UpdatedAt, &t.JobID, &t.BatchID,
	); err != nil {
		return nil, err
	}
	t.Status = taskstate.Status(status)
	t.EstimatedComplexity = task.Complexity(complexity)
	t.EstimatedEffort = task.Effort(effort)
	if err := json.Unmarshal([]byte(dod), &t.DefinitionOfDone); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(plan), &t.Plan); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(targets), &t.TargetFiles); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanJob(scan func(dest ...any) error) (*task.Job, error) {
	var j task.Job
	var status, taskIDs, summary string
	if err := scan(&j.ID, &status, &taskIDs, &j.Repo, &j.CreatedAt, &j.UpdatedAt, &summary); err != nil {
		return nil, err
	}
	j.Status = task.JobStatus(status)
	if err := json.Unmarshal([]byte(taskIDs), &j.TaskIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &j.Summary); err != nil {
		return nil, err
	}
	return &j, nil
}

func scanBatch(scan func(dest ...any) error) (*task.Batch, error) {
	var b task.Batch
	var status, targetFiles, taskIDs string
	if err := scan(&b.ID, &b.Repo, &b.BaseBranch, &targetFiles, &status, &taskIDs, &b.PRURL, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Status = task.BatchStatus(status)
	if err := json.Unmarshal([]byte(targetFiles), &b.TargetFiles); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(taskIDs), &b.TaskIDs); err != nil {
		return nil, err
	}
	return &b, nil
}

func joinPlaceholders(ps []string) string {
	out := ps[0]
	for _, p := range ps[1:] {
		out += "," + p
	}
	return out
}

// rebind rewrites a query written with "?" placeholders into the driver's
// native placeholder style (a no-op for SQLite, $N substitution for Postgres).
func rebind(d dbdriver.Driver, query string) string {
	if d.Dialect() != dbdriver.DialectPostgres {
		return query
	}
	var out []byte
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, []byte(d.Placeholder(n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
