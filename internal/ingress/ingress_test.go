package ingress

import (
	"context"
	"errors"
	"testing"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

type fakeStore struct {
	tasks  map[string]*task.Task
	jobs   map[string]*task.Job
	events []task.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*task.Task{}, jobs: map[string]*task.Job{}}
}

func (s *fakeStore) CreateTask(_ context.Context, t *task.Task) error { s.tasks[t.ID] = t; return nil }
func (s *fakeStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return t, nil
}
func (s *fakeStore) UpdateTask(_ context.Context, t *task.Task, ev task.Event) error {
	s.tasks[t.ID] = t
	s.events = append(s.events, ev)
	return nil
}
func (s *fakeStore) ListTasksByStatus(_ context.Context, statuses []taskstate.Status) ([]*task.Task, error) {
	want := map[taskstate.Status]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if want[t.Status] {
			out = append(out, t)
		}
	}
	return out, nil
}
func (s *fakeStore) ListTasksByJob(context.Context, string) ([]*task.Task, error)   { return nil, nil }
func (s *fakeStore) ListTasksByBatch(context.Context, string) ([]*task.Task, error) { return nil, nil }
func (s *fakeStore) DeleteTask(context.Context, string) error                       { return nil }
func (s *fakeStore) AppendEvent(_ context.Context, ev task.Event) error {
	s.events = append(s.events, ev)
	return nil
}
func (s *fakeStore) ListEvents(context.Context, string) ([]task.Event, error) { return nil, nil }
func (s *fakeStore) CreateJob(_ context.Context, j *task.Job) error           { s.jobs[j.ID] = j; return nil }
func (s *fakeStore) GetJob(_ context.Context, id string) (*task.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return j, nil
}
func (s *fakeStore) UpdateJob(_ context.Context, j *task.Job) error { s.jobs[j.ID] = j; return nil }
func (s *fakeStore) ListActiveJobs(_ context.Context) ([]*task.Job, error) {
	var out []*task.Job
	for _, j := range s.jobs {
		if j.Status == task.JobStatusPending || j.Status == task.JobStatusRunning {
			out = append(out, j)
		}
	}
	return out, nil
}
func (s *fakeStore) CreateBatch(context.Context, *task.Batch) error { return nil }
func (s *fakeStore) GetBatch(context.Context, string) (*task.Batch, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) UpdateBatch(context.Context, *task.Batch) error { return nil }
func (s *fakeStore) FindOpenBatch(context.Context, string, string) (*task.Batch, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) GetModelConfig(context.Context, string) (*task.ModelConfig, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) ListModelConfigs(context.Context) ([]*task.ModelConfig, error) { return nil, nil }
func (s *fakeStore) SetModelConfig(context.Context, *task.ModelConfig) error       { return nil }
func (s *fakeStore) Close() error                                                 { return nil }

func TestNormalizeDropsDisallowedRepo(t *testing.T) {
	store := newFakeStore()
	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")

	_, _, err := ing.Normalize(context.Background(), RawEvent{Kind: KindIssueLabeled, Repo: "evil/corp", Label: "auto-dev"})
	if !errors.Is(err, ErrRepoNotAllowed) {
		t.Fatalf("expected ErrRepoNotAllowed, got %v", err)
	}
	if ing.DroppedCount() != 1 {
		t.Fatalf("expected dropped count 1, got %d", ing.DroppedCount())
	}
}

func TestNormalizeAutoDevLabelCreatesTask(t *testing.T) {
	store := newFakeStore()
	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")

	tk, job, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindIssueLabeled, Repo: "acme/widgets", IssueNumber: 7, Title: "fix crash", Label: "auto-dev",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job for a plain auto-dev label, got %+v", job)
	}
	if tk == nil || tk.Status != taskstate.StatusNew || tk.IssueNumber != 7 {
		t.Fatalf("expected a new task for issue 7, got %+v", tk)
	}
}

func TestNormalizeIgnoresUnrecognizedLabel(t *testing.T) {
	store := newFakeStore()
	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")

	tk, job, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindIssueLabeled, Repo: "acme/widgets", IssueNumber: 1, Label: "wontfix",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tk != nil || job != nil {
		t.Fatalf("expected no task/job for an unrecognized label, got tk=%+v job=%+v", tk, job)
	}
}

func TestNormalizeBatchLabelGroupsSiblingIssuesIntoOneJob(t *testing.T) {
	store := newFakeStore()
	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")

	a, jobA, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindIssueLabeled, Repo: "acme/widgets", IssueNumber: 1, Label: "auto-dev-batch",
	})
	if err != nil {
		t.Fatalf("normalize a: %v", err)
	}
	if jobA == nil {
		t.Fatal("expected first batch-labeled issue to create a job")
	}

	b, jobB, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindIssueLabeled, Repo: "acme/widgets", IssueNumber: 2, Label: "auto-dev-batch",
	})
	if err != nil {
		t.Fatalf("normalize b: %v", err)
	}
	if jobB == nil || jobB.ID != jobA.ID {
		t.Fatalf("expected second sibling to join the same job, got %+v", jobB)
	}
	if len(jobB.TaskIDs) != 2 || jobB.TaskIDs[0] != a.ID || jobB.TaskIDs[1] != b.ID {
		t.Fatalf("expected job to contain both tasks, got %v", jobB.TaskIDs)
	}
	if jobB.Summary.Total != 2 || jobB.Summary.Pending != 2 {
		t.Fatalf("expected summary to track both tasks as pending, got %+v", jobB.Summary)
	}
}

func TestNormalizeCheckRunCompletedReawakensTestingTask(t *testing.T) {
	store := newFakeStore()
	tk := task.New("acme/widgets", 1, "t", "b")
	tk.Status = taskstate.StatusTesting
	tk.BranchName = "orc/issue-1"
	store.tasks[tk.ID] = tk

	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")
	got, _, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindCheckRunCompleted, Repo: "acme/widgets",
		CheckRun: &CheckRunPayload{BranchName: "orc/issue-1", Conclusion: "failure", Logs: "assertion failed"},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Status != taskstate.StatusTestsFailed || got.LastError != "assertion failed" {
		t.Fatalf("expected TESTS_FAILED with logs carried over, got %+v", got)
	}
}

func TestNormalizePRMergedCompletesTask(t *testing.T) {
	store := newFakeStore()
	tk := task.New("acme/widgets", 1, "t", "b")
	tk.Status = taskstate.StatusPRCreated
	tk.PRNumber = 9
	store.tasks[tk.ID] = tk

	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")
	got, _, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindPRMerged, Repo: "acme/widgets",
		PR: &PRPayload{Number: 9, Merged: true},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Status != taskstate.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
}

func TestNormalizeUnknownPRIsIgnored(t *testing.T) {
	store := newFakeStore()
	ing := New(store, []string{"acme/widgets"}, "auto-dev", "auto-dev-batch")

	got, _, err := ing.Normalize(context.Background(), RawEvent{
		Kind: KindPRMerged, Repo: "acme/widgets",
		PR: &PRPayload{Number: 404, Merged: true},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no task for an unknown PR number, got %+v", got)
	}
}
