package batchcoalesce

import (
	"context"
	"testing"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

type fakeStore struct {
	tasks   map[string]*task.Task
	batches map[string]*task.Batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*task.Task{}, batches: map[string]*task.Batch{}}
}

func (s *fakeStore) CreateTask(_ context.Context, t *task.Task) error { s.tasks[t.ID] = t; return nil }
func (s *fakeStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return t, nil
}
func (s *fakeStore) UpdateTask(_ context.Context, t *task.Task, _ task.Event) error {
	s.tasks[t.ID] = t
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
func (s *fakeStore) AppendEvent(context.Context, task.Event) error                  { return nil }
func (s *fakeStore) ListEvents(context.Context, string) ([]task.Event, error)       { return nil, nil }
func (s *fakeStore) CreateJob(context.Context, *task.Job) error                     { return nil }
func (s *fakeStore) GetJob(context.Context, string) (*task.Job, error)              { return nil, taskstore.ErrNotFound }
func (s *fakeStore) UpdateJob(context.Context, *task.Job) error                     { return nil }
func (s *fakeStore) ListActiveJobs(context.Context) ([]*task.Job, error)            { return nil, nil }
func (s *fakeStore) CreateBatch(_ context.Context, b *task.Batch) error {
	s.batches[b.ID] = b
	return nil
}
func (s *fakeStore) GetBatch(_ context.Context, id string) (*task.Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return b, nil
}
func (s *fakeStore) UpdateBatch(_ context.Context, b *task.Batch) error {
	s.batches[b.ID] = b
	return nil
}
func (s *fakeStore) FindOpenBatch(_ context.Context, repo, baseBranch string) (*task.Batch, error) {
	for _, b := range s.batches {
		if b.Repo == repo && b.BaseBranch == baseBranch && b.Status == task.BatchStatusPending {
			return b, nil
		}
	}
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) GetModelConfig(context.Context, string) (*task.ModelConfig, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) ListModelConfigs(context.Context) ([]*task.ModelConfig, error) { return nil, nil }
func (s *fakeStore) SetModelConfig(context.Context, *task.ModelConfig) error       { return nil }
func (s *fakeStore) Close() error                                                 { return nil }

func approvedTask(store *fakeStore, repo string, issue int, files ...string) *task.Task {
	t := task.New(repo, issue, "t", "b")
	t.Status = taskstate.StatusReviewApproved
	t.TargetFiles = files
	store.tasks[t.ID] = t
	return t
}

func TestOnReviewApprovedNoOverlapStaysApproved(t *testing.T) {
	store := newFakeStore()
	tk := approvedTask(store, "acme/widgets", 1, "a.go")
	c := New(store)

	if err := c.OnReviewApproved(context.Background(), tk); err != nil {
		t.Fatalf("OnReviewApproved: %v", err)
	}
	if tk.Status != taskstate.StatusReviewApproved {
		t.Errorf("expected task to stay REVIEW_APPROVED with no overlap, got %s", tk.Status)
	}
}

func TestOnReviewApprovedOverlapCreatesBatch(t *testing.T) {
	store := newFakeStore()
	a := approvedTask(store, "acme/widgets", 1, "shared.go")
	c := New(store)

	if err := c.OnReviewApproved(context.Background(), a); err != nil {
		t.Fatalf("OnReviewApproved: %v", err)
	}
	if a.Status != taskstate.StatusReviewApproved {
		t.Fatalf("first task with no prior overlap should stay approved, got %s", a.Status)
	}

	b := approvedTask(store, "acme/widgets", 2, "shared.go", "other.go")
	if err := c.OnReviewApproved(context.Background(), b); err != nil {
		t.Fatalf("OnReviewApproved (second): %v", err)
	}
	if b.Status != taskstate.StatusWaitingBatch || a.Status != taskstate.StatusWaitingBatch {
		t.Fatalf("expected both overlapping tasks in WAITING_BATCH, got a=%s b=%s", a.Status, b.Status)
	}
	if a.BatchID == "" || a.BatchID != b.BatchID {
		t.Errorf("expected both tasks to share a batch id, got a=%q b=%q", a.BatchID, b.BatchID)
	}
}

func TestOnReviewApprovedThirdTaskJoinsExistingBatch(t *testing.T) {
	store := newFakeStore()
	a := approvedTask(store, "acme/widgets", 1, "shared.go")
	co := New(store)

	if err := co.OnReviewApproved(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	b := approvedTask(store, "acme/widgets", 2, "shared.go")
	if err := co.OnReviewApproved(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	cc := approvedTask(store, "acme/widgets", 3, "shared.go")
	if err := co.OnReviewApproved(context.Background(), cc); err != nil {
		t.Fatal(err)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected exactly one batch, got %d", len(store.batches))
	}
	for _, batch := range store.batches {
		if len(batch.TaskIDs) != 3 {
			t.Errorf("expected 3 members in batch, got %d", len(batch.TaskIDs))
		}
	}
}

func TestProcessBatchCombinesNonOverlappingHunks(t *testing.T) {
	store := newFakeStore()
	a := approvedTask(store, "acme/widgets", 1, "f.go")
	a.Status = taskstate.StatusWaitingBatch
	a.CurrentDiff = "--- a/f.go\n+++ b/f.go\n@@ -1,2 +1,2 @@\n-old1\n+new1\n context\n"
	a.CommitMessage = "fix 1"

	b := approvedTask(store, "acme/widgets", 2, "f.go")
	b.Status = taskstate.StatusWaitingBatch
	b.CurrentDiff = "--- a/f.go\n+++ b/f.go\n@@ -10,1 +10,1 @@\n-old2\n+new2\n"
	b.CommitMessage = "fix 2"

	batch := task.NewBatch("acme/widgets", "main")
	batch.TaskIDs = []string{a.ID, b.ID}
	store.batches[batch.ID] = batch
	a.BatchID, b.BatchID = batch.ID, batch.ID

	co := New(store)
	if err := co.ProcessBatch(context.Background(), batch); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if batch.Status != task.BatchStatusCompleted {
		t.Fatalf("expected batch completed, got %s", batch.Status)
	}
	if a.Status != taskstate.StatusTesting || b.Status != taskstate.StatusTesting {
		t.Fatalf("expected both members in TESTING, got a=%s b=%s", a.Status, b.Status)
	}
	if a.CurrentDiff != b.CurrentDiff {
		t.Error("expected both members to carry the same combined diff")
	}
}

func TestProcessBatchConflictRevertsMembers(t *testing.T) {
	store := newFakeStore()
	a := approvedTask(store, "acme/widgets", 1, "f.go")
	a.Status = taskstate.StatusWaitingBatch
	a.CurrentDiff = "--- a/f.go\n+++ b/f.go\n@@ -1,3 +1,3 @@\n-old1\n+new1\n context\n"

	b := approvedTask(store, "acme/widgets", 2, "f.go")
	b.Status = taskstate.StatusWaitingBatch
	b.CurrentDiff = "--- a/f.go\n+++ b/f.go\n@@ -2,2 +2,2 @@\n-old2\n+new2\n"

	batch := task.NewBatch("acme/widgets", "main")
	batch.TaskIDs = []string{a.ID, b.ID}
	store.batches[batch.ID] = batch
	a.BatchID, b.BatchID = batch.ID, batch.ID

	co := New(store)
	if err := co.ProcessBatch(context.Background(), batch); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if batch.Status != task.BatchStatusFailed {
		t.Fatalf("expected batch failed on conflict, got %s", batch.Status)
	}
	if a.Status != taskstate.StatusReviewApproved || b.Status != taskstate.StatusReviewApproved {
		t.Fatalf("expected both members reverted to REVIEW_APPROVED, got a=%s b=%s", a.Status, b.Status)
	}
	if a.BatchID != "" || b.BatchID != "" {
		t.Error("expected batch id cleared from reverted members")
	}
}
