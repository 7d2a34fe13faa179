package batchticker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

type fakeStore struct {
	tasks  map[string]*task.Task
	batches map[string]*task.Batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*task.Task{}, batches: map[string]*task.Batch{}}
}

func (s *fakeStore) CreateTask(context.Context, *task.Task) error { return nil }
func (s *fakeStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return t, nil
}
func (s *fakeStore) UpdateTask(context.Context, *task.Task, task.Event) error { return nil }
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
func (s *fakeStore) CreateBatch(_ context.Context, b *task.Batch) error             { s.batches[b.ID] = b; return nil }
func (s *fakeStore) GetBatch(_ context.Context, id string) (*task.Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return b, nil
}
func (s *fakeStore) UpdateBatch(_ context.Context, b *task.Batch) error { s.batches[b.ID] = b; return nil }
func (s *fakeStore) FindOpenBatch(context.Context, string, string) (*task.Batch, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) GetModelConfig(context.Context, string) (*task.ModelConfig, error) {
	return nil, taskstore.ErrNotFound
}
func (s *fakeStore) ListModelConfigs(context.Context) ([]*task.ModelConfig, error) { return nil, nil }
func (s *fakeStore) SetModelConfig(context.Context, *task.ModelConfig) error       { return nil }
func (s *fakeStore) Close() error                                                  { return nil }

type fakeCoalescer struct {
	ready     bool
	processed atomic.Int64
}

func (f *fakeCoalescer) ReadyToProcess(context.Context, *task.Batch) (bool, error) {
	return f.ready, nil
}
func (f *fakeCoalescer) ProcessBatch(context.Context, *task.Batch) error {
	f.processed.Add(1)
	return nil
}

func TestTickProcessesReadyBatchOncePerDistinctID(t *testing.T) {
	store := newFakeStore()
	b := task.NewBatch("acme/widgets", "main")
	store.batches[b.ID] = b

	a := task.New("acme/widgets", 1, "a", "")
	a.Status = taskstate.StatusWaitingBatch
	a.BatchID = b.ID
	store.tasks[a.ID] = a

	other := task.New("acme/widgets", 2, "b", "")
	other.Status = taskstate.StatusWaitingBatch
	other.BatchID = b.ID
	store.tasks[other.ID] = other

	coalescer := &fakeCoalescer{ready: true}
	tk := New(Config{Store: store, Coalescer: coalescer, Interval: time.Millisecond})
	tk.tick(context.Background())

	if got := coalescer.processed.Load(); got != 1 {
		t.Fatalf("expected ProcessBatch called once for the shared batch, got %d", got)
	}
}

func TestTickSkipsBatchNotYetReady(t *testing.T) {
	store := newFakeStore()
	b := task.NewBatch("acme/widgets", "main")
	store.batches[b.ID] = b

	a := task.New("acme/widgets", 1, "a", "")
	a.Status = taskstate.StatusWaitingBatch
	a.BatchID = b.ID
	store.tasks[a.ID] = a

	coalescer := &fakeCoalescer{ready: false}
	tk := New(Config{Store: store, Coalescer: coalescer, Interval: time.Millisecond})
	tk.tick(context.Background())

	if got := coalescer.processed.Load(); got != 0 {
		t.Fatalf("expected ProcessBatch not called, got %d", got)
	}
}

func TestTickSkipsAlreadyProcessingBatch(t *testing.T) {
	store := newFakeStore()
	b := task.NewBatch("acme/widgets", "main")
	b.Status = task.BatchStatusProcessing
	store.batches[b.ID] = b

	a := task.New("acme/widgets", 1, "a", "")
	a.Status = taskstate.StatusWaitingBatch
	a.BatchID = b.ID
	store.tasks[a.ID] = a

	coalescer := &fakeCoalescer{ready: true}
	tk := New(Config{Store: store, Coalescer: coalescer, Interval: time.Millisecond})
	tk.tick(context.Background())

	if got := coalescer.processed.Load(); got != 0 {
		t.Fatalf("expected ProcessBatch not called for a batch already processing, got %d", got)
	}
}
