// Package batchticker periodically drives pending batches (C6) toward
// processing once they become ready, the way the reference PR poller
// periodically drives open pull requests toward a terminal status.
package batchticker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// Coalescer is the subset of batchcoalesce.Coalescer the ticker drives.
type Coalescer interface {
	ReadyToProcess(ctx context.Context, b *task.Batch) (bool, error)
	ProcessBatch(ctx context.Context, b *task.Batch) error
}

// Ticker polls WAITING_BATCH tasks on an interval, groups them by their
// Batch, and processes any batch whose timeout or size threshold has been
// reached (§4.6).
type Ticker struct {
	store     taskstore.Store
	coalescer Coalescer
	interval  time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config configures a Ticker.
type Config struct {
	Store     taskstore.Store
	Coalescer Coalescer
	Interval  time.Duration
	Logger    *slog.Logger
}

// New builds a Ticker. Interval defaults to one minute if unset.
func New(cfg Config) *Ticker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		store:     cfg.Store,
		coalescer: cfg.Coalescer,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the polling loop in the background.
func (t *Ticker) Start(ctx context.Context) {
	t.wg.Add(1)
	go t.run(ctx)
}

// Stop signals the poller to stop and waits for it to exit.
func (t *Ticker) Stop() {
	close(t.stopCh)
	t.wg.Wait()
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick loads every task currently suspended on WAITING_BATCH, deduplicates
// by BatchID (several sibling tasks share one batch), and processes each
// distinct pending batch that has become ready.
func (t *Ticker) tick(ctx context.Context) {
	tasks, err := t.store.ListTasksByStatus(ctx, []taskstate.Status{taskstate.StatusWaitingBatch})
	if err != nil {
		t.logger.Error("batchticker: list waiting_batch tasks", "error", err)
		return
	}

	seen := make(map[string]bool, len(tasks))
	for _, tk := range tasks {
		if tk.BatchID == "" || seen[tk.BatchID] {
			continue
		}
		seen[tk.BatchID] = true
		t.tickBatch(ctx, tk.BatchID)
	}
}

func (t *Ticker) tickBatch(ctx context.Context, batchID string) {
	b, err := t.store.GetBatch(ctx, batchID)
	if err != nil {
		t.logger.Error("batchticker: get batch", "batch_id", batchID, "error", err)
		return
	}
	if b.Status != task.BatchStatusPending {
		return
	}

	ready, err := t.coalescer.ReadyToProcess(ctx, b)
	if err != nil {
		t.logger.Error("batchticker: ready check", "batch_id", b.ID, "error", err)
		return
	}
	if !ready {
		return
	}

	if err := t.coalescer.ProcessBatch(ctx, b); err != nil {
		t.logger.Error("batchticker: process batch", "batch_id", b.ID, "error", err)
	}
}
