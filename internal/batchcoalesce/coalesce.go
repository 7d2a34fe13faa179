// Package batchcoalesce groups tasks whose target files overlap into a
// single combined change set before they reach TESTING, so overlapping
// concurrent edits land as one PR instead of racing each other.
package batchcoalesce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
	"github.com/limaronaldo/orc-task/internal/taskstore"
)

// MinBatchSize and MaxBatchSize bound how many tasks one Batch may hold.
const (
	MinBatchSize = 2
	MaxBatchSize = 10
)

// Coalescer implements the review-approval-time coalescing algorithm
// (§4.6): per-repo critical section over the find-or-create decision, then
// a separate diff-merge pass once a Batch's membership is settled.
type Coalescer struct {
	store taskstore.Store

	mu        sync.Mutex
	repoLocks map[string]*sync.Mutex
}

// New creates a Coalescer backed by store.
func New(store taskstore.Store) *Coalescer {
	return &Coalescer{store: store, repoLocks: map[string]*sync.Mutex{}}
}

func (c *Coalescer) lockFor(repo string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.repoLocks[repo]
	if !ok {
		l = &sync.Mutex{}
		c.repoLocks[repo] = l
	}
	return l
}

// fingerprint normalizes a set of target files into a sorted, deduplicated
// slice so two tasks editing the same files in a different order still
// compare equal.
func fingerprint(files []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func intersects(a, b []string) bool {
	set := map[string]bool{}
	for _, f := range a {
		set[f] = true
	}
	for _, f := range b {
		if set[f] {
			return true
		}
	}
	return false
}

// OnReviewApproved runs the coalescing decision for a task that has just
// reached REVIEW_APPROVED (§4.6 steps 1-4). It holds the repo's critical
// section only across the find-or-create decision, never across the
// (separate, slower) diff-merge pass.
func (c *Coalescer) OnReviewApproved(ctx context.Context, t *task.Task) error {
	if t.Status != taskstate.StatusReviewApproved {
		return fmt.Errorf("batchcoalesce: task %s is not REVIEW_APPROVED", t.ID)
	}

	lock := c.lockFor(t.Repo)
	lock.Lock()
	defer lock.Unlock()

	fp := fingerprint(t.TargetFiles)

	if existing, err := c.store.FindOpenBatch(ctx, t.Repo, t.BaseBranch); err == nil {
		if intersects(existing.TargetFiles, fp) && len(existing.TaskIDs) < MaxBatchSize {
			return c.joinBatch(ctx, existing, t, fp)
		}
	} else if !errors.Is(err, taskstore.ErrNotFound) {
		return fmt.Errorf("find open batch: %w", err)
	}

	overlapping, err := c.findOverlappingReviewed(ctx, t, fp)
	if err != nil {
		return err
	}
	if len(overlapping) == 0 {
		return nil
	}

	return c.createBatch(ctx, t, overlapping, fp)
}

// findOverlappingReviewed returns other REVIEW_APPROVED tasks in the same
// repo whose target-file fingerprint intersects fp.
func (c *Coalescer) findOverlappingReviewed(ctx context.Context, t *task.Task, fp []string) ([]*task.Task, error) {
	candidates, err := c.store.ListTasksByStatus(ctx, []taskstate.Status{taskstate.StatusReviewApproved})
	if err != nil {
		return nil, fmt.Errorf("list review-approved tasks: %w", err)
	}

	var overlapping []*task.Task
	for _, cand := range candidates {
		if cand.ID == t.ID || cand.Repo != t.Repo || cand.BaseBranch != t.BaseBranch {
			continue
		}
		if intersects(fingerprint(cand.TargetFiles), fp) {
			overlapping = append(overlapping, cand)
		}
	}
	return overlapping, nil
}

func (c *Coalescer) joinBatch(ctx context.Context, b *task.Batch, t *task.Task, fp []string) error {
	b.TaskIDs = append(b.TaskIDs, t.ID)
	b.TargetFiles = mergeFingerprints(b.TargetFiles, fp)
	if err := c.store.UpdateBatch(ctx, b); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}

	t.BatchID = b.ID
	t.Status = taskstate.StatusWaitingBatch
	return c.store.UpdateTask(ctx, t, task.NewEvent(t.ID, task.EventType("BATCH_JOINED")))
}

func (c *Coalescer) createBatch(ctx context.Context, t *task.Task, overlapping []*task.Task, fp []string) error {
	b := task.NewBatch(t.Repo, t.BaseBranch)
	b.TaskIDs = []string{t.ID}
	b.TargetFiles = fp

	for _, other := range overlapping {
		b.TaskIDs = append(b.TaskIDs, other.ID)
		b.TargetFiles = mergeFingerprints(b.TargetFiles, fingerprint(other.TargetFiles))
	}
	if len(b.TaskIDs) > MaxBatchSize {
		b.TaskIDs = b.TaskIDs[:MaxBatchSize]
	}

	if err := c.store.CreateBatch(ctx, b); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	for _, id := range b.TaskIDs {
		member := t
		if id != t.ID {
			var err error
			member, err = c.store.GetTask(ctx, id)
			if err != nil {
				return fmt.Errorf("get batch member %s: %w", id, err)
			}
		}
		member.BatchID = b.ID
		member.Status = taskstate.StatusWaitingBatch
		if err := c.store.UpdateTask(ctx, member, task.NewEvent(member.ID, task.EventType("BATCH_JOINED"))); err != nil {
			return fmt.Errorf("update batch member %s: %w", id, err)
		}
	}
	return nil
}

func mergeFingerprints(a, b []string) []string {
	return fingerprint(append(append([]string{}, a...), b...))
}
