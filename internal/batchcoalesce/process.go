package batchcoalesce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

// BatchTimeout bounds how long a Batch waits for every member to reach
// WAITING_BATCH before processing proceeds with whatever arrived.
const BatchTimeout = 30 * time.Minute

// ReadyToProcess reports whether b should be combined now: either every
// member task has reached WAITING_BATCH, or the batch has been open longer
// than BatchTimeout.
func (c *Coalescer) ReadyToProcess(ctx context.Context, b *task.Batch) (bool, error) {
	if time.Since(b.CreatedAt) > BatchTimeout {
		return true, nil
	}
	members, err := c.loadMembers(ctx, b)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.Status != taskstate.StatusWaitingBatch {
			return false, nil
		}
	}
	return true, nil
}

func (c *Coalescer) loadMembers(ctx context.Context, b *task.Batch) ([]*task.Task, error) {
	members := make([]*task.Task, 0, len(b.TaskIDs))
	for _, id := range b.TaskIDs {
		m, err := c.store.GetTask(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load batch member %s: %w", id, err)
		}
		members = append(members, m)
	}
	return members, nil
}

// ProcessBatch combines every member task's diff into one, per §4.6's
// combine step. On success every member advances to TESTING carrying the
// combined diff and commit message; on conflict the batch is marked failed
// and every member returns to REVIEW_APPROVED with its BatchID cleared. The
// driver's next action for such a member is TEST against its own diff;
// nothing sends it back through the coalescer.
func (c *Coalescer) ProcessBatch(ctx context.Context, b *task.Batch) error {
	members, err := c.loadMembers(ctx, b)
	if err != nil {
		return err
	}
	if len(members) < MinBatchSize {
		return c.failBatch(ctx, b, members)
	}

	diffs := make([]string, len(members))
	for i, m := range members {
		diffs[i] = m.CurrentDiff
	}

	combined, conflicts, err := CombineDiffs(diffs)
	if err != nil {
		return fmt.Errorf("combine diffs: %w", err)
	}
	if len(conflicts) > 0 {
		return c.failBatch(ctx, b, members)
	}

	commitMessage := combinedCommitMessage(members)
	for _, m := range members {
		m.CurrentDiff = combined
		m.CommitMessage = commitMessage
		m.Status = taskstate.StatusTesting
		if err := c.store.UpdateTask(ctx, m, task.NewEvent(m.ID, task.EventType("BATCH_COMBINED"))); err != nil {
			return fmt.Errorf("advance batch member %s: %w", m.ID, err)
		}
	}

	b.Status = task.BatchStatusCompleted
	return c.store.UpdateBatch(ctx, b)
}

func (c *Coalescer) failBatch(ctx context.Context, b *task.Batch, members []*task.Task) error {
	for _, m := range members {
		m.BatchID = ""
		m.Status = taskstate.StatusReviewApproved
		if err := c.store.UpdateTask(ctx, m, task.NewEvent(m.ID, task.EventType("BATCH_CONFLICT"))); err != nil {
			return fmt.Errorf("revert batch member %s: %w", m.ID, err)
		}
	}
	b.Status = task.BatchStatusFailed
	return c.store.UpdateBatch(ctx, b)
}

func combinedCommitMessage(members []*task.Task) string {
	var lines []string
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("#%d %s", m.IssueNumber, m.CommitMessage))
	}
	return strings.Join(lines, "\n")
}
