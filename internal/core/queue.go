package core

import (
	"context"

	"github.com/orrn/printfarm/internal/db"
)

// The queue is a total order over waiting jobs expressed as an integer
// priority column: lower value = earlier. Values are unique while a job
// is queued and dense again after every completed reorder. All helpers
// here must run on a transaction-bound store; the caller owns the
// transaction boundary.

// tailPriority computes the priority for a job appended at the end of the
// queue: current max + 1, or 1 for an empty queue.
func tailPriority(ctx context.Context, tx *db.Store) (int64, error) {
	max, err := tx.Jobs.MaxPriority(ctx)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

// headPriority computes the priority for a job prepended at the front of
// the queue: current min - 1, or 1 for an empty queue.
func headPriority(ctx context.Context, tx *db.Store) (int64, error) {
	min, err := tx.Jobs.MinPriority(ctx)
	if err != nil {
		return 0, err
	}
	if min == nil {
		return 1, nil
	}
	return *min - 1, nil
}

// reorderAfter moves job to the position immediately following after, or
// to the head of the queue when after is nil. Only the jobs whose
// priority lies between the old and the new position are shifted, one
// step each, so the move is O(distance) and the ordering stays dense.
func reorderAfter(ctx context.Context, tx *db.Store, job, after *db.Job) error {
	if after == nil {
		head, err := headPriority(ctx, tx)
		if err != nil {
			return err
		}
		return tx.Jobs.SetPriority(ctx, job.ID, &head)
	}

	orig := *job.Priority
	target := *after.Priority

	switch {
	case target < orig:
		// Moving towards the head: the block (target, orig) slides one
		// slot back, the job lands right behind the target.
		if err := tx.Jobs.SetPriority(ctx, job.ID, nil); err != nil {
			return err
		}
		if err := tx.Jobs.ShiftRangeUp(ctx, target, orig); err != nil {
			return err
		}
		next := target + 1
		return tx.Jobs.SetPriority(ctx, job.ID, &next)
	case target > orig:
		// Moving towards the tail: the block (orig, target] slides one
		// slot forward, the job takes the target's old position.
		if err := tx.Jobs.SetPriority(ctx, job.ID, nil); err != nil {
			return err
		}
		if err := tx.Jobs.ShiftRangeDown(ctx, orig, target); err != nil {
			return err
		}
		return tx.Jobs.SetPriority(ctx, job.ID, &target)
	default:
		// Equal priorities cannot happen while the uniqueness invariant
		// holds; treat as a no-op rather than failing.
		return nil
	}
}
