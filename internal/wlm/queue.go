package wlm

import (
	"context"
	"time"
)

// JobQueue is a bounded FIFO of Jobs for one model, backed by a buffered
// channel: capacity, non-negative size, and FIFO order fall out of the
// channel's own semantics instead of being hand-maintained bookkeeping.
type JobQueue struct {
	ch chan *Job
}

// NewJobQueue creates a queue with the given capacity. capacity must be
// >= 1 (ModelInfo.Validate enforces this upstream).
func NewJobQueue(capacity int) *JobQueue {
	return &JobQueue{ch: make(chan *Job, capacity)}
}

// Offer enqueues job if there is room, returning false immediately
// otherwise. Never blocks.
func (q *JobQueue) Offer(job *Job) bool {
	select {
	case q.ch <- job:
		return true
	default:
		return false
	}
}

// OfferWait enqueues job, blocking up to timeout for room to free up. It
// also returns false if ctx is cancelled first, which is how a
// WorkloadManager shutdown unblocks submitters waiting on a full queue.
func (q *JobQueue) OfferWait(ctx context.Context, job *Job, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- job:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// PollBatch blocks up to maxDelay for the first job, then greedily drains
// up to maxSize-1 further jobs that are already available without
// additional waiting. It returns a nil batch with no error when the
// first-job wait times out (the caller, not this method, decides whether
// that means "try again" or "terminate"). It returns a non-nil error only
// when ctx is cancelled.
func (q *JobQueue) PollBatch(ctx context.Context, maxSize int, maxDelay time.Duration) ([]*Job, error) {
	timer := time.NewTimer(maxDelay)
	defer timer.Stop()

	var first *Job
	select {
	case first = <-q.ch:
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	batch := make([]*Job, 1, maxSize)
	batch[0] = first
	for len(batch) < maxSize {
		select {
		case j := <-q.ch:
			batch = append(batch, j)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Len reports the current queue depth.
func (q *JobQueue) Len() int {
	return len(q.ch)
}

// Cap reports the queue's configured capacity.
func (q *JobQueue) Cap() int {
	return cap(q.ch)
}
