package wlm

import (
	"context"
	"time"
)

// BatchAggregator groups queued jobs into a single batch suitable for one
// ModelRuntime.Predict invocation, subject to size and delay bounds. The
// permanent and transient variants share this contract but disagree on
// what an empty batch means.
type BatchAggregator interface {
	// NextBatch polls the queue, waiting at most the configured delay per
	// poll for the first job, then returns whatever else is immediately
	// available up to the configured batch size. The permanent variant
	// polls again after an empty poll and so only returns once it has a
	// job or ctx is cancelled; the transient variant returns the empty
	// (nil, non-error) batch, which is its "terminate" signal. A non-nil
	// error means ctx was cancelled.
	NextBatch(ctx context.Context) ([]*Job, error)

	// Transient reports whether an empty batch from NextBatch is this
	// aggregator's termination signal.
	Transient() bool
}

type permanentAggregator struct {
	queue     *JobQueue
	batchSize int
	maxDelay  time.Duration
}

// newPermanentAggregator builds the always-on baseline aggregator: each
// poll still times out after maxDelay when the queue is idle, and such an
// empty poll is never treated as termination; it just polls again.
func newPermanentAggregator(queue *JobQueue, batchSize int, maxDelay time.Duration) BatchAggregator {
	return &permanentAggregator{queue: queue, batchSize: batchSize, maxDelay: maxDelay}
}

func (a *permanentAggregator) NextBatch(ctx context.Context) ([]*Job, error) {
	for {
		batch, err := a.queue.PollBatch(ctx, a.batchSize, a.maxDelay)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}
}

func (a *permanentAggregator) Transient() bool {
	return false
}

type transientAggregator struct {
	queue     *JobQueue
	batchSize int
	maxDelay  time.Duration
}

// newTransientAggregator builds the burst-absorbing aggregator: an idle
// interval equal to maxDelay with nothing to batch is the signal that the
// worker it feeds should scale itself down.
func newTransientAggregator(queue *JobQueue, batchSize int, maxDelay time.Duration) BatchAggregator {
	return &transientAggregator{queue: queue, batchSize: batchSize, maxDelay: maxDelay}
}

func (a *transientAggregator) NextBatch(ctx context.Context) ([]*Job, error) {
	return a.queue.PollBatch(ctx, a.batchSize, a.maxDelay)
}

func (a *transientAggregator) Transient() bool {
	return true
}
