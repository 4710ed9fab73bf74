package wlm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerState is a node in the worker state machine. Once a worker
// reaches StateScaledDown, StateStopped, or StateError it never changes
// state again.
type WorkerState int32

const (
	StateStarting WorkerState = iota
	StateWaiting
	StateRunning
	StateScaledDown
	StateStopped
	StateError
)

func (s WorkerState) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateWaiting:
		return "WAITING"
	case StateRunning:
		return "RUNNING"
	case StateScaledDown:
		return "SCALED_DOWN"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (s WorkerState) terminal() bool {
	return s == StateScaledDown || s == StateStopped || s == StateError
}

// Worker is a long-running executor bound to one model, one device, and
// one aggregator. Exactly one goroutine (the one started by
// WorkloadManager.spawnWorker) ever calls run on a given Worker.
type Worker struct {
	ID        string
	DeviceID  int
	Permanent bool
	ModelName string

	state atomic.Int32

	aggregator BatchAggregator
	runtime    ModelRuntime
	logger     *zap.SugaredLogger
	metrics    MetricsRecorder

	cancel       context.CancelFunc
	shutdownOnce sync.Once
	doneCh       chan struct{}
}

func newWorker(
	parent context.Context,
	modelName string,
	deviceID int,
	permanent bool,
	aggregator BatchAggregator,
	runtime ModelRuntime,
	logger *zap.SugaredLogger,
	metrics MetricsRecorder,
) (*Worker, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w := &Worker{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Permanent:  permanent,
		ModelName:  modelName,
		aggregator: aggregator,
		runtime:    runtime,
		logger:     logger,
		metrics:    metrics,
		cancel:     cancel,
		doneCh:     make(chan struct{}),
	}
	w.state.Store(int32(StateStarting))
	return w, ctx
}

// State returns the worker's current state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Terminal reports whether the worker has reached a terminal state.
func (w *Worker) Terminal() bool {
	return w.State().terminal()
}

// Done is closed once the worker's run loop has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

// setState moves the worker between non-terminal states. It is a no-op
// once the worker is terminal, so a concurrent Shutdown is never undone.
func (w *Worker) setState(s WorkerState) {
	for {
		cur := WorkerState(w.state.Load())
		if cur.terminal() {
			return
		}
		if w.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

// markTerminal moves the worker into a terminal state, first transition
// wins. Concurrent callers (the run loop observing ctx cancellation, and
// an external Shutdown) race harmlessly: whichever CAS lands first
// decides the worker's final state, and it never changes after that.
func (w *Worker) markTerminal(s WorkerState) {
	for {
		cur := WorkerState(w.state.Load())
		if cur.terminal() {
			return
		}
		if w.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

// Shutdown is idempotent: it pins the worker's terminal state to reason
// (unless it already reached one) and unblocks whatever the aggregator
// is waiting on. It does not wait for the in-flight batch, if any, to
// finish — callers that need that use Done().
func (w *Worker) Shutdown(reason WorkerState) {
	w.markTerminal(reason)
	w.shutdownOnce.Do(func() {
		w.cancel()
	})
}

// run is the worker's main loop: poll a batch, run it, satisfy
// completions, repeat. It returns only once the worker has reached a
// terminal state.
func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.runtime.OnWorkerStart(w.DeviceID); err != nil {
		w.logger.Errorw("worker failed to start", "worker_id", w.ID, "model", w.ModelName, "device_id", w.DeviceID, "error", err)
		w.markTerminal(StateError)
		return
	}
	defer w.runtime.OnWorkerStop()

	w.setState(StateWaiting)

	for {
		batch, err := w.aggregator.NextBatch(ctx)
		if err != nil {
			w.markTerminal(StateStopped)
			return
		}

		if len(batch) == 0 {
			if w.aggregator.Transient() {
				w.markTerminal(StateScaledDown)
				return
			}
			continue
		}

		w.setState(StateRunning)
		w.runBatch(ctx, batch)
		if w.Terminal() {
			return
		}
		w.setState(StateWaiting)
	}
}

// runBatch invokes the runtime once and routes every job in batch to its
// completion, preserving position. A fatal error moves the worker to
// StateError; a non-fatal one leaves it able to serve the next batch.
func (w *Worker) runBatch(ctx context.Context, batch []*Job) {
	start := time.Now()
	outcomes, err := w.runtime.Predict(ctx, batch)
	latency := time.Since(start)
	if err != nil {
		var rerr *RuntimeError
		fatal := errors.As(err, &rerr) && rerr.Fatal

		cause := ErrBatchFailed
		if fatal {
			cause = ErrWorkerFatal
		}
		failure := fmt.Errorf("%w: %v", cause, err)
		for _, job := range batch {
			job.Fail(failure)
		}

		w.logger.Errorw("batch failed", "worker_id", w.ID, "model", w.ModelName, "batch_size", len(batch), "fatal", fatal, "error", err)
		if w.metrics != nil {
			w.metrics.BatchFailed(w.ModelName, fatal)
		}
		if fatal {
			w.markTerminal(StateError)
		}
		return
	}

	for i, job := range batch {
		switch {
		case i >= len(outcomes):
			job.Fail(fmt.Errorf("%w: runtime returned no outcome for job %s", ErrBatchFailed, job.ID))
		case outcomes[i].Err != nil:
			job.Fail(outcomes[i].Err)
		default:
			job.Succeed(outcomes[i].Result)
		}
	}

	if w.metrics != nil {
		w.metrics.BatchCompleted(w.ModelName, len(batch), latency)
	}
}
