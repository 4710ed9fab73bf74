package wlm

import "errors"

// Sentinel errors for the dispatch-layer error taxonomy. Submit never
// panics or throws on a rejection: the relevant sentinel is returned
// directly to the caller, alongside a log entry for the ones that
// warrant one.
var (
	// ErrQueueFull is reported when offer returns false after its timeout.
	ErrQueueFull = errors.New("wlm: job queue full")

	// ErrScaleCapacityExceeded is reported when scale-up is attempted
	// beyond a model's maxWorkers.
	ErrScaleCapacityExceeded = errors.New("wlm: scale capacity exceeded")

	// ErrAdmissionInterrupted is reported when a submitter's wait for
	// queue admission is interrupted by shutdown.
	ErrAdmissionInterrupted = errors.New("wlm: admission interrupted")

	// ErrNoWorkers is reported when submit is attempted against a model
	// with zero running workers.
	ErrNoWorkers = errors.New("wlm: no running workers")

	// ErrWorkerFatal tags a batch failure the runtime classified as
	// fatal; the worker that produced it moves to the error state.
	ErrWorkerFatal = errors.New("wlm: worker fatal error")

	// ErrBatchFailed tags a batch failure the runtime classified as
	// non-fatal; the worker returns to waiting.
	ErrBatchFailed = errors.New("wlm: batch failed")
)

// RuntimeError is the typed error a ModelRuntime returns from Predict to
// classify a batch failure as fatal (worker dies, ERROR state) or
// non-fatal (worker keeps serving, only the batch fails). A plain error
// from Predict is treated as non-fatal.
type RuntimeError struct {
	Err   error
	Fatal bool
}

func (e *RuntimeError) Error() string {
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
