package wlm

import "context"

// ModelRuntime is the external inference engine contract. The core never
// loads weights or executes a forward pass itself; it only calls through
// this interface. Each worker calls it only from its own goroutine, but
// every worker of a model shares the one ModelRuntime value registered
// for that model, so calls from different workers may run concurrently.
type ModelRuntime interface {
	// Predict executes one batch and returns one Outcome per job,
	// positionally aligned with batch. A non-nil error means the whole
	// batch failed; wrap it in *RuntimeError to mark it fatal.
	Predict(ctx context.Context, batch []*Job) ([]Outcome, error)

	// OnWorkerStart is called once, before the worker's first poll, with
	// the device id it was assigned (-1 for CPU).
	OnWorkerStart(deviceID int) error

	// OnWorkerStop is called once, as the worker exits, regardless of
	// which terminal state it exits into, provided OnWorkerStart returned
	// nil. A worker whose OnWorkerStart fails, or that never starts, does
	// not call it.
	OnWorkerStop()
}
