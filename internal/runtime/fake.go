package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/llm-d-incubation/inference-wlm/internal/wlm"
)

// Fake is a ModelRuntime test double with deterministic, inspectable
// behavior: every call to Predict is recorded, an optional per-call delay
// simulates inference latency, and FailOn lets a test script a specific
// call to fail (optionally fatally).
type Fake struct {
	mu        sync.Mutex
	calls     int
	batches   [][]*wlm.Job
	startedOn []int
	stopped   int

	// Delay, if non-nil, is called with the 1-based call index; Predict
	// waits until the returned channel yields a value or is closed
	// (honoring ctx cancellation) before returning.
	Delay func(callIndex int) <-chan struct{}

	// FailOn maps a 1-based call index to the error Predict should
	// return for that call. A *wlm.RuntimeError controls fatality.
	FailOn map[int]error

	started atomic.Bool
}

// NewFake builds an empty Fake runtime.
func NewFake() *Fake {
	return &Fake{FailOn: make(map[int]error)}
}

func (f *Fake) OnWorkerStart(deviceID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedOn = append(f.startedOn, deviceID)
	f.started.Store(true)
	return nil
}

func (f *Fake) OnWorkerStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *Fake) Predict(ctx context.Context, batch []*wlm.Job) ([]wlm.Outcome, error) {
	f.mu.Lock()
	f.calls++
	idx := f.calls
	f.batches = append(f.batches, batch)
	delay := f.Delay
	failErr := f.FailOn[idx]
	f.mu.Unlock()

	if delay != nil {
		select {
		case <-delay(idx):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	out := make([]wlm.Outcome, len(batch))
	for i, job := range batch {
		out[i] = wlm.Outcome{Result: job.Input}
	}
	return out, nil
}

// Calls reports how many times Predict has been invoked so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Batches returns a snapshot of every batch Predict has been given, in
// call order.
func (f *Fake) Batches() [][]*wlm.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]*wlm.Job, len(f.batches))
	copy(out, f.batches)
	return out
}

// DevicesStarted returns the device ids OnWorkerStart was called with,
// in call order.
func (f *Fake) DevicesStarted() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.startedOn))
	copy(out, f.startedOn)
	return out
}

// StopCount reports how many times OnWorkerStop has been called.
func (f *Fake) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
