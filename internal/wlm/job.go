package wlm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the opaque per-job output a ModelRuntime produces. The core
// never inspects it; it only routes it back to the submitter.
type Result any

// Completion is the single-use sink a Job's submitter is notified
// through. Exactly one of Succeed or Fail fires, exactly once, for every
// job that reaches a worker; jobs rejected at admission never touch it.
type Completion interface {
	Succeed(result Result)
	Fail(err error)
}

// Job is an immutable envelope carrying one inference request from
// submission through completion. Once handed to a JobQueue the
// submitter must not mutate it; the once guard below is what actually
// enforces "satisfied at most once" rather than trusting callers to
// honor it.
type Job struct {
	ID         string
	Input      any
	EnqueuedAt time.Time

	completion Completion
	once       sync.Once
}

// NewJob wraps input and a completion sink into a Job ready for
// submission. EnqueuedAt is stamped here, not by the queue, so that wait
// time measured later includes time spent between construction and
// admission.
func NewJob(input any, completion Completion) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Input:      input,
		EnqueuedAt: time.Now(),
		completion: completion,
	}
}

// Succeed satisfies the job's completion with a result. Calls after the
// first are no-ops.
func (j *Job) Succeed(result Result) {
	j.once.Do(func() {
		j.completion.Succeed(result)
	})
}

// Fail satisfies the job's completion with an error. Calls after the
// first are no-ops.
func (j *Job) Fail(err error) {
	j.once.Do(func() {
		j.completion.Fail(err)
	})
}

// Waited reports how long the job sat between enqueue and now; handy for
// aggregator/batch latency logging.
func (j *Job) Waited() time.Duration {
	return time.Since(j.EnqueuedAt)
}

// ChanCompletion is a Completion backed by a buffered channel, the
// simplest sink a submitter can block on. Front ends with a richer
// request/response model (HTTP, gRPC) implement their own Completion
// instead.
type ChanCompletion struct {
	ch chan Outcome
}

// Outcome is what a ChanCompletion delivers: exactly one of Result or Err
// is set.
type Outcome struct {
	Result Result
	Err    error
}

// NewChanCompletion creates a Completion with room for exactly one
// outcome.
func NewChanCompletion() *ChanCompletion {
	return &ChanCompletion{ch: make(chan Outcome, 1)}
}

func (c *ChanCompletion) Succeed(result Result) {
	c.ch <- Outcome{Result: result}
}

func (c *ChanCompletion) Fail(err error) {
	c.ch <- Outcome{Err: err}
}

// Wait blocks until the outcome is delivered.
func (c *ChanCompletion) Wait() Outcome {
	return <-c.ch
}

// Done exposes the underlying channel for select-based waiting (e.g.
// alongside a context deadline).
func (c *ChanCompletion) Done() <-chan Outcome {
	return c.ch
}
