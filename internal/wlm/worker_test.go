package wlm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type workerTestRuntime struct {
	startCalled int
	stopCalled  int
	startErr    error
	predict     func(ctx context.Context, batch []*Job) ([]Outcome, error)
}

func (r *workerTestRuntime) OnWorkerStart(deviceID int) error {
	r.startCalled++
	return r.startErr
}

func (r *workerTestRuntime) OnWorkerStop() {
	r.stopCalled++
}

func (r *workerTestRuntime) Predict(ctx context.Context, batch []*Job) ([]Outcome, error) {
	return r.predict(ctx, batch)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestWorker_TransientExitsScaledDownOnEmptyPoll(t *testing.T) {
	q := NewJobQueue(4)
	agg := newTransientAggregator(q, 4, 10*time.Millisecond)
	rt := &workerTestRuntime{predict: func(ctx context.Context, batch []*Job) ([]Outcome, error) {
		t.Fatal("predict should not be called when no job is ever offered")
		return nil, nil
	}}

	w, ctx := newWorker(context.Background(), "model-a", -1, false, agg, rt, testLogger(), nil)
	w.run(ctx)

	assert.Equal(t, StateScaledDown, w.State())
	assert.Equal(t, 1, rt.startCalled)
	assert.Equal(t, 1, rt.stopCalled)
}

func TestWorker_PermanentStopsOnExternalShutdown(t *testing.T) {
	q := NewJobQueue(4)
	agg := newPermanentAggregator(q, 4, time.Second)
	rt := &workerTestRuntime{predict: func(ctx context.Context, batch []*Job) ([]Outcome, error) {
		return nil, nil
	}}

	w, ctx := newWorker(context.Background(), "model-a", -1, true, agg, rt, testLogger(), nil)
	go w.run(ctx)

	time.Sleep(10 * time.Millisecond)
	w.Shutdown(StateStopped)

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after shutdown")
	}
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_FatalRuntimeErrorMovesToError(t *testing.T) {
	q := NewJobQueue(4)
	agg := newPermanentAggregator(q, 1, 50*time.Millisecond)
	rt := &workerTestRuntime{predict: func(ctx context.Context, batch []*Job) ([]Outcome, error) {
		return nil, &RuntimeError{Err: assertErr, Fatal: true}
	}}

	completion := NewChanCompletion()
	job := NewJob("x", completion)
	require.True(t, q.Offer(job))

	w, ctx := newWorker(context.Background(), "model-a", -1, true, agg, rt, testLogger(), nil)
	w.run(ctx)

	assert.Equal(t, StateError, w.State())
	outcome := completion.Wait()
	assert.ErrorIs(t, outcome.Err, ErrWorkerFatal)
}

func TestWorker_NonFatalRuntimeErrorReturnsToWaiting(t *testing.T) {
	q := NewJobQueue(4)
	calls := 0
	agg := newTransientAggregator(q, 1, 30*time.Millisecond)
	rt := &workerTestRuntime{predict: func(ctx context.Context, batch []*Job) ([]Outcome, error) {
		calls++
		return nil, assertErr
	}}

	completion := NewChanCompletion()
	job := NewJob("x", completion)
	require.True(t, q.Offer(job))

	w, ctx := newWorker(context.Background(), "model-a", -1, false, agg, rt, testLogger(), nil)
	w.run(ctx)

	assert.Equal(t, StateScaledDown, w.State(), "worker must survive a non-fatal batch failure and only terminate via the aggregator")
	outcome := completion.Wait()
	assert.ErrorIs(t, outcome.Err, ErrBatchFailed)
	assert.Equal(t, 1, calls)
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
