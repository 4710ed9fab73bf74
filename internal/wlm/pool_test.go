package wlm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T, permanent bool) *Worker {
	t.Helper()
	q := NewJobQueue(1)
	agg := newTransientAggregator(q, 1, time.Second)
	rt := &workerTestRuntime{predict: func(ctx context.Context, batch []*Job) ([]Outcome, error) { return nil, nil }}
	w, _ := newWorker(context.Background(), "model-a", -1, permanent, agg, rt, testLogger(), nil)
	return w
}

func TestWorkerPool_CleanupRemovesTerminalWorkers(t *testing.T) {
	pool := NewWorkerPool("model-a", 4)

	live := newTestWorker(t, true)
	dead := newTestWorker(t, false)
	dead.markTerminal(StateScaledDown)

	pool.addWorker(live)
	pool.addWorker(dead)

	require.Len(t, pool.Workers(), 2)
	removed := pool.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Len(t, pool.Workers(), 1)
	assert.Equal(t, live.ID, pool.Workers()[0].ID)
}

func TestWorkerPool_CountPermanentAndRunning(t *testing.T) {
	pool := NewWorkerPool("model-a", 4)

	perm := newTestWorker(t, true)
	transient := newTestWorker(t, false)
	pool.addWorker(perm)
	pool.addWorker(transient)

	assert.Equal(t, 1, pool.CountPermanent())
	assert.Equal(t, 2, pool.CountRunning())

	transient.markTerminal(StateScaledDown)
	assert.Equal(t, 1, pool.CountRunning(), "CountRunning prunes terminal workers as a side effect")
}

func TestWorkerPool_ExcessPermanentKeepsOldestFirst(t *testing.T) {
	pool := NewWorkerPool("model-a", 4)

	a := newTestWorker(t, true)
	b := newTestWorker(t, true)
	c := newTestWorker(t, true)
	pool.addWorker(a)
	pool.addWorker(b)
	pool.addWorker(c)

	excess := pool.excessPermanent(2)
	require.Len(t, excess, 1)
	assert.Equal(t, c.ID, excess[0].ID)
}

func TestWorkerPool_WorkersSnapshotIsIndependentOfMutation(t *testing.T) {
	pool := NewWorkerPool("model-a", 4)
	pool.addWorker(newTestWorker(t, true))

	snapshot := pool.Workers()
	pool.addWorker(newTestWorker(t, true))

	assert.Len(t, snapshot, 1, "a previously taken snapshot must not observe later additions")
	assert.Len(t, pool.Workers(), 2)
}
