package wlm

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerPool owns one model's queue and the set of workers currently
// draining it. The worker slice is replaced wholesale on Cleanup rather
// than mutated in place, so a snapshot taken by Workers is always safe
// to range over without a lock.
type WorkerPool struct {
	modelName string

	mu      sync.RWMutex
	workers []*Worker

	queue *JobQueue
}

// NewWorkerPool builds an empty pool with a queue of the given capacity.
func NewWorkerPool(modelName string, queueCapacity int) *WorkerPool {
	return &WorkerPool{
		modelName: modelName,
		queue:     NewJobQueue(queueCapacity),
	}
}

// Queue returns the pool's job queue.
func (p *WorkerPool) Queue() *JobQueue {
	return p.queue
}

// Workers returns a snapshot of the pool's current worker set. Callers
// must not mutate the returned slice.
func (p *WorkerPool) Workers() []*Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Worker, len(p.workers))
	copy(out, p.workers)
	return out
}

// addWorker appends w to the pool's worker set.
func (p *WorkerPool) addWorker(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = append(p.workers, w)
}

// Cleanup drops every worker that has reached a terminal state and
// returns how many were removed. The live slice is replaced atomically
// under the lock rather than filtered in place, so concurrent Workers
// calls never observe a half-filtered slice.
func (p *WorkerPool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := make([]*Worker, 0, len(p.workers))
	removed := 0
	for _, w := range p.workers {
		if w.Terminal() {
			removed++
			continue
		}
		live = append(live, w)
	}
	p.workers = live
	return removed
}

// CountPermanent reports how many non-terminal permanent workers the
// pool currently holds.
func (p *WorkerPool) CountPermanent() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, w := range p.workers {
		if w.Permanent && !w.Terminal() {
			n++
		}
	}
	return n
}

// CountRunning prunes terminal workers and reports the number that
// remain, permanent and transient alike. Pruning here (rather than
// relying on a caller to have done it) is what keeps a long-idle pool's
// worker list from growing without bound.
func (p *WorkerPool) CountRunning() int {
	p.Cleanup()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// excessPermanent returns the permanent workers beyond the first
// minWorkers still-live ones, oldest-registered first preserved. Used by
// ModelChanged to scale a pool down when minWorkers shrinks.
func (p *WorkerPool) excessPermanent(minWorkers int) []*Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	kept := 0
	var excess []*Worker
	for _, w := range p.workers {
		if !w.Permanent || w.Terminal() {
			continue
		}
		if kept < minWorkers {
			kept++
			continue
		}
		excess = append(excess, w)
	}
	return excess
}

// LogSnapshot dumps the pool's worker ids at debug level, tagging each
// with its permanent/transient role, mirroring the pool-state dump the
// original workload manager produced on every change.
func (p *WorkerPool) LogSnapshot(log *zap.SugaredLogger) {
	if !log.Desugar().Core().Enabled(zap.DebugLevel) {
		return
	}
	workers := p.Workers()
	ids := make([]string, 0, len(workers))
	for _, w := range workers {
		tag := "tmpPool"
		if w.Permanent {
			tag = "fixedPool"
		}
		ids = append(ids, w.ID+"-"+tag)
	}
	log.Debugw("worker pool snapshot", "model", p.modelName, "workers", ids)
}
