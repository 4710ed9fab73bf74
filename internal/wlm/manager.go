package wlm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// WorkloadManager is the top-level entry point: it owns one WorkerPool
// per registered model, dispatches submitted jobs onto those pools'
// queues, and scales each pool's worker count within the bounds its
// ModelInfo declares. A single WorkloadManager is meant to be shared by
// every request-handling goroutine in the process.
type WorkloadManager struct {
	log     *zap.SugaredLogger
	metrics MetricsRecorder
	devices *DeviceAssigner

	// executor bounds the total number of concurrently live worker
	// goroutines across every model at Σ max(maxWorkers), fixing the
	// unbounded-thread-pool behavior of the design this package
	// generalizes. Workers block acquiring a unit of weight before
	// running and release it on exit.
	executor *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	models  map[string]ModelInfo
	pools   map[string]*WorkerPool
	runtime map[string]ModelRuntime

	// scaleLocks holds one *sync.Mutex per model name, keyed by the
	// string value rather than relying on string interning, so two
	// distinct ModelInfo values that share a name always share one lock
	// and two different names can never collide on one.
	scaleLocks map[string]*sync.Mutex
	locksMu    sync.Mutex
}

// NewWorkloadManager builds a manager with no models registered yet.
// maxConcurrentWorkers should be the sum of MaxWorkers across every
// model the caller intends to register; it is the hard ceiling on
// simultaneously live worker goroutines regardless of how many models
// ask to scale up at once.
func NewWorkloadManager(deviceCount int, maxConcurrentWorkers int64, log *zap.SugaredLogger, metrics MetricsRecorder) *WorkloadManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkloadManager{
		log:        log,
		metrics:    metrics,
		devices:    NewDeviceAssigner(deviceCount),
		executor:   semaphore.NewWeighted(maxConcurrentWorkers),
		ctx:        ctx,
		cancel:     cancel,
		models:     make(map[string]ModelInfo),
		pools:      make(map[string]*WorkerPool),
		runtime:    make(map[string]ModelRuntime),
		scaleLocks: make(map[string]*sync.Mutex),
	}
}

func (m *WorkloadManager) scaleLockFor(modelName string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.scaleLocks[modelName]
	if !ok {
		l = &sync.Mutex{}
		m.scaleLocks[modelName] = l
	}
	return l
}

// RegisterRuntime binds a ModelRuntime to a model name and, on first
// registration, creates its pool and spins up MinWorkers permanent
// workers. Calling it again for an already-registered model rebinds the
// model's runtime (used by workers spawned from then on) and then
// behaves like ModelChanged with the new info.
func (m *WorkloadManager) RegisterRuntime(info ModelInfo, rt ModelRuntime) error {
	if err := info.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	_, exists := m.models[info.Name]
	m.models[info.Name] = info
	m.runtime[info.Name] = rt
	var pool *WorkerPool
	if !exists {
		pool = NewWorkerPool(info.Name, info.QueueSize)
		m.pools[info.Name] = pool
	}
	m.mu.Unlock()

	if exists {
		return m.ModelChanged(info, false)
	}

	lock := m.scaleLockFor(info.Name)
	lock.Lock()
	defer lock.Unlock()
	return m.scaleUpLocked(info, pool, info.MinWorkers-pool.CountPermanent(), true)
}

func (m *WorkloadManager) poolFor(modelName string) (*WorkerPool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[modelName]
	return p, ok
}

func (m *WorkloadManager) runtimeFor(modelName string) (ModelRuntime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtime[modelName]
	return rt, ok
}

func (m *WorkloadManager) infoFor(modelName string) (ModelInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.models[modelName]
	return info, ok
}

// Submit admits job onto modelName's queue, scaling the pool up first if
// the initial offer found it full. The scale-up attempt and the queue
// offer happen under the same per-model lock so two concurrent
// submitters never both decide to scale past maxWorkers for a burst
// neither could see the other's half of.
//
// A rejection is reported to the caller through the returned error
// alone. The job's completion is never touched here: the submitter
// owns the job until admission succeeds, and only a worker that
// actually runs the job may satisfy or fail its completion.
func (m *WorkloadManager) Submit(modelName string, job *Job) error {
	pool, ok := m.poolFor(modelName)
	if !ok {
		return fmt.Errorf("wlm: unknown model %q", modelName)
	}
	info, _ := m.infoFor(modelName)

	if pool.CountRunning() == 0 {
		if m.metrics != nil {
			m.metrics.JobRejected(modelName, "no_workers")
		}
		return ErrNoWorkers
	}

	if pool.Queue().Offer(job) {
		m.recordSubmit(modelName, pool, info)
		return nil
	}

	lock := m.scaleLockFor(modelName)
	lock.Lock()
	if err := m.scaleUpLocked(info, pool, 1, false); err != nil {
		if errors.Is(err, ErrScaleCapacityExceeded) {
			if m.log != nil {
				m.log.Infow("scale-up capacity exceeded during submit", "model", modelName, "max_workers", info.MaxWorkers)
			}
			if m.metrics != nil {
				m.metrics.JobRejected(modelName, "scale_capacity_exceeded")
			}
		} else if m.log != nil {
			m.log.Debugw("scale-up during submit did not add a worker", "model", modelName, "error", err)
		}
	}

	admitted := pool.Queue().OfferWait(m.ctx, job, info.MaxBatchDelay)
	lock.Unlock()

	if !admitted {
		if m.ctx.Err() != nil {
			if m.log != nil {
				m.log.Infow("admission interrupted by shutdown", "model", modelName)
			}
			if m.metrics != nil {
				m.metrics.JobRejected(modelName, "shutdown")
			}
			return ErrAdmissionInterrupted
		}
		if m.metrics != nil {
			m.metrics.JobRejected(modelName, "queue_full")
		}
		return ErrQueueFull
	}

	m.recordSubmit(modelName, pool, info)
	return nil
}

func (m *WorkloadManager) recordSubmit(modelName string, pool *WorkerPool, info ModelInfo) {
	if m.metrics == nil {
		return
	}
	m.metrics.JobSubmitted(modelName)
	m.metrics.SetPoolGauges(modelName, pool.CountRunning(), pool.CountPermanent(), pool.CountRunning()-pool.CountPermanent(), pool.Queue().Len())
}

// scaleUpLocked spawns up to count transient (or, when permanent is
// true, permanent) workers for a model, stopping early and returning
// ErrScaleCapacityExceeded the moment maxWorkers would be exceeded. The
// caller must hold the model's scale lock.
func (m *WorkloadManager) scaleUpLocked(info ModelInfo, pool *WorkerPool, count int, permanent bool) error {
	if count <= 0 {
		return nil
	}
	pool.Cleanup()
	for i := 0; i < count; i++ {
		if pool.CountRunning() >= info.MaxWorkers {
			return ErrScaleCapacityExceeded
		}
		m.spawnWorker(info, pool, permanent)
	}
	if m.metrics != nil {
		m.metrics.ScaleEvent(info.Name, "up")
	}
	if m.log != nil {
		pool.LogSnapshot(m.log)
	}
	return nil
}

// spawnWorker starts exactly one worker goroutine bound to pool's
// aggregator, gated on the shared executor's semaphore so the total
// number of concurrently running worker goroutines across every model
// never exceeds the ceiling passed to NewWorkloadManager.
func (m *WorkloadManager) spawnWorker(info ModelInfo, pool *WorkerPool, permanent bool) {
	rt, _ := m.runtimeFor(info.Name)
	deviceID := m.devices.Next()

	var agg BatchAggregator
	if permanent {
		agg = newPermanentAggregator(pool.Queue(), info.BatchSize, info.MaxBatchDelay)
	} else {
		agg = newTransientAggregator(pool.Queue(), info.BatchSize, info.MaxBatchDelay)
	}

	w, wctx := newWorker(m.ctx, info.Name, deviceID, permanent, agg, rt, m.log, m.metrics)
	pool.addWorker(w)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.executor.Acquire(wctx, 1); err != nil {
			w.markTerminal(StateStopped)
			return
		}
		defer m.executor.Release(1)
		w.run(wctx)
	}()
}

// RunningWorkerCount reports the number of non-terminal workers for a
// model, or 0 if the model is unregistered.
func (m *WorkloadManager) RunningWorkerCount(modelName string) int {
	pool, ok := m.poolFor(modelName)
	if !ok {
		return 0
	}
	return pool.CountRunning()
}

// Workers returns a snapshot of the currently live (and recently
// terminated, pending the next Cleanup) workers for a model. An unknown
// model name yields an empty slice, never nil, matching the read-only
// "best effort" contract callers rely on without a presence check.
func (m *WorkloadManager) Workers(modelName string) []*Worker {
	pool, ok := m.poolFor(modelName)
	if !ok {
		return []*Worker{}
	}
	return pool.Workers()
}

// ModelChanged reconciles a model's pool against an updated ModelInfo:
// it registers the new limits, tops up permanent workers if minWorkers
// grew, and shuts down the excess if it shrank. When removeIfEmpty is
// true and the new minWorkers is 0, the pool is dropped entirely if, once
// its permanent workers have been signaled to stop, no worker (transient
// included) is still running; if one is, the pool stays registered.
// Otherwise a minWorkers of 0 is honored by simply running with no
// permanent workers, leaving the pool (and its queue) in place for
// transient workers to keep serving it.
func (m *WorkloadManager) ModelChanged(info ModelInfo, removeIfEmpty bool) error {
	if err := info.Validate(); err != nil {
		return err
	}

	pool, ok := m.poolFor(info.Name)
	if !ok {
		return fmt.Errorf("wlm: unknown model %q", info.Name)
	}

	lock := m.scaleLockFor(info.Name)
	lock.Lock()
	defer lock.Unlock()

	pool.Cleanup()

	m.mu.Lock()
	m.models[info.Name] = info
	m.mu.Unlock()

	current := pool.CountPermanent()
	switch {
	case info.MinWorkers > current:
		if err := m.scaleUpLocked(info, pool, info.MinWorkers-current, true); err != nil {
			return err
		}
	case info.MinWorkers < current:
		for _, w := range pool.excessPermanent(info.MinWorkers) {
			w.Shutdown(StateScaledDown)
		}
		pool.Cleanup()
		if m.metrics != nil {
			m.metrics.ScaleEvent(info.Name, "down")
		}
	}

	if info.MinWorkers == 0 && removeIfEmpty && pool.CountRunning() == 0 {
		m.mu.Lock()
		delete(m.pools, info.Name)
		delete(m.models, info.Name)
		delete(m.runtime, info.Name)
		m.mu.Unlock()
	}

	if m.log != nil {
		pool.LogSnapshot(m.log)
	}
	return nil
}

// Shutdown stops every worker across every model and waits for their
// goroutines to exit. Submitters blocked in OfferWait are unblocked by
// ctx cancellation and return ErrAdmissionInterrupted.
func (m *WorkloadManager) Shutdown() {
	m.mu.RLock()
	pools := make([]*WorkerPool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	for _, p := range pools {
		for _, w := range p.Workers() {
			w.Shutdown(StateStopped)
		}
	}

	m.cancel()
	m.wg.Wait()
}
