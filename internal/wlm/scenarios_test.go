package wlm

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// sleepyRuntime is a ModelRuntime that takes a fixed amount of time per
// batch, used to keep workers busy under concurrent submission.
type sleepyRuntime struct {
	mu    sync.Mutex
	calls int
	sleep time.Duration
}

func (r *sleepyRuntime) OnWorkerStart(deviceID int) error { return nil }
func (r *sleepyRuntime) OnWorkerStop()                    {}

func (r *sleepyRuntime) Predict(ctx context.Context, batch []*Job) ([]Outcome, error) {
	select {
	case <-time.After(r.sleep):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	out := make([]Outcome, len(batch))
	for i, job := range batch {
		out[i] = Outcome{Result: job.Input}
	}
	return out, nil
}

var _ = Describe("WorkloadManager", func() {
	var mgr *WorkloadManager

	AfterEach(func() {
		if mgr != nil {
			mgr.Shutdown()
		}
	})

	Describe("burst handling under sustained submission", func() {
		It("serves every job, then settles at the permanent baseline", func() {
			mgr = NewWorkloadManager(0, 8, testLogger(), nil)
			info := ModelInfo{
				Name:          "burst-model",
				MinWorkers:    2,
				MaxWorkers:    8,
				BatchSize:     4,
				MaxBatchDelay: 40 * time.Millisecond,
				QueueSize:     64,
			}
			rt := &sleepyRuntime{sleep: 60 * time.Millisecond}
			Expect(mgr.RegisterRuntime(info, rt)).To(Succeed())
			Expect(mgr.RunningWorkerCount(info.Name)).To(Equal(2))

			const jobCount = 40
			var wg sync.WaitGroup
			results := make(chan error, jobCount)
			for i := 0; i < jobCount; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					completion := NewChanCompletion()
					job := NewJob(n, completion)
					if err := mgr.Submit(info.Name, job); err != nil {
						results <- err
						return
					}
					outcome := completion.Wait()
					results <- outcome.Err
				}(i)
			}
			wg.Wait()
			close(results)

			failures := 0
			for err := range results {
				if err != nil {
					failures++
				}
			}
			Expect(failures).To(Equal(0), "every submitted job must eventually complete given enough queue and worker headroom")

			Eventually(func() int {
				return mgr.RunningWorkerCount(info.Name)
			}, 2*time.Second, 20*time.Millisecond).Should(Equal(2), "transient workers must drain back to the permanent baseline once traffic stops")
		})
	})

	Describe("boundary behavior with minWorkers == maxWorkers == 0", func() {
		It("never admits a job", func() {
			mgr = NewWorkloadManager(0, 1, testLogger(), nil)
			info := ModelInfo{Name: "disabled-model", MinWorkers: 0, MaxWorkers: 0, BatchSize: 1, MaxBatchDelay: time.Millisecond, QueueSize: 1}
			Expect(mgr.RegisterRuntime(info, &sleepyRuntime{sleep: 0})).To(Succeed())

			job := NewJob(1, NewChanCompletion())
			err := mgr.Submit(info.Name, job)
			Expect(err).To(MatchError(ErrNoWorkers))
		})
	})

	Describe("boundary behavior with minWorkers == maxWorkers", func() {
		It("never spawns a transient worker even under contention", func() {
			mgr = NewWorkloadManager(0, 3, testLogger(), nil)
			info := ModelInfo{Name: "fixed-model", MinWorkers: 3, MaxWorkers: 3, BatchSize: 1, MaxBatchDelay: 20 * time.Millisecond, QueueSize: 16}
			rt := &sleepyRuntime{sleep: 30 * time.Millisecond}
			Expect(mgr.RegisterRuntime(info, rt)).To(Succeed())

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					completion := NewChanCompletion()
					mgr.Submit(info.Name, NewJob(n, completion))
					completion.Wait()
				}(i)
			}
			wg.Wait()

			for _, w := range mgr.Workers(info.Name) {
				Expect(w.Permanent).To(BeTrue(), "minWorkers == maxWorkers leaves no headroom for a transient worker to ever be spawned")
			}
		})
	})

	Describe("queueSize 1 with a larger batch size", func() {
		It("always batches exactly one job at a time", func() {
			mgr = NewWorkloadManager(0, 1, testLogger(), nil)
			info := ModelInfo{Name: "singleton-model", MinWorkers: 1, MaxWorkers: 1, BatchSize: 8, MaxBatchDelay: 20 * time.Millisecond, QueueSize: 1}
			rt := &sleepyRuntime{sleep: 10 * time.Millisecond}
			Expect(mgr.RegisterRuntime(info, rt)).To(Succeed())

			for i := 0; i < 5; i++ {
				completion := NewChanCompletion()
				Expect(mgr.Submit(info.Name, NewJob(i, completion))).To(Succeed())
				Expect(completion.Wait().Err).NotTo(HaveOccurred())
			}

			rt.mu.Lock()
			calls := rt.calls
			rt.mu.Unlock()
			Expect(calls).To(Equal(5), "five jobs submitted one after another must run as five single-job batches")
		})
	})
})
