// Command wlmd hosts a WorkloadManager as a standalone process: it loads
// model configuration from disk, watches that configuration for changes,
// exposes a minimal HTTP front end for submitting jobs, and serves
// Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/llm-d-incubation/inference-wlm/internal/config"
	"github.com/llm-d-incubation/inference-wlm/internal/logger"
	"github.com/llm-d-incubation/inference-wlm/internal/metrics"
	"github.com/llm-d-incubation/inference-wlm/internal/runtime"
	"github.com/llm-d-incubation/inference-wlm/internal/wlm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/mat"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the model configuration file")
	addr := flag.String("addr", ":8080", "address to serve the HTTP front end and /metrics on")
	flag.Parse()

	log, err := logger.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.SyncLogger()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	f, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load initial configuration", "path", *configPath, "error", err)
	}

	mgr := wlm.NewWorkloadManager(f.GPUCount, f.TotalMaxWorkers(), log, recorder)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stop := make(chan struct{})
	go func() {
		newRuntime := func(modelName string) wlm.ModelRuntime { return runtime.NewMatMul(4) }
		if err := config.Watch(*configPath, mgr, newRuntime, log, stop); err != nil {
			log.Errorw("config watcher exited", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", predictHandler(mgr, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Infow("wlmd listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server exited", "error", err)
		}
	}()

	<-ctx.Done()
	log.Infow("shutdown signal received")

	close(stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http server shutdown error", "error", err)
	}

	mgr.Shutdown()
	log.Infow("wlmd stopped")
}

type predictRequest struct {
	Model string `json:"model"`
	Input []float64 `json:"input"`
}

// predictHandler is a minimal illustrative front end: it builds a Job
// from the request body, submits it to the manager, and blocks for the
// result. A production front end would decode into the runtime's real
// input type and likely stream rather than block.
func predictHandler(mgr *wlm.WorkloadManager, log interface{ Errorw(string, ...any) }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		completion := wlm.NewChanCompletion()
		job := wlm.NewJob(mat.NewVecDense(len(req.Input), req.Input), completion)

		if err := mgr.Submit(req.Model, job); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		outcome := completion.Wait()
		if outcome.Err != nil {
			http.Error(w, outcome.Err.Error(), http.StatusInternalServerError)
			return
		}

		var values []float64
		if vec, ok := outcome.Result.(*mat.VecDense); ok {
			values = vec.RawVector().Data
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(struct {
			Output []float64 `json:"output"`
		}{Output: values}); err != nil {
			log.Errorw("failed to encode response", "error", err)
		}
	}
}
