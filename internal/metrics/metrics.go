package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements wlm.MetricsRecorder against a Prometheus registry.
// The core package only depends on the interface; this is the concrete
// adapter the process wiring constructs and hands it.
type Recorder struct {
	jobsSubmitted   *prometheus.CounterVec
	jobsRejected    *prometheus.CounterVec
	batchesTotal    *prometheus.CounterVec
	batchSize       *prometheus.HistogramVec
	batchLatency    *prometheus.HistogramVec
	batchFailures   *prometheus.CounterVec
	scaleEventsTotal *prometheus.CounterVec
	runningWorkers  *prometheus.GaugeVec
	permanentWorkers *prometheus.GaugeVec
	transientWorkers *prometheus.GaugeVec
	queueDepth      *prometheus.GaugeVec
}

// NewRecorder builds and registers every WLM metric against registry.
func NewRecorder(registry prometheus.Registerer) *Recorder {
	r := &Recorder{
		jobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlm_jobs_submitted_total",
				Help: "Total number of jobs successfully admitted onto a model's queue.",
			},
			[]string{"model"},
		),
		jobsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlm_jobs_rejected_total",
				Help: "Total number of jobs rejected at admission, by reason.",
			},
			[]string{"model", "reason"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlm_batches_completed_total",
				Help: "Total number of batches a worker successfully ran to completion.",
			},
			[]string{"model"},
		),
		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wlm_batch_size",
				Help:    "Distribution of the number of jobs in each completed batch.",
				Buckets: prometheus.LinearBuckets(1, 4, 8),
			},
			[]string{"model"},
		),
		batchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wlm_batch_latency_seconds",
				Help:    "Distribution of time spent inside ModelRuntime.Predict per batch.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		batchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlm_batch_failures_total",
				Help: "Total number of batches that failed, by fatality.",
			},
			[]string{"model", "fatal"},
		),
		scaleEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wlm_scale_events_total",
				Help: "Total number of pool scaling events, by direction.",
			},
			[]string{"model", "direction"},
		),
		runningWorkers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wlm_running_workers",
				Help: "Current number of non-terminal workers for a model.",
			},
			[]string{"model"},
		),
		permanentWorkers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wlm_permanent_workers",
				Help: "Current number of non-terminal permanent workers for a model.",
			},
			[]string{"model"},
		),
		transientWorkers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wlm_transient_workers",
				Help: "Current number of non-terminal transient workers for a model.",
			},
			[]string{"model"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wlm_queue_depth",
				Help: "Current number of jobs waiting in a model's queue.",
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(
		r.jobsSubmitted,
		r.jobsRejected,
		r.batchesTotal,
		r.batchSize,
		r.batchLatency,
		r.batchFailures,
		r.scaleEventsTotal,
		r.runningWorkers,
		r.permanentWorkers,
		r.transientWorkers,
		r.queueDepth,
	)
	return r
}

func (r *Recorder) JobSubmitted(model string) {
	r.jobsSubmitted.WithLabelValues(model).Inc()
}

func (r *Recorder) JobRejected(model, reason string) {
	r.jobsRejected.WithLabelValues(model, reason).Inc()
}

func (r *Recorder) BatchCompleted(model string, size int, latency time.Duration) {
	r.batchesTotal.WithLabelValues(model).Inc()
	r.batchSize.WithLabelValues(model).Observe(float64(size))
	r.batchLatency.WithLabelValues(model).Observe(latency.Seconds())
}

func (r *Recorder) BatchFailed(model string, fatal bool) {
	r.batchFailures.WithLabelValues(model, boolLabel(fatal)).Inc()
}

func (r *Recorder) ScaleEvent(model, direction string) {
	r.scaleEventsTotal.WithLabelValues(model, direction).Inc()
}

func (r *Recorder) SetPoolGauges(model string, running, permanent, transient, queueDepth int) {
	r.runningWorkers.WithLabelValues(model).Set(float64(running))
	r.permanentWorkers.WithLabelValues(model).Set(float64(permanent))
	r.transientWorkers.WithLabelValues(model).Set(float64(transient))
	r.queueDepth.WithLabelValues(model).Set(float64(queueDepth))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
