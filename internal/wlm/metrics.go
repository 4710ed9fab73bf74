package wlm

import "time"

// MetricsRecorder is the narrow seam the core pushes observability
// events through. internal/metrics implements it against Prometheus;
// tests can pass nil (every call site nil-checks) or a fake.
type MetricsRecorder interface {
	JobSubmitted(model string)
	JobRejected(model, reason string)
	BatchCompleted(model string, size int, latency time.Duration)
	BatchFailed(model string, fatal bool)
	ScaleEvent(model, direction string)
	SetPoolGauges(model string, running, permanent, transient, queueDepth int)
}
