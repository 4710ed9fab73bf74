package config

import (
	"fmt"
	"time"

	"github.com/llm-d-incubation/inference-wlm/internal/wlm"
)

// File is the on-disk shape of the workload manager's configuration: one
// process-wide device count plus one ModelInfo per served model.
type File struct {
	GPUCount int          `yaml:"gpuCount"` // number of accelerators available for placement, 0 disables device assignment
	Models   []ModelEntry `yaml:"models"`   // one entry per served model
}

// ModelEntry mirrors wlm.ModelInfo field-for-field but with YAML-friendly
// duration strings ("50ms") instead of time.Duration, and with defaults
// applied in ToModelInfo rather than at unmarshal time.
type ModelEntry struct {
	Name          string `yaml:"name"`
	MinWorkers    int    `yaml:"minWorkers"`
	MaxWorkers    int    `yaml:"maxWorkers"`
	BatchSize     int    `yaml:"batchSize"`
	MaxBatchDelay string `yaml:"maxBatchDelay"`
	QueueSize     int    `yaml:"queueSize"`
}

// ToModelInfo converts an on-disk entry into the type the core consumes,
// parsing the duration string and applying the package defaults for any
// field left at its zero value.
func (e ModelEntry) ToModelInfo() (wlm.ModelInfo, error) {
	delay := defaultMaxBatchDelay
	if e.MaxBatchDelay != "" {
		d, err := time.ParseDuration(e.MaxBatchDelay)
		if err != nil {
			return wlm.ModelInfo{}, fmt.Errorf("config: model %s: invalid maxBatchDelay %q: %w", e.Name, e.MaxBatchDelay, err)
		}
		delay = d
	}

	batchSize := e.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}
	queueSize := e.QueueSize
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}

	return wlm.ModelInfo{
		Name:          e.Name,
		MinWorkers:    e.MinWorkers,
		MaxWorkers:    e.MaxWorkers,
		BatchSize:     batchSize,
		MaxBatchDelay: delay,
		QueueSize:     queueSize,
	}, nil
}

const (
	defaultBatchSize     = 8
	defaultQueueSize     = 64
	defaultMaxBatchDelay = 100 * time.Millisecond
)

// TotalMaxWorkers sums MaxWorkers across every model, the figure a
// WorkloadManager needs to size its shared executor.
func (f File) TotalMaxWorkers() int64 {
	var total int64
	for _, m := range f.Models {
		total += int64(m.MaxWorkers)
	}
	return total
}
