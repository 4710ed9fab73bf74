package wlm

import (
	"fmt"
	"time"
)

// ModelInfo is the read-only descriptor the host supplies for a served
// model. The core never mutates it; internal/config is responsible for
// producing one from whatever on-disk format the host uses.
type ModelInfo struct {
	Name          string        `yaml:"name"`
	MinWorkers    int           `yaml:"minWorkers"`
	MaxWorkers    int           `yaml:"maxWorkers"`
	BatchSize     int           `yaml:"batchSize"`
	MaxBatchDelay time.Duration `yaml:"maxBatchDelay"`
	QueueSize     int           `yaml:"queueSize"`
}

// Validate enforces the invariants a ModelInfo must satisfy before it can
// be handed to a WorkloadManager: 0 <= minWorkers <= maxWorkers,
// batchSize >= 1, queueSize >= 1.
func (m ModelInfo) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("wlm: model name must not be empty")
	}
	if m.MinWorkers < 0 {
		return fmt.Errorf("wlm: model %s: minWorkers must be >= 0, got %d", m.Name, m.MinWorkers)
	}
	if m.MinWorkers > m.MaxWorkers {
		return fmt.Errorf("wlm: model %s: minWorkers (%d) must be <= maxWorkers (%d)", m.Name, m.MinWorkers, m.MaxWorkers)
	}
	if m.BatchSize < 1 {
		return fmt.Errorf("wlm: model %s: batchSize must be >= 1, got %d", m.Name, m.BatchSize)
	}
	if m.QueueSize < 1 {
		return fmt.Errorf("wlm: model %s: queueSize must be >= 1, got %d", m.Name, m.QueueSize)
	}
	return nil
}
