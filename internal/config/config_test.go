package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelEntry_ToModelInfoAppliesDefaults(t *testing.T) {
	entry := ModelEntry{Name: "A", MinWorkers: 1, MaxWorkers: 2}

	info, err := entry.ToModelInfo()
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, info.BatchSize)
	assert.Equal(t, defaultQueueSize, info.QueueSize)
	assert.Equal(t, defaultMaxBatchDelay, info.MaxBatchDelay)
}

func TestModelEntry_ToModelInfoParsesDuration(t *testing.T) {
	entry := ModelEntry{Name: "A", MaxBatchDelay: "75ms", BatchSize: 4, QueueSize: 16}

	info, err := entry.ToModelInfo()
	require.NoError(t, err)
	assert.Equal(t, 75*time.Millisecond, info.MaxBatchDelay)
}

func TestModelEntry_ToModelInfoRejectsBadDuration(t *testing.T) {
	entry := ModelEntry{Name: "A", MaxBatchDelay: "not-a-duration"}
	_, err := entry.ToModelInfo()
	assert.Error(t, err)
}

func TestLoad_ParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
gpuCount: 2
models:
  - name: A
    minWorkers: 1
    maxWorkers: 4
    batchSize: 8
    maxBatchDelay: 50ms
    queueSize: 32
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.GPUCount)
	require.Len(t, f.Models, 1)
	assert.Equal(t, "A", f.Models[0].Name)
	assert.Equal(t, int64(4), f.TotalMaxWorkers())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
