package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/llm-d-incubation/inference-wlm/internal/wlm"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load reads and parses a File from path. It does not validate the
// contained ModelInfo entries; callers should run each through
// ToModelInfo and ModelInfo.Validate before acting on it.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return f, nil
}

// Reconciler is the subset of wlm.WorkloadManager that Watch drives.
type Reconciler interface {
	RegisterRuntime(info wlm.ModelInfo, rt wlm.ModelRuntime) error
	ModelChanged(info wlm.ModelInfo, removeIfEmpty bool) error
}

// RuntimeFactory builds the ModelRuntime a newly-discovered model should
// run against. The config package has no opinion on what a runtime is;
// it only needs one per model name to hand to RegisterRuntime.
type RuntimeFactory func(modelName string) wlm.ModelRuntime

// Watch loads path once synchronously, registering every model it finds
// against mgr, then watches path's directory and re-reconciles on each
// write to or creation of path itself. It runs until stop is closed or
// the watcher's channels close; callers typically launch it in its own
// goroutine.
func Watch(path string, mgr Reconciler, newRuntime RuntimeFactory, log *zap.SugaredLogger, stop <-chan struct{}) error {
	known := make(map[string]bool)

	reconcile := func() {
		f, err := Load(path)
		if err != nil {
			log.Errorw("config reload failed, keeping previous configuration", "path", path, "error", err)
			return
		}
		seen := make(map[string]bool, len(f.Models))
		for _, entry := range f.Models {
			info, err := entry.ToModelInfo()
			if err != nil {
				log.Errorw("skipping invalid model entry", "model", entry.Name, "error", err)
				continue
			}
			if err := info.Validate(); err != nil {
				log.Errorw("skipping invalid model entry", "model", entry.Name, "error", err)
				continue
			}
			seen[info.Name] = true

			var regErr error
			if known[info.Name] {
				regErr = mgr.ModelChanged(info, false)
			} else {
				regErr = mgr.RegisterRuntime(info, newRuntime(info.Name))
			}
			if regErr != nil {
				log.Errorw("reconciling model failed", "model", info.Name, "error", regErr)
				continue
			}
			known[info.Name] = true
		}

		for name := range known {
			if !seen[name] {
				if err := mgr.ModelChanged(wlm.ModelInfo{Name: name, MinWorkers: 0, MaxWorkers: 0, BatchSize: 1, QueueSize: 1}, true); err != nil {
					log.Errorw("removing dropped model failed", "model", name, "error", err)
					continue
				}
				delete(known, name)
			}
		}
	}

	reconcile()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorw("config watcher error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Infow("config file changed, reconciling", "path", path, "op", ev.Op.String())
			reconcile()
		}
	}
}
