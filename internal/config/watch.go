package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last write before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the Holder whenever its YAML file is written or recreated
// and hands the new Config to onChange. Invalid files are logged and the
// previous Config is kept. The containing directory is watched so that
// editors replacing the file atomically are noticed. Watch blocks until ctx
// is cancelled.
func (h *Holder) Watch(ctx context.Context, debounce time.Duration, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(h.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", h.path, err)
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	// The debounce timer fires into the loop below, so onChange only ever
	// runs on the calling goroutine and never after Watch returns.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	reload := func() {
		if err := h.Reload(); err != nil {
			slog.Warn("config reload failed", "path", abs, "error", err)
			return
		}
		slog.Info("config reloaded", "path", abs)
		if onChange != nil {
			onChange(h.Get())
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			fire = nil
			reload()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watch error", "error", err)
		}
	}
}
