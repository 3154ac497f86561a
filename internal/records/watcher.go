package records

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven reload.
// kind is "reloaded"; path is the seed file.
type EventCallback func(kind string, path string)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads r whenever its seed file is written, created, renamed or
// removed, until ctx is cancelled. The parent directory is watched so
// editors that replace the file by rename are still picked up. Bursts of
// events are debounced into a single reload; cb (if non-nil) runs only
// when the records actually changed.
func Watch(ctx context.Context, r *Repository, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	seed := filepath.Clean(r.Path())
	if err := w.Add(filepath.Dir(seed)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("seed", seed))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			changed, err := r.Reload()
			if err != nil {
				logger.Warn("watcher: reload failed",
					slog.String("path", seed),
					slog.String("error", err.Error()))
				continue
			}
			if changed {
				logger.Debug("watcher: reloaded", slog.String("path", seed))
				if cb != nil {
					cb("reloaded", seed)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != seed {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
