package profile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"rawaccel/internal/accel"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reloads a profile whenever its file changes.
type Watcher struct {
	path     string
	reg      *accel.Registry
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches path. The parent directory is watched rather than the
// file so editors that save by rename are still seen.
func NewWatcher(path string, reg *accel.Registry, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve profile path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		reg:      reg,
		logger:   logger,
		debounce: debounce,
		watcher:  fw,
	}, nil
}

// Run calls fn with each reloaded profile, or with the load error, until ctx
// is canceled. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, fn func(*Profile, error)) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Profile changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Profile watcher error", "error", err)

		case <-timerC:
			timerC = nil
			p, err := Load(w.path, w.reg)
			if err != nil {
				w.logger.Warn("Profile reload failed", "path", w.path, "error", err)
			} else {
				w.logger.Info("Profile reloaded", "path", w.path)
			}
			fn(p, err)
		}
	}
}
