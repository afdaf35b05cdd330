package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live holds the current catalog. Readers never block; a reload swaps the
// whole catalog.
type Live struct {
	p atomic.Pointer[Catalog]
}

func NewLive(c *Catalog) *Live {
	l := &Live{}
	l.p.Store(c)
	return l
}

func (l *Live) Load() *Catalog { return l.p.Load() }

func (l *Live) Store(c *Catalog) { l.p.Store(c) }

// WatchOptions configures Watch.
type WatchOptions struct {
	Logger   *slog.Logger
	Debounce time.Duration
	// OnReload runs after every reload attempt with its outcome.
	OnReload func(err error)
}

// Watch reloads path into l whenever the file changes, until ctx is done.
// A file that fails to load leaves the previous catalog in place.
func Watch(ctx context.Context, path string, l *Live, opts WatchOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve scenario path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("watching scenario", "path", abs)

	reload := func() {
		c, err := FromFile(abs)
		if err != nil {
			logger.Warn("scenario reload failed", "path", abs, "error", err)
		} else {
			l.Store(c)
			logger.Info("scenario reloaded", "path", abs, "documents", len(c.docs))
		}
		if opts.OnReload != nil {
			opts.OnReload(err)
		}
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("scenario event", "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify error", "error", err)
		case <-timer.C:
			reload()
		}
	}
}
