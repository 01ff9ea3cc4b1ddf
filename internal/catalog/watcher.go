package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	debounceWindow = 300 * time.Millisecond
	debounceTick   = 100 * time.Millisecond
)

// Watcher reloads the holder's catalog when definition files under a
// path change. Reloads are debounced so editors that write in several
// steps trigger one reload. A failed reload keeps the running catalog.
type Watcher struct {
	holder *Holder
	path   string
	// file is set when path is a single file; events for siblings in
	// the watched parent directory are ignored.
	file   string
	logger *zap.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	// onReload, when set, observes the outcome of every reload attempt.
	onReload func(*Catalog, error)
}

// NewWatcher creates a watcher over a definitions file or directory.
func NewWatcher(holder *Holder, path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	watchTarget := path
	file := ""
	if !info.IsDir() {
		// Watch the parent so rename-based saves are observed.
		watchTarget = filepath.Dir(path)
		file = filepath.Clean(path)
	}
	if err := fsw.Add(watchTarget); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", watchTarget, err)
	}

	return &Watcher{
		holder: holder,
		path:   path,
		file:   file,
		logger: logger,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start launches the watch loop. It returns immediately; Stop or ctx
// cancellation ends the loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(debounceTick)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isDefinitionName(ev.Name) {
				continue
			}
			if w.file != "" && filepath.Clean(ev.Name) != w.file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = time.Now()
			w.logger.Debug("definitions changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounceWindow {
				continue
			}
			pending = time.Time{}
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	defs, err := LoadPath(w.path)
	if err == nil {
		var cat *Catalog
		cat, err = w.holder.Reload(defs)
		if err == nil {
			w.logger.Info("catalog reloaded",
				zap.String("version", cat.Version()),
				zap.Int("markers", cat.Size()))
		}
	}
	if err != nil {
		w.logger.Warn("catalog reload failed; keeping active catalog", zap.Error(err))
	}
	if w.onReload != nil {
		w.onReload(w.holder.Current(), err)
	}
}
