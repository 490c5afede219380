// Package watch re-runs batch jobs when new exports land in a directory or on
// a cron schedule.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// Handler processes one export file.
type Handler func(ctx context.Context, path string)

// Watcher invokes a handler for CSV files created or rewritten in a
// directory. Bursts of events for the same file are collapsed into one call
// after the debounce interval. At most one call runs per path; a change that
// arrives while it runs queues exactly one more call.
type Watcher struct {
	dir      string
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]clockwork.Timer
	running map[string]bool
	rerun   map[string]bool
	stopped bool
	wg      sync.WaitGroup
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		watcher:  fw,
		pending:  make(map[string]clockwork.Timer),
		running:  make(map[string]bool),
		rerun:    make(map[string]bool),
	}, nil
}

// Run dispatches events until the context ends or the watcher fails. Pending
// debounced calls are cancelled and calls in flight are waited for before it
// returns.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer func() {
		w.stopPending()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.schedule(ctx, event.Name, handle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) schedule(ctx context.Context, path string, handle Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = w.clock.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.stopped || ctx.Err() != nil {
			w.mu.Unlock()
			return
		}
		if w.running[path] {
			w.rerun[path] = true
			w.mu.Unlock()
			w.logger.Info("export changed during run, queued", "path", path)
			return
		}
		w.running[path] = true
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.runLoop(ctx, path, handle)
	})
}

// runLoop calls handle for path, once more per change queued meanwhile.
func (w *Watcher) runLoop(ctx context.Context, path string, handle Handler) {
	for {
		w.logger.Info("export changed", "path", path)
		handle(ctx, path)

		w.mu.Lock()
		again := w.rerun[path] && !w.stopped && ctx.Err() == nil
		delete(w.rerun, path)
		if !again {
			delete(w.running, path)
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".csv")
}
