package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"constraint-engine/internal/config"
)

// Watcher reloads the store when the rules file changes on disk. Events are
// debounced so editors that write in bursts trigger a single reload.
type Watcher struct {
	cfg      *config.StoreConfig
	store    *ConstraintStore
	logger   *zap.Logger
	onReload func(err error)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the store's rules file. onReload, if not
// nil, is called after every reload attempt with its result.
func NewWatcher(cfg *config.StoreConfig, store *ConstraintStore, onReload func(err error), logger *zap.Logger) *Watcher {
	return &Watcher{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		onReload: onReload,
	}
}

// Start begins watching the rules directory. It is a no-op when watching is
// disabled in the configuration.
func (w *Watcher) Start() error {
	if !w.cfg.WatchEnabled {
		w.logger.Debug("Rules file watching disabled")
		return nil
	}

	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}

	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run()

	w.logger.Info("Watching rules file",
		zap.String("path", w.store.Path()),
		zap.Duration("debounce", w.cfg.WatchDebounce))
	return nil
}

// Stop halts the watcher and waits for the event loop to exit. Safe to call
// when Start never ran.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Rules watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}

// relevant filters directory noise down to writes of the rules file itself.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(w.store.Path()) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.WatchDebounce, w.fire)
}

func (w *Watcher) fire() {
	err := w.store.Reload()
	if err != nil {
		w.logger.Warn("Rules reload failed, keeping current rules", zap.Error(err))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
