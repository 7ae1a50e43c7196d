package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hansjm10/go-llm-reporter/pkg/logging"
)

// DefaultDebounceInterval mirrors the teacher's CertWatcher debounce: rapid
// successive writes to the same file (e.g. an editor's atomic-save
// rewrite-then-rename) collapse into a single reload.
const DefaultDebounceInterval = 500 * time.Millisecond

// WatcherConfig controls a Watcher's target file and reload behavior.
type WatcherConfig struct {
	Path string

	// OnReload is called with the freshly loaded and validated Config
	// whenever Path changes. A reload that fails Validate is logged and
	// discarded — the previous Config keeps serving (spec.md §9.2:
	// reloading never interrupts an in-flight run).
	OnReload func(*Config)
}

// Watcher hot-reloads truncation.maxTokens and deduplicateLogs.* from Path
// without restarting a run (SPEC_FULL.md §9.2's enrichment over the
// distilled spec, grounded on the teacher's internal/teleport.CertWatcher).
type Watcher struct {
	mu sync.Mutex

	cfg WatcherConfig

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher constructs a Watcher. Call Start to begin watching.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{cfg: cfg}
}

// Start begins watching cfg.Path for changes. If fsnotify cannot watch
// cfg.Path (e.g. it doesn't exist yet), Start returns the error rather
// than falling back to polling — unlike the teacher's CertWatcher, a
// missing config file at startup is a real configuration problem the
// caller should see, not transient infrastructure flakiness.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.cfg.Path); err != nil {
		watcher.Close()
		return err
	}

	w.fsWatcher = watcher
	w.stopCh = make(chan struct{})
	w.running = true

	eventsCh := w.fsWatcher.Events
	errorsCh := w.fsWatcher.Errors
	go w.processEvents(eventsCh, errorsCh)

	logging.Info("config", "watching %s for configuration changes", w.cfg.Path)
	return nil
}

// Stop ends watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	w.running = false
}

func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.triggerReloadDebounced()
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("config", err, "fsnotify error watching %s", w.cfg.Path)
		}
	}
}

func (w *Watcher) triggerReloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.cfg.Path)
	if err != nil {
		logging.Warn("config", "reload of %s failed, keeping previous config: %v", w.cfg.Path, err)
		return
	}
	logging.Info("config", "reloaded configuration from %s", w.cfg.Path)
	if w.cfg.OnReload != nil {
		w.cfg.OnReload(cfg)
	}
}
