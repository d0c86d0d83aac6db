package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the manifest watcher.
type WatcherConfig struct {
	// ManifestPath is the YAML manifest to watch.
	ManifestPath string

	// DebounceDelay is how long to wait for more changes before reloading.
	DebounceDelay time.Duration

	// OnReload runs after a manifest resolves successfully, before it is
	// published as the active resolution. An error keeps the previous one.
	OnReload func(ctx context.Context, m *Manifest) error

	// Logger for logging events
	Logger *slog.Logger
}

// ReloadEvent reports the outcome of one reload.
type ReloadEvent struct {
	Resolution *Resolution
	Error      error
}

// Watcher reloads a registry when its manifest or schema files change.
type Watcher struct {
	config   WatcherConfig
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before reloading
	pendingMu sync.Mutex
	pending   bool

	events chan ReloadEvent
}

// NewWatcher creates a watcher for registry.
func NewWatcher(registry *Registry, config WatcherConfig) (*Watcher, error) {
	if config.ManifestPath == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 100 * time.Millisecond
	}

	return &Watcher{
		config:   config,
		registry: registry,
		watcher:  fsw,
		logger:   logger,
		events:   make(chan ReloadEvent, 16),
	}, nil
}

// Events returns the channel of reload events.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start watches the manifest directory and the directories of the files it
// lists.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.watchDirs() {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("Watching directory", "path", dir)
	}

	go w.processEvents(ctx)

	w.logger.Info("Schema watcher started",
		"manifest", w.config.ManifestPath,
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops the watcher. Events is closed once processing has exited.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) watchDirs() []string {
	manifestDir, _ := filepath.Abs(filepath.Dir(w.config.ManifestPath))
	dirs := []string{manifestDir}
	seen := map[string]bool{manifestDir: true}

	m := w.registry.Manifest()
	for _, patterns := range m.Files {
		files, err := ResolveFiles(m.BaseDir, patterns)
		if err != nil {
			continue
		}
		for _, f := range files {
			dir := filepath.Dir(f)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// processEvents handles fsnotify events with debouncing
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.relevant(event.Name) {
		return
	}
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Schema change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) relevant(path string) bool {
	manifest, _ := filepath.Abs(w.config.ManifestPath)
	abs, _ := filepath.Abs(path)
	if abs == manifest {
		return true
	}
	switch filepath.Ext(path) {
	case ".nt", ".nq":
		return true
	}
	return false
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if !w.pending {
		w.pendingMu.Unlock()
		return
	}
	w.pending = false
	w.pendingMu.Unlock()

	w.sendEvent(w.reload(ctx))
}

func (w *Watcher) reload(ctx context.Context) ReloadEvent {
	m, err := LoadManifest(w.config.ManifestPath)
	if err != nil {
		return ReloadEvent{Error: err}
	}
	// validate before side effects
	if _, err := Resolve(m, w.logger); err != nil {
		return ReloadEvent{Error: err}
	}
	if w.config.OnReload != nil {
		if err := w.config.OnReload(ctx, m); err != nil {
			return ReloadEvent{Error: fmt.Errorf("reload hook: %w", err)}
		}
	}
	res, err := w.registry.Load(m)
	return ReloadEvent{Resolution: res, Error: err}
}

func (w *Watcher) sendEvent(event ReloadEvent) {
	if event.Error != nil {
		w.logger.Warn("Schema reload failed", "error", event.Error)
	}
	select {
	case w.events <- event:
	default:
		w.logger.Warn("Event channel full, dropping reload event")
	}
}
