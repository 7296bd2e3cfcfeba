package plughost

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ManifestWatcher watches a plugin manifest directory and drives lifecycle
// transitions through a LifecycleManager as manifests appear, change, or
// disappear: a new manifest installs the plugin, a changed version updates
// it, and a deleted manifest removes it.
//
// Filesystem events are debounced per path because editors and package
// tools commonly produce several writes for one logical change.
type ManifestWatcher struct {
	manager  *LifecycleManager
	dir      string
	logger   Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	started bool
	timers  map[string]*time.Timer
	// names remembers which plugin each manifest path declared, so a
	// deleted file can still be mapped to its plugin.
	names map[string]string
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewManifestWatcher creates a watcher for dir driving manager.
func NewManifestWatcher(manager *LifecycleManager, dir string, logger Logger) *ManifestWatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ManifestWatcher{
		manager:  manager,
		dir:      dir,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		names:    make(map[string]string),
	}
}

// SetDebounce overrides the per-path debounce interval. Must be called
// before Start.
func (w *ManifestWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start applies every manifest already present in the directory, then
// begins watching for changes. The context bounds the initial sweep only;
// watching continues until Stop.
func (w *ManifestWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrWatcherAlreadyStarted
	}

	manifests, err := LoadManifestDir(w.dir)
	if err != nil {
		return err
	}
	for _, manifest := range manifests {
		w.names[manifest.Path()] = manifest.Name
		if err := w.apply(ctx, manifest); err != nil {
			w.logger.Error("Failed to apply manifest", "path", manifest.Path(), "error", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.started = true

	w.wg.Add(1)
	go w.watch()

	w.logger.Info("Manifest watcher started", "dir", w.dir, "plugins", len(manifests))
	return nil
}

// Stop stops watching. Pending debounced events are discarded.
func (w *ManifestWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return ErrWatcherNotStarted
	}
	w.started = false
	close(w.done)
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	err := w.watcher.Close()
	w.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (w *ManifestWatcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isManifestFile(event.Name) {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				w.scheduleApply(event.Name)
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.handleRemoved(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Manifest watcher error", "dir", w.dir, "error", err)
		}
	}
}

// scheduleApply (re)arms the debounce timer for one manifest path.
func (w *ManifestWatcher) scheduleApply(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	if timer, exists := w.timers[path]; exists {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.applyPath(path)
	})
}

func (w *ManifestWatcher) applyPath(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	manifest, err := LoadManifest(path)
	if err != nil {
		w.logger.Error("Ignoring unreadable manifest", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	w.names[path] = manifest.Name
	w.mu.Unlock()

	if err := w.apply(context.Background(), manifest); err != nil {
		w.logger.Error("Failed to apply manifest", "path", path, "error", err)
	}
}

// apply installs or updates the plugin a manifest describes. An unchanged
// version is a no-op, not an error.
func (w *ManifestWatcher) apply(ctx context.Context, manifest *Manifest) error {
	_, installed, err := w.manager.Installed(ctx, manifest.Name)
	if err != nil {
		return err
	}

	if !installed {
		_, err = w.manager.Install(ctx, manifest.Name, manifest.Version)
		return err
	}

	_, err = w.manager.Update(ctx, manifest.Name, manifest.Version)
	if errors.Is(err, ErrVersionUnchanged) {
		return nil
	}
	return err
}

func (w *ManifestWatcher) handleRemoved(path string) {
	w.mu.Lock()
	if timer, exists := w.timers[path]; exists {
		timer.Stop()
		delete(w.timers, path)
	}
	name, known := w.names[path]
	delete(w.names, path)
	w.mu.Unlock()

	if !known {
		w.logger.Debug("Ignoring removal of untracked manifest", "path", path)
		return
	}

	if _, err := w.manager.Remove(context.Background(), name); err != nil && !errors.Is(err, ErrNotInstalled) {
		w.logger.Error("Failed to remove plugin for deleted manifest", "path", path, "plugin", name, "error", err)
	}
}
