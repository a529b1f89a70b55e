package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gotidy/internal/logging"
	"gotidy/pkg/models"
)

// DefaultDebounce is how long a path must stay quiet before its event is sent.
const DefaultDebounce = 500 * time.Millisecond

// Options controls what is watched and how events are settled.
type Options struct {
	Recursive bool
	SkipDir   func(path, name string) bool
	Debounce  time.Duration
	Rescan    time.Duration // 0 disables
}

/*
Watcher:
 1. watches the root, and every directory below it when Recursive is set,
    except those SkipDir rejects; directories created later are added too
 2. debounces per path: a burst of writes to one file yields one event,
    sent once the file has been quiet for Debounce
 3. optionally re-lists every watched directory each Rescan interval and
    reports each file as SCAN, for changes the kernel queue dropped

Event types: CREATE, MODIFY, SCAN. Removals and renames away are ignored.
*/
type Watcher struct {
	fsNotifyWatcher *fsnotify.Watcher
	opts            Options
	log             *slog.Logger
	watchedDirs     map[string]bool
	changeChan      chan models.FileEvent
	errorChan       chan error
	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.RWMutex
	debouncer       map[string]*time.Timer
	debounceMu      sync.Mutex
}

func NewWatcher(opts Options, log *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		fsNotifyWatcher: fsWatcher,
		opts:            opts,
		log:             logging.OrDiscard(log),
		watchedDirs:     make(map[string]bool),
		changeChan:      make(chan models.FileEvent),
		errorChan:       make(chan error, 10),
		ctx:             ctx,
		cancel:          cancel,
		debouncer:       make(map[string]*time.Timer),
	}, nil
}

// AddWatch watches root and, when recursive, its subdirectories.
func (w *Watcher) AddWatch(root string) error {
	root = filepath.Clean(root)
	return filepath.Walk(root, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			if walkPath == root {
				return err
			}
			w.log.Warn("cannot watch entry, skipping", "path", walkPath, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if walkPath != root {
			if !w.opts.Recursive {
				return filepath.SkipDir
			}
			if w.skip(walkPath) {
				return filepath.SkipDir
			}
		}
		return w.addDir(walkPath)
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchedDirs[dir] {
		return nil
	}
	if err := w.fsNotifyWatcher.Add(dir); err != nil {
		return err
	}
	w.watchedDirs[dir] = true
	w.log.Debug("watching directory", "path", dir)
	return nil
}

func (w *Watcher) forgetDir(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchedDirs[dir] {
		delete(w.watchedDirs, dir)
		_ = w.fsNotifyWatcher.Remove(dir)
	}
}

func (w *Watcher) skip(dir string) bool {
	return w.opts.SkipDir != nil && w.opts.SkipDir(dir, filepath.Base(dir))
}

// WatchedDirs returns the number of directories being watched.
func (w *Watcher) WatchedDirs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.watchedDirs)
}

func (w *Watcher) Start() {
	go w.handleEvents()
	if w.opts.Rescan > 0 {
		go w.periodicFullScan()
	}
}

func (w *Watcher) handleEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsNotifyWatcher.Events:
			if !ok {
				return
			}
			w.processEvent(event)
		case err, ok := <-w.fsNotifyWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errorChan <- err:
			default:
				w.log.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	var operation string
	switch {
	case event.Op.Has(fsnotify.Create):
		operation = "CREATE"
	case event.Op.Has(fsnotify.Write):
		operation = "MODIFY"
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.forgetDir(event.Name)
		return
	default:
		return
	}

	info, err := os.Lstat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if operation == "CREATE" && w.opts.Recursive && !w.skip(event.Name) {
			w.watchNewDir(event.Name)
		}
		return
	}

	w.debouncedSend(event.Name, operation)
}

// watchNewDir adds a directory created after start, then reports the files
// already inside it, since they may have landed before the watch did.
func (w *Watcher) watchNewDir(dir string) {
	if err := w.AddWatch(dir); err != nil {
		w.log.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && path != dir && w.skip(path) {
			return filepath.SkipDir
		}
		if info.Mode().IsRegular() {
			w.debouncedSend(path, "CREATE")
		}
		return nil
	})
}

func (w *Watcher) periodicFullScan() {
	ticker := time.NewTicker(w.opts.Rescan)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.performFullScan()
		}
	}
}

func (w *Watcher) performFullScan() {
	w.mu.RLock()
	dirs := make([]string, 0, len(w.watchedDirs))
	for dir := range w.watchedDirs {
		dirs = append(dirs, dir)
	}
	w.mu.RUnlock()

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			w.log.Warn("rescan failed", "path", dir, "error", err)
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if !w.send(models.FileEvent{
				Path:      filepath.Join(dir, entry.Name()),
				Operation: "SCAN",
				Timestamp: time.Now(),
			}) {
				return
			}
		}
	}
}

func (w *Watcher) send(ev models.FileEvent) bool {
	select {
	case w.changeChan <- ev:
		return true
	case <-w.ctx.Done():
		return false
	}
}
