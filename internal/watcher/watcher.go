// Package watcher monitors the local root for changes and reports them via callbacks.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/config"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return "unknown"
}

// Event represents a file system change event. Dir is the root-relative,
// slash separated directory whose listing changed; "" is the root.
type Event struct {
	Type EventType
	Path string
	Dir  string
}

// Callback is a function called when file changes occur
type Callback func(Event)

// Watcher monitors every directory under the configured root
type Watcher struct {
	watcher   *fsnotify.Watcher
	cfg       *config.Config
	root      string
	logger    *zap.Logger
	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}
}

// New creates a new file system watcher
func New(cfg *config.Config, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: w,
		cfg:     cfg,
		root:    cfg.Root.Path,
		logger:  logger.Named("watcher"),
		done:    make(chan struct{}),
	}, nil
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start adds a watch for every non-excluded directory under the root and
// begins dispatching events.
func (w *Watcher) Start() error {
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot walk", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.cfg.IsExcluded(w.rel(path)) {
			return fastwalk.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("cannot watch", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

// rel converts an absolute path under the root to a slash separated
// relative one.
func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel := w.rel(event.Name)
	if rel == "" || w.cfg.IsExcluded(rel) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
		// If a new directory is created, watch it
		if isDir(event.Name) {
			_ = w.watcher.Add(event.Name)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		dir = ""
	}
	e := Event{
		Type: eventType,
		Path: event.Name,
		Dir:  dir,
	}
	w.logger.Debug("change", zap.String("type", eventType.String()), zap.String("path", rel))

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
