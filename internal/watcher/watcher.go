// Package watcher turns file system notifications under a project root into
// index file events. It is the index host for batch and watch mode, where no
// editor owns open buffers.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/texmacros/internal/index"
)

// DefaultDebounce is how long events are collected before delivery.
const DefaultDebounce = 100 * time.Millisecond

type op int

const (
	opCreated op = iota + 1
	opChanged
	opDeleted
)

// Watcher watches a directory tree and reports changes to subscribed
// listeners in debounced batches.
type Watcher struct {
	root     string
	match    func(path string) bool
	debounce time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	listeners []index.Listener
	pending   map[string]op
	renamed   []index.Rename
	timer     *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets the quiet period before a batch is delivered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter limits events to files accepted by match. Removals of paths
// without an extension are always reported since they may be directories.
func WithFilter(match func(path string) bool) Option {
	return func(w *Watcher) {
		if match != nil {
			w.match = match
		}
	}
}

// New creates a watcher for root. Call Run to start it.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		match:    func(string) bool { return true },
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]op),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OpenDocuments returns nil: a watcher owns no buffers.
func (w *Watcher) OpenDocuments() []index.Document {
	return nil
}

// Subscribe registers a listener for file events.
func (w *Watcher) Subscribe(l index.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// Run watches until ctx is cancelled. Pending events are dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.watchDir(fw, w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.logger.Debug("watching", "root", w.root)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := w.watchDir(fw, event.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			if w.record(event) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDir recursively adds a directory to the watcher.
func (w *Watcher) watchDir(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		// Skip hidden directories
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// record folds one event into the pending batch and reports whether it was
// relevant.
func (w *Watcher) record(event fsnotify.Event) bool {
	path := event.Name
	removal := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !w.match(path) && !(removal && filepath.Ext(path) == "") {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Rename):
		// fsnotify reports the new name as a separate Create.
		w.renamed = append(w.renamed, index.Rename{Old: path})
		delete(w.pending, path)
	case event.Has(fsnotify.Remove):
		w.pending[path] = opDeleted
	case event.Has(fsnotify.Create):
		if w.pending[path] == opDeleted {
			w.pending[path] = opChanged
		} else {
			w.pending[path] = opCreated
		}
	case event.Has(fsnotify.Write):
		if w.pending[path] != opCreated {
			w.pending[path] = opChanged
		}
	default:
		return false
	}
	return true
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// flush delivers the pending batch: creations, renames, changes, then
// deletions.
func (w *Watcher) flush() {
	w.mu.Lock()
	var created, changed, deleted []string
	for path, o := range w.pending {
		switch o {
		case opCreated:
			created = append(created, path)
		case opChanged:
			changed = append(changed, path)
		case opDeleted:
			deleted = append(deleted, path)
		}
	}
	renamed := w.renamed
	listeners := slices.Clone(w.listeners)
	w.pending = make(map[string]op)
	w.renamed = nil
	w.mu.Unlock()

	slices.Sort(created)
	slices.Sort(changed)
	slices.Sort(deleted)

	w.logger.Debug("file events",
		"created", len(created), "renamed", len(renamed), "changed", len(changed), "deleted", len(deleted))

	for _, l := range listeners {
		if len(created) > 0 {
			l.FilesCreated(created)
		}
		if len(renamed) > 0 {
			l.FilesRenamed(renamed)
		}
		if len(changed) > 0 {
			l.FilesChanged(changed)
		}
		if len(deleted) > 0 {
			l.FilesDeleted(deleted)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
