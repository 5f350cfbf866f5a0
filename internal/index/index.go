// Package index maintains an incremental index of LaTeX macro definitions.
//
// The index merges two tables keyed by file: a base table built by scanning
// every source file under the project root, and a live table holding the
// parse of each open editor buffer. For any file present in both, the live
// table wins. The base table is rescanned lazily on the first query after it
// has been marked dirty; concurrent queries share a single in-flight scan.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/texmacros/internal/macro"
	"github.com/leapstack-labs/texmacros/internal/notifier"
)

// maxReloadAttempts bounds how often one query chases dirty marks that
// arrive while a scan is running.
const maxReloadAttempts = 2

// Index is the macro index. The zero value is not usable; create one with New.
type Index struct {
	fs              FileSystem
	logger          *slog.Logger
	languageIDs     map[string]bool
	extensions      []string
	workspaceRoot   string
	readConcurrency int

	ready atomic.Bool

	mu          sync.Mutex
	initialized bool
	host        Host
	resolve     RootResolver
	root        string
	base        map[string][]macro.Definition
	live        map[string]liveEntry
	dirtyGen    uint64
	cleanGen    uint64

	snap    atomic.Pointer[snapshot]
	scans   singleflight.Group
	refs    *referenceCache
	changes *notifier.Notifier
}

type liveEntry struct {
	doc  Document
	defs []macro.Definition
}

// snapshot holds the derived tables of one rebuild. It is never mutated after
// being published, so the flat list and the name lookup always agree.
type snapshot struct {
	all    []macro.Definition
	byName map[string][]macro.Definition
}

// New creates an index reading project files through fs.
func New(fs FileSystem, opts ...Option) *Index {
	ix := &Index{
		fs:              fs,
		logger:          slog.Default(),
		languageIDs:     map[string]bool{"latex": true, "tex": true},
		extensions:      DefaultExtensions,
		readConcurrency: defaultReadConcurrency,
		base:            make(map[string][]macro.Definition),
		live:            make(map[string]liveEntry),
		dirtyGen:        1,
		refs: &referenceCache{
			ttl:     DefaultReferenceTTL,
			now:     time.Now,
			entries: make(map[string]referenceEntry),
		},
		changes: notifier.New(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.snap.Store(&snapshot{byName: map[string][]macro.Definition{}})
	return ix
}

// Initialize attaches the index to host and starts a background scan.
// Open documents are indexed immediately. host may be nil when there is no
// editor, in which case only the base scan feeds the index. Calling
// Initialize again has no effect.
func (ix *Index) Initialize(host Host, resolve RootResolver) {
	ix.mu.Lock()
	if ix.initialized {
		ix.mu.Unlock()
		return
	}
	ix.initialized = true
	ix.host = host
	ix.resolve = resolve
	ix.mu.Unlock()
	ix.ready.Store(true)

	if host != nil {
		host.Subscribe(ix)
		for _, doc := range host.OpenDocuments() {
			ix.updateDocument(doc)
		}
	}

	ix.MarkDirty()
	go ix.ensureBase(context.Background())
}

// IsReady reports whether Initialize has run.
func (ix *Index) IsReady() bool {
	return ix.ready.Load()
}

// MarkDirty flags the base table for rescanning and drops cached reference
// results. The rescan happens on the next query.
func (ix *Index) MarkDirty() {
	if !ix.IsReady() {
		return
	}
	ix.mu.Lock()
	ix.dirtyGen++
	ix.mu.Unlock()
	ix.refs.clear()
}

// Changes returns the notifier pinged once after every rebuild.
func (ix *Index) Changes() *notifier.Notifier {
	return ix.changes
}

// Root returns the directory of the last base scan, or "" if none.
func (ix *Index) Root() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.root
}

// AllMacros returns every known definition. Files are visited in path order
// and each file's definitions keep their parse order.
func (ix *Index) AllMacros(ctx context.Context) []macro.Definition {
	if !ix.IsReady() {
		return nil
	}
	ix.ensureBase(ctx)
	return slices.Clone(ix.snap.Load().all)
}

// Definitions returns every definition of name, or nil.
func (ix *Index) Definitions(ctx context.Context, name string) []macro.Definition {
	if !ix.IsReady() {
		return nil
	}
	ix.ensureBase(ctx)
	return slices.Clone(ix.snap.Load().byName[name])
}

// FirstDefinition returns the first definition of name.
func (ix *Index) FirstDefinition(ctx context.Context, name string) (macro.Definition, bool) {
	defs := ix.Definitions(ctx, name)
	if len(defs) == 0 {
		return macro.Definition{}, false
	}
	return defs[0], true
}

// DocumentOpened indexes the buffer.
func (ix *Index) DocumentOpened(doc Document) { ix.updateDocument(doc) }

// DocumentChanged re-indexes the buffer.
func (ix *Index) DocumentChanged(doc Document) { ix.updateDocument(doc) }

// DocumentSaved marks the base dirty since the file on disk changed.
func (ix *Index) DocumentSaved(Document) { ix.MarkDirty() }

// DocumentClosed drops the live entry; the file falls back to its base scan.
func (ix *Index) DocumentClosed(path string) {
	removed := ix.removeDocument(path)
	if removed || hasExtension(path, ix.extensions) {
		ix.MarkDirty()
	}
}

// FilesCreated marks the base dirty.
func (ix *Index) FilesCreated([]string) { ix.MarkDirty() }

// FilesRenamed marks the base dirty.
func (ix *Index) FilesRenamed([]Rename) { ix.MarkDirty() }

// FilesChanged marks the base dirty.
func (ix *Index) FilesChanged([]string) { ix.MarkDirty() }

// FilesDeleted marks the base dirty and forgets live entries of the deleted
// files right away.
func (ix *Index) FilesDeleted(paths []string) {
	if !ix.IsReady() {
		return
	}
	ix.MarkDirty()

	ix.mu.Lock()
	for _, p := range paths {
		delete(ix.live, p)
	}
	ix.rebuildLocked()
	ix.mu.Unlock()
	ix.changes.Broadcast()
}

func (ix *Index) accepts(doc Document) bool {
	return ix.languageIDs[doc.LanguageID()] || hasExtension(doc.Path(), ix.extensions)
}

func (ix *Index) updateDocument(doc Document) {
	if !ix.IsReady() || doc == nil || !ix.accepts(doc) {
		return
	}

	defs := macro.ParseBuffer(doc.Text(), doc.Path(), doc)

	ix.mu.Lock()
	ix.live[doc.Path()] = liveEntry{doc: doc, defs: defs}
	ix.rebuildLocked()
	ix.mu.Unlock()

	ix.refs.clear()
	ix.changes.Broadcast()
}

func (ix *Index) removeDocument(path string) bool {
	if !ix.IsReady() {
		return false
	}

	ix.mu.Lock()
	_, ok := ix.live[path]
	if ok {
		delete(ix.live, path)
		ix.rebuildLocked()
	}
	ix.mu.Unlock()

	if ok {
		ix.refs.clear()
		ix.changes.Broadcast()
	}
	return ok
}

func (ix *Index) isDirty() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.dirtyGen != ix.cleanGen
}

// ensureBase rescans the base table if it is dirty. Callers that arrive while
// a scan is running wait for it instead of starting another. A caller whose
// ctx ends stops waiting; the shared scan still completes.
func (ix *Index) ensureBase(ctx context.Context) {
	for range maxReloadAttempts {
		if !ix.isDirty() {
			return
		}

		ch := ix.scans.DoChan("base", func() (any, error) {
			if ix.isDirty() {
				ix.reloadBase(context.WithoutCancel(ctx))
			}
			return nil, nil
		})

		select {
		case <-ch:
		case <-ctx.Done():
			return
		}
	}
}

// reloadBase replaces the base table with a fresh scan of the project. Any
// failure leaves an empty base; it is logged and never returned.
func (ix *Index) reloadBase(ctx context.Context) {
	ix.mu.Lock()
	gen := ix.dirtyGen
	resolve := ix.resolve
	ix.mu.Unlock()

	start := time.Now()
	root, base, err := ix.scanProject(ctx, resolve)
	if err != nil {
		ix.logger.Error("macro index scan failed", "root", root, "error", err)
		root, base = "", nil
	}
	if base == nil {
		base = make(map[string][]macro.Definition)
	}

	ix.logger.Debug("macro index scanned",
		"root", root,
		"files", len(base),
		"duration", time.Since(start))

	ix.mu.Lock()
	ix.root = root
	ix.base = base
	// A dirty mark that arrived during the scan keeps the base dirty.
	if ix.dirtyGen == gen {
		ix.cleanGen = gen
	}
	ix.rebuildLocked()
	ix.mu.Unlock()

	ix.changes.Broadcast()
}

func (ix *Index) scanProject(ctx context.Context, resolve RootResolver) (string, map[string][]macro.Definition, error) {
	if resolve == nil {
		return "", nil, nil
	}
	mainFile, err := resolve(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("resolve main file: %w", err)
	}
	if mainFile == "" {
		return "", nil, nil
	}

	root := filepath.Dir(mainFile)
	base, err := ix.scan(ctx, root)
	if err != nil {
		return root, nil, err
	}
	return root, base, nil
}

// scan parses every file under root with bounded parallelism. Unreadable
// files are logged and skipped.
func (ix *Index) scan(ctx context.Context, root string) (map[string][]macro.Definition, error) {
	files, err := ix.fs.Files(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	results := make([][]macro.Definition, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.readConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := ix.fs.ReadFile(path)
			if err != nil {
				ix.logger.Warn("skipping unreadable file", "error", &macro.ReadError{File: path, Err: err})
				return nil
			}
			results[i] = macro.Parse(text, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := make(map[string][]macro.Definition, len(files))
	for i, path := range files {
		if len(results[i]) > 0 {
			base[path] = results[i]
		}
	}
	return base, nil
}

// rebuildLocked merges base and live tables and publishes a new snapshot.
// The caller holds mu and broadcasts the change after unlocking.
func (ix *Index) rebuildLocked() {
	merged := make(map[string][]macro.Definition, len(ix.base)+len(ix.live))
	for path, defs := range ix.base {
		merged[path] = defs
	}
	for path, entry := range ix.live {
		merged[path] = entry.defs
	}

	s := &snapshot{byName: make(map[string][]macro.Definition)}
	for _, path := range slices.Sorted(maps.Keys(merged)) {
		for _, d := range merged[path] {
			s.all = append(s.all, d)
			s.byName[d.Name] = append(s.byName[d.Name], d)
		}
	}
	ix.snap.Store(s)
}

// openDocuments returns the indexed open buffers in path order.
func (ix *Index) openDocuments() []Document {
	ix.mu.Lock()
	host := ix.host
	var docs []Document
	if host == nil {
		for _, e := range ix.live {
			docs = append(docs, e.doc)
		}
	}
	ix.mu.Unlock()

	if host != nil {
		for _, doc := range host.OpenDocuments() {
			if ix.accepts(doc) {
				docs = append(docs, doc)
			}
		}
	}

	slices.SortFunc(docs, func(a, b Document) int {
		return strings.Compare(a.Path(), b.Path())
	})
	return docs
}
