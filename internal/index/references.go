package index

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

// Reference is one usage of a macro name.
type Reference struct {
	macro.Location
	// Length spans the backslash and the name, in UTF-16 code units.
	Length int `json:"length" yaml:"length"`
}

// FindReferences returns every occurrence of \name that is not the prefix of
// a longer control sequence. Open buffers are searched first, then files on
// disk that are not open. Results are cached for a short time and the cache
// is dropped on any invalidation.
func (ix *Index) FindReferences(ctx context.Context, name string) []Reference {
	if !ix.IsReady() || name == "" {
		return nil
	}
	ix.ensureBase(ctx)

	refs, gen, ok := ix.refs.get(name)
	if ok {
		return refs
	}

	pattern := regexp.MustCompile(`\\` + regexp.QuoteMeta(name))
	refs = []Reference{}

	open := make(map[string]bool)
	for _, doc := range ix.openDocuments() {
		open[doc.Path()] = true
		refs = append(refs, collectReferences(doc.Text(), doc.Path(), pattern, doc)...)
	}

	if root := ix.referenceRoot(); root != "" {
		files, err := ix.fs.Files(ctx, root)
		if err != nil {
			ix.logger.Warn("reference scan could not list files", "root", root, "error", err)
		}
		for _, path := range files {
			if open[path] {
				continue
			}
			text, err := ix.fs.ReadFile(path)
			if err != nil {
				ix.logger.Warn("reference scan skipped file", "error", &macro.ReadError{File: path, Err: err})
				continue
			}
			refs = append(refs, collectReferences(text, path, pattern, macro.NewLineIndex(text))...)
		}
	}

	ix.refs.put(name, refs, gen)
	return refs
}

// referenceRoot is the scanned project directory, falling back to the
// configured workspace root when no main file was found.
func (ix *Index) referenceRoot() string {
	if root := ix.Root(); root != "" {
		return root
	}
	return ix.workspaceRoot
}

func collectReferences(text, file string, pattern *regexp.Regexp, pos macro.Positioner) []Reference {
	var refs []Reference
	for _, m := range pattern.FindAllStringIndex(text, -1) {
		// \foo must not match inside \foobar or \foo@bar.
		if m[1] < len(text) && continuesName(text[m[1]]) {
			continue
		}
		line, col := pos.LocationAt(m[0])
		refs = append(refs, Reference{
			Location: macro.Location{File: file, Line: line, Column: col},
			Length:   macro.UTF16Len(text[m[0]:m[1]]),
		})
	}
	return refs
}

func continuesName(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '@'
}

type referenceEntry struct {
	refs    []Reference
	expires time.Time
}

// referenceCache holds recent reference results. Every clear bumps a
// generation so a search that started before an invalidation cannot store
// its stale result afterwards.
type referenceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	gen     uint64
	entries map[string]referenceEntry
}

func (c *referenceCache) get(name string) ([]Reference, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok || !c.now().Before(e.expires) {
		return nil, c.gen, false
	}
	return e.refs, c.gen, true
}

func (c *referenceCache) put(name string, refs []Reference, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.entries[name] = referenceEntry{refs: refs, expires: c.now().Add(c.ttl)}
}

func (c *referenceCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	clear(c.entries)
}
