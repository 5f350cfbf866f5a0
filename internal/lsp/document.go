package lsp

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.lsp.dev/uri"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

// Document is an immutable snapshot of an open text document. Every change
// produces a new snapshot, so a Document handed to the index never changes
// underneath it.
type Document struct {
	URI      string // Document URI (file:///path/to/main.tex)
	Language string // Client language identifier
	Content  string // Full document content
	Version  int    // Version number, incremented on each change

	path  string
	lines *macro.LineIndex
}

func newDocument(docURI, language, content string, version int) *Document {
	return &Document{
		URI:      docURI,
		Language: language,
		Content:  content,
		Version:  version,
		path:     URIToPath(docURI),
		lines:    macro.NewLineIndex(content),
	}
}

// Path returns the file system path of the document.
func (d *Document) Path() string { return d.path }

// LanguageID returns the client language identifier.
func (d *Document) LanguageID() string { return d.Language }

// Text returns the full content.
func (d *Document) Text() string { return d.Content }

// LocationAt converts a byte offset to a 1-based line and a 0-based UTF-16
// column.
func (d *Document) LocationAt(offset int) (line, column int) {
	return d.lines.LocationAt(offset)
}

// DocumentStore manages open documents in memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document and returns the stored snapshot.
func (s *DocumentStore) Open(docURI, language, content string, version int) *Document {
	doc := newDocument(docURI, language, content, version)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[docURI] = doc
	return doc
}

// Close removes a document from the store. It reports whether the document
// was open.
func (s *DocumentStore) Close(docURI string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.documents[docURI]
	delete(s.documents, docURI)
	return ok
}

// Get retrieves a document by URI.
func (s *DocumentStore) Get(docURI string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[docURI]
}

// Update replaces an open document's content with a new snapshot. It returns
// nil if the document is not open.
func (s *DocumentStore) Update(docURI, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.documents[docURI]
	if !ok {
		return nil
	}
	doc := newDocument(docURI, old.Language, content, version)
	s.documents[docURI] = doc
	return doc
}

// List returns all open document URIs in sorted order.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.documents))
	for u := range s.documents {
		uris = append(uris, u)
	}
	sort.Strings(uris)
	return uris
}

// All returns the current snapshot of every open document.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// PositionToOffset converts an LSP position (UTF-16 character) to a byte
// offset. Positions past the end of a line clamp to the line end.
func (d *Document) PositionToOffset(pos Position) int {
	if d == nil {
		return 0
	}

	offset, end, ok := d.lines.LineSpan(int(pos.Line))
	if !ok {
		return len(d.Content)
	}

	for units := 0; offset < end && units < int(pos.Character); {
		r, size := utf8.DecodeRuneInString(d.Content[offset:])
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		offset += size
	}
	return offset
}

// OffsetToPosition converts a byte offset to an LSP position.
func (d *Document) OffsetToPosition(offset int) Position {
	if d == nil {
		return Position{}
	}
	line, col := d.lines.LocationAt(offset)
	return Position{
		Line:      uint32(line - 1), //nolint:gosec // G115: line is always >= 1
		Character: uint32(col),      //nolint:gosec // G115: column is always non-negative
	}
}

// GetLine returns the content of a specific line without its newline.
func (d *Document) GetLine(line int) string {
	if d == nil {
		return ""
	}
	start, end, ok := d.lines.LineSpan(line)
	if !ok {
		return ""
	}
	return strings.TrimSuffix(d.Content[start:end], "\r")
}

// LinePrefix returns the text of pos's line up to pos.
func (d *Document) LinePrefix(pos Position) string {
	start, _, ok := d.lines.LineSpan(int(pos.Line))
	if !ok {
		return ""
	}
	return d.Content[start:d.PositionToOffset(pos)]
}

// MacroAt returns the control sequence name under pos, without the
// backslash, and the range covering backslash and name. A position right
// after the name still counts.
func (d *Document) MacroAt(pos Position) (string, Range, bool) {
	offset := d.PositionToOffset(pos)
	content := d.Content

	start := offset
	for start > 0 && isNameChar(content[start-1]) {
		start--
	}
	switch {
	case start > 0 && content[start-1] == '\\':
		start--
	case start < len(content) && content[start] == '\\':
	default:
		return "", Range{Start: pos, End: pos}, false
	}

	end := start + 1
	for end < len(content) && isNameChar(content[end]) {
		end++
	}
	if end == start+1 {
		return "", Range{Start: pos, End: pos}, false
	}

	return content[start+1 : end], Range{
		Start: d.OffsetToPosition(start),
		End:   d.OffsetToPosition(end),
	}, true
}

// isNameChar reports whether c can appear in a control word.
func isNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '@'
}

// URIToPath converts a file:// URI to a file system path. Other strings are
// returned unchanged.
func URIToPath(docURI string) string {
	if !strings.HasPrefix(docURI, uri.FileScheme+"://") {
		return docURI
	}
	return uri.URI(docURI).Filename()
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, uri.FileScheme+"://") {
		return path
	}
	return string(uri.File(path))
}
