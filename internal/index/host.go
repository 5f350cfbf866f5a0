package index

import (
	"context"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

// Document is an open editor buffer.
type Document interface {
	macro.Positioner

	// Path is the absolute file system path of the buffer.
	Path() string
	// LanguageID is the editor's language identifier (e.g. "latex").
	LanguageID() string
	// Text is the full current content.
	Text() string
}

// Rename describes one moved file. New is empty when the destination is
// unknown, which is the case for file system watchers.
type Rename struct {
	Old string
	New string
}

// Listener receives editor lifecycle events.
type Listener interface {
	DocumentOpened(doc Document)
	DocumentChanged(doc Document)
	DocumentSaved(doc Document)
	DocumentClosed(path string)
	FilesCreated(paths []string)
	FilesRenamed(renames []Rename)
	FilesChanged(paths []string)
	FilesDeleted(paths []string)
}

// Host is the editor side the index attaches to.
type Host interface {
	// OpenDocuments returns a snapshot of the currently open buffers.
	OpenDocuments() []Document
	// Subscribe registers l for lifecycle events.
	Subscribe(l Listener)
}

// FileSystem is the read capability used for base scans and the on-disk part
// of reference searches.
type FileSystem interface {
	// Files returns every matching file under root as absolute paths.
	Files(ctx context.Context, root string) ([]string, error)
	// ReadFile returns the content of path decoded as UTF-8.
	ReadFile(path string) (string, error)
}

// RootResolver returns the main file of the project. The directory holding it
// is scanned. An empty result means there is no project to scan.
type RootResolver func(ctx context.Context) (string, error)
