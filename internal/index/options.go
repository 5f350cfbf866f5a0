package index

import (
	"log/slog"
	"time"
)

// DefaultReferenceTTL bounds how long a reference search result is reused.
const DefaultReferenceTTL = 2 * time.Second

// defaultReadConcurrency bounds parallel file reads during a base scan.
const defaultReadConcurrency = 8

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithReferenceTTL sets how long reference results are cached.
func WithReferenceTTL(ttl time.Duration) Option {
	return func(ix *Index) {
		if ttl > 0 {
			ix.refs.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(ix *Index) {
		if now != nil {
			ix.refs.now = now
		}
	}
}

// WithLanguageIDs sets which open documents are indexed by language ID.
// Documents whose path has a scanned extension are always accepted.
func WithLanguageIDs(ids ...string) Option {
	return func(ix *Index) {
		ix.languageIDs = make(map[string]bool, len(ids))
		for _, id := range ids {
			ix.languageIDs[id] = true
		}
	}
}

// WithExtensions sets the file extensions treated as LaTeX sources when
// filtering open documents.
func WithExtensions(exts ...string) Option {
	return func(ix *Index) {
		if len(exts) > 0 {
			ix.extensions = exts
		}
	}
}

// WithWorkspaceRoot sets the directory searched for references when the
// resolver finds no main file.
func WithWorkspaceRoot(dir string) Option {
	return func(ix *Index) {
		ix.workspaceRoot = dir
	}
}

// WithReadConcurrency bounds parallel file reads during scans.
func WithReadConcurrency(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.readConcurrency = n
		}
	}
}
