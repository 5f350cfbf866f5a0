package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExtensions are the file extensions scanned when none are configured.
var DefaultExtensions = []string{".tex"}

// OSFileSystem reads project files from disk.
type OSFileSystem struct {
	// Extensions selects files by suffix, e.g. ".tex". Empty means
	// DefaultExtensions.
	Extensions []string
	// Exclude holds extra gitignore-style patterns relative to the root.
	Exclude []string
	// RespectGitignore applies the root's .gitignore when set.
	RespectGitignore bool
}

// Files walks root and returns the matching files. Hidden directories are
// skipped, as is anything matched by the ignore patterns.
func (f OSFileSystem) Files(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	gi := f.ignoreMatcher(root)
	exts := f.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root itself is fatal.
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil //nolint:nilerr // the root has no relative form worth matching
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !hasExtension(path, exts) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

// ReadFile reads path as UTF-8 text.
func (OSFileSystem) ReadFile(path string) (string, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: paths come from Files or open documents
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Matches reports whether path has one of the configured extensions.
func (f OSFileSystem) Matches(path string) bool {
	exts := f.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return hasExtension(path, exts)
}

func (f OSFileSystem) ignoreMatcher(root string) *ignore.GitIgnore {
	var patterns []string
	if f.RespectGitignore {
		if content, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil { //nolint:gosec // G304: fixed name under the project root
			for _, line := range strings.Split(string(content), "\n") {
				line = strings.TrimSpace(line)
				if line != "" && !strings.HasPrefix(line, "#") {
					patterns = append(patterns, line)
				}
			}
		}
	}
	patterns = append(patterns, f.Exclude...)

	if len(patterns) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(patterns...)
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
