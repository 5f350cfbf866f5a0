package config

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// documentClass marks a file as a standalone document.
const documentClass = `\documentclass`

// MainFileResolver returns a function that finds the project's main file.
// An explicit main_file wins. Otherwise root/main.tex is used if it declares
// a document class, then the first source file under root (in path order)
// that does. The function returns "" when nothing qualifies.
func MainFileResolver(cfg *Config) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if cfg.MainFile != "" {
			if _, err := os.Stat(cfg.MainFile); err != nil {
				return "", err
			}
			return cfg.MainFile, nil
		}

		preferred := filepath.Join(cfg.Root, DefaultMainFile)
		if isDocument(preferred) {
			return preferred, nil
		}

		var found string
		err := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != cfg.Root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if hasExtension(path, cfg.Extensions) && isDocument(path) {
				found = path
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		return found, nil
	}
}

// ScanAnchor is like MainFileResolver but never returns "": with no main
// file it names root/main.tex, so the whole root directory is scanned even
// when no document declares a class.
func ScanAnchor(cfg *Config) func(ctx context.Context) (string, error) {
	resolve := MainFileResolver(cfg)
	return func(ctx context.Context) (string, error) {
		main, err := resolve(ctx)
		if err != nil || main != "" {
			return main, err
		}
		return filepath.Join(cfg.Root, DefaultMainFile), nil
	}
}

func isDocument(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), documentClass)
}

func hasExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.ContainsFunc(exts, func(e string) bool {
		return strings.ToLower("."+strings.TrimPrefix(e, ".")) == ext
	})
}
