// Package config loads texmacros configuration. Values are layered with koanf:
// built-in defaults, then texmacros.yaml (or .yml) found in the project
// directory or above it, then TEXMACROS_* environment variables, then
// command-line flags that were set explicitly.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "texmacros.yaml"
	ConfigFileNameAlt = "texmacros.yml"
)

// EnvPrefix prefixes environment variables, e.g. TEXMACROS_MAIN_FILE.
const EnvPrefix = "TEXMACROS_"

// Default configuration values.
const (
	DefaultMainFile     = "main.tex"
	DefaultReferenceTTL = 2 * time.Second
	DefaultDebounce     = 100 * time.Millisecond
	DefaultLogLevel     = "warn"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// DefaultExtensions are the scanned source file extensions.
var DefaultExtensions = []string{".tex"}

// Config holds all texmacros settings.
type Config struct {
	// Root is the project directory. Relative paths in the config file are
	// resolved against it.
	Root string `koanf:"root"`

	// MainFile pins the main document. When empty it is detected.
	MainFile string `koanf:"main_file"`

	Extensions       []string      `koanf:"extensions"`
	Exclude          []string      `koanf:"exclude"`
	RespectGitignore bool          `koanf:"respect_gitignore"`
	ReferenceTTL     time.Duration `koanf:"reference_ttl"`
	Debounce         time.Duration `koanf:"debounce"`
	LogLevel         string        `koanf:"log_level"`
	Output           string        `koanf:"output"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `koanf:"-"`
}

// Defaults returns the default values keyed like the config file.
func Defaults() map[string]any {
	return map[string]any{
		"extensions":        DefaultExtensions,
		"exclude":           []string{},
		"respect_gitignore": true,
		"reference_ttl":     DefaultReferenceTTL.String(),
		"debounce":          DefaultDebounce.String(),
		"log_level":         DefaultLogLevel,
		"output":            DefaultOutput,
	}
}

// Validate checks values that have a closed set of options.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Output {
	case "auto", "text", "markdown", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q: want auto, text, markdown, json or yaml", c.Output)
	}
	if c.ReferenceTTL < 0 || c.Debounce < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", s)
}

// Error reports a configuration file that could not be loaded.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns the built-in settings for a project rooted at root.
func Default(root string) *Config {
	return &Config{
		Root:             root,
		Extensions:       append([]string(nil), DefaultExtensions...),
		RespectGitignore: true,
		ReferenceTTL:     DefaultReferenceTTL,
		Debounce:         DefaultDebounce,
		LogLevel:         DefaultLogLevel,
		Output:           DefaultOutput,
	}
}
