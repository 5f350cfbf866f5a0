package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/texmacros/internal/testutil"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("root", "", "")
	fs.String("main-file", "", "")
	fs.String("log-level", "", "")
	fs.StringSlice("extensions", nil, "")
	fs.Duration("reference-ttl", 0, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(Options{Dir: dir, Environ: []string{}})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Empty(t, cfg.MainFile)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, []string{".tex"}, cfg.Extensions)
	assert.True(t, cfg.RespectGitignore)
	assert.Equal(t, DefaultReferenceTTL, cfg.ReferenceTTL)
	assert.Equal(t, DefaultDebounce, cfg.Debounce)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.Output)
}

func TestLoad_FileFoundUpward(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"texmacros.yaml": "main_file: thesis.tex\nextensions: [.tex, .sty]\nreference_ttl: 5s\nexclude:\n  - build/\n",
		"chapters/.keep": "",
	})

	cfg, err := Load(Options{Dir: filepath.Join(dir, "chapters"), Environ: []string{}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.ConfigFile)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, filepath.Join(dir, "thesis.tex"), cfg.MainFile)
	assert.Equal(t, []string{".tex", ".sty"}, cfg.Extensions)
	assert.Equal(t, []string{"build/"}, cfg.Exclude)
	assert.Equal(t, 5*time.Second, cfg.ReferenceTTL)
}

func TestLoad_Precedence(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"texmacros.yml": "log_level: error\nreference_ttl: 5s\n",
	})

	env := []string{"TEXMACROS_LOG_LEVEL=info", "TEXMACROS_REFERENCE_TTL=7s", "HOME=/x"}

	cfg, err := Load(Options{Dir: dir, Environ: env})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7*time.Second, cfg.ReferenceTTL)

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg, err = Load(Options{Dir: dir, Environ: env, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7*time.Second, cfg.ReferenceTTL, "unset flags must not override")
}

func TestLoad_FlagPathsRelativeToWorkingDir(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"texmacros.yaml": "root: book\n",
	})

	cfg, err := Load(Options{Dir: dir, Environ: []string{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book"), cfg.Root)

	sub := filepath.Join(dir, "book")
	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--root=other", "--main-file=x.tex"}))

	cfg, err = Load(Options{Dir: sub, Environ: []string{}, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sub, "other"), cfg.Root)
	assert.Equal(t, filepath.Join(sub, "x.tex"), cfg.MainFile)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		env   []string
	}{
		{name: "bad yaml", files: map[string]string{"texmacros.yaml": "extensions: [\n"}},
		{name: "bad level", files: map[string]string{"texmacros.yaml": "log_level: loud\n"}},
		{name: "bad output", env: []string{"TEXMACROS_OUTPUT=html"}},
		{name: "bad duration", env: []string{"TEXMACROS_DEBOUNCE=soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteProject(t, tt.files)
			env := tt.env
			if env == nil {
				env = []string{}
			}

			_, err := Load(Options{Dir: dir, Environ: env})
			require.Error(t, err)

			var cfgErr *Error
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"texmacros.yaml": "",
		"a/b/c.tex":      "",
	})

	assert.Equal(t, dir, FindProjectRoot(filepath.Join(dir, "a", "b")))
	assert.Empty(t, FindProjectRoot(t.TempDir()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMainFileResolver(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		main  string
		want  string
	}{
		{
			name: "explicit",
			files: map[string]string{
				"main.tex":   `\documentclass{book}`,
				"thesis.tex": "",
			},
			main: "thesis.tex",
			want: "thesis.tex",
		},
		{
			name: "main.tex preferred",
			files: map[string]string{
				"a.tex":    `\documentclass{article}`,
				"main.tex": `\documentclass{book}`,
			},
			want: "main.tex",
		},
		{
			name: "first document",
			files: map[string]string{
				"main.tex":          `\input{x}`,
				"b/paper.tex":       `\documentclass{article}`,
				"c/other.tex":       `\documentclass{article}`,
				".hidden/first.tex": `\documentclass{article}`,
			},
			want: "b/paper.tex",
		},
		{
			name:  "none",
			files: map[string]string{"macros.tex": `\newcommand{\R}{\mathbb{R}}`},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteProject(t, tt.files)
			cfg := &Config{Root: dir, Extensions: DefaultExtensions}
			if tt.main != "" {
				cfg.MainFile = filepath.Join(dir, tt.main)
			}

			got, err := MainFileResolver(cfg)(context.Background())
			require.NoError(t, err)

			want := tt.want
			if want != "" {
				want = filepath.Join(dir, filepath.FromSlash(want))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestMainFileResolver_MissingExplicit(t *testing.T) {
	cfg := &Config{Root: t.TempDir(), MainFile: "/does/not/exist.tex"}
	_, err := MainFileResolver(cfg)(context.Background())
	assert.Error(t, err)
}

func TestScanAnchor(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{"macros.tex": ""})
	cfg := &Config{Root: dir}

	got, err := ScanAnchor(cfg)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(got))
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	assert.Same(t, logger, GetLogger(WithLogger(context.Background(), logger)))
}

func TestConfigContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	cfg := Default("/p")
	assert.Same(t, cfg, FromContext(WithConfig(context.Background(), cfg)))
}
