package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/config"
	"github.com/leapstack-labs/texmacros/internal/index"
	"github.com/leapstack-labs/texmacros/internal/macro"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Index    *index.Index
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a ready index and a
// renderer. The index scans the configured root.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cmdCtx := NewCommandContextWithoutIndex(cmd)
	cmdCtx.Index = newIndex(cmdCtx.Cfg, cmdCtx.Logger)
	cmdCtx.Index.Initialize(nil, config.ScanAnchor(cmdCtx.Cfg))
	return cmdCtx
}

// NewCommandContextWithoutIndex creates a CommandContext without an index.
// Useful for commands that attach the index to a host themselves.
func NewCommandContextWithoutIndex(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the configuration loaded by the root command, falling
// back to defaults for the working directory.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.FromContext(ctx); cfg != nil {
		return cfg
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return config.Default(wd)
}

func newIndex(cfg *config.Config, logger *slog.Logger) *index.Index {
	return index.New(
		index.OSFileSystem{
			Extensions:       cfg.Extensions,
			Exclude:          cfg.Exclude,
			RespectGitignore: cfg.RespectGitignore,
		},
		index.WithLogger(logger),
		index.WithReferenceTTL(cfg.ReferenceTTL),
		index.WithExtensions(cfg.Extensions...),
		index.WithWorkspaceRoot(cfg.Root),
	)
}

// lookupDefinitions returns every definition of name, accepting the name
// with or without its leading backslash.
func lookupDefinitions(ctx context.Context, ix *index.Index, name string) (string, []macro.Definition, error) {
	name = normalizeName(name)
	defs := ix.Definitions(ctx, name)
	if len(defs) == 0 {
		return name, nil, fmt.Errorf("macro \\%s is not defined", name)
	}
	return name, defs, nil
}

func normalizeName(name string) string {
	return strings.TrimPrefix(name, `\`)
}

// relPath shows file relative to root when it lies below it.
func relPath(root, file string) string {
	if root == "" {
		return file
	}
	rel, err := filepath.Rel(root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return filepath.ToSlash(rel)
}
