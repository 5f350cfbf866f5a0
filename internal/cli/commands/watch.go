package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/config"
	"github.com/leapstack-labs/texmacros/internal/index"
	"github.com/leapstack-labs/texmacros/internal/macro"
	"github.com/leapstack-labs/texmacros/internal/watcher"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the macro index up to date while files change",
		Long: `Watch the project root and rebuild the macro index whenever a matching
file is created, changed, renamed or deleted. Each rebuild prints a summary
line. Press Ctrl+C to stop.`,
		Example: `  # Watch the current project
  texmacros watch

  # Collapse bursts of saves into one rebuild
  texmacros watch --debounce 500ms`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd)
		},
	}

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutIndex(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	ix := newIndex(cfg, cmdCtx.Logger)
	fs := index.OSFileSystem{Extensions: cfg.Extensions, Exclude: cfg.Exclude, RespectGitignore: cfg.RespectGitignore}
	w := watcher.New(cfg.Root,
		watcher.WithLogger(cmdCtx.Logger),
		watcher.WithDebounce(cfg.Debounce),
		watcher.WithFilter(fs.Matches),
	)

	// The index subscribes first so it is dirty before the refresh runs.
	ix.Initialize(w, config.ScanAnchor(cfg))
	pending := make(chan struct{}, 1)
	w.Subscribe(refresher(pending))

	r.Muted(fmt.Sprintf("Watching %s", cfg.Root))
	summarize(r, ix.AllMacros(ctx))

	changes := ix.Changes().Subscribe()
	defer ix.Changes().Unsubscribe(changes)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-pending:
				// Re-querying rebuilds the dirty index and pings changes.
				ix.AllMacros(gctx)
			case <-changes:
				summarize(r, ix.AllMacros(gctx))
			}
		}
	})

	return g.Wait()
}

func summarize(r *output.Renderer, defs []macro.Definition) {
	names := make(map[string]bool, len(defs))
	for _, d := range defs {
		names[d.Name] = true
	}
	r.Printf("%s  %d definitions, %d macros\n", time.Now().Format(time.TimeOnly), len(defs), len(names))
}

// refresher pings a channel for every file event.
type refresher chan struct{}

func (c refresher) ping() {
	select {
	case c <- struct{}{}:
	default:
	}
}

func (refresher) DocumentOpened(index.Document)  {}
func (refresher) DocumentChanged(index.Document) {}
func (refresher) DocumentSaved(index.Document)   {}
func (refresher) DocumentClosed(string)          {}
func (c refresher) FilesCreated([]string)        { c.ping() }
func (c refresher) FilesRenamed([]index.Rename)  { c.ping() }
func (c refresher) FilesChanged([]string)        { c.ping() }
func (c refresher) FilesDeleted([]string)        { c.ping() }
