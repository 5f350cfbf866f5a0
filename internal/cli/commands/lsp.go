package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/config"
	"github.com/leapstack-labs/texmacros/internal/lsp"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC. The project
root and its texmacros.yaml are determined by the client's initialization
request (rootUri parameter), not by the flags of this command.`,
		Example: `  # Start LSP server (usually called by an editor)
  texmacros lsp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	logger := config.GetLogger(cmd.Context())
	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, logger)
	// An exit without shutdown surfaces as an error, so the process ends
	// with status 1.
	return server.Run(cmd.Context())
}
