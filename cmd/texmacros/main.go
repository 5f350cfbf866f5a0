// Package main is the texmacros command: a LaTeX macro index with a
// language server and command-line queries.
package main

import (
	"os"

	"github.com/leapstack-labs/texmacros/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
