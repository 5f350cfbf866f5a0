package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/config"
)

const configHeader = `# texmacros project settings.
# Paths are relative to this file. Every key can be overridden with a
# TEXMACROS_ environment variable or a command-line flag.
`

// projectFile is the layout written by init.
type projectFile struct {
	MainFile         string   `yaml:"main_file,omitempty"`
	Extensions       []string `yaml:"extensions"`
	Exclude          []string `yaml:"exclude"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	ReferenceTTL     string   `yaml:"reference_ttl"`
	Debounce         string   `yaml:"debounce"`
	LogLevel         string   `yaml:"log_level"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a texmacros.yaml for a LaTeX project",
		Long: `Create a texmacros.yaml configuration file with the default settings.

When the directory already holds a LaTeX document (a .tex file with
\documentclass), it is recorded as the main file.`,
		Example: `  # Initialize in current directory
  texmacros init

  # Initialize another directory
  texmacros init thesis

  # Force overwrite existing config
  texmacros init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			r := NewCommandContextWithoutIndex(cmd).Renderer
			return runInit(cmd, r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	configPath := filepath.Join(abs, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	defaults := config.Default(abs)
	pf := projectFile{
		Extensions:       defaults.Extensions,
		Exclude:          []string{},
		RespectGitignore: defaults.RespectGitignore,
		ReferenceTTL:     defaults.ReferenceTTL.String(),
		Debounce:         defaults.Debounce.String(),
		LogLevel:         defaults.LogLevel,
	}

	mainFile, err := config.MainFileResolver(defaults)(cmd.Context())
	if err != nil {
		return err
	}
	if mainFile != "" {
		pf.MainFile = relPath(abs, mainFile)
	}

	data, err := yaml.Marshal(pf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
	}

	r.Success(fmt.Sprintf("Created %s", configPath))
	if pf.MainFile != "" {
		r.Muted(fmt.Sprintf("Main file: %s", pf.MainFile))
	}
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Run 'texmacros list' to see all macros")
	r.Println("  2. Point your editor at 'texmacros lsp'")

	return nil
}
