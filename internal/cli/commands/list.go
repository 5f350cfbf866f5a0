package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/macro"
)

const previewLength = 60

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all macros defined in the project",
		Long: `List every macro defined under the project root, grouped by how it
was declared (\newcommand, \renewcommand, \def and their starred forms).

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, yaml`,
		Example: `  # List all macros (auto-detect output format)
  texmacros list

  # List macros as JSON
  texmacros list --output json

  # List macros of another project
  texmacros list --root ../thesis`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	defs := cmdCtx.Index.AllMacros(cmd.Context())
	root := cmdCtx.Index.Root()
	groups := macro.GroupByKind(defs)

	if wrote, err := r.Structured(output.ListOutput{Root: root, Total: len(defs), Groups: nonNilGroups(groups)}); wrote {
		return err
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		listMarkdown(r, root, defs, groups)
		return nil
	}
	listText(r, root, defs, groups)
	return nil
}

// listText outputs macros as styled tables, one per kind.
func listText(r *output.Renderer, root string, defs []macro.Definition, groups []macro.Group) {
	r.Header(1, fmt.Sprintf("Macros (%d total)", len(defs)))
	if len(defs) == 0 {
		r.Muted("No macros found.")
		return
	}

	for _, g := range groups {
		r.Header(2, fmt.Sprintf("%s (%d)", g.DisplayName, len(g.Macros)))
		r.Muted(g.Description)
		r.Table([]string{"Macro", "Args", "Body", "Location"}, groupRows(root, g))
		r.Println("")
	}
}

// listMarkdown outputs macros in markdown format.
func listMarkdown(r *output.Renderer, root string, defs []macro.Definition, groups []macro.Group) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Macros (%d total)", len(defs))))
	r.Println("")
	if len(defs) == 0 {
		r.Println("No macros found.")
		return
	}

	for _, g := range groups {
		r.Println(output.FormatHeader(2, fmt.Sprintf("%s (%d)", g.DisplayName, len(g.Macros))))
		r.Println("")
		r.Println(g.Description)
		r.Println("")
		r.Table([]string{"Macro", "Args", "Body", "Location"}, groupRows(root, g))
		r.Println("")
	}
}

func groupRows(root string, g macro.Group) [][]string {
	rows := make([][]string, 0, len(g.Macros))
	for _, d := range g.Macros {
		args := strconv.Itoa(d.Parameters)
		if dflt, ok := d.Default(); ok {
			args += fmt.Sprintf(" [%s]", dflt)
		}
		rows = append(rows, []string{
			`\` + d.Name,
			args,
			macro.Truncate(d.Body, previewLength),
			fmt.Sprintf("%s:%d", relPath(root, d.Location.File), d.Location.Line),
		})
	}
	return rows
}

func nonNilGroups(groups []macro.Group) []macro.Group {
	if groups == nil {
		return []macro.Group{}
	}
	return groups
}
