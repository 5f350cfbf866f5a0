package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
)

// NewDefsCommand creates the defs command.
func NewDefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defs <macro>",
		Short: "Show where a macro is defined",
		Long: `Show every definition of a macro in project order. A macro that is
defined several times appears once per definition.`,
		Example: `  # Definitions of \R (the backslash is optional)
  texmacros defs R

  # As JSON
  texmacros defs '\R' -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefs(cmd, args[0])
		},
	}

	return cmd
}

func runDefs(cmd *cobra.Command, arg string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	name, defs, err := lookupDefinitions(cmd.Context(), cmdCtx.Index, arg)
	if err != nil {
		return err
	}
	root := cmdCtx.Index.Root()

	if wrote, err := r.Structured(output.DefinitionsOutput{Name: name, Definitions: defs}); wrote {
		return err
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, fmt.Sprintf(`\%s (%d definitions)`, name, len(defs))))
		r.Println("")
		for _, d := range defs {
			r.Println(output.FormatHeader(2, fmt.Sprintf("%s:%d", relPath(root, d.Location.File), d.Location.Line)))
			r.Println(output.FormatKeyValue("Type", d.Kind.DisplayName()))
			r.Println(output.FormatKeyValue("Declaration", output.FormatInlineCode(d.Header())))
			r.Println("")
			r.Println(output.FormatCodeBlock("latex", d.Body))
			r.Println("")
		}
		return nil
	}

	styles := r.Styles()
	r.Header(1, fmt.Sprintf(`\%s (%d definitions)`, name, len(defs)))
	for i, d := range defs {
		r.Printf("%d. %s  %s\n", i+1,
			styles.Macro.Render(d.Header()),
			styles.Location.Render(fmt.Sprintf("%s:%d:%d", relPath(root, d.Location.File), d.Location.Line, d.Location.Column)))
		r.Printf("   %s\n", styles.Code.Render(d.Body))
	}
	return nil
}
