package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
)

// NewRefsCommand creates the refs command.
func NewRefsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs <macro>",
		Short: "Find every usage of a macro",
		Long: `Find every occurrence of a macro in the project, including the
definitions themselves. \foo does not match inside \foobar.`,
		Example: `  # Usages of \R
  texmacros refs R

  # Count usages from a script
  texmacros refs R -o json | jq .total`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefs(cmd, args[0])
		},
	}

	return cmd
}

func runRefs(cmd *cobra.Command, arg string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	name := normalizeName(arg)

	refs := cmdCtx.Index.FindReferences(cmd.Context(), name)
	root := cmdCtx.Index.Root()

	out := output.ReferencesOutput{
		Name:       name,
		Total:      len(refs),
		References: make([]output.ReferenceInfo, 0, len(refs)),
	}
	for _, ref := range refs {
		out.References = append(out.References, output.ReferenceInfo{
			File:   ref.File,
			Line:   ref.Line,
			Column: ref.Column,
			Length: ref.Length,
		})
	}

	if wrote, err := r.Structured(out); wrote {
		return err
	}

	title := fmt.Sprintf(`References to \%s (%d)`, name, len(refs))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, title))
		r.Println("")
	} else {
		r.Header(1, title)
	}
	if len(refs) == 0 {
		r.Println("No references found.")
		return nil
	}

	rows := make([][]string, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, []string{relPath(root, ref.File), strconv.Itoa(ref.Line), strconv.Itoa(ref.Column)})
	}
	r.Table([]string{"File", "Line", "Column"}, rows)
	return nil
}
