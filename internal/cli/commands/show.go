package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/macro"
)

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <macro>",
		Short: "Describe a macro",
		Long: `Describe the first definition of a macro: its declaration, a usage
example with placeholder arguments and what that example expands to.
Macros that load files also show their path signature.`,
		Example: `  # Describe \fig
  texmacros show fig`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}

	return cmd
}

func runShow(cmd *cobra.Command, arg string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	name, defs, err := lookupDefinitions(ctx, cmdCtx.Index, arg)
	if err != nil {
		return err
	}
	root := cmdCtx.Index.Root()
	d := defs[0]

	out := output.ShowOutput{
		Name:       name,
		Definition: d,
		Header:     d.Header(),
		Usage:      macro.UsageExample(d),
		Redefined:  len(defs) - 1,
		References: len(cmdCtx.Index.FindReferences(ctx, name)),
	}
	if sig, ok := macro.ToSignature(d); ok {
		out.Signature = &sig
	}
	if u, ok := macro.ParseUsage(out.Usage); ok {
		out.Expansion = macro.Expand(d, u)
	}

	if wrote, err := r.Structured(out); wrote {
		return err
	}

	location := fmt.Sprintf("%s:%d", relPath(root, d.Location.File), d.Location.Line)

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, `\`+name))
		r.Println("")
		r.Println(output.FormatKeyValue("Type", d.Kind.DisplayName()))
		r.Println(output.FormatKeyValue("Defined in", location))
		r.Println(output.FormatKeyValue("Declaration", output.FormatInlineCode(out.Header)))
		r.Println(output.FormatKeyValue("Usage", output.FormatInlineCode(out.Usage)))
		if out.Expansion != "" {
			r.Println(output.FormatKeyValue("Expands to", output.FormatInlineCode(out.Expansion)))
		}
		if out.Signature != nil {
			r.Println(output.FormatKeyValue("Path signature", output.FormatInlineCode(out.Signature.Signature)))
		}
		if out.Redefined > 0 {
			r.Println(output.FormatKeyValue("Redefinitions", strconv.Itoa(out.Redefined)))
		}
		r.Println(output.FormatKeyValue("References", strconv.Itoa(out.References)))
		r.Println("")
		r.Println(output.FormatCodeBlock("latex", d.Body))
		return nil
	}

	styles := r.Styles()
	r.Header(1, `\`+name)
	r.Printf("%s %s\n", styles.Bold.Render("Type:       "), d.Kind.DisplayName())
	r.Printf("%s %s\n", styles.Bold.Render("Defined in: "), styles.Location.Render(location))
	r.Printf("%s %s\n", styles.Bold.Render("Declaration:"), styles.Macro.Render(out.Header))
	r.Printf("%s %s\n", styles.Bold.Render("Usage:      "), styles.Code.Render(out.Usage))
	if out.Expansion != "" {
		r.Printf("%s %s\n", styles.Bold.Render("Expands to: "), styles.Code.Render(out.Expansion))
	}
	if out.Signature != nil {
		r.Printf("%s %s\n", styles.Bold.Render("Path:       "), styles.Code.Render(out.Signature.Signature))
	}
	if out.Redefined > 0 {
		r.Muted(fmt.Sprintf("Defined %d more time(s) elsewhere in the project.", out.Redefined))
	}
	r.Printf("%s %d\n", styles.Bold.Render("References: "), out.References)
	return nil
}
