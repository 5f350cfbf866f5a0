package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/macro"
)

// ErrLintIssues is returned when lint finds at least one issue, so scripts
// can rely on the exit status.
var ErrLintIssues = errors.New("lint issues found")

// LintIssue is one reported problem.
type LintIssue struct {
	Code       string         `json:"code" yaml:"code"`
	Message    string         `json:"message" yaml:"message"`
	Location   macro.Location `json:"location" yaml:"location"`
	Suggestion string         `json:"suggestion" yaml:"suggestion"`
}

// LintOutput is the structured result of the lint command.
type LintOutput struct {
	Root   string      `json:"root" yaml:"root"`
	Issues []LintIssue `json:"issues" yaml:"issues"`
}

// NewLintCommand creates the lint command.
func NewLintCommand() *cobra.Command {
	var noFail bool

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Report macros declared more than once",
		Long: `Analyze the project for \newcommand declarations of a name that an
earlier \newcommand already declared. LaTeX aborts on these; the fix is
\renewcommand (or \renewcommand* for the starred form).

Exits with status 1 when issues are found unless --no-fail is given.`,
		Example: `  # Lint the project
  texmacros lint

  # Machine-readable report
  texmacros lint -o json --no-fail`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLint(cmd, noFail)
		},
	}

	cmd.Flags().BoolVar(&noFail, "no-fail", false, "Exit with status 0 even when issues are found")

	return cmd
}

func runLint(cmd *cobra.Command, noFail bool) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	defs := cmdCtx.Index.AllMacros(cmd.Context())
	root := cmdCtx.Index.Root()

	out := LintOutput{Root: root, Issues: []LintIssue{}}
	for _, dup := range macro.Duplicates(defs) {
		renew := macro.KindRedefine
		if dup.Definition.Kind.Silent() {
			renew = macro.KindRedefineSilent
		}
		out.Issues = append(out.Issues, LintIssue{
			Code: "duplicate-definition",
			Message: fmt.Sprintf(`\%s is already defined at %s:%d`,
				dup.Definition.Name, relPath(root, dup.First.Location.File), dup.First.Location.Line),
			Location:   dup.Definition.Location,
			Suggestion: renew.Command(),
		})
	}

	wrote, err := r.Structured(out)
	if err != nil {
		return err
	}
	if !wrote {
		renderLint(r, root, out)
	}

	if len(out.Issues) > 0 && !noFail {
		return ErrLintIssues
	}
	return nil
}

func renderLint(r *output.Renderer, root string, out LintOutput) {
	if len(out.Issues) == 0 {
		r.Success("No lint issues found")
		return
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, fmt.Sprintf("Lint issues (%d)", len(out.Issues))))
		r.Println("")
		for _, issue := range out.Issues {
			r.Println(fmt.Sprintf("- `%s:%d:%d` %s (use `%s`)",
				relPath(root, issue.Location.File), issue.Location.Line, issue.Location.Column,
				issue.Message, issue.Suggestion))
		}
		return
	}

	styles := r.Styles()
	for _, issue := range out.Issues {
		loc := fmt.Sprintf("%s:%d:%d", relPath(root, issue.Location.File), issue.Location.Line, issue.Location.Column)
		r.Printf("%s %s %s\n    %s\n",
			styles.Location.Render(loc),
			styles.Warning.Render("warning"),
			issue.Message,
			styles.Muted.Render("fix: replace with "+issue.Suggestion))
	}
	r.Println("")
	r.Println(styles.Bold.Render(fmt.Sprintf("%d issue(s)", len(out.Issues))))
}
