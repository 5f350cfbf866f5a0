package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/texmacros/internal/cli/output"
	"github.com/leapstack-labs/texmacros/internal/config"
	"github.com/leapstack-labs/texmacros/internal/macro"
	"github.com/leapstack-labs/texmacros/internal/testutil"
)

const (
	mainTeX = `\documentclass{article}
\input{macros}
\newcommand{\R}{\mathbb{R}}
\begin{document}
$\R$ and \fig{a.png}
\end{document}
`
	macrosTeX = `\newcommand{\fig}[2][0.5]{\includegraphics[width=#1\linewidth]{#2}}
\newcommand{\R}{\mathbf{R}}
\def\half#1{#1/2}
`
)

func writeThesis(t *testing.T) string {
	t.Helper()
	return testutil.WriteProject(t, map[string]string{
		"main.tex":   mainTeX,
		"macros.tex": macrosTeX,
	})
}

// execute runs cmd against a project in dir with the given output mode.
func execute(t *testing.T, cmd *cobra.Command, dir string, mode output.Mode, args ...string) (string, error) {
	t.Helper()

	cfg := config.Default(dir)
	cfg.Output = string(mode)
	ctx := config.WithConfig(context.Background(), cfg)

	if args == nil {
		// nil makes cobra fall back to os.Args.
		args = []string{}
	}

	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd *cobra.Command
		use string
	}{
		{NewListCommand(), "list"},
		{NewDefsCommand(), "defs <macro>"},
		{NewRefsCommand(), "refs <macro>"},
		{NewShowCommand(), "show <macro>"},
		{NewLintCommand(), "lint"},
		{NewWatchCommand(), "watch"},
		{NewLSPCommand(), "lsp"},
		{NewInitCommand(), "init [directory]"},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
		})
	}
}

func TestList_JSON(t *testing.T) {
	dir := writeThesis(t)

	out, err := execute(t, NewListCommand(), dir, output.ModeJSON)
	require.NoError(t, err)

	var got output.ListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, dir, got.Root)
	assert.Equal(t, 4, got.Total)
	require.Len(t, got.Groups, 2)

	assert.Equal(t, macro.KindStandard, got.Groups[0].Kind)
	var names []string
	for _, d := range got.Groups[0].Macros {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"fig", "R", "R"}, names)

	assert.Equal(t, macro.KindLowLevel, got.Groups[1].Kind)
	assert.Equal(t, "half", got.Groups[1].Macros[0].Name)
}

func TestList_Markdown(t *testing.T) {
	dir := writeThesis(t)

	out, err := execute(t, NewListCommand(), dir, output.ModeMarkdown)
	require.NoError(t, err)

	assert.Contains(t, out, "# Macros (4 total)")
	assert.Contains(t, out, "## New Commands (3)")
	assert.Contains(t, out, "## TeX Definitions (1)")
	assert.Contains(t, out, "| Macro | Args | Body | Location |")
	assert.Contains(t, out, "macros.tex:1")
	assert.Contains(t, out, "2 [0.5]")
}

func TestList_EmptyProject(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, NewListCommand(), dir, output.ModeMarkdown)
	require.NoError(t, err)
	assert.Contains(t, out, "No macros found.")

	out, err = execute(t, NewListCommand(), dir, output.ModeJSON)
	require.NoError(t, err)
	assert.Contains(t, out, `"groups": []`)
}

func TestDefs(t *testing.T) {
	dir := writeThesis(t)

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, NewDefsCommand(), dir, output.ModeJSON, `\R`)
		require.NoError(t, err)

		var got output.DefinitionsOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "R", got.Name)
		require.Len(t, got.Definitions, 2)
		assert.Equal(t, filepath.Join(dir, "macros.tex"), got.Definitions[0].Location.File)
		assert.Equal(t, `\mathbf{R}`, got.Definitions[0].Body)
		assert.Equal(t, filepath.Join(dir, "main.tex"), got.Definitions[1].Location.File)
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := execute(t, NewDefsCommand(), dir, output.ModeMarkdown, "R")
		require.NoError(t, err)
		assert.Contains(t, out, `# \R (2 definitions)`)
		assert.Contains(t, out, "## macros.tex:2")
		assert.Contains(t, out, "```latex\n\\mathbb{R}\n```")
	})

	t.Run("undefined", func(t *testing.T) {
		_, err := execute(t, NewDefsCommand(), dir, output.ModeJSON, "nope")
		assert.ErrorContains(t, err, `\nope is not defined`)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := execute(t, NewDefsCommand(), dir, output.ModeJSON)
		assert.Error(t, err)
	})
}

func TestRefs(t *testing.T) {
	dir := writeThesis(t)

	out, err := execute(t, NewRefsCommand(), dir, output.ModeJSON, "R")
	require.NoError(t, err)

	var got output.ReferencesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Total)
	require.Len(t, got.References, 3)

	var locs []string
	for _, ref := range got.References {
		rel, err := filepath.Rel(dir, ref.File)
		require.NoError(t, err)
		locs = append(locs, rel+":"+strconv.Itoa(ref.Line)+":"+strconv.Itoa(ref.Column))
		assert.Equal(t, 2, ref.Length)
	}
	assert.ElementsMatch(t, []string{"macros.tex:2:12", "main.tex:3:12", "main.tex:5:1"}, locs)
}

func TestRefs_NoneFound(t *testing.T) {
	dir := writeThesis(t)

	out, err := execute(t, NewRefsCommand(), dir, output.ModeMarkdown, "unused")
	require.NoError(t, err)
	assert.Contains(t, out, `# References to \unused (0)`)
	assert.Contains(t, out, "No references found.")
}

func TestShow(t *testing.T) {
	dir := writeThesis(t)

	t.Run("path macro", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(), dir, output.ModeJSON, "fig")
		require.NoError(t, err)

		var got output.ShowOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, `\newcommand{\fig}[2][0.5]{...}`, got.Header)
		assert.Equal(t, `\fig{arg1}{arg2}`, got.Usage)
		require.NotNil(t, got.Signature)
		assert.Equal(t, `\fig{PATH}{arg2}`, got.Signature.Signature)
		assert.Equal(t, 0, got.Redefined)
		assert.Equal(t, 2, got.References)
	})

	t.Run("redefined macro", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(), dir, output.ModeMarkdown, "R")
		require.NoError(t, err)

		assert.Contains(t, out, `# \R`)
		assert.Contains(t, out, "- **Defined in:** macros.tex:2")
		assert.Contains(t, out, "- **Expands to:** `\\mathbf{R}`")
		assert.Contains(t, out, "- **Redefinitions:** 1")
		assert.NotContains(t, out, "Path signature")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, NewShowCommand(), dir, output.ModeYAML, "half")
		require.NoError(t, err)
		assert.Contains(t, out, "name: half")
		assert.Contains(t, out, "type: low-level")
	})
}

func TestLint(t *testing.T) {
	dir := writeThesis(t)

	t.Run("issues fail", func(t *testing.T) {
		out, err := execute(t, NewLintCommand(), dir, output.ModeJSON)
		require.ErrorIs(t, err, ErrLintIssues)

		var got LintOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got.Issues, 1)
		assert.Equal(t, "duplicate-definition", got.Issues[0].Code)
		assert.Equal(t, filepath.Join(dir, "main.tex"), got.Issues[0].Location.File)
		assert.Equal(t, 3, got.Issues[0].Location.Line)
		assert.Equal(t, `\renewcommand`, got.Issues[0].Suggestion)
		assert.Contains(t, got.Issues[0].Message, "macros.tex:2")
	})

	t.Run("no-fail", func(t *testing.T) {
		out, err := execute(t, NewLintCommand(), dir, output.ModeMarkdown, "--no-fail")
		require.NoError(t, err)
		assert.Contains(t, out, "# Lint issues (1)")
		assert.Contains(t, out, "`main.tex:3:0`")
	})

	t.Run("clean project", func(t *testing.T) {
		clean := testutil.WriteProject(t, map[string]string{"main.tex": `\newcommand{\a}{1}`})
		out, err := execute(t, NewLintCommand(), clean, output.ModeMarkdown)
		require.NoError(t, err)
		assert.Contains(t, out, "No lint issues found")
	})
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "a/b.tex", relPath("/p", "/p/a/b.tex"))
	assert.Equal(t, "/q/b.tex", relPath("/p", "/q/b.tex"))
	assert.Equal(t, "/q/b.tex", relPath("", "/q/b.tex"))
}
