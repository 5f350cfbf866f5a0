package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{"", ModeMarkdown},
		{ModeAuto, ModeMarkdown},
		{ModeText, ModeText},
		{ModeMarkdown, ModeMarkdown},
		{ModeJSON, ModeJSON},
		{ModeYAML, ModeYAML},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.False(t, r.IsTTY())
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_PlainOutputWithoutTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeText)

	r.Header(1, "Macros")
	r.Success("done")
	r.Muted("quiet")
	r.Warning("careful")
	r.Error("broken")

	assert.Equal(t, "Macros\n✓ done\nquiet\n", out.String())
	assert.Equal(t, "! careful\n✗ broken\n", errOut.String())
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeJSON)

	wrote, err := r.Structured(ReferencesOutput{Name: "R", Total: 1, References: []ReferenceInfo{{File: "/p/a.tex", Line: 2, Length: 2}}})
	require.NoError(t, err)
	assert.True(t, wrote)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "R", got["name"])
	refs := got["references"].([]any)
	require.Len(t, refs, 1)
	assert.Equal(t, "/p/a.tex", refs[0].(map[string]any)["file"])
}

func TestRenderer_YAML(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeYAML)

	wrote, err := r.Structured(DefinitionsOutput{Name: "R"})
	require.NoError(t, err)
	assert.True(t, wrote)

	var got DefinitionsOutput
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "R", got.Name)
}

func TestRenderer_StructuredSkipsTextModes(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeMarkdown)

	wrote, err := r.Structured(ListOutput{})
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Empty(t, out.String())
}

func TestRenderer_Table(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		var out bytes.Buffer
		r := NewRenderer(&out, &bytes.Buffer{}, ModeMarkdown)
		r.Table([]string{"Name", "Args"}, [][]string{{`\R`, "0"}})

		assert.Contains(t, out.String(), "| Name | Args |")
		assert.Contains(t, out.String(), `| \R | 0 |`)
	})

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		r := NewRenderer(&out, &bytes.Buffer{}, ModeText)
		r.Table([]string{"Name"}, [][]string{{`\R`}})

		assert.Contains(t, out.String(), "┌")
		assert.Contains(t, out.String(), `\R`)
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Macros", FormatHeader(1, "Macros"))
	assert.Equal(t, "### Deep", FormatHeader(3, "Deep"))
	assert.Equal(t, "# Low", FormatHeader(0, "Low"))
	assert.Equal(t, "- **File:** main.tex", FormatKeyValue("File", "main.tex"))
	assert.Equal(t, "```latex\n\\R\n```", FormatCodeBlock("latex", "\\R\n"))
	assert.Equal(t, "`\\R`", FormatInlineCode(`\R`))
}
