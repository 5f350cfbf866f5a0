package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUsage(t *testing.T) {
	tests := []struct {
		text     string
		wantName string
		wantOpt  *string
		wantArgs []string
		wantText string
	}{
		{`\fig{a.png}`, "fig", nil, []string{"a.png"}, `\fig{a.png}`},
		{`  \fig[0.5]{a.png}{Cap {nested}} tail`, "fig", ptr("0.5"), []string{"a.png", "Cap {nested}"}, `\fig[0.5]{a.png}{Cap {nested}}`},
		{`\R`, "R", nil, nil, `\R`},
		{`\pair {x} {y}`, "pair", nil, []string{"x", "y"}, `\pair {x} {y}`},
		{`\make@it{z}`, "make@it", nil, []string{"z"}, `\make@it{z}`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			u, ok := ParseUsage(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, u.Name)
			assert.Equal(t, tt.wantOpt, u.Optional)
			assert.Equal(t, tt.wantArgs, u.Args)
			assert.Equal(t, tt.wantText, u.Text)
		})
	}
}

func TestParseUsage_NoMacro(t *testing.T) {
	_, ok := ParseUsage("plain text")
	assert.False(t, ok)

	_, ok = ParseUsage(`\{`)
	assert.False(t, ok)
}

func TestExpand(t *testing.T) {
	fig := Definition{
		Name:         "fig",
		Parameters:   3,
		Body:         `\includegraphics[width=#1]{#2}\caption{#3}`,
		DefaultValue: ptr(`\textwidth`),
	}

	u, _ := ParseUsage(`\fig{a.png}{A cat}`)
	assert.Equal(t, `\includegraphics[width=\textwidth]{a.png}\caption{A cat}`, Expand(fig, u))

	u, _ = ParseUsage(`\fig[5cm]{a.png}{A cat}`)
	assert.Equal(t, `\includegraphics[width=5cm]{a.png}\caption{A cat}`, Expand(fig, u))

	plain := Definition{Name: "pair", Parameters: 2, Body: `(#1, #2)`}
	u, _ = ParseUsage(`\pair{x}`)
	assert.Equal(t, `(x, #2)`, Expand(plain, u))
}
