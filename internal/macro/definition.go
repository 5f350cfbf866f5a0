// Package macro extracts LaTeX macro definitions from source text.
// Parsing is static: nothing is expanded or executed, definitions are located
// with anchored patterns and their bodies are cut out by brace balancing.
package macro

import (
	"fmt"
	"path/filepath"
)

// Kind identifies the construct a macro was declared with.
type Kind int

const (
	// KindStandard is \newcommand.
	KindStandard Kind = iota
	// KindStandardSilent is \newcommand*.
	KindStandardSilent
	// KindRedefine is \renewcommand.
	KindRedefine
	// KindRedefineSilent is \renewcommand*.
	KindRedefineSilent
	// KindLowLevel is the primitive \def.
	KindLowLevel
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindStandard, KindStandardSilent, KindRedefine, KindRedefineSilent, KindLowLevel}

var kindInfo = map[Kind]struct {
	name        string
	command     string
	displayName string
	description string
}{
	KindStandard:       {"standard", `\newcommand`, "New Commands", "Newly defined commands"},
	KindStandardSilent: {"standard-silent", `\newcommand*`, "New Commands (Short)", "Short form commands (no paragraph breaks)"},
	KindRedefine:       {"redefine", `\renewcommand`, "Renewed Commands", "Redefined existing commands"},
	KindRedefineSilent: {"redefine-silent", `\renewcommand*`, "Renewed Commands (Short)", "Short form redefined commands"},
	KindLowLevel:       {"low-level", `\def`, "TeX Definitions", "Low-level TeX definitions"},
}

// String returns the stable identifier of the kind (e.g. "redefine-silent").
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command returns the TeX control sequence that produces this kind.
func (k Kind) Command() string {
	return kindInfo[k].command
}

// DisplayName returns a human-readable group title.
func (k Kind) DisplayName() string {
	return kindInfo[k].displayName
}

// Description returns a one-line explanation of the kind.
func (k Kind) Description() string {
	return kindInfo[k].description
}

// Silent reports whether the starred (short, no \par) form was used.
func (k Kind) Silent() bool {
	return k == KindStandardSilent || k == KindRedefineSilent
}

// ParseKind converts an identifier produced by String back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown macro kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindInfo[k]; !ok {
		return nil, fmt.Errorf("unknown macro kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Location points at the first character of a defining construct.
type Location struct {
	File   string `json:"file" yaml:"file"`     // Absolute path
	Line   int    `json:"line" yaml:"line"`     // 1-based
	Column int    `json:"column" yaml:"column"` // 0-based, UTF-16 code units
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Definition is one parsed macro definition occurrence.
// The same name can be defined several times; Name and Location together
// identify a record.
type Definition struct {
	Name       string   `json:"name" yaml:"name"`
	Body       string   `json:"definition" yaml:"definition"`
	Parameters int      `json:"parameters" yaml:"parameters"`
	Location   Location `json:"location" yaml:"location"`
	Kind       Kind     `json:"type" yaml:"type"`

	// DefaultValue is nil unless the macro declares an optional first
	// argument. An empty string is a valid (empty) default.
	DefaultValue *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// HasOptionalArg reports whether the first argument is optional.
func (d Definition) HasOptionalArg() bool {
	return d.DefaultValue != nil
}

// Default returns the default of the optional first argument, if any.
func (d Definition) Default() (string, bool) {
	if d.DefaultValue == nil {
		return "", false
	}
	return *d.DefaultValue, true
}

// Header renders the declaration line, e.g. \newcommand{\fig}[1]{...}.
func (d Definition) Header() string {
	if d.Kind == KindLowLevel {
		params := ""
		for i := 1; i <= d.Parameters; i++ {
			params += fmt.Sprintf("#%d", i)
		}
		return fmt.Sprintf(`\def\%s%s{...}`, d.Name, params)
	}
	s := fmt.Sprintf(`%s{\%s}`, d.Kind.Command(), d.Name)
	if d.Parameters > 0 {
		s += fmt.Sprintf("[%d]", d.Parameters)
	}
	if d.DefaultValue != nil {
		s += "[" + *d.DefaultValue + "]"
	}
	return s + "{...}"
}

// ReadError reports a file that could not be read for parsing.
type ReadError struct {
	File string
	Err  error
}

func (e *ReadError) Error() string {
	return "read " + filepath.Base(e.File) + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
