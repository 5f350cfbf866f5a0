package output

import "github.com/leapstack-labs/texmacros/internal/macro"

// ListOutput is the structured result of the list command.
type ListOutput struct {
	Root   string        `json:"root" yaml:"root"`
	Total  int           `json:"total" yaml:"total"`
	Groups []macro.Group `json:"groups" yaml:"groups"`
}

// DefinitionsOutput is the structured result of the defs command.
type DefinitionsOutput struct {
	Name        string             `json:"name" yaml:"name"`
	Definitions []macro.Definition `json:"definitions" yaml:"definitions"`
}

// ReferenceInfo is one usage of a macro.
type ReferenceInfo struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
	Length int    `json:"length" yaml:"length"`
}

// ReferencesOutput is the structured result of the refs command.
type ReferencesOutput struct {
	Name       string          `json:"name" yaml:"name"`
	Total      int             `json:"total" yaml:"total"`
	References []ReferenceInfo `json:"references" yaml:"references"`
}

// ShowOutput is the structured result of the show command.
type ShowOutput struct {
	Name       string           `json:"name" yaml:"name"`
	Definition macro.Definition `json:"definition" yaml:"definition"`
	Header     string           `json:"header" yaml:"header"`
	Usage      string           `json:"usage" yaml:"usage"`
	Signature  *macro.Signature `json:"signature,omitempty" yaml:"signature,omitempty"`
	Expansion  string           `json:"expansion,omitempty" yaml:"expansion,omitempty"`
	Redefined  int              `json:"redefinitions" yaml:"redefinitions"`
	References int              `json:"references" yaml:"references"`
}
