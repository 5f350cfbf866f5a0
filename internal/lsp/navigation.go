package lsp

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/texmacros/internal/index"
	"github.com/leapstack-labs/texmacros/internal/macro"
)

// showReferencesCommand is the client command a reference code lens runs.
const showReferencesCommand = "texmacros.showReferences"

func (s *Server) handleDefinition(msg *JSONRPCMessage) error {
	var params DefinitionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getDefinitions(params.TextDocumentPositionParams), nil)
	return nil
}

func (s *Server) handleReferences(msg *JSONRPCMessage) error {
	var params ReferenceParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getReferences(params), nil)
	return nil
}

func (s *Server) handleCodeLens(msg *JSONRPCMessage) error {
	var params CodeLensParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getCodeLenses(params), nil)
	return nil
}

// macroAt resolves the control sequence under the cursor.
func (s *Server) macroAt(params TextDocumentPositionParams) (*Document, string, bool) {
	if s.index == nil {
		return nil, "", false
	}
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, "", false
	}
	name, _, ok := doc.MacroAt(params.Position)
	return doc, name, ok
}

// getDefinitions returns every definition of the macro under the cursor.
func (s *Server) getDefinitions(params TextDocumentPositionParams) []Location {
	_, name, ok := s.macroAt(params)
	if !ok {
		return nil
	}

	defs := s.index.Definitions(s.ctx, name)
	if len(defs) == 0 {
		return nil
	}
	locations := make([]Location, 0, len(defs))
	for _, d := range defs {
		locations = append(locations, pointLocation(d.Location))
	}
	return locations
}

// getReferences returns the usages of the macro under the cursor. Defining
// occurrences are dropped unless the client asks for declarations.
func (s *Server) getReferences(params ReferenceParams) []Location {
	_, name, ok := s.macroAt(params.TextDocumentPositionParams)
	if !ok {
		return nil
	}

	refs := s.index.FindReferences(s.ctx, name)
	var declared map[macro.Location]bool
	if !params.Context.IncludeDeclaration {
		declared = s.declarationSet(name)
	}

	locations := make([]Location, 0, len(refs))
	for _, r := range refs {
		if declared[r.Location] {
			continue
		}
		locations = append(locations, referenceLocation(r))
	}
	return locations
}

// declarationSet holds the position of each defined name inside its
// definitions, which is where reference search finds a declaration.
func (s *Server) declarationSet(name string) map[macro.Location]bool {
	set := make(map[macro.Location]bool)
	for _, d := range s.index.Definitions(s.ctx, name) {
		set[d.Location] = true
		if loc, ok := s.nameLocation(d); ok {
			set[loc] = true
		}
	}
	return set
}

// nameLocation finds \name inside the defining construct. Definitions start
// at the keyword, while a reference points at the name.
func (s *Server) nameLocation(d macro.Definition) (macro.Location, bool) {
	doc := s.documents.Get(PathToURI(d.Location.File))
	if doc == nil {
		return s.nameLocationOnDisk(d)
	}
	return findNameAfter(doc.Content, doc, d)
}

func (s *Server) nameLocationOnDisk(d macro.Definition) (macro.Location, bool) {
	data, err := os.ReadFile(d.Location.File)
	if err != nil {
		return macro.Location{}, false
	}
	text := string(data)
	return findNameAfter(text, macro.NewLineIndex(text), d)
}

func findNameAfter(text string, pos macro.Positioner, d macro.Definition) (macro.Location, bool) {
	lines := macro.NewLineIndex(text)
	start, _, ok := lines.LineSpan(d.Location.Line - 1)
	if !ok {
		return macro.Location{}, false
	}
	offset := start + byteOffset(text[start:], d.Location.Column)
	rest := text[offset:]

	needle := `\` + d.Name
	for i := len(d.Kind.Command()); i+len(needle) <= len(rest); i++ {
		if rest[i:i+len(needle)] != needle {
			continue
		}
		end := i + len(needle)
		if end < len(rest) && isNameChar(rest[end]) {
			continue
		}
		line, col := pos.LocationAt(offset + i)
		return macro.Location{File: d.Location.File, Line: line, Column: col}, true
	}
	return macro.Location{}, false
}

// byteOffset converts a UTF-16 column to a byte offset within line.
func byteOffset(line string, column int) int {
	units := 0
	for i, r := range line {
		if units >= column {
			return i
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return len(line)
}

// getCodeLenses puts a reference count above each definition in the
// document.
func (s *Server) getCodeLenses(params CodeLensParams) []CodeLens {
	doc := s.documents.Get(params.TextDocument.URI)
	if s.index == nil || !isTeX(doc) {
		return nil
	}

	defs := macro.ParseBuffer(doc.Content, doc.Path(), doc)
	lenses := make([]CodeLens, 0, len(defs))
	for _, d := range defs {
		if s.ctx.Err() != nil {
			break
		}

		declared := s.declarationSet(d.Name)
		count := 0
		for _, r := range s.index.FindReferences(s.ctx, d.Name) {
			if !declared[r.Location] {
				count++
			}
		}

		title := fmt.Sprintf("%d references", count)
		if count == 1 {
			title = "1 reference"
		}
		line := uint32(d.Location.Line - 1) //nolint:gosec // G115: line is always >= 1
		lenses = append(lenses, CodeLens{
			Range: Range{Start: Position{Line: line}, End: Position{Line: line}},
			Command: &Command{
				Title:   title,
				Command: showReferencesCommand,
				Arguments: []any{
					doc.URI,
					Position{Line: line, Character: uint32(d.Location.Column)}, //nolint:gosec // G115: column is always non-negative
					d.Name,
				},
			},
		})
	}
	return lenses
}

func pointLocation(loc macro.Location) Location {
	p := Position{
		Line:      uint32(loc.Line - 1), //nolint:gosec // G115: line is always >= 1
		Character: uint32(loc.Column),   //nolint:gosec // G115: column is always non-negative
	}
	return Location{URI: PathToURI(loc.File), Range: Range{Start: p, End: p}}
}

func referenceLocation(r index.Reference) Location {
	loc := pointLocation(r.Location)
	loc.Range.End.Character += uint32(r.Length) //nolint:gosec // G115: length is always non-negative
	return loc
}
