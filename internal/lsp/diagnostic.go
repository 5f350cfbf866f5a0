package lsp

import (
	"fmt"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

// Diagnostic codes.
const (
	CodeDuplicateDefinition = "duplicate-definition"
)

const diagnosticSource = "texmacros"

// publishDiagnostics checks the document's \newcommand declarations against
// the index and publishes the result. Every fix found along the way is
// cached for code actions.
func (s *Server) publishDiagnostics(uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	diagnostics := []Diagnostic{}
	s.fixes.clearURI(uri)
	if isTeX(doc) {
		for _, f := range s.duplicateDefinitions(doc) {
			diagnostics = append(diagnostics, f.diagnostic)
			s.fixes.cacheFixes(uri, f.diagnostic, f.edits)
		}
	}

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

type finding struct {
	diagnostic Diagnostic
	edits      []TextEdit
}

// duplicateDefinitions flags a \newcommand whose name was already declared
// with \newcommand earlier in index order. LaTeX rejects the second
// declaration; \renewcommand is the fix.
func (s *Server) duplicateDefinitions(doc *Document) []finding {
	defs := macro.ParseBuffer(doc.Content, doc.Path(), doc)

	var findings []finding
	for _, d := range defs {
		if !d.Kind.Declares() {
			continue
		}
		first, ok := s.firstDeclaration(d.Name, defs)
		if !ok || first.Location == d.Location {
			continue
		}

		start := Position{
			Line:      uint32(d.Location.Line - 1), //nolint:gosec // G115: line is always >= 1
			Character: uint32(d.Location.Column),   //nolint:gosec // G115: column is always non-negative
		}
		end := start
		end.Character += uint32(len(d.Kind.Command())) //nolint:gosec // G115: keyword length is small
		rng := Range{Start: start, End: end}

		renew := macro.KindRedefine
		if d.Kind.Silent() {
			renew = macro.KindRedefineSilent
		}

		findings = append(findings, finding{
			diagnostic: Diagnostic{
				Range:    rng,
				Severity: DiagnosticSeverityWarning,
				Code:     CodeDuplicateDefinition,
				Source:   diagnosticSource,
				Message: fmt.Sprintf(`\%s is already defined at %s:%d; use %s to redefine it`,
					d.Name, s.displayPath(first.Location.File), first.Location.Line, renew.Command()),
			},
			edits: []TextEdit{{Range: rng, NewText: renew.Command()}},
		})
	}
	return findings
}

// firstDeclaration returns the first \newcommand of name. The index decides
// the order across files; before it is ready only the document is used.
func (s *Server) firstDeclaration(name string, local []macro.Definition) (macro.Definition, bool) {
	candidates := local
	if s.index != nil && s.index.IsReady() {
		candidates = s.index.Definitions(s.ctx, name)
	}
	for _, d := range candidates {
		if d.Name == name && d.Kind.Declares() {
			return d, true
		}
	}
	return macro.Definition{}, false
}
