package lsp

import (
	"fmt"
	"sync"
)

// fixCache stores fixes for published diagnostics, keyed by URI and then by
// diagnostic code and start position.
type fixCache struct {
	mu    sync.RWMutex
	fixes map[string]map[string][]TextEdit
}

func newFixCache() *fixCache {
	return &fixCache{fixes: make(map[string]map[string][]TextEdit)}
}

func fixKey(d Diagnostic) string {
	return fmt.Sprintf("%s@%d:%d", d.Code, d.Range.Start.Line, d.Range.Start.Character)
}

// cacheFixes stores the edits that resolve d.
func (c *fixCache) cacheFixes(uri string, d Diagnostic, edits []TextEdit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fixes[uri] == nil {
		c.fixes[uri] = make(map[string][]TextEdit)
	}
	c.fixes[uri][fixKey(d)] = edits
}

// getFixes retrieves the edits cached for d.
func (c *fixCache) getFixes(uri string, d Diagnostic) []TextEdit {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fixes[uri][fixKey(d)]
}

// clearURI removes all cached fixes for a URI.
func (c *fixCache) clearURI(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fixes, uri)
}

// handleCodeAction handles the textDocument/codeAction request.
func (s *Server) handleCodeAction(msg *JSONRPCMessage) error {
	var params CodeActionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getCodeActions(params), nil)
	return nil
}

// getCodeActions returns a quick fix for every diagnostic in the request
// that has a cached fix.
func (s *Server) getCodeActions(params CodeActionParams) []CodeAction {
	actions := []CodeAction{}
	if !wantsQuickFix(params.Context.Only) {
		return actions
	}

	for _, diag := range params.Context.Diagnostics {
		edits := s.fixes.getFixes(params.TextDocument.URI, diag)
		if len(edits) == 0 {
			continue
		}

		actions = append(actions, CodeAction{
			Title:       fmt.Sprintf("Replace with %s", edits[0].NewText),
			Kind:        CodeActionKindQuickFix,
			Diagnostics: []Diagnostic{diag},
			IsPreferred: true,
			Edit: &WorkspaceEdit{
				Changes: map[string][]TextEdit{params.TextDocument.URI: edits},
			},
		})
	}
	return actions
}

func wantsQuickFix(only []CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if k == CodeActionKindQuickFix || k == "" {
			return true
		}
	}
	return false
}
