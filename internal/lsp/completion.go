package lsp

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/texmacros/internal/macro"
)

// signatureLookback bounds how far before the cursor signature help looks
// for the macro being called.
const signatureLookback = 4000

var controlWordPattern = regexp.MustCompile(`\\([A-Za-z@]+)`)

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, &CompletionList{Items: s.getCompletions(params)}, nil)
	return nil
}

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getHover(params), nil)
	return nil
}

func (s *Server) handleSignatureHelp(msg *JSONRPCMessage) error {
	var params SignatureHelpParams
	if err := s.decodeParams(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getSignatureHelp(params), nil)
	return nil
}

// getCompletions offers every known macro name once when the cursor follows
// a backslash and a partial control word.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if s.index == nil || !isTeX(doc) {
		return []CompletionItem{}
	}

	prefix := doc.LinePrefix(params.Position)
	slash := strings.LastIndexByte(prefix, '\\')
	if slash < 0 {
		return []CompletionItem{}
	}
	for i := slash + 1; i < len(prefix); i++ {
		if !isNameChar(prefix[i]) {
			return []CompletionItem{}
		}
	}

	replace := Range{
		Start: Position{Line: params.Position.Line, Character: uint32(macro.UTF16Len(prefix[:slash+1]))}, //nolint:gosec // G115: length is always non-negative
		End:   params.Position,
	}

	seen := make(map[string]bool)
	items := []CompletionItem{}
	for _, d := range s.index.AllMacros(s.ctx) {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true

		format := InsertTextFormatPlainText
		insert := d.Name
		if s.snippets {
			format = InsertTextFormatSnippet
			insert += argumentSnippet(d)
		}

		detail := `\` + d.Name
		if sig, ok := macro.ToSignature(d); ok {
			detail = sig.Signature
		}

		items = append(items, CompletionItem{
			Label:            d.Name,
			Kind:             CompletionItemKindFunction,
			Detail:           detail,
			Documentation:    latexBlock(d.Body),
			SortText:         "0_" + d.Name,
			FilterText:       d.Name,
			InsertTextFormat: format,
			TextEdit:         &TextEdit{Range: replace, NewText: insert},
		})
	}
	return items
}

// argumentSnippet renders tab stops for the macro's arguments, e.g.
// [${1:0.5}]{${2:arg2}}.
func argumentSnippet(d macro.Definition) string {
	var b strings.Builder
	first := 1
	if dflt, ok := d.Default(); ok {
		fmt.Fprintf(&b, "[${1:%s}]", escapeSnippet(dflt))
		first = 2
	}
	for i := first; i <= d.Parameters; i++ {
		fmt.Fprintf(&b, "{${%d:arg%d}}", i, i)
	}
	return b.String()
}

var snippetEscaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`)

func escapeSnippet(s string) string {
	return snippetEscaper.Replace(s)
}

func latexBlock(body string) *MarkupContent {
	if body == "" {
		return nil
	}
	return &MarkupContent{Kind: MarkupKindMarkdown, Value: "```latex\n" + body + "\n```"}
}

// getHover describes the macro under the cursor: its declaration, body,
// where it is defined and, when the call has arguments, its expansion.
func (s *Server) getHover(params HoverParams) *Hover {
	if s.index == nil {
		return nil
	}
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	name, rng, ok := doc.MacroAt(params.Position)
	if !ok {
		return nil
	}

	defs := s.index.Definitions(s.ctx, name)
	if len(defs) == 0 {
		return nil
	}
	d := defs[0]

	var b strings.Builder
	fmt.Fprintf(&b, "```latex\n%s\n```\n\n", d.Header())
	if d.Body != "" {
		fmt.Fprintf(&b, "```latex\n%s\n```\n\n", d.Body)
	}
	fmt.Fprintf(&b, "*%s* in `%s:%d`", d.Kind.DisplayName(), s.displayPath(d.Location.File), d.Location.Line)
	if len(defs) > 1 {
		fmt.Fprintf(&b, " (defined %d times)", len(defs))
	}

	start := doc.PositionToOffset(rng.Start)
	if u, ok := macro.ParseUsage(doc.Content[start:]); ok && u.Name == name && (len(u.Args) > 0 || u.Optional != nil) {
		fmt.Fprintf(&b, "\n\n**Expands to:** `%s`", macro.Expand(d, u))
	}

	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: b.String()},
		Range:    &rng,
	}
}

// displayPath shortens paths under the project root.
func (s *Server) displayPath(path string) string {
	if s.projectRoot != "" {
		if rel, err := filepath.Rel(s.projectRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return path
}

// getSignatureHelp shows the arguments of the nearest macro call before the
// cursor and which one is being typed.
func (s *Server) getSignatureHelp(params SignatureHelpParams) *SignatureHelp {
	doc := s.documents.Get(params.TextDocument.URI)
	if s.index == nil || !isTeX(doc) {
		return nil
	}

	offset := doc.PositionToOffset(params.Position)
	lookStart := max(0, offset-signatureLookback)
	matches := controlWordPattern.FindAllStringSubmatchIndex(doc.Content[lookStart:offset], -1)
	if len(matches) == 0 {
		return nil
	}
	m := matches[len(matches)-1]
	name := doc.Content[lookStart+m[2] : lookStart+m[3]]

	d, ok := s.index.FirstDefinition(s.ctx, name)
	if !ok {
		return nil
	}

	label, parts := signatureLabel(d)
	info := SignatureInformation{Label: label}
	for _, p := range parts {
		info.Parameters = append(info.Parameters, ParameterInformation{Label: p})
	}
	info.Documentation = d.Body

	active := activeArgument(doc.Content, lookStart+m[1], offset, d.HasOptionalArg())
	if active >= len(parts) {
		active = len(parts) - 1
	}
	return &SignatureHelp{
		Signatures:      []SignatureInformation{info},
		ActiveParameter: uint32(max(0, active)), //nolint:gosec // G115: clamped to non-negative
	}
}

// signatureLabel renders \name[default]{#2}... and the label of each
// argument.
func signatureLabel(d macro.Definition) (string, []string) {
	var parts []string
	first := 1
	if dflt, ok := d.Default(); ok {
		parts = append(parts, "["+dflt+"]")
		first = 2
	}
	for i := first; i <= d.Parameters; i++ {
		parts = append(parts, fmt.Sprintf("{#%d}", i))
	}
	return `\` + d.Name + strings.Join(parts, ""), parts
}

// activeArgument counts the argument groups closed between the end of the
// macro name and the cursor. A [..] group is only recognised as the first
// argument of a macro with an optional argument.
func activeArgument(text string, from, cursor int, optional bool) int {
	arg := 0
	i := from
	for {
		for i < cursor && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		if i >= cursor {
			return arg
		}

		end := -1
		switch text[i] {
		case '[':
			if !optional || arg != 0 {
				return arg
			}
			if j := strings.IndexByte(text[i:], ']'); j >= 0 {
				end = i + j
			}
		case '{':
			if optional && arg == 0 {
				// optional argument omitted
				arg = 1
			}
			if body, ok := macro.ExtractBalanced(text, i); ok {
				end = i + len(body) + 1
			}
		default:
			return arg
		}

		if end < 0 || end >= cursor {
			return arg
		}
		arg++
		i = end + 1
	}
}
