package macro

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Each pattern anchors one construct family and ends on the opening brace of
// the body; the body itself is cut out by ExtractBalanced because nesting
// depth is unbounded.
var (
	// \newcommand(*){\name}[n][default]{ and the braceless \newcommand\name spelling.
	newCommandPattern = regexp.MustCompile(`\\newcommand(\*?)\s*(?:\{\s*\\([^}]+)\}|\\([A-Za-z@]+))(?:\s*\[(\d+)\])?(?:\s*\[([^\]]*)\])?\s*\{`)

	// Same shape as newCommandPattern.
	renewCommandPattern = regexp.MustCompile(`\\renewcommand(\*?)\s*(?:\{\s*\\([^}]+)\}|\\([A-Za-z@]+))(?:\s*\[(\d+)\])?(?:\s*\[([^\]]*)\])?\s*\{`)

	// \def\name<parameter text>{ where the parameter text holds #1#2...
	defPattern = regexp.MustCompile(`\\def\s*\\([^{#\s]+)([^{]*?)\s*\{`)

	placeholderPattern = regexp.MustCompile(`#(\d+)`)
)

// Submatch indices shared by the two declaration patterns.
const (
	groupStar = 1 + iota
	groupBracedName
	groupBareName
	groupArity
	groupDefault
)

// Parse extracts every macro definition in text. Positions are computed by
// indexing the text's line starts. Records are returned per family
// (\newcommand, \renewcommand, \def), each family in source order, and are
// never deduplicated.
func Parse(text, file string) []Definition {
	return ParseBuffer(text, file, NewLineIndex(text))
}

// ParseBuffer is Parse for an open buffer that can report positions itself.
// pos must describe exactly the given text.
func ParseBuffer(text, file string, pos Positioner) []Definition {
	if pos == nil {
		pos = NewLineIndex(text)
	}

	var defs []Definition
	defs = append(defs, parseDeclarations(text, file, pos, newCommandPattern, KindStandard, KindStandardSilent)...)
	defs = append(defs, parseDeclarations(text, file, pos, renewCommandPattern, KindRedefine, KindRedefineSilent)...)
	defs = append(defs, parseLowLevel(text, file, pos)...)
	return defs
}

// ParseFile reads a UTF-8 file and parses it.
func ParseFile(path string) ([]Definition, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: callers pass files discovered under the project root
	if err != nil {
		return nil, &ReadError{File: path, Err: err}
	}
	return Parse(string(content), path), nil
}

// parseDeclarations handles the \newcommand and \renewcommand families, which
// share syntax and differ only in pattern and kind.
func parseDeclarations(text, file string, pos Positioner, pattern *regexp.Regexp, plain, silent Kind) []Definition {
	var defs []Definition

	for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
		body, ok := ExtractBalanced(text, m[1]-1)
		if !ok {
			continue
		}

		name, _ := submatch(text, m, groupBracedName)
		if name == "" {
			name, _ = submatch(text, m, groupBareName)
		}
		name = strings.TrimSpace(name)

		params := 0
		if arity, ok := submatch(text, m, groupArity); ok {
			params, _ = strconv.Atoi(arity)
		}

		kind := plain
		if star, _ := submatch(text, m, groupStar); star == "*" {
			kind = silent
		}

		def := Definition{
			Name:       name,
			Body:       strings.TrimSpace(body),
			Parameters: params,
			Location:   locate(pos, file, m[0]),
			Kind:       kind,
		}
		if dflt, ok := submatch(text, m, groupDefault); ok {
			def.DefaultValue = &dflt
		}
		defs = append(defs, def)
	}

	return defs
}

// parseLowLevel handles \def, whose arity is never declared and is inferred
// from the #n placeholders in the parameter text.
func parseLowLevel(text, file string, pos Positioner) []Definition {
	var defs []Definition

	for _, m := range defPattern.FindAllStringSubmatchIndex(text, -1) {
		body, ok := ExtractBalanced(text, m[1]-1)
		if !ok {
			continue
		}

		name, _ := submatch(text, m, 1)
		defs = append(defs, Definition{
			Name:       name,
			Body:       strings.TrimSpace(body),
			Parameters: CountPlaceholders(text[m[0]:m[1]]),
			Location:   locate(pos, file, m[0]),
			Kind:       KindLowLevel,
		})
	}

	return defs
}

// ExtractBalanced returns the text between the brace at start and its
// matching closing brace. A backslash escapes the next character, so \{ and
// \} do not change the depth. ok is false when start is not an opening brace
// or the text ends before the group closes.
func ExtractBalanced(text string, start int) (string, bool) {
	if start < 0 || start >= len(text) || text[start] != '{' {
		return "", false
	}

	depth := 1
	escaped := false
	for i := start + 1; i < len(text); i++ {
		switch {
		case escaped:
			escaped = false
		case text[i] == '\\':
			escaped = true
		case text[i] == '{':
			depth++
		case text[i] == '}':
			depth--
			if depth == 0 {
				return text[start+1 : i], true
			}
		}
	}

	return "", false
}

// CountPlaceholders returns the highest #n index in s, or 0 if there is none.
func CountPlaceholders(s string) int {
	highest := 0
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// submatch returns group i of a FindStringSubmatchIndex result and whether
// the group took part in the match.
func submatch(text string, m []int, i int) (string, bool) {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return "", false
	}
	return text[m[2*i]:m[2*i+1]], true
}

func locate(pos Positioner, file string, offset int) Location {
	line, col := pos.LocationAt(offset)
	return Location{File: file, Line: line, Column: col}
}
