package macro

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Positioner maps a byte offset in a buffer to a 1-based line and a 0-based
// column counted in UTF-16 code units (the unit editors use for columns).
// Open editor buffers implement it so positions come from the buffer's own
// coordinate system instead of being recounted.
type Positioner interface {
	LocationAt(offset int) (line, column int)
}

// LineIndex is a Positioner computed from a text's line starts.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex scans text once for line starts.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LocationAt implements Positioner. Offsets outside the text are clamped.
func (li *LineIndex) LocationAt(offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	// Last line whose start is <= offset.
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return line + 1, UTF16Len(li.text[li.starts[line]:offset])
}

// Lines returns the number of lines in the indexed text.
func (li *LineIndex) Lines() int {
	return len(li.starts)
}

// LineSpan returns the byte offsets of the start of a 0-based line and of
// its end, excluding the newline. ok is false for lines past the end.
func (li *LineIndex) LineSpan(line int) (start, end int, ok bool) {
	if line < 0 || line >= len(li.starts) {
		return 0, 0, false
	}
	start = li.starts[line]
	end = len(li.text)
	if line+1 < len(li.starts) {
		end = li.starts[line+1] - 1
	}
	return start, end, true
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
