package macro

import (
	"strconv"
	"strings"
)

// Usage is a parsed macro invocation such as \fig[0.5]{a.png}{Caption}.
type Usage struct {
	Name     string
	Optional *string  // contents of a leading [...] argument, if present
	Args     []string // mandatory {...} arguments in order
	Text     string   // the invocation as written
}

// ParseUsage parses the first macro invocation in text. Mandatory arguments
// are brace-balanced, so nested groups stay intact.
func ParseUsage(text string) (Usage, bool) {
	start := strings.IndexByte(text, '\\')
	if start < 0 {
		return Usage{}, false
	}

	i := start + 1
	for i < len(text) && isNameByte(text[i]) {
		i++
	}
	if i == start+1 {
		return Usage{}, false
	}
	u := Usage{Name: text[start+1 : i]}

	j := skipSpace(text, i)
	if j < len(text) && text[j] == '[' {
		if end := strings.IndexByte(text[j:], ']'); end >= 0 {
			opt := text[j+1 : j+end]
			u.Optional = &opt
			i = j + end + 1
		}
	}

	for {
		j = skipSpace(text, i)
		if j >= len(text) || text[j] != '{' {
			break
		}
		arg, ok := ExtractBalanced(text, j)
		if !ok {
			break
		}
		u.Args = append(u.Args, arg)
		i = j + len(arg) + 2
	}

	u.Text = text[start:i]
	return u, true
}

// Expand substitutes the usage's arguments into the definition body.
// When the definition has an optional first argument, #1 receives the
// usage's optional argument or the declared default and the mandatory
// arguments fill #2 onwards. Placeholders without a value are left as is.
func Expand(d Definition, u Usage) string {
	values := make(map[int]string)
	next := 1
	if dflt, ok := d.Default(); ok {
		if u.Optional != nil {
			values[1] = *u.Optional
		} else {
			values[1] = dflt
		}
		next = 2
	}
	for _, arg := range u.Args {
		values[next] = arg
		next++
	}

	return placeholderPattern.ReplaceAllStringFunc(d.Body, func(ph string) string {
		n, err := strconv.Atoi(ph[1:])
		if err != nil {
			return ph
		}
		if v, ok := values[n]; ok {
			return v
		}
		return ph
	})
}

func isNameByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '@'
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
