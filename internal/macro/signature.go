package macro

import (
	"regexp"
	"strconv"
	"strings"
)

// Signature describes a macro that takes a file path, for path completion.
type Signature struct {
	Signature  string   `json:"signature" yaml:"signature"`
	Extensions []string `json:"extensions" yaml:"extensions"`
}

var (
	pathLikePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\\includegraphics`),
		regexp.MustCompile(`\\input`),
		regexp.MustCompile(`\\include`),
		regexp.MustCompile(`(?i)PATH`),
		regexp.MustCompile(`(?i)\{[^}]*\.(png|jpg|jpeg|pdf|eps|svg)[^}]*\}`),
		regexp.MustCompile(`\{[^}]*/[^}]*\}`),
	}

	extensionPattern = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|pdf|eps|svg)\b`)

	defaultExtensions = []string{"png", "jpg", "jpeg"}
)

// TakesPath reports whether the body looks like it loads a file.
func TakesPath(d Definition) bool {
	for _, p := range pathLikePatterns {
		if p.MatchString(d.Body) {
			return true
		}
	}
	return false
}

// ToSignature converts a path-taking macro into a signature where the first
// argument is the PATH placeholder. ok is false for macros that do not load
// files.
func ToSignature(d Definition) (sig Signature, ok bool) {
	if !TakesPath(d) {
		return Signature{}, false
	}

	var exts []string
	seen := make(map[string]bool)
	for _, m := range extensionPattern.FindAllStringSubmatch(d.Body, -1) {
		ext := strings.ToLower(m[1])
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		exts = append([]string(nil), defaultExtensions...)
	}

	s := `\` + d.Name
	for i := 1; i <= d.Parameters; i++ {
		if i == 1 {
			s += "{PATH}"
		} else {
			s += "{arg" + strconv.Itoa(i) + "}"
		}
	}

	return Signature{Signature: s, Extensions: exts}, true
}
