package macro

// Duplicate is a \newcommand of a name that an earlier \newcommand already
// declared. LaTeX stops with "Command already defined" on the second one.
type Duplicate struct {
	Definition Definition `json:"definition" yaml:"definition"`
	First      Definition `json:"first" yaml:"first"`
}

// Declares reports whether k is \newcommand or \newcommand*, the forms that
// fail when the name exists.
func (k Kind) Declares() bool {
	return k == KindStandard || k == KindStandardSilent
}

// Duplicates returns every repeated declaration in defs, in input order.
// Redefinitions and \def never count.
func Duplicates(defs []Definition) []Duplicate {
	first := make(map[string]Definition)
	var dups []Duplicate
	for _, d := range defs {
		if !d.Kind.Declares() {
			continue
		}
		if f, ok := first[d.Name]; ok {
			dups = append(dups, Duplicate{Definition: d, First: f})
			continue
		}
		first[d.Name] = d
	}
	return dups
}
