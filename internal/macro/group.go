package macro

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Group is a set of definitions sharing a Kind.
type Group struct {
	Kind        Kind         `json:"type" yaml:"type"`
	DisplayName string       `json:"displayName" yaml:"displayName"`
	Description string       `json:"description" yaml:"description"`
	Macros      []Definition `json:"macros" yaml:"macros"`
}

// GroupByKind buckets definitions by kind. Groups come out in Kinds order and
// empty groups are omitted; names within a group are sorted with
// locale-aware collation so accented names sort next to their base letters.
func GroupByKind(defs []Definition) []Group {
	buckets := make(map[Kind][]Definition)
	for _, d := range defs {
		buckets[d.Kind] = append(buckets[d.Kind], d)
	}

	col := collate.New(language.Und, collate.IgnoreCase)

	var groups []Group
	for _, k := range Kinds {
		macros, ok := buckets[k]
		if !ok {
			continue
		}
		sort.SliceStable(macros, func(i, j int) bool {
			return col.CompareString(macros[i].Name, macros[j].Name) < 0
		})
		groups = append(groups, Group{
			Kind:        k,
			DisplayName: k.DisplayName(),
			Description: k.Description(),
			Macros:      macros,
		})
	}
	return groups
}

// UsageExample renders a call with placeholder arguments, e.g. \fig{arg1}.
func UsageExample(d Definition) string {
	var b strings.Builder
	b.WriteString(`\` + d.Name)
	for i := 1; i <= d.Parameters; i++ {
		fmt.Fprintf(&b, "{arg%d}", i)
	}
	return b.String()
}

// Truncate shortens a body for previews, appending "..." when cut.
// max counts runes.
func Truncate(body string, max int) string {
	r := []rune(body)
	if max <= 0 || len(r) <= max {
		return body
	}
	return string(r[:max]) + "..."
}
