package extract

import (
	"strings"
)

// Filter is a parsed requested-fields string.
type Filter struct {
	all    bool
	tokens []string
}

// ParseFilter lower-cases and splits a comma-separated keyword list.
func ParseFilter(requested string) Filter {
	var f Filter
	for _, t := range strings.Split(strings.ToLower(requested), ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		for _, a := range allKeywords {
			if t == a {
				f.all = true
			}
		}
		f.tokens = append(f.tokens, t)
	}
	if len(f.tokens) == 0 {
		f.all = true
	}
	return f
}

// All reports whether every group is enabled.
func (f Filter) All() bool {
	return f.all
}

// Enabled reports whether any requested token selects g. A token selects a
// group when it equals one of the group's keywords, or starts with a keyword
// of three or more letters ("pachymetry" selects "pachy", "rm" does not
// select "rmin").
func (f Filter) Enabled(g Group) bool {
	if f.all {
		return true
	}
	for _, t := range f.tokens {
		for _, kw := range g.Keywords {
			if t == kw || (len(kw) >= 3 && strings.HasPrefix(t, kw)) {
				return true
			}
		}
	}
	return false
}
