// Package extract parses loosely structured OCR text from a corneal
// topography printout into a fixed set of named numeric fields.
package extract

import (
	"regexp"
	"strings"

	"topo-scan/pkg/models"
)

// Surface key prefixes.
const (
	FrontPrefix = "Front_"
	BackPrefix  = "Back_"
)

// allKeywords switch on every group.
var allKeywords = []string{"all", "전체"}

var (
	frontHeading = regexp.MustCompile(`(?i)Cornea\s*Front|^Front$`)
	backHeading  = regexp.MustCompile(`(?i)Cornea\s*Back|^Back$`)
)

// Sections holds the text attributed to each corneal surface.
type Sections struct {
	Front string
	Back  string
}

// Fields extracts the requested field groups from text. requested is a
// comma-separated list of keywords; empty or "all" extracts everything.
// Keys of enabled groups are always present, holding models.Unresolved
// when no value was found. Keys of disabled groups are absent.
func Fields(text, requested string) *models.FieldMap {
	filter := ParseFilter(requested)
	sections := SplitSections(text)
	out := models.NewFieldMap()

	for _, surface := range []struct {
		prefix string
		text   string
		back   bool
	}{
		{FrontPrefix, sections.Front, false},
		{BackPrefix, sections.Back, true},
	} {
		for _, g := range SurfaceGroups {
			if !filter.Enabled(g) {
				continue
			}
			for _, r := range g.Rules {
				out.Set(surface.prefix+r.Key, r.Apply(surface.text, surface.back))
			}
		}
	}

	for _, g := range DocumentGroups {
		if !filter.Enabled(g) {
			continue
		}
		for _, r := range g.Rules {
			out.Set(r.Key, r.Apply(text, false))
		}
	}

	return out
}

// Keys returns every key Fields can produce, in output order.
func Keys() []string {
	var keys []string
	for _, prefix := range []string{FrontPrefix, BackPrefix} {
		for _, g := range SurfaceGroups {
			for _, r := range g.Rules {
				keys = append(keys, prefix+r.Key)
			}
		}
	}
	for _, g := range DocumentGroups {
		for _, r := range g.Rules {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// Apply runs the rule over text and returns the trimmed value, or
// models.Unresolved.
func (r Rule) Apply(text string, back bool) string {
	if r.Find != nil {
		if v, ok := r.Find(text); ok {
			return strings.TrimSpace(v)
		}
		return models.Unresolved
	}

	patterns := r.Patterns
	if back && r.BackPatterns != nil {
		patterns = r.BackPatterns
	}
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil || r.Group >= len(m) {
			continue
		}
		if v := strings.TrimSpace(m[r.Group]); v != "" {
			return v
		}
	}
	return models.Unresolved
}

// SplitSections divides text into front- and back-surface sections using the
// "Cornea Front" / "Cornea Back" headings.
//
// With both headings in order, each section runs from its heading to the next
// (or the end). With only one heading, or both out of order, the lines are
// split at the midpoint. With neither, both sections are the whole text.
func SplitSections(text string) Sections {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	frontIdx := indexMatch(lines, frontHeading)
	backIdx := indexMatch(lines, backHeading)

	switch {
	case frontIdx >= 0 && backIdx > frontIdx:
		return Sections{
			Front: strings.Join(lines[frontIdx:backIdx], " "),
			Back:  strings.Join(lines[backIdx:], " "),
		}
	case frontIdx >= 0 || backIdx >= 0:
		mid := len(lines) / 2
		return Sections{
			Front: strings.Join(lines[:mid], " "),
			Back:  strings.Join(lines[mid:], " "),
		}
	default:
		return Sections{Front: text, Back: text}
	}
}

func indexMatch(lines []string, re *regexp.Regexp) int {
	for i, l := range lines {
		if re.MatchString(l) {
			return i
		}
	}
	return -1
}
