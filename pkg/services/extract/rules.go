package extract

import (
	"regexp"
	"strings"
)

// Rule reads one field from a block of text.
type Rule struct {
	// Key is the field name, without any surface prefix.
	Key string

	// Patterns are tried in order; the first match wins.
	Patterns []*regexp.Regexp

	// BackPatterns replace Patterns on the back surface, where the same
	// label may carry a negative value. Nil means use Patterns.
	BackPatterns []*regexp.Regexp

	// Group is the capture group holding the value.
	Group int

	// Find, when set, is used instead of Patterns.
	Find func(text string) (string, bool)
}

// Group is a set of rules switched on together by any of its keywords.
type Group struct {
	Name     string
	Keywords []string
	Rules    []Rule
}

// labelRule builds the common "<Label>[:\s]+<number>" rule. On the back
// surface the number may be negative.
func labelRule(key, label string) Rule {
	q := regexp.QuoteMeta(label)
	return Rule{
		Key:          key,
		Patterns:     []*regexp.Regexp{regexp.MustCompile(q + `[:\s]+([0-9.]+)`)},
		BackPatterns: []*regexp.Regexp{regexp.MustCompile(q + `[:\s]+(-?[0-9.]+)`)},
		Group:        1,
	}
}

func patternRule(key string, group int, patterns ...string) Rule {
	r := Rule{Key: key, Group: group}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile(p))
	}
	return r
}

var (
	axisPattern   = regexp.MustCompile(`Axis[^\d]*(flat)?[:\s]*([0-9.]+)`)
	degreePattern = regexp.MustCompile(`([0-9.]+)\s*°`)

	depthLabel  = regexp.MustCompile(`(?i)depth`)
	decimalPart = regexp.MustCompile(`\d+\.\d+`)
)

// depthWindow is how many characters after the "Depth" label are searched
// for the colon that precedes the value.
const depthWindow = 150

// SurfaceGroups are extracted from the front and back sections, in key order.
var SurfaceGroups = []Group{
	{
		Name:     "radius",
		Keywords: []string{"radius", "rh", "rv", "rm"},
		Rules: []Rule{
			labelRule("Rh", "Rh"),
			labelRule("Rv", "Rv"),
			labelRule("Rm", "Rm"),
		},
	},
	{
		Name:     "keratometry",
		Keywords: []string{"k", "k1", "k2", "km", "kerato"},
		Rules: []Rule{
			labelRule("K1", "K1"),
			labelRule("K2", "K2"),
			labelRule("Km", "Km"),
		},
	},
	{
		Name:     "axis",
		Keywords: []string{"axis", "astig"},
		Rules: []Rule{
			{Key: "Axis", Find: findAxis},
			labelRule("Astig", "Astig"),
		},
	},
	{
		Name:     "qval",
		Keywords: []string{"q", "qval", "q-val"},
		Rules: []Rule{
			patternRule("Qval", 1, `Q-val[^-\d]*([-0-9.]+)`),
		},
	},
	{
		Name:     "rper",
		Keywords: []string{"rper", "rmin"},
		Rules: []Rule{
			labelRule("Rper", "Rper"),
			labelRule("Rmin", "Rmin"),
		},
	},
}

// DocumentGroups are extracted from the whole text, without a prefix.
var DocumentGroups = []Group{
	{
		Name:     "pachy",
		Keywords: []string{"pachy", "thinnest"},
		Rules: []Rule{
			patternRule("Pachy_Center", 1, `(?i)Pupil Center[:\s]+[+]?([0-9.]+)`),
			patternRule("Pachy_Apex", 1, `(?i)Pachy Apex[:\s]+([0-9.]+)`),
			patternRule("Pachy_Thinnest", 1, `(?i)Thinnest Local[:\s]+[○◯●]?\s*([0-9.]+)`),
		},
	},
	{
		Name:     "chamber",
		Keywords: []string{"ac", "acd", "ac_depth", "depth", "chamber", "pupil"},
		Rules: []Rule{
			{Key: "AC_Depth", Find: findDepth},
			patternRule("Pupil_Dia", 1,
				`(?i)Pupil\s+Dia[:\s.]+([0-9.]+)`,
				`(?i)Pupil\s*Diameter[:\s]+([0-9.]+)`,
			),
		},
	},
}

// findAxis prefers the labelled keratometry axis and falls back to the first
// bare degree value.
func findAxis(text string) (string, bool) {
	if m := axisPattern.FindStringSubmatch(text); m != nil && m[2] != "" {
		return m[2], true
	}
	if m := degreePattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// findDepth reads the anterior-chamber depth. The label and its value are
// separated by a variable run of tokens, but a colon always precedes the
// number, so the value is the first decimal after the first colon within
// depthWindow characters of the label.
func findDepth(text string) (string, bool) {
	loc := depthLabel.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	window := []rune(text[loc[0]:])
	if len(window) > depthWindow {
		window = window[:depthWindow]
	}

	rest := string(window)
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}

	value := decimalPart.FindString(rest[colon+1:])
	return value, value != ""
}

