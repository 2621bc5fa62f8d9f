// Package attribution decides which detected text fragments belong to which
// logical part of a photographed document, using only fragment geometry and,
// for full-page captures, a small keyword allow-list.
package attribution

import (
	"strings"

	"topo-scan/pkg/models"
)

// Config holds the empirical column thresholds of the full-page template.
type Config struct {
	// LeftRatio bounds the primary data column, as a fraction of image width.
	LeftRatio float64

	// ExtendedRatio bounds the band right of the primary column in which
	// fragments are admitted only if they carry a known keyword.
	ExtendedRatio float64

	// FallbackWidth is used when the summary fragment has no usable box.
	FallbackWidth float64

	// Keywords admits fragments in the extended band. Matching is on the
	// lower-cased fragment text.
	Keywords []string
}

// DefaultKeywords admits the data labels printed just right of the main column.
var DefaultKeywords = []string{"depth", "pupil", "chamber", "iop", "pachy", "lens", "dia"}

// DefaultConfig returns the thresholds for the known full-page template.
func DefaultConfig() Config {
	return Config{
		LeftRatio:     0.33,
		ExtendedRatio: 0.50,
		FallbackWidth: 1000,
		Keywords:      DefaultKeywords,
	}
}

// Engine attributes fragments to document regions.
type Engine struct {
	cfg Config
}

// New creates an Engine. Zero fields in cfg take their defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.LeftRatio <= 0 {
		cfg.LeftRatio = def.LeftRatio
	}
	if cfg.ExtendedRatio <= 0 {
		cfg.ExtendedRatio = def.ExtendedRatio
	}
	if cfg.FallbackWidth <= 0 {
		cfg.FallbackWidth = def.FallbackWidth
	}
	if cfg.Keywords == nil {
		cfg.Keywords = def.Keywords
	}
	return &Engine{cfg: cfg}
}

// ImageWidth estimates the image width from the summary fragment's box.
func (e *Engine) ImageWidth(det *models.Detection) float64 {
	summary, ok := det.Summary()
	if !ok {
		return e.cfg.FallbackWidth
	}
	if w := summary.Box.MaxX(); w > 0 {
		return w
	}
	return e.cfg.FallbackWidth
}

// FullPage returns the fragments judged to be primary data on a full-page
// capture, in detector order. Fragments left of LeftRatio are always kept;
// fragments between LeftRatio and ExtendedRatio are kept only if their text
// contains a keyword. If nothing qualifies, all fragments are returned.
func (e *Engine) FullPage(fragments []models.Fragment, imageWidth float64) []models.Fragment {
	left := imageWidth * e.cfg.LeftRatio
	extended := imageWidth * e.cfg.ExtendedRatio

	var selected []models.Fragment
	for _, f := range fragments {
		x := f.Box.MeanX()
		switch {
		case x < left:
			selected = append(selected, f)
		case x < extended && e.hasKeyword(f.Text):
			selected = append(selected, f)
		}
	}

	if len(selected) == 0 {
		return fragments
	}
	return selected
}

// FullPageText runs FullPage over a detection and joins the winning fragments
// with newlines. When no fragment survives, the summary text is returned.
func (e *Engine) FullPageText(det *models.Detection) string {
	selected := e.FullPage(det.Items(), e.ImageWidth(det))
	if len(selected) == 0 {
		summary, _ := det.Summary()
		return summary.Text
	}

	texts := make([]string, len(selected))
	for i, f := range selected {
		texts[i] = f.Text
	}
	return strings.Join(texts, "\n")
}

// ByRegion assigns each fragment to the first layout whose x-range contains
// the fragment's mean x and returns the joined text per region id. Fragments
// in gaps or outside every range are dropped. Every layout gets an entry;
// regions with no text hold models.Unresolved.
func (e *Engine) ByRegion(fragments []models.Fragment, layouts []models.CompositeLayout) map[string]string {
	buckets := make(map[string][]string, len(layouts))
	for _, f := range fragments {
		if i := Locate(f, layouts); i >= 0 {
			id := layouts[i].RegionID
			buckets[id] = append(buckets[id], f.Text)
		}
	}

	out := make(map[string]string, len(layouts))
	for _, l := range layouts {
		text := strings.Join(strings.Fields(strings.Join(buckets[l.RegionID], " ")), " ")
		if text == "" {
			text = models.Unresolved
		}
		out[l.RegionID] = text
	}
	return out
}

// Locate returns the index of the layout containing f's mean x, or -1.
func Locate(f models.Fragment, layouts []models.CompositeLayout) int {
	x := f.Box.MeanX()
	for i, l := range layouts {
		if l.Contains(x) {
			return i
		}
	}
	return -1
}

func (e *Engine) hasKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range e.cfg.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
