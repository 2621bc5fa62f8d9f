package models

// NormalizedRegion is a rectangle selected on a reference image, with all
// coordinates expressed as fractions of that image's dimensions.
type NormalizedRegion struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CompositeLayout records the half-open x-range [XStart, XEnd) a region's
// crop occupies inside a composite image.
type CompositeLayout struct {
	RegionID string `json:"region_id"`
	Label    string `json:"label"`
	XStart   int    `json:"x_start"`
	XEnd     int    `json:"x_end"`
}

// Contains reports whether x falls inside the layout's range.
func (l CompositeLayout) Contains(x float64) bool {
	return x >= float64(l.XStart) && x < float64(l.XEnd)
}
