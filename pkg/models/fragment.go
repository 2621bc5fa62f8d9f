package models

// Vertex is a point in pixel space as returned by a text detector.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is the quadrilateral around a detected text span, in the
// vertex order the detector returned. Only the mean x is used downstream.
type BoundingBox []Vertex

// MeanX returns the mean x-coordinate of the box vertices.
func (b BoundingBox) MeanX() float64 {
	if len(b) == 0 {
		return 0
	}
	var sum float64
	for _, v := range b {
		sum += v.X
	}
	return sum / float64(len(b))
}

// MaxX returns the largest x-coordinate of the box vertices.
func (b BoundingBox) MaxX() float64 {
	var max float64
	for _, v := range b {
		if v.X > max {
			max = v.X
		}
	}
	return max
}

// RectBox builds an axis-aligned box from a left/top corner and a size.
// Vertices run top-left, top-right, bottom-right, bottom-left.
func RectBox(left, top, width, height float64) BoundingBox {
	return BoundingBox{
		{X: left, Y: top},
		{X: left + width, Y: top},
		{X: left + width, Y: top + height},
		{X: left, Y: top + height},
	}
}

// Fragment is one detected text span with its bounding box.
type Fragment struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"box"`
}

// Detection is the output of a single detector call. The first fragment is
// always the whole-image summary; the rest are individual words or lines.
type Detection struct {
	Fragments []Fragment `json:"fragments"`
}

// Summary returns the whole-image summary fragment.
func (d *Detection) Summary() (Fragment, bool) {
	if d == nil || len(d.Fragments) == 0 {
		return Fragment{}, false
	}
	return d.Fragments[0], true
}

// Items returns the per-span fragments, excluding the summary.
func (d *Detection) Items() []Fragment {
	if d == nil || len(d.Fragments) < 2 {
		return nil
	}
	return d.Fragments[1:]
}
