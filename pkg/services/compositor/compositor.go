// Package compositor crops normalized regions out of a source photograph and
// tiles them side by side into one composite image, so several regions can be
// sent to the text detector in a single call and separated again afterwards.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"

	"topo-scan/pkg/models"

	"github.com/disintegration/imaging"
)

// DefaultGap is the horizontal spacing, in pixels, between consecutive crops.
const DefaultGap = 40

var (
	// ErrDegenerateRegion marks a region whose pixel crop has no area.
	ErrDegenerateRegion = errors.New("degenerate region")

	// ErrNoUsableRegions is returned when every region was skipped.
	ErrNoUsableRegions = errors.New("no usable regions")

	// ErrDecode is returned when the input is not a readable image.
	ErrDecode = errors.New("failed to decode image")
)

// Options configures a Compositor.
type Options struct {
	// Gap is the blank spacing between crops. Negative values are treated as 0.
	Gap int

	// Enhance runs the OCR enhancement filters over the composite.
	Enhance bool

	Logger *slog.Logger
}

// SkippedRegion reports a region left out of the composite.
type SkippedRegion struct {
	RegionID string
	Err      error
}

// Composite is the result of Compose.
type Composite struct {
	Image   image.Image
	PNG     []byte
	Layouts []models.CompositeLayout
	Skipped []SkippedRegion
}

// Compositor builds composite images.
type Compositor struct {
	gap     int
	enhance bool
	logger  *slog.Logger
}

// New creates a Compositor.
func New(opts Options) *Compositor {
	if opts.Gap < 0 {
		opts.Gap = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Compositor{
		gap:     opts.Gap,
		enhance: opts.Enhance,
		logger:  opts.Logger,
	}
}

// Decode reads an image at its native resolution, applying any EXIF
// orientation so pixel coordinates match what the user saw.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// ComposeBytes decodes data and composes it. See Compose.
func (c *Compositor) ComposeBytes(data []byte, regions []models.NormalizedRegion) (*Composite, error) {
	src, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return c.Compose(src, regions)
}

// Compose crops each region from src and tiles the crops left to right on a
// white canvas, in region order. Degenerate regions are skipped and listed in
// Composite.Skipped; the returned layouts cover only the regions that made it
// into the composite.
func (c *Compositor) Compose(src image.Image, regions []models.NormalizedRegion) (*Composite, error) {
	result := &Composite{}

	var crops []image.Image
	var kept []models.NormalizedRegion
	for _, r := range regions {
		rect, err := PixelRect(src.Bounds(), r)
		if err != nil {
			c.logger.Warn("skipping region", "region", r.ID, "label", r.Label, "error", err)
			result.Skipped = append(result.Skipped, SkippedRegion{RegionID: r.ID, Err: err})
			continue
		}
		crops = append(crops, imaging.Crop(src, rect))
		kept = append(kept, r)
	}
	if len(crops) == 0 {
		return result, ErrNoUsableRegions
	}

	width, height := 0, 0
	for i, crop := range crops {
		b := crop.Bounds()
		if i > 0 {
			width += c.gap
		}
		width += b.Dx()
		if b.Dy() > height {
			height = b.Dy()
		}
	}

	canvas := imaging.New(width, height, color.White)
	x := 0
	for i, crop := range crops {
		if i > 0 {
			x += c.gap
		}
		canvas = imaging.Paste(canvas, crop, image.Pt(x, 0))
		w := crop.Bounds().Dx()
		result.Layouts = append(result.Layouts, models.CompositeLayout{
			RegionID: kept[i].ID,
			Label:    kept[i].Label,
			XStart:   x,
			XEnd:     x + w,
		})
		x += w
	}

	var out image.Image = canvas
	if c.enhance {
		out = Enhance(out)
	}
	result.Image = out

	png, err := encodePNG(out)
	if err != nil {
		return nil, err
	}
	result.PNG = png

	return result, nil
}

// PixelRect converts a normalized region to a pixel rectangle within bounds.
// The rectangle is clamped to bounds; an empty result is ErrDegenerateRegion.
func PixelRect(bounds image.Rectangle, r models.NormalizedRegion) (image.Rectangle, error) {
	// image.Rect would swap inverted corners into a valid rectangle.
	if r.Width <= 0 || r.Height <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %s (%gx%g)", ErrDegenerateRegion, r.ID, r.Width, r.Height)
	}

	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	rect := image.Rect(
		bounds.Min.X+int(math.Round(r.X*w)),
		bounds.Min.Y+int(math.Round(r.Y*h)),
		bounds.Min.X+int(math.Round((r.X+r.Width)*w)),
		bounds.Min.Y+int(math.Round((r.Y+r.Height)*h)),
	).Intersect(bounds)

	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %s (%dx%d px)", ErrDegenerateRegion, r.ID, rect.Dx(), rect.Dy())
	}
	return rect, nil
}
