// Package topography runs the extraction pipeline for topography printouts:
// optional region compositing, text detection, spatial attribution and field
// parsing. Each call is independent; the service holds no per-run state.
package topography

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"topo-scan/pkg/models"
	"topo-scan/pkg/services/attribution"
	"topo-scan/pkg/services/compositor"
	"topo-scan/pkg/services/extract"
	"topo-scan/pkg/services/ocr"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// Config configures a Service.
type Config struct {
	Detector    ocr.Detector
	Attribution attribution.Config
	Compositor  compositor.Options

	// Enhance filters full-page images before detection.
	Enhance bool

	Batch ocr.BatchOptions

	// Retries is the number of detector attempts per image. Zero means one.
	Retries    uint
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Service runs the pipeline.
type Service struct {
	detector   ocr.Detector
	engine     *attribution.Engine
	compositor *compositor.Compositor
	enhance    bool
	batch      ocr.BatchOptions
	retries    uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Compositor.Logger == nil {
		cfg.Compositor.Logger = cfg.Logger
	}
	if cfg.Retries == 0 {
		cfg.Retries = 1
	}

	return &Service{
		detector:   cfg.Detector,
		engine:     attribution.New(cfg.Attribution),
		compositor: compositor.New(cfg.Compositor),
		enhance:    cfg.Enhance,
		batch:      cfg.Batch,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}, nil
}

// Result is the extraction for a full-page capture.
type Result struct {
	Text   string           `json:"text"`
	Fields *models.FieldMap `json:"fields"`
}

// RegionResult is the extraction for one selected region.
type RegionResult struct {
	RegionID string           `json:"region_id"`
	Label    string           `json:"label"`
	Text     string           `json:"text,omitempty"`
	Fields   *models.FieldMap `json:"fields,omitempty"`
	Skipped  bool             `json:"skipped,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ProcessFullPage detects text in a full-page capture, keeps the left data
// column and parses the requested fields from it.
func (s *Service) ProcessFullPage(ctx context.Context, image []byte, fields string) (*Result, error) {
	det, err := s.detectPage(ctx, image)
	if err != nil {
		return nil, err
	}

	text := s.engine.FullPageText(det)
	return &Result{Text: text, Fields: extract.Fields(text, fields)}, nil
}

// ProcessText parses fields from already detected text. It is used for
// pre-cropped single-column captures whose text needs no attribution.
func (s *Service) ProcessText(text, fields string) *Result {
	return &Result{Text: text, Fields: extract.Fields(text, fields)}
}

// ProcessRegions composites the regions of image into one detector call and
// parses each region's text separately. Results follow region order.
// Degenerate regions are reported as skipped.
func (s *Service) ProcessRegions(ctx context.Context, image []byte, regions []models.NormalizedRegion, fields string) ([]RegionResult, error) {
	regions = withIDs(regions)

	// Region ids are caller supplied and may repeat, so the composite is keyed
	// by position instead.
	keyed := make([]models.NormalizedRegion, len(regions))
	for i, r := range regions {
		keyed[i] = r
		keyed[i].ID = strconv.Itoa(i)
	}

	comp, err := s.compositor.ComposeBytes(image, keyed)
	if err != nil {
		return nil, fmt.Errorf("failed to compose regions: %w", err)
	}

	det, err := s.detect(ctx, comp.PNG)
	if err != nil {
		return nil, err
	}

	texts := s.engine.ByRegion(det.Items(), comp.Layouts)

	skipped := make(map[string]error, len(comp.Skipped))
	for _, sk := range comp.Skipped {
		skipped[sk.RegionID] = sk.Err
	}

	results := make([]RegionResult, 0, len(regions))
	for i, r := range regions {
		key := keyed[i].ID
		res := RegionResult{RegionID: r.ID, Label: r.Label}
		if err, ok := skipped[key]; ok {
			res.Skipped = true
			res.Error = err.Error()
		} else {
			res.Text = texts[key]
			res.Fields = extract.Fields(res.Text, fields)
		}
		results = append(results, res)
	}
	return results, nil
}

// ImageInput is one image of a batch.
type ImageInput struct {
	ID   string
	Data []byte
}

// BatchResult is the outcome for one batch image.
type BatchResult struct {
	ID     string  `json:"id"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// ProcessBatch runs ProcessFullPage's attribution and parsing over many
// images, detecting them concurrently. Results follow input order; a failed
// image carries its error and does not affect the others. Input ids are
// labels only and may repeat; an empty id gets a random one.
func (s *Service) ProcessBatch(ctx context.Context, images []ImageInput, fields string) []BatchResult {
	ids := make([]string, len(images))
	reqs := make([]ocr.Request, len(images))
	for i, img := range images {
		ids[i] = img.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		reqs[i] = ocr.Request{ID: uuid.NewString(), Image: img.Data}
	}

	detector := ocr.DetectorFunc(s.detectPage)
	responses := ocr.ByID(ocr.DetectBatch(ctx, detector, reqs, s.batch))

	results := make([]BatchResult, len(ids))
	for i, id := range ids {
		results[i] = BatchResult{ID: id}
		resp, ok := responses[reqs[i].ID]
		switch {
		case !ok:
			results[i].Error = "no response"
		case resp.Err != nil:
			s.logger.Warn("batch item failed", "id", id, "error", resp.Err)
			results[i].Error = resp.Err.Error()
		default:
			text := s.engine.FullPageText(resp.Detection)
			results[i].Result = &Result{Text: text, Fields: extract.Fields(text, fields)}
		}
	}
	return results
}

// detectPage enhances a full-page image when configured, then detects it.
func (s *Service) detectPage(ctx context.Context, image []byte) (*models.Detection, error) {
	if s.enhance {
		enhanced, err := compositor.EnhanceBytes(image)
		if err != nil {
			return nil, err
		}
		image = enhanced
	}
	return s.detect(ctx, image)
}

// detect calls the detector, retrying transient failures. An image with no
// text is not retried.
func (s *Service) detect(ctx context.Context, image []byte) (*models.Detection, error) {
	var det *models.Detection
	err := retry.Do(
		func() error {
			d, err := s.detector.Detect(ctx, image)
			if err != nil {
				return err
			}
			if d == nil || len(d.Fragments) == 0 {
				return ocr.ErrNoTextDetected
			}
			det = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ocr.ErrNoTextDetected)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("detector call failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return det, nil
}

// withIDs returns regions with a random id filled in where missing.
func withIDs(regions []models.NormalizedRegion) []models.NormalizedRegion {
	out := make([]models.NormalizedRegion, len(regions))
	copy(out, regions)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
