package ocr

import (
	"context"
	"sync"

	"topo-scan/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the most images the detector accepts in one batch call.
const DefaultBatchSize = 16

// Request is one image in a batch. ID correlates the response with its
// source; an empty ID is replaced with a random one.
type Request struct {
	ID    string
	Image []byte
}

// Response is the outcome for one request. Exactly one of Detection and Err
// is set.
type Response struct {
	ID        string
	Detection *models.Detection
	Err       error
}

// BatchOptions controls DetectBatch.
type BatchOptions struct {
	// Size caps how many requests are in flight as one batch.
	Size int

	// Concurrency caps how many batches run at once.
	Concurrency int
}

// DetectBatch runs d over every request. Requests are split into batches of
// at most opts.Size, and up to opts.Concurrency batches run at once; items in
// a batch run in parallel. Responses are returned in completion order, each
// carrying its request ID. A failing item does not cancel the others.
func DetectBatch(ctx context.Context, d Detector, reqs []Request, opts BatchOptions) []Response {
	if opts.Size <= 0 {
		opts.Size = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	var (
		mu        sync.Mutex
		responses = make([]Response, 0, len(reqs))
	)
	record := func(r Response) {
		mu.Lock()
		responses = append(responses, r)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(reqs); start += opts.Size {
		end := min(start+opts.Size, len(reqs))
		chunk := make([]Request, end-start)
		copy(chunk, reqs[start:end])
		for i := range chunk {
			if chunk[i].ID == "" {
				chunk[i].ID = uuid.NewString()
			}
		}

		g.Go(func() error {
			var items sync.WaitGroup
			for _, req := range chunk {
				items.Add(1)
				go func() {
					defer items.Done()
					det, err := d.Detect(ctx, req.Image)
					if err != nil {
						record(Response{ID: req.ID, Err: err})
						return
					}
					record(Response{ID: req.ID, Detection: det})
				}()
			}
			items.Wait()
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

// ByID indexes responses by request ID.
func ByID(responses []Response) map[string]Response {
	out := make(map[string]Response, len(responses))
	for _, r := range responses {
		out[r.ID] = r
	}
	return out
}
