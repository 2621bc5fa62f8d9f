package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"topo-scan/pkg/models"
	"topo-scan/pkg/services/ocr"
	"topo-scan/pkg/services/topography"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	rows []*models.Extraction
	err  error
}

func (s *memStore) Save(ctx context.Context, rows ...*models.Extraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *memStore) List(ctx context.Context, source string, limit int) ([]models.Extraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Extraction
	for _, r := range s.rows {
		if source == "" || r.Source == source {
			out = append(out, *r)
		}
	}
	return out, nil
}

func frag(text string, centerX float64) models.Fragment {
	return models.Fragment{Text: text, Box: models.RectBox(centerX-5, 0, 10, 10)}
}

func testRouter(t *testing.T, d ocr.Detector, repo extractionStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := topography.New(topography.Config{Detector: d, Retries: 1, Logger: logger})
	require.NoError(t, err)
	return newRouter(svc, repo, logger)
}

func kDetector() ocr.Detector {
	return ocr.DetectorFunc(func(ctx context.Context, image []byte) (*models.Detection, error) {
		return &models.Detection{Fragments: []models.Fragment{
			{Text: "summary", Box: models.RectBox(0, 0, 200, 100)},
			frag("K1:", 20),
			frag("43.5", 60),
		}}, nil
	})
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range files {
		field, filename, _ := strings.Cut(name, ":")
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestListFields(t *testing.T) {
	r := testRouter(t, kDetector(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fields", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Front_Rh", body.Fields[0])
}

func TestExtractText(t *testing.T) {
	repo := &memStore{}
	r := testRouter(t, kDetector(), repo)

	req := httptest.NewRequest(http.MethodPost, "/extract/text",
		strings.NewReader(`{"text":"Cornea Front\nK1: 43.50\nCornea Back\nK1: -6.10","fields":"k","source":"scan-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(),
		`"fields":{"Front_K1":"43.50","Front_K2":"-","Front_Km":"-","Back_K1":"-6.10","Back_K2":"-","Back_Km":"-"}`)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "scan-1", repo.rows[0].Source)
	assert.Equal(t, models.ModeFullPage, repo.rows[0].Mode)
	assert.True(t, strings.HasPrefix(repo.rows[0].Fields, `{"Front_K1":"43.50"`))
}

func TestExtractTextRequiresText(t *testing.T) {
	r := testRouter(t, kDetector(), nil)

	req := httptest.NewRequest(http.MethodPost, "/extract/text", strings.NewReader(`{"fields":"k"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractFullPage(t *testing.T) {
	repo := &memStore{}
	r := testRouter(t, kDetector(), repo)

	body, ct := multipartBody(t, map[string]string{"fields": "k"}, map[string][]byte{"image:page.png": []byte("raw")})
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res topography.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	v, _ := res.Fields.Get("Front_K1")
	assert.Equal(t, "43.5", v)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "page.png", repo.rows[0].Source)
}

func TestExtractFullPageErrors(t *testing.T) {
	noText := ocr.DetectorFunc(func(ctx context.Context, image []byte) (*models.Detection, error) {
		return nil, ocr.ErrNoTextDetected
	})
	down := ocr.DetectorFunc(func(ctx context.Context, image []byte) (*models.Detection, error) {
		return nil, errors.New("upstream down")
	})

	tests := []struct {
		name     string
		detector ocr.Detector
		files    map[string][]byte
		want     int
	}{
		{"missing image", kDetector(), nil, http.StatusBadRequest},
		{"no text", noText, map[string][]byte{"image:a.png": []byte("x")}, http.StatusUnprocessableEntity},
		{"detector failure", down, map[string][]byte{"image:a.png": []byte("x")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRouter(t, tt.detector, nil)
			body, ct := multipartBody(t, nil, tt.files)
			req := httptest.NewRequest(http.MethodPost, "/extract", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestExtractRegions(t *testing.T) {
	repo := &memStore{}
	r := testRouter(t, kDetector(), repo)

	regions := `[{"id":"od","label":"OD","x":0,"y":0,"width":0.5,"height":1},{"id":"bad","x":0.5,"y":0,"width":0,"height":1}]`
	body, ct := multipartBody(t,
		map[string]string{"regions": regions, "fields": "k", "source": "visit-7"},
		map[string][]byte{"image:scan.png": pngBytes(t, 200, 100)},
	)
	req := httptest.NewRequest(http.MethodPost, "/extract/regions", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Regions []topography.RegionResult `json:"regions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Regions, 2)
	assert.Equal(t, "K1: 43.5", res.Regions[0].Text)
	assert.True(t, res.Regions[1].Skipped)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "visit-7", repo.rows[0].Source)
	assert.Equal(t, models.ModeRegion, repo.rows[0].Mode)
	assert.Equal(t, "od", repo.rows[0].RegionID)
}

func TestExtractRegionsBadInput(t *testing.T) {
	r := testRouter(t, kDetector(), nil)

	valid := `[{"id":"a","width":1,"height":1}]`
	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
		want   int
	}{
		{"invalid regions", map[string]string{"regions": "{"}, pngBytes(t, 10, 10), http.StatusBadRequest},
		{"all degenerate", map[string]string{"regions": `[{"id":"a","width":0,"height":0}]`}, pngBytes(t, 10, 10), http.StatusBadRequest},
		{"unreadable image", map[string]string{"regions": valid}, []byte("not an image"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, map[string][]byte{"image:scan.png": tt.image})
			req := httptest.NewRequest(http.MethodPost, "/extract/regions", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestExtractBatch(t *testing.T) {
	repo := &memStore{}
	d := ocr.DetectorFunc(func(ctx context.Context, image []byte) (*models.Detection, error) {
		if string(image) == "bad" {
			return nil, errors.New("rejected")
		}
		return &models.Detection{Fragments: []models.Fragment{{Text: "s"}, frag("K1: "+string(image), 10)}}, nil
	})
	r := testRouter(t, d, repo)

	body, ct := multipartBody(t, map[string]string{"fields": "k"}, map[string][]byte{
		"images:one.png": []byte("41.0"),
		"images:two.png": []byte("bad"),
	})
	req := httptest.NewRequest(http.MethodPost, "/extract/batch", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Results []topography.BatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Results, 2)

	byID := map[string]topography.BatchResult{}
	for _, r := range res.Results {
		byID[r.ID] = r
	}
	require.NotNil(t, byID["one.png"].Result)
	v, _ := byID["one.png"].Result.Fields.Get("Front_K1")
	assert.Equal(t, "41.0", v)
	assert.Equal(t, "rejected", byID["two.png"].Error)

	require.Len(t, repo.rows, 1)
	assert.Equal(t, "one.png", repo.rows[0].Source)
}

func TestExtractBatchDuplicateFilenames(t *testing.T) {
	repo := &memStore{}
	d := ocr.DetectorFunc(func(ctx context.Context, image []byte) (*models.Detection, error) {
		return &models.Detection{Fragments: []models.Fragment{{Text: "s"}, frag("K1: "+string(image), 10)}}, nil
	})
	r := testRouter(t, d, repo)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("fields", "k"))
	for _, data := range []string{"41.0", "45.0"} {
		fw, err := mw.CreateFormFile("images", "image.jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Results []topography.BatchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Results, 2)
	for i, want := range []string{"41.0", "45.0"} {
		assert.Equal(t, "image.jpg", res.Results[i].ID)
		require.NotNil(t, res.Results[i].Result)
		v, _ := res.Results[i].Result.Fields.Get("Front_K1")
		assert.Equal(t, want, v)
	}

	require.Len(t, repo.rows, 2)
	var saved []string
	for _, row := range repo.rows {
		assert.Equal(t, "image.jpg", row.Source)
		saved = append(saved, row.Text)
	}
	assert.ElementsMatch(t, []string{"K1: 41.0", "K1: 45.0"}, saved)
}

func TestExtractBatchRequiresImages(t *testing.T) {
	r := testRouter(t, kDetector(), nil)
	body, ct := multipartBody(t, map[string]string{"fields": "k"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/extract/batch", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListExtractions(t *testing.T) {
	repo := &memStore{rows: []*models.Extraction{
		{Source: "a", Mode: models.ModeFullPage},
		{Source: "b", Mode: models.ModeRegion},
	}}
	r := testRouter(t, kDetector(), repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extractions?source=b", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.Extraction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Source)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extractions?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListExtractionsWithoutStorage(t *testing.T) {
	r := testRouter(t, kDetector(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extractions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSaveFailureDoesNotFailRequest(t *testing.T) {
	repo := &memStore{err: errors.New("db down")}
	r := testRouter(t, kDetector(), repo)

	req := httptest.NewRequest(http.MethodPost, "/extract/text", strings.NewReader(`{"text":"K1: 40.0"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseRegions(t *testing.T) {
	regions, err := parseRegions(`[{"id":"a","label":"A","x":0.1,"y":0.2,"width":0.3,"height":0.4}]`)
	require.NoError(t, err)
	assert.Equal(t, []models.NormalizedRegion{{ID: "a", Label: "A", X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}}, regions)

	_, err = parseRegions("@/does/not/exist.json")
	assert.Error(t, err)

	_, err = parseRegions("nope")
	assert.Error(t, err)
}
