package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"topo-scan/pkg/models"
	"topo-scan/pkg/services/compositor"
	"topo-scan/pkg/services/extract"
	"topo-scan/pkg/services/ocr"
	"topo-scan/pkg/services/topography"
	"topo-scan/pkg/store"

	"github.com/gin-gonic/gin"
)

// extractionStore is the persistence the handlers need.
type extractionStore interface {
	Save(ctx context.Context, rows ...*models.Extraction) error
	List(ctx context.Context, source string, limit int) ([]models.Extraction, error)
}

type handler struct {
	svc    *topography.Service
	repo   extractionStore
	logger *slog.Logger
}

func newRouter(svc *topography.Service, repo extractionStore, logger *slog.Logger) *gin.Engine {
	h := &handler{svc: svc, repo: repo, logger: logger}

	r := gin.Default()
	r.GET("/fields", h.listFields)
	r.POST("/extract", h.extractFullPage)
	r.POST("/extract/text", h.extractText)
	r.POST("/extract/regions", h.extractRegions)
	r.POST("/extract/batch", h.extractBatch)
	r.GET("/extractions", h.listExtractions)
	return r
}

func (h *handler) listFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": extract.Keys()})
}

func (h *handler) extractFullPage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	data, err := readFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.ProcessFullPage(c.Request.Context(), data, c.PostForm("fields"))
	if err != nil {
		h.fail(c, err)
		return
	}

	source := c.DefaultPostForm("source", file.Filename)
	h.save(c, source, models.ModeFullPage, "", "", result.Text, result.Fields)
	c.JSON(http.StatusOK, result)
}

type textRequest struct {
	Text   string `json:"text" binding:"required"`
	Fields string `json:"fields"`
	Source string `json:"source"`
}

func (h *handler) extractText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.svc.ProcessText(req.Text, req.Fields)
	h.save(c, req.Source, models.ModeFullPage, "", "", result.Text, result.Fields)
	c.JSON(http.StatusOK, result)
}

func (h *handler) extractRegions(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	var regions []models.NormalizedRegion
	if err := json.Unmarshal([]byte(c.PostForm("regions")), &regions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "regions must be a JSON array"})
		return
	}
	data, err := readFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.svc.ProcessRegions(c.Request.Context(), data, regions, c.PostForm("fields"))
	if err != nil {
		h.fail(c, err)
		return
	}

	source := c.DefaultPostForm("source", file.Filename)
	for _, r := range results {
		if r.Skipped {
			continue
		}
		h.save(c, source, models.ModeRegion, r.RegionID, r.Label, r.Text, r.Fields)
	}
	c.JSON(http.StatusOK, gin.H{"regions": results})
}

func (h *handler) extractBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image is required"})
		return
	}

	inputs := make([]topography.ImageInput, 0, len(files))
	for _, f := range files {
		data, err := readFile(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inputs = append(inputs, topography.ImageInput{ID: f.Filename, Data: data})
	}

	results := h.svc.ProcessBatch(c.Request.Context(), inputs, c.PostForm("fields"))
	for _, r := range results {
		if r.Result != nil {
			h.save(c, r.ID, models.ModeFullPage, "", "", r.Result.Text, r.Result.Fields)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *handler) listExtractions(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage is not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	rows, err := h.repo.List(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		h.logger.Error("listing extractions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list extractions"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// save stores a result when storage is configured. Storage failures are
// logged and do not fail the request.
func (h *handler) save(c *gin.Context, source, mode, regionID, label, text string, fields *models.FieldMap) {
	if h.repo == nil {
		return
	}
	row, err := store.Record(source, mode, regionID, label, text, fields)
	if err == nil {
		err = h.repo.Save(c.Request.Context(), row)
	}
	if err != nil {
		h.logger.Error("saving extraction", "source", source, "region", regionID, "error", err)
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ocr.ErrNoTextDetected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, compositor.ErrNoUsableRegions), errors.Is(err, compositor.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("extraction failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
