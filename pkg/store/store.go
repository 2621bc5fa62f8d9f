// Package store persists extraction results in Postgres.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"topo-scan/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Repository reads and writes extractions.
type Repository struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(databaseURL string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&models.Extraction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Record builds an Extraction row from a parsed field map.
func Record(source, mode, regionID, label, text string, fields *models.FieldMap) (*models.Extraction, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return &models.Extraction{
		Source:   source,
		Mode:     mode,
		RegionID: regionID,
		Label:    label,
		Text:     text,
		Fields:   string(encoded),
	}, nil
}

// Save inserts extractions in one transaction.
func (r *Repository) Save(ctx context.Context, rows ...*models.Extraction) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("failed to save extractions: %w", err)
	}
	return nil
}

// List returns the most recent extractions, newest first. A non-empty
// source restricts the result to that source.
func (r *Repository) List(ctx context.Context, source string, limit int) ([]models.Extraction, error) {
	q := r.db.WithContext(ctx).Order("created_at desc")
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.Extraction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	return rows, nil
}
