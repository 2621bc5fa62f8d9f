package models

import (
	"gorm.io/gorm"
)

// Extraction modes.
const (
	ModeFullPage = "full_page"
	ModeRegion   = "region"
)

// Extraction is a persisted extraction result for one document or one
// region of a document.
type Extraction struct {
	gorm.Model
	Source   string `gorm:"index"`
	Mode     string
	RegionID string
	Label    string
	Text     string
	Fields   string `gorm:"type:jsonb"`
}
