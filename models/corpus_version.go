package models

import (
	"time"
)

// CorpusVersion is a monotonic marker of a guest-corpus snapshot, bumped by
// the reservation system whenever guest records change in bulk. Matching
// runs record the version they read so a slow stale run can never overwrite
// a fresher cached count.
type CorpusVersion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;index:idx_corpus_versions_organization_id" json:"organization_id"`
	CampgroundID   *uint     `gorm:"index:idx_corpus_versions_campground_id" json:"campground_id,omitempty"`
	Version        int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the table name for the model
func (CorpusVersion) TableName() string {
	return "corpus_versions"
}
