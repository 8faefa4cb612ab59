package models

import (
	"time"

	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campground represents a single property owned by an organization
type Campground struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_campgrounds_uuid" json:"uuid"`
	OrganizationID uint       `gorm:"not null;index:idx_campgrounds_organization_id" json:"organization_id"`
	Name           string     `gorm:"type:varchar(255);not null" json:"name"`
	State          string     `gorm:"type:varchar(50)" json:"state"`
	IsActive       *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
}

// TableName returns the table name for the model
func (Campground) TableName() string {
	return "campgrounds"
}

// BeforeCreate is called before creating a new record
func (c *Campground) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}
