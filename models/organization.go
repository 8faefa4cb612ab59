// Package models contains the database models for the segmentation engine.
package models

import (
	"time"

	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization represents one operator account owning a set of campgrounds
type Organization struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid" json:"uuid"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Campgrounds []Campground `gorm:"foreignKey:OrganizationID" json:"campgrounds,omitempty"`
}

// TableName returns the table name for the model
func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate is called before creating a new record
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = utils.UTCNow()
	}
	return nil
}
