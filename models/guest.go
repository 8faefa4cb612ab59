package models

import (
	"time"

	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guest represents one guest record in the corpus. The segmentation engine
// reads guests but never mutates them; ownership lives with the reservation
// system.
type Guest struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_guests_uuid" json:"uuid"`
	OrganizationID uint      `gorm:"not null;index:idx_guests_organization_id" json:"organization_id"`
	CampgroundID   uint      `gorm:"not null;index:idx_guests_campground_id" json:"campground_id"`

	FirstName string  `gorm:"type:varchar(100)" json:"first_name"`
	LastName  string  `gorm:"type:varchar(100)" json:"last_name"`
	Email     *string `gorm:"type:varchar(255)" json:"email,omitempty"`

	// Attributes evaluated by segment criteria
	Country      string  `gorm:"type:varchar(2);index:idx_guests_country" json:"country"`
	State        string  `gorm:"type:varchar(50);index:idx_guests_state" json:"state"`
	City         string  `gorm:"type:varchar(100)" json:"city"`
	HasChildren  bool    `gorm:"not null;default:false" json:"has_children"`
	HasPets      bool    `gorm:"not null;default:false" json:"has_pets"`
	RigType      *string `gorm:"type:varchar(50)" json:"rig_type,omitempty"`
	StayLength   int     `gorm:"not null;default:0" json:"stay_length"` // nights
	StayReason   *string `gorm:"type:varchar(50)" json:"stay_reason,omitempty"`
	RepeatStays  int     `gorm:"not null;default:0" json:"repeat_stays"`
	BookingMonth int     `gorm:"not null;default:0" json:"booking_month"` // 1-12
	ArrivalDay   int     `gorm:"not null;default:0" json:"arrival_day"`  // 1-31

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Campground   *Campground   `gorm:"foreignKey:CampgroundID;references:ID" json:"campground,omitempty"`
}

// TableName returns the table name for the model
func (Guest) TableName() string {
	return "guests"
}

// BeforeCreate is called before creating a new record
func (g *Guest) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == uuid.Nil {
		g.UUID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = utils.UTCNow()
	}
	return nil
}

// GuestFilter represents filter criteria for guests
type GuestFilter struct {
	ID             *uint      `json:"id,omitempty"`
	UUID           *uuid.UUID `json:"uuid,omitempty"`
	OrganizationID *uint      `json:"organization_id,omitempty"`
	CampgroundID   *uint      `json:"campground_id,omitempty"`
	Country        *string    `json:"country,omitempty"`
	State          *string    `json:"state,omitempty"`
}
