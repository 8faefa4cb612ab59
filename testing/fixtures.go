// Package testing provides test utilities and database setup for testing the segmentation service
package testing

import (
	"fmt"
	"math/rand"

	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates a test organization
func (tf *TestFixtures) CreateTestOrganization() (*models.Organization, error) {
	org := &models.Organization{
		Name:     fmt.Sprintf("Test Outdoors Group %d", rand.Intn(100000)),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create test organization: %w", err)
	}
	return org, nil
}

// CreateTestCampground creates a test campground under the organization
func (tf *TestFixtures) CreateTestCampground(organizationID uint, state string) (*models.Campground, error) {
	cg := &models.Campground{
		OrganizationID: organizationID,
		Name:           fmt.Sprintf("Test Campground %d", rand.Intn(100000)),
		State:          state,
		IsActive:       utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(cg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campground: %w", err)
	}
	return cg, nil
}

// CreateTestGuest creates one guest record with sensible defaults, overridable
// via the mutate callback.
func (tf *TestFixtures) CreateTestGuest(organizationID, campgroundID uint, mutate func(*models.Guest)) (*models.Guest, error) {
	n := rand.Intn(1000000)
	guest := &models.Guest{
		OrganizationID: organizationID,
		CampgroundID:   campgroundID,
		FirstName:      "Jamie",
		LastName:       fmt.Sprintf("Camper%d", n),
		Email:          utils.ToPtr(fmt.Sprintf("jamie.camper.%d@example.com", n)),
		Country:        "US",
		State:          "TX",
		City:           "Austin",
		HasChildren:    false,
		HasPets:        false,
		StayLength:     3,
		RepeatStays:    1,
		BookingMonth:   6,
		ArrivalDay:     15,
	}
	if mutate != nil {
		mutate(guest)
	}
	if err := tf.DB.DB.Create(guest).Error; err != nil {
		return nil, fmt.Errorf("failed to create test guest: %w", err)
	}
	return guest, nil
}

// CreateTestSegment creates a segment owned by the given organization
func (tf *TestFixtures) CreateTestSegment(scope models.SegmentScope, organizationID, campgroundID *uint, criteria models.CriteriaList) (*models.Segment, error) {
	seg := &models.Segment{
		Name:           fmt.Sprintf("Test Segment %d", rand.Intn(100000)),
		Scope:          scope,
		OrganizationID: organizationID,
		CampgroundID:   campgroundID,
		Criteria:       criteria,
		IsTemplate:     scope == models.SegmentScopeGlobal,
		Status:         models.SegmentStatusActive,
		CountStale:     true,
	}
	if err := tf.DB.DB.Create(seg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test segment: %w", err)
	}
	return seg, nil
}

// BumpCorpusVersion records a new corpus snapshot marker for the organization
func (tf *TestFixtures) BumpCorpusVersion(organizationID uint, campgroundID *uint, version int64) error {
	row := &models.CorpusVersion{
		OrganizationID: organizationID,
		CampgroundID:   campgroundID,
		Version:        version,
		UpdatedAt:      utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return fmt.Errorf("failed to bump corpus version: %w", err)
	}
	return nil
}
