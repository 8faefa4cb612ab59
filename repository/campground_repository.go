package repository

import (
	"github.com/campsight/segmentation/models"
	"gorm.io/gorm"
)

// CampgroundRepositoryImpl implements CampgroundRepository
type CampgroundRepositoryImpl struct {
	*BaseRepository[models.Campground, models.Campground]
}

// NewCampgroundRepository creates a new repository for campgrounds
func NewCampgroundRepository(db *gorm.DB) CampgroundRepository {
	return &CampgroundRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campground, models.Campground](db),
	}
}

// OrganizationRepositoryImpl implements OrganizationRepository
type OrganizationRepositoryImpl struct {
	*BaseRepository[models.Organization, models.Organization]
}

// NewOrganizationRepository creates a new repository for organizations
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Organization, models.Organization](db),
	}
}
