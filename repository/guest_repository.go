package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"gorm.io/gorm"
)

// GuestRepositoryImpl implements GuestRepository. Reads are bounded by a
// scope.CorpusBinding; the segmentation engine never writes guest records
// outside of test fixtures and imports.
type GuestRepositoryImpl struct {
	*BaseRepository[models.Guest, models.GuestFilter]
}

// NewGuestRepository creates a new repository for the guest corpus
func NewGuestRepository(db *gorm.DB) GuestRepository {
	return &GuestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Guest, models.GuestFilter](db),
	}
}

// applyBinding narrows a guest query to the corpus the binding describes.
func applyBinding(db *gorm.DB, binding scope.CorpusBinding) *gorm.DB {
	switch binding.Scope {
	case models.SegmentScopeOrganization:
		return db.Where("organization_id = ?", binding.OrganizationID)
	case models.SegmentScopeCampground:
		return db.Where("campground_id = ?", binding.CampgroundID)
	default:
		// An unbound corpus matches nothing rather than everything.
		return db.Where("1 = 0")
	}
}

// Size returns the number of guests in the binding's corpus.
func (r *GuestRepositoryImpl) Size(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := applyBinding(db.Model(&models.Guest{}), binding)
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to size guest corpus: %w", err)
	}
	return count, nil
}

// Version returns the corpus snapshot marker for the binding. The
// reservation system bumps corpus_versions on bulk guest changes; a corpus
// that has never been signalled falls back to its guest count as a
// cold-start marker.
func (r *GuestRepositoryImpl) Version(ctx context.Context, binding scope.CorpusBinding) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.CorpusVersion{}).Where("organization_id = ?", binding.OrganizationID)
	if binding.Scope == models.SegmentScopeCampground {
		query = query.Where("campground_id = ? OR campground_id IS NULL", binding.CampgroundID)
	}

	var version *int64
	err := query.Select("MAX(version)").Scan(&version).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to read corpus version: %w", err)
	}
	if version != nil && *version > 0 {
		return *version, nil
	}

	return r.Size(ctx, binding)
}

// Stream iterates the corpus in primary-key order, one batch at a time.
// Keyset pagination keeps iteration cost flat regardless of corpus size.
func (r *GuestRepositoryImpl) Stream(ctx context.Context, binding scope.CorpusBinding, batchSize int, fn func(guests []*models.Guest) error) error {
	db := r.getDB(ctx)

	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []*models.Guest
		query := applyBinding(db.WithContext(ctx).Model(&models.Guest{}), binding).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize)
		if err := query.Find(&batch).Error; err != nil {
			return fmt.Errorf("failed to stream guest corpus: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID

		if len(batch) < batchSize {
			return nil
		}
	}
}
