package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SegmentRepositoryImpl implements SegmentRepository
type SegmentRepositoryImpl struct {
	*BaseRepository[models.Segment, models.SegmentFilter]
}

// NewSegmentRepository creates a new repository for segments
func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &SegmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Segment, models.SegmentFilter](db),
	}
}

// ByUUID retrieves a segment by its public UUID.
func (r *SegmentRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	db := r.getDB(ctx)

	var seg models.Segment
	err := db.Where("uuid = ?", id).Last(&seg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find segment by UUID %s: %w", id, err)
	}
	return &seg, nil
}

// applyVisibility narrows a query to the segments the tenant may see:
// global templates plus the tenant's own organization, with property-level
// staff further limited to their own campground's segments.
func (r *SegmentRepositoryImpl) applyVisibility(db *gorm.DB, tenant scope.TenantContext) *gorm.DB {
	if tenant.IsPlatform {
		return db
	}
	if tenant.OrganizationID == nil {
		return db.Where("scope = ?", models.SegmentScopeGlobal)
	}
	if tenant.CampgroundID != nil {
		return db.Where(
			"scope = ? OR (scope = ? AND organization_id = ?) OR (scope = ? AND campground_id = ?)",
			models.SegmentScopeGlobal,
			models.SegmentScopeOrganization, *tenant.OrganizationID,
			models.SegmentScopeCampground, *tenant.CampgroundID,
		)
	}
	return db.Where("scope = ? OR organization_id = ?", models.SegmentScopeGlobal, *tenant.OrganizationID)
}

// applyFilter applies filter conditions to the GORM query
func (r *SegmentRepositoryImpl) applyFilter(db *gorm.DB, filter models.SegmentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Scope != nil {
		db = db.Where("scope = ?", *filter.Scope)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.OrganizationID != nil {
		db = db.Where("organization_id = ?", *filter.OrganizationID)
	}
	if filter.CampgroundID != nil {
		db = db.Where("campground_id = ?", *filter.CampgroundID)
	}
	if filter.IsTemplate != nil {
		db = db.Where("is_template = ?", *filter.IsTemplate)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

// ListVisible retrieves segments visible to the tenant, filtered and paginated.
func (r *SegmentRepositoryImpl) ListVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Segment{})

	query = r.applyVisibility(query, tenant)
	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Segment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return rows, nil
}

// CountVisible returns the number of segments visible to the tenant matching the filter.
func (r *SegmentRepositoryImpl) CountVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Segment{})
	query = r.applyVisibility(query, tenant)
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return count, nil
}

// UpdateDefinition persists a definition change guarded by the optimistic
// edit version. A criteria change atomically marks the cached count stale in
// the same statement, so an in-flight run for the old criteria can never
// land a number over the stale marker.
func (r *SegmentRepositoryImpl) UpdateDefinition(ctx context.Context, segment *models.Segment, expectedVersion uint, criteriaChanged bool) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{
		"name":        segment.Name,
		"description": segment.Description,
		"version":     gorm.Expr("version + 1"),
		"updated_at":  utils.UTCNow(),
	}
	if criteriaChanged {
		updates["criteria"] = segment.Criteria
		updates["count_stale"] = true
	}

	res := db.Model(&models.Segment{}).
		Where("id = ? AND version = ?", segment.ID, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		err = fmt.Errorf("failed to update segment %d: %w", segment.ID, res.Error)
		return err
	}
	if res.RowsAffected == 0 {
		err = ErrVersionConflict
		return err
	}

	segment.Version = expectedVersion + 1
	if criteriaChanged {
		segment.CountStale = true
	}
	return nil
}

// SetStatus moves a segment between active and archived. Criteria and the
// cached count are left untouched as a historical record.
func (r *SegmentRepositoryImpl) SetStatus(ctx context.Context, id uint, status models.SegmentStatus) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.Segment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to set segment %d status: %w", id, res.Error)
		return err
	}
	if res.RowsAffected == 0 {
		err = fmt.Errorf("segment %d not found", id)
		return err
	}
	return nil
}

// ApplyMatchResult caches a matching run's count onto the segment.
// The write is dropped (ErrWriteSuperseded) when the segment's definition
// moved since the run started, or when a run against a newer corpus version
// already wrote back - last-writer-wins by corpus version, never by
// completion order.
func (r *SegmentRepositoryImpl) ApplyMatchResult(ctx context.Context, result *matching.MatchResult) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.Segment{}).
		Where("uuid = ? AND version = ? AND (corpus_version IS NULL OR corpus_version <= ?)",
			result.SegmentUUID, result.SegmentVersion, result.CorpusVersion).
		Updates(map[string]any{
			"guest_count":    result.GuestCount,
			"count_stale":    false,
			"corpus_version": result.CorpusVersion,
			"computed_at":    result.ComputedAt,
			"updated_at":     utils.UTCNow(),
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to apply match result for segment %s: %w", result.SegmentUUID, res.Error)
		return err
	}
	if res.RowsAffected == 0 {
		err = ErrWriteSuperseded
		return err
	}
	return nil
}

// ListStale returns active corpus-bound segments whose cached count is
// flagged stale, oldest recomputation first, for the background worker.
func (r *SegmentRepositoryImpl) ListStale(ctx context.Context, limit int) ([]*models.Segment, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Segment{}).
		Where("status = ? AND scope <> ? AND count_stale = ?",
			models.SegmentStatusActive, models.SegmentScopeGlobal, true).
		Order("computed_at ASC NULLS FIRST")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Segment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale segments: %w", err)
	}
	return rows, nil
}

// MarkStale flags a single segment's cached count stale, used when a
// synchronous recount could not complete so readers see the degradation.
// Marking an already-stale or missing segment is a no-op.
func (r *SegmentRepositoryImpl) MarkStale(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Model(&models.Segment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"count_stale": true,
			"updated_at":  utils.UTCNow(),
		})
	if res.Error != nil {
		err = fmt.Errorf("failed to mark segment %d stale: %w", id, res.Error)
		return err
	}
	return nil
}

// MarkCountStale flags every active corpus-bound segment of the organization
// (or one campground) as stale after a corpus change signal. Returns the
// number of segments affected.
func (r *SegmentRepositoryImpl) MarkCountStale(ctx context.Context, organizationID uint, campgroundID *uint) (int64, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	query := db.Model(&models.Segment{}).
		Where("status = ? AND scope <> ? AND organization_id = ?",
			models.SegmentStatusActive, models.SegmentScopeGlobal, organizationID)
	if campgroundID != nil {
		// A single property's change still stales the organization-wide
		// segments, whose corpus spans that property.
		query = query.Where("scope = ? OR campground_id = ?", models.SegmentScopeOrganization, *campgroundID)
	}

	res := query.Update("count_stale", true)
	if res.Error != nil {
		err = fmt.Errorf("failed to mark segments stale for organization %d: %w", organizationID, res.Error)
		return 0, err
	}
	return res.RowsAffected, nil
}
