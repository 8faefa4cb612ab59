package businessflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campsight/segmentation/app/dto"
	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/repository"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// DuplicateNameSuffix is appended to a duplicated segment's name
const DuplicateNameSuffix = " (Copy)"

// SegmentFlow defines the lifecycle operations for segments
type SegmentFlow interface {
	CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error)
	GetSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) (*dto.SegmentResponse, error)
	ListSegments(ctx context.Context, req *dto.ListSegmentsRequest, tenant scope.TenantContext) (*dto.ListSegmentsResponse, error)
	UpdateSegment(ctx context.Context, segmentUUID string, req *dto.UpdateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error)
	DuplicateSegment(ctx context.Context, segmentUUID string, req *dto.DuplicateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error)
	ArchiveSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) error
	RecountSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) (*dto.RecountResponse, error)
	ExportMatches(ctx context.Context, segmentUUID string, tenant scope.TenantContext) ([]byte, string, error)
}

type SegmentFlowImpl struct {
	segmentRepo      repository.SegmentRepository
	guestRepo        repository.GuestRepository
	campgroundRepo   repository.CampgroundRepository
	organizationRepo repository.OrganizationRepository
	engine           *matching.Engine
	recounter        Recounter
	syncCorpusLimit  int64
}

// NewSegmentFlow creates the lifecycle manager for segments
func NewSegmentFlow(
	segmentRepo repository.SegmentRepository,
	guestRepo repository.GuestRepository,
	campgroundRepo repository.CampgroundRepository,
	organizationRepo repository.OrganizationRepository,
	engine *matching.Engine,
	recounter Recounter,
	syncCorpusLimit int64,
) SegmentFlow {
	if syncCorpusLimit <= 0 {
		syncCorpusLimit = utils.DefaultSyncCorpusLimit
	}
	return &SegmentFlowImpl{
		segmentRepo:      segmentRepo,
		guestRepo:        guestRepo,
		campgroundRepo:   campgroundRepo,
		organizationRepo: organizationRepo,
		engine:           engine,
		recounter:        recounter,
		syncCorpusLimit:  syncCorpusLimit,
	}
}

// CreateSegment validates, persists, and counts a new segment definition.
func (f *SegmentFlowImpl) CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewBusinessError("SEGMENT_NAME_REQUIRED", "Segment name is required", ErrSegmentNameRequired)
	}
	if len(req.Criteria) == 0 {
		return nil, NewBusinessError("SEGMENT_CRITERIA_REQUIRED", "At least one criterion is required", ErrCriteriaRequired)
	}

	segScope := models.SegmentScope(req.Scope)
	if !segScope.Valid() {
		return nil, NewBusinessError("SEGMENT_SCOPE_INVALID", "Segment scope is invalid", ErrInvalidScope)
	}

	if err := matching.ValidateCriteria(req.Criteria); err != nil {
		return nil, wrapCriterionError(err)
	}

	orgID, cgID, err := f.resolveOwners(ctx, segScope, req.OrganizationID, req.CampgroundID, tenant)
	if err != nil {
		return nil, err
	}

	if !scope.CanCreate(tenant, segScope, orgID, cgID) {
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Cannot create a segment at this scope", ErrScopeForbidden)
	}

	seg := &models.Segment{
		Name:           name,
		Description:    req.Description,
		Scope:          segScope,
		OrganizationID: orgID,
		CampgroundID:   cgID,
		Criteria:       req.Criteria,
		IsTemplate:     segScope == models.SegmentScopeGlobal,
		Status:         models.SegmentStatusActive,
		CountStale:     true,
		CreatedBy:      &tenant.UserID,
		CreatedAt:      utils.UTCNow(),
	}
	if err := f.segmentRepo.Save(ctx, seg); err != nil {
		return nil, NewBusinessError("SEGMENT_SAVE_FAILED", "Failed to save segment", err)
	}

	// Global templates are never matched directly; their count stays
	// undefined until duplicated into a concrete scope.
	if seg.HasCorpus() {
		f.runInitialCount(ctx, seg)
		if refreshed, err := f.segmentRepo.ByUUID(ctx, seg.UUID); err == nil && refreshed != nil {
			seg = refreshed
		}
	}

	auditLog(ctx, "segment_created", seg.UUID, tenant)

	out := ToSegmentDTO(seg)
	return &out, nil
}

// GetSegment returns one segment visible to the tenant.
func (f *SegmentFlowImpl) GetSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) (*dto.SegmentResponse, error) {
	seg, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return nil, err
	}
	if !scope.CanView(tenant, seg) {
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Segment is not visible to this tenant", ErrScopeForbidden)
	}

	out := ToSegmentDTO(seg)
	return &out, nil
}

// ListSegments returns the segments visible to the tenant, defaulting to
// active status when the caller does not filter explicitly.
func (f *SegmentFlowImpl) ListSegments(ctx context.Context, req *dto.ListSegmentsRequest, tenant scope.TenantContext) (*dto.ListSegmentsResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("SEGMENT_LIST_INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	limit := req.Limit
	if limit == 0 {
		limit = 20
	}
	if limit < 1 || limit > 100 {
		return nil, NewBusinessError("SEGMENT_LIST_INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter := models.SegmentFilter{
		Status: utils.ToPtr(models.SegmentStatusActive),
	}
	if req.Filter != nil {
		if req.Filter.Status != nil {
			status := models.SegmentStatus(*req.Filter.Status)
			if !status.Valid() {
				return nil, NewBusinessError("SEGMENT_LIST_INVALID_STATUS", "Status filter is invalid", ErrInvalidScope)
			}
			filter.Status = &status
		}
		if req.Filter.Scope != nil {
			segScope := models.SegmentScope(*req.Filter.Scope)
			if !segScope.Valid() {
				return nil, NewBusinessError("SEGMENT_LIST_INVALID_SCOPE", "Scope filter is invalid", ErrInvalidScope)
			}
			filter.Scope = &segScope
		}
		filter.Name = req.Filter.Name
	}

	orderBy := "created_at DESC"
	if req.OrderBy == "oldest" {
		orderBy = "created_at ASC"
	}

	total, err := f.segmentRepo.CountVisible(ctx, tenant, filter)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to count segments", err)
	}

	rows, err := f.segmentRepo.ListVisible(ctx, tenant, filter, orderBy, limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}

	items := make([]dto.SegmentResponse, 0, len(rows))
	for _, seg := range rows {
		items = append(items, ToSegmentDTO(seg))
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return &dto.ListSegmentsResponse{
		Message: "Segments retrieved successfully",
		Items:   items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
		},
	}, nil
}

// UpdateSegment applies a partial update. Any criteria change invalidates
// the cached count before the new definition becomes readable, and triggers
// a recount.
func (f *SegmentFlowImpl) UpdateSegment(ctx context.Context, segmentUUID string, req *dto.UpdateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error) {
	seg, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return nil, err
	}
	if !scope.CanEdit(tenant, seg) {
		if seg.IsTemplate {
			return nil, NewBusinessError("SEGMENT_TEMPLATE_IMMUTABLE", "Templates can only be duplicated", ErrTemplateImmutable)
		}
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Cannot edit this segment", ErrScopeForbidden)
	}
	if seg.IsArchived() {
		return nil, NewBusinessError("SEGMENT_ARCHIVED", "Archived segments cannot be modified", ErrSegmentArchived)
	}

	if req.Name == nil && req.Description == nil && req.Criteria == nil {
		return nil, NewBusinessError("SEGMENT_UPDATE_REQUIRED", "At least one field must be provided for update", ErrUpdateRequired)
	}

	criteriaChanged := req.Criteria != nil
	if criteriaChanged {
		if len(req.Criteria) == 0 {
			return nil, NewBusinessError("SEGMENT_CRITERIA_REQUIRED", "At least one criterion is required", ErrCriteriaRequired)
		}
		if err := matching.ValidateCriteria(req.Criteria); err != nil {
			return nil, wrapCriterionError(err)
		}
		seg.Criteria = req.Criteria
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewBusinessError("SEGMENT_NAME_REQUIRED", "Segment name is required", ErrSegmentNameRequired)
		}
		seg.Name = name
	}
	if req.Description != nil {
		seg.Description = req.Description
	}

	if err := f.segmentRepo.UpdateDefinition(ctx, seg, seg.Version, criteriaChanged); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, NewBusinessError("SEGMENT_STALE_VERSION", "Segment was modified concurrently", ErrStaleVersion)
		}
		return nil, NewBusinessError("SEGMENT_UPDATE_FAILED", "Failed to update segment", err)
	}

	if criteriaChanged && seg.HasCorpus() {
		f.runInitialCount(ctx, seg)
	}

	refreshed, err := f.segmentRepo.ByUUID(ctx, seg.UUID)
	if err == nil && refreshed != nil {
		seg = refreshed
	}

	auditLog(ctx, "segment_updated", seg.UUID, tenant)

	out := ToSegmentDTO(seg)
	return &out, nil
}

// DuplicateSegment copies a visible segment (typically a global template)
// into a concrete scope owned by the caller. The duplicate gets a new
// identity, the source's criteria, and a suffixed name.
func (f *SegmentFlowImpl) DuplicateSegment(ctx context.Context, segmentUUID string, req *dto.DuplicateSegmentRequest, tenant scope.TenantContext) (*dto.SegmentResponse, error) {
	source, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return nil, err
	}
	if !scope.CanView(tenant, source) {
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Segment is not visible to this tenant", ErrScopeForbidden)
	}

	targetScope, orgID, cgID, err := f.resolveDuplicateTarget(ctx, req, tenant)
	if err != nil {
		return nil, err
	}
	if !scope.CanCreate(tenant, targetScope, orgID, cgID) {
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Cannot create a segment at the target scope", ErrScopeForbidden)
	}

	criteria := make(models.CriteriaList, len(source.Criteria))
	copy(criteria, source.Criteria)

	dup := &models.Segment{
		Name:           source.Name + DuplicateNameSuffix,
		Description:    source.Description,
		Scope:          targetScope,
		OrganizationID: orgID,
		CampgroundID:   cgID,
		Criteria:       criteria,
		IsTemplate:     false,
		Status:         models.SegmentStatusActive,
		CountStale:     true,
		CreatedBy:      &tenant.UserID,
		CreatedAt:      utils.UTCNow(),
	}
	if err := f.segmentRepo.Save(ctx, dup); err != nil {
		return nil, NewBusinessError("SEGMENT_SAVE_FAILED", "Failed to save duplicated segment", err)
	}

	f.runInitialCount(ctx, dup)
	if refreshed, err := f.segmentRepo.ByUUID(ctx, dup.UUID); err == nil && refreshed != nil {
		dup = refreshed
	}

	auditLog(ctx, "segment_duplicated", dup.UUID, tenant)

	out := ToSegmentDTO(dup)
	return &out, nil
}

// ArchiveSegment soft-deletes a segment. Re-archiving an archived segment
// is a no-op success so the operation stays idempotent for callers.
func (f *SegmentFlowImpl) ArchiveSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) error {
	seg, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return err
	}
	if seg.IsTemplate && !tenant.IsPlatform {
		return NewBusinessError("SEGMENT_TEMPLATE_IMMUTABLE", "Templates cannot be archived by tenants", ErrTemplateImmutable)
	}
	if !scope.CanEdit(tenant, seg) {
		return NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Cannot archive this segment", ErrScopeForbidden)
	}
	if seg.IsArchived() {
		return nil
	}

	if err := f.segmentRepo.SetStatus(ctx, seg.ID, models.SegmentStatusArchived); err != nil {
		return NewBusinessError("SEGMENT_ARCHIVE_FAILED", "Failed to archive segment", err)
	}

	auditLog(ctx, "segment_archived", seg.UUID, tenant)
	return nil
}

// RecountSegment recomputes the cached count on demand. Small corpora are
// counted inline; large ones are handed to the background worker and the
// caller sees a pending status.
func (f *SegmentFlowImpl) RecountSegment(ctx context.Context, segmentUUID string, tenant scope.TenantContext) (*dto.RecountResponse, error) {
	seg, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return nil, err
	}
	if !scope.CanView(tenant, seg) {
		return nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Segment is not visible to this tenant", ErrScopeForbidden)
	}
	if !seg.HasCorpus() {
		return nil, NewBusinessError("SEGMENT_NO_CORPUS", "Global templates have no corpus to count", ErrNoCorpusBound)
	}
	if seg.IsArchived() {
		return nil, NewBusinessError("SEGMENT_ARCHIVED", "Archived segments are excluded from matching", ErrSegmentArchived)
	}

	size, err := f.engine.CorpusSize(ctx, seg)
	if err != nil {
		// A transient corpus failure degrades to staleness, never a hard
		// failure of the read path. Persist the flag so later reads show
		// the count as stale, not just this response.
		_ = f.segmentRepo.MarkStale(ctx, seg.ID)
		return &dto.RecountResponse{
			Message:    "Corpus unavailable, last known count retained",
			Status:     "pending",
			GuestCount: seg.GuestCount,
			CountStale: true,
		}, nil
	}

	if size > f.syncCorpusLimit && f.recounter != nil {
		f.recounter.Enqueue(seg.UUID)
		return &dto.RecountResponse{
			Message:    "Recount scheduled",
			Status:     "pending",
			GuestCount: seg.GuestCount,
			CountStale: seg.CountStale,
		}, nil
	}

	result, err := f.engine.Match(ctx, seg, false)
	if err != nil {
		_ = f.segmentRepo.MarkStale(ctx, seg.ID)
		return &dto.RecountResponse{
			Message:    "Recount could not complete, last known count retained",
			Status:     "pending",
			GuestCount: seg.GuestCount,
			CountStale: true,
		}, nil
	}

	if err := f.segmentRepo.ApplyMatchResult(ctx, result); err != nil {
		if errors.Is(err, repository.ErrWriteSuperseded) {
			// A fresher run or a concurrent edit won; report the stored state.
			if refreshed, rerr := f.segmentRepo.ByUUID(ctx, seg.UUID); rerr == nil && refreshed != nil {
				return &dto.RecountResponse{
					Message:    "Recount superseded by a newer run",
					Status:     "completed",
					GuestCount: refreshed.GuestCount,
					CountStale: refreshed.CountStale,
				}, nil
			}
		}
		return nil, NewBusinessError("SEGMENT_RECOUNT_FAILED", "Failed to store recount result", err)
	}

	return &dto.RecountResponse{
		Message:    "Recount completed",
		Status:     "completed",
		GuestCount: &result.GuestCount,
		CountStale: false,
	}, nil
}

// ExportMatches streams the segment's corpus once and writes every matching
// guest into an xlsx workbook for the messaging and reporting consumers.
func (f *SegmentFlowImpl) ExportMatches(ctx context.Context, segmentUUID string, tenant scope.TenantContext) ([]byte, string, error) {
	seg, err := f.loadSegment(ctx, segmentUUID)
	if err != nil {
		return nil, "", err
	}
	if !scope.CanView(tenant, seg) {
		return nil, "", NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Segment is not visible to this tenant", ErrScopeForbidden)
	}
	if !seg.HasCorpus() {
		return nil, "", NewBusinessError("SEGMENT_NO_CORPUS", "Global templates have no corpus to export", ErrNoCorpusBound)
	}
	if seg.IsArchived() {
		return nil, "", NewBusinessError("SEGMENT_ARCHIVED", "Archived segments are excluded from matching", ErrSegmentArchived)
	}

	binding, err := scope.CorpusBindingFor(seg)
	if err != nil {
		return nil, "", NewBusinessError("SEGMENT_NO_CORPUS", "Segment has no bound corpus", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Guests"
	file.SetSheetName(file.GetSheetName(0), sheet)
	headers := []string{"Guest UUID", "First Name", "Last Name", "Email", "Country", "State", "City", "Rig Type", "Stay Length", "Repeat Stays"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, h)
	}

	preds := matching.CompileCriteria(seg.Criteria)
	row := 2
	err = f.guestRepo.Stream(ctx, binding, utils.CorpusBatchSize, func(guests []*models.Guest) error {
		for _, g := range guests {
			if !matching.MatchesAll(preds, g) {
				continue
			}
			email := ""
			if g.Email != nil {
				email = *g.Email
			}
			rigType := ""
			if g.RigType != nil {
				rigType = *g.RigType
			}
			values := []any{g.UUID.String(), g.FirstName, g.LastName, email, g.Country, g.State, g.City, rigType, g.StayLength, g.RepeatStays}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				file.SetCellValue(sheet, cell, v)
			}
			row++
		}
		return nil
	})
	if err != nil {
		return nil, "", NewBusinessError("SEGMENT_EXPORT_FAILED", "Failed to read guest corpus for export", err)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, "", NewBusinessError("SEGMENT_EXPORT_FAILED", "Failed to build export workbook", err)
	}

	filename := fmt.Sprintf("segment-%s-guests.xlsx", seg.UUID)
	return buf.Bytes(), filename, nil
}

// loadSegment resolves a segment by its public UUID.
func (f *SegmentFlowImpl) loadSegment(ctx context.Context, segmentUUID string) (*models.Segment, error) {
	id, err := uuid.Parse(segmentUUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}
	seg, err := f.segmentRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to look up segment", err)
	}
	if seg == nil {
		return nil, NewBusinessError("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}
	return seg, nil
}

// resolveOwners determines the owning organization/campground columns for a
// new segment at the requested scope, defaulting to the caller's own tenancy.
func (f *SegmentFlowImpl) resolveOwners(ctx context.Context, segScope models.SegmentScope, reqOrgID, reqCgID *uint, tenant scope.TenantContext) (*uint, *uint, error) {
	switch segScope {
	case models.SegmentScopeGlobal:
		return nil, nil, nil
	case models.SegmentScopeOrganization:
		orgID := reqOrgID
		if orgID == nil {
			orgID = tenant.OrganizationID
		}
		if orgID == nil {
			return nil, nil, NewBusinessError("SEGMENT_ORGANIZATION_REQUIRED", "Organization could not be resolved", ErrOrganizationMissing)
		}
		org, err := f.organizationRepo.ByID(ctx, *orgID)
		if err != nil {
			return nil, nil, NewBusinessError("SEGMENT_ORGANIZATION_LOOKUP_FAILED", "Failed to look up organization", err)
		}
		if org == nil {
			return nil, nil, NewBusinessError("SEGMENT_ORGANIZATION_REQUIRED", "Organization does not exist", ErrOrganizationMissing)
		}
		return orgID, nil, nil
	case models.SegmentScopeCampground:
		cgID := reqCgID
		if cgID == nil {
			cgID = tenant.CampgroundID
		}
		if cgID == nil {
			return nil, nil, NewBusinessError("SEGMENT_CAMPGROUND_REQUIRED", "Campground could not be resolved", ErrCampgroundMissing)
		}
		cg, err := f.campgroundRepo.ByID(ctx, *cgID)
		if err != nil {
			return nil, nil, NewBusinessError("SEGMENT_CAMPGROUND_LOOKUP_FAILED", "Failed to look up campground", err)
		}
		if cg == nil {
			return nil, nil, NewBusinessError("SEGMENT_CAMPGROUND_REQUIRED", "Campground does not exist", ErrCampgroundMissing)
		}
		orgID := reqOrgID
		if orgID == nil {
			orgID = tenant.OrganizationID
		}
		if orgID == nil {
			orgID = &cg.OrganizationID
		}
		if *orgID != cg.OrganizationID {
			return nil, nil, NewBusinessError("SEGMENT_CAMPGROUND_MISMATCH", "Campground does not belong to the organization", ErrCampgroundMismatch)
		}
		return orgID, cgID, nil
	default:
		return nil, nil, NewBusinessError("SEGMENT_SCOPE_INVALID", "Segment scope is invalid", ErrInvalidScope)
	}
}

// resolveDuplicateTarget picks the duplicate's scope: an explicit request
// override when present, otherwise the caller's own scope.
func (f *SegmentFlowImpl) resolveDuplicateTarget(ctx context.Context, req *dto.DuplicateSegmentRequest, tenant scope.TenantContext) (models.SegmentScope, *uint, *uint, error) {
	if req != nil && req.Scope != nil {
		targetScope := models.SegmentScope(*req.Scope)
		if !targetScope.Valid() || targetScope == models.SegmentScopeGlobal {
			return "", nil, nil, NewBusinessError("SEGMENT_SCOPE_INVALID", "Duplicate target scope is invalid", ErrInvalidScope)
		}
		orgID, cgID, err := f.resolveOwners(ctx, targetScope, req.OrganizationID, req.CampgroundID, tenant)
		if err != nil {
			return "", nil, nil, err
		}
		return targetScope, orgID, cgID, nil
	}

	targetScope, orgID, cgID, ok := scope.DuplicateTarget(tenant)
	if !ok {
		return "", nil, nil, NewBusinessError("SEGMENT_SCOPE_FORBIDDEN", "Caller has no concrete scope to duplicate into", ErrScopeForbidden)
	}
	return targetScope, orgID, cgID, nil
}

// runInitialCount computes the first cached count for a newly written
// definition: inline for small corpora, via the background worker for large
// ones. Failures leave the count stale rather than failing the write.
func (f *SegmentFlowImpl) runInitialCount(ctx context.Context, seg *models.Segment) {
	size, err := f.engine.CorpusSize(ctx, seg)
	if err == nil && size > f.syncCorpusLimit && f.recounter != nil {
		f.recounter.Enqueue(seg.UUID)
		return
	}

	result, err := f.engine.Match(ctx, seg, false)
	if err != nil {
		if f.recounter != nil {
			f.recounter.Enqueue(seg.UUID)
		}
		return
	}
	// Superseded write-backs are fine: a concurrent edit or fresher run won.
	_ = f.segmentRepo.ApplyMatchResult(ctx, result)
}

// auditLog records a mutating segment operation together with the caller's
// client metadata carried on the request context.
func auditLog(ctx context.Context, event string, segmentUUID uuid.UUID, tenant scope.TenantContext) {
	cm := ClientMetadataFromContext(ctx)
	log.Printf(`{"time":"%s","level":"info","event":"%s","segment_uuid":"%s","user_id":%d,"request_id":"%s","ip":"%s","user_agent":"%s"}`,
		utils.UTCNow().Format(time.RFC3339), event, segmentUUID, tenant.UserID, cm.RequestID, cm.IPAddress, cm.UserAgent)
}

// wrapCriterionError converts a criterion validation failure into a business
// error that carries the offending index and field for the API response.
func wrapCriterionError(err error) error {
	var cerr *matching.CriterionError
	if errors.As(err, &cerr) {
		return NewBusinessError("SEGMENT_CRITERION_INVALID", cerr.Detail, err)
	}
	return NewBusinessError("SEGMENT_CRITERION_INVALID", "Criterion validation failed", err)
}
