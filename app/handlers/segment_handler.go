// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/campsight/segmentation/app/dto"
	businessflow "github.com/campsight/segmentation/business_flow"
	"github.com/campsight/segmentation/scope"
	"github.com/campsight/segmentation/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SegmentHandlerInterface defines the contract for segment handlers
type SegmentHandlerInterface interface {
	CreateSegment(c fiber.Ctx) error
	ListSegments(c fiber.Ctx) error
	GetSegment(c fiber.Ctx) error
	UpdateSegment(c fiber.Ctx) error
	DuplicateSegment(c fiber.Ctx) error
	ArchiveSegment(c fiber.Ctx) error
	RecountSegment(c fiber.Ctx) error
	ExportSegment(c fiber.Ctx) error
}

// SegmentHandler handles segment-related HTTP requests
type SegmentHandler struct {
	segmentFlow businessflow.SegmentFlow
	validator   *validator.Validate
}

func (h *SegmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SegmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(segmentFlow businessflow.SegmentFlow) *SegmentHandler {
	return &SegmentHandler{
		segmentFlow: segmentFlow,
		validator:   validator.New(),
	}
}

// CreateSegment handles the segment creation process
// @Summary Create Segment
// @Description Create a new guest segment with conjunctive criteria at the requested scope
// @Tags Segments
// @Accept json
// @Produce json
// @Param request body dto.CreateSegmentRequest true "Segment creation data"
// @Success 201 {object} dto.APIResponse{data=dto.SegmentResponse} "Segment created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid criteria"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden - scope not permitted"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments [post]
func (h *SegmentHandler) CreateSegment(c fiber.Ctx) error {
	var req dto.CreateSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	result, err := h.segmentFlow.CreateSegment(h.createRequestContext(c, "/api/v1/segments"), &req, tenant)
	if err != nil {
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Cannot create a segment at this scope", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}
		if businessflow.IsSegmentNameRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment name is required", "SEGMENT_NAME_REQUIRED", nil)
		}
		if businessflow.IsCriteriaRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one criterion is required", "SEGMENT_CRITERIA_REQUIRED", nil)
		}
		if businessflow.IsInvalidScope(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment scope is invalid", "SEGMENT_SCOPE_INVALID", nil)
		}
		if businessflow.IsOrganizationMissing(err) || businessflow.IsCampgroundMissing(err) || businessflow.IsCampgroundMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment owner could not be resolved", "SEGMENT_OWNER_INVALID", nil)
		}
		if code, details, ok := criterionErrorDetails(err); ok {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Criterion validation failed", code, details)
		}

		log.Println("Segment creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment creation failed", "SEGMENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Segment created successfully", result)
}

// ListSegments returns the segments visible to the tenant with filters and pagination
// @Summary List Segments
// @Description Retrieve the segments visible to the authenticated tenant with pagination, ordering, and filters
// @Tags Segments
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Param orderby query string false "Order by (newest|oldest)" default(newest)
// @Param scope query string false "Filter by scope (global|organization|campground)"
// @Param status query string false "Filter by status (active|archived)"
// @Param name query string false "Filter by name (contains)"
// @Success 200 {object} dto.APIResponse{data=dto.ListSegmentsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments [get]
func (h *SegmentHandler) ListSegments(c fiber.Ctx) error {
	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit", "20")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	orderby := c.Query("orderby", "newest")
	scopeFilter := c.Query("scope")
	statusFilter := c.Query("status")
	nameFilter := c.Query("name")

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	var filter *dto.ListSegmentsFilter
	if scopeFilter != "" || statusFilter != "" || nameFilter != "" {
		filter = &dto.ListSegmentsFilter{}
		if scopeFilter != "" {
			filter.Scope = &scopeFilter
		}
		if statusFilter != "" {
			filter.Status = &statusFilter
		}
		if nameFilter != "" {
			filter.Name = &nameFilter
		}
	}
	req := &dto.ListSegmentsRequest{
		Page:    page,
		Limit:   limit,
		OrderBy: orderby,
		Filter:  filter,
	}

	result, err := h.segmentFlow.ListSegments(h.createRequestContext(c, "/api/v1/segments"), req, tenant)
	if err != nil {
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) || businessflow.IsInvalidScope(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid list parameters", "INVALID_LIST_PARAMETERS", nil)
		}

		log.Println("List segments failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list segments", "LIST_SEGMENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved successfully", fiber.Map{
		"message":    result.Message,
		"items":      result.Items,
		"pagination": result.Pagination,
	})
}

// GetSegment returns one segment by UUID
// @Summary Get Segment
// @Description Retrieve a single segment visible to the authenticated tenant
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.SegmentResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid} [get]
func (h *SegmentHandler) GetSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	result, err := h.segmentFlow.GetSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID), segmentUUID, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Segment is not visible to this tenant", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}

		log.Println("Get segment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve segment", "GET_SEGMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment retrieved successfully", result)
}

// UpdateSegment handles a partial update of a segment definition
// @Summary Update Segment
// @Description Update a segment's name, description, or criteria. Criteria changes invalidate the cached count.
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Param request body dto.UpdateSegmentRequest true "Segment update data"
// @Success 200 {object} dto.APIResponse{data=dto.SegmentResponse} "Segment updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid criteria"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden - scope not permitted or template immutable"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 409 {object} dto.APIResponse "Conflict - archived or concurrently modified"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid} [patch]
func (h *SegmentHandler) UpdateSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	var req dto.UpdateSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	result, err := h.segmentFlow.UpdateSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID), segmentUUID, &req, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsTemplateImmutable(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Templates can only be duplicated, not modified", "SEGMENT_TEMPLATE_IMMUTABLE", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Cannot edit this segment", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}
		if businessflow.IsSegmentArchived(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Archived segments cannot be modified", "SEGMENT_ARCHIVED", nil)
		}
		if businessflow.IsStaleVersion(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Segment was modified concurrently, retry with fresh data", "SEGMENT_STALE_VERSION", nil)
		}
		if businessflow.IsSegmentNameRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment name is required", "SEGMENT_NAME_REQUIRED", nil)
		}
		if businessflow.IsCriteriaRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one criterion is required", "SEGMENT_CRITERIA_REQUIRED", nil)
		}
		if businessflow.IsUpdateRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one field must be provided for update", "SEGMENT_UPDATE_REQUIRED", nil)
		}
		if code, details, ok := criterionErrorDetails(err); ok {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Criterion validation failed", code, details)
		}

		log.Println("Segment update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment update failed", "SEGMENT_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment updated successfully", result)
}

// DuplicateSegment copies a segment into the caller's scope
// @Summary Duplicate Segment
// @Description Duplicate a visible segment (typically a global template) into a concrete scope
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Param request body dto.DuplicateSegmentRequest false "Optional target scope override"
// @Success 201 {object} dto.APIResponse{data=dto.SegmentResponse} "Segment duplicated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid}/duplicate [post]
func (h *SegmentHandler) DuplicateSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	var req dto.DuplicateSegmentRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			var validationErrors []string
			for _, err := range err.(validator.ValidationErrors) {
				validationErrors = append(validationErrors, getValidationErrorMessage(err))
			}
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
		}
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	result, err := h.segmentFlow.DuplicateSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID+"/duplicate"), segmentUUID, &req, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Cannot duplicate into the target scope", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}
		if businessflow.IsInvalidScope(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Duplicate target scope is invalid", "SEGMENT_SCOPE_INVALID", nil)
		}
		if businessflow.IsOrganizationMissing(err) || businessflow.IsCampgroundMissing(err) || businessflow.IsCampgroundMismatch(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Duplicate target owner could not be resolved", "SEGMENT_OWNER_INVALID", nil)
		}

		log.Println("Segment duplication failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment duplication failed", "SEGMENT_DUPLICATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Segment duplicated successfully", result)
}

// ArchiveSegment soft-deletes a segment
// @Summary Archive Segment
// @Description Archive a segment. Archiving an already-archived segment is a no-op success.
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Success 200 {object} dto.APIResponse "Segment archived successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid} [delete]
func (h *SegmentHandler) ArchiveSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	err := h.segmentFlow.ArchiveSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID), segmentUUID, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsTemplateImmutable(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Templates cannot be archived by tenants", "SEGMENT_TEMPLATE_IMMUTABLE", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Cannot archive this segment", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}

		log.Println("Segment archive failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment archive failed", "SEGMENT_ARCHIVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment archived successfully", nil)
}

// RecountSegment triggers an on-demand recount of the cached guest count
// @Summary Recount Segment
// @Description Recompute the segment's cached guest count. Large corpora are recounted asynchronously.
// @Tags Segments
// @Accept json
// @Produce json
// @Param uuid path string true "Segment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RecountResponse} "Recount completed"
// @Success 202 {object} dto.APIResponse{data=dto.RecountResponse} "Recount scheduled"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 409 {object} dto.APIResponse "Conflict - segment archived or template"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid}/recount [post]
func (h *SegmentHandler) RecountSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	result, err := h.segmentFlow.RecountSegment(h.createRequestContext(c, "/api/v1/segments/"+segmentUUID+"/recount"), segmentUUID, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Segment is not visible to this tenant", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}
		if businessflow.IsNoCorpusBound(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Global templates have no corpus to count", "SEGMENT_NO_CORPUS", nil)
		}
		if businessflow.IsSegmentArchived(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Archived segments are excluded from matching", "SEGMENT_ARCHIVED", nil)
		}

		log.Println("Segment recount failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment recount failed", "SEGMENT_RECOUNT_FAILED", nil)
	}

	statusCode := fiber.StatusOK
	if result.Status == "pending" {
		statusCode = fiber.StatusAccepted
	}
	return h.SuccessResponse(c, statusCode, result.Message, result)
}

// ExportSegment downloads the matching guests as an xlsx workbook
// @Summary Export Segment Matches
// @Description Stream the segment's corpus and download every matching guest as an xlsx file
// @Tags Segments
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param uuid path string true "Segment UUID"
// @Success 200 {file} binary "Workbook of matching guests"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Failure 409 {object} dto.APIResponse "Conflict - segment archived or template"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/segments/{uuid}/export [get]
func (h *SegmentHandler) ExportSegment(c fiber.Ctx) error {
	segmentUUID := c.Params("uuid")
	if segmentUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Segment UUID is required", "MISSING_SEGMENT_UUID", nil)
	}

	tenant, ok := tenantFromLocals(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tenant context not found", "MISSING_TENANT", nil)
	}

	// Exports stream the whole corpus, so they get a wider budget than the
	// default request context.
	content, filename, err := h.segmentFlow.ExportMatches(h.createRequestContextWithTimeout(c, "/api/v1/segments/"+segmentUUID+"/export", 2*time.Minute), segmentUUID, tenant)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "SEGMENT_NOT_FOUND", nil)
		}
		if businessflow.IsScopeForbidden(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Segment is not visible to this tenant", "SEGMENT_SCOPE_FORBIDDEN", nil)
		}
		if businessflow.IsNoCorpusBound(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Global templates have no corpus to export", "SEGMENT_NO_CORPUS", nil)
		}
		if businessflow.IsSegmentArchived(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Archived segments are excluded from matching", "SEGMENT_ARCHIVED", nil)
		}

		log.Println("Segment export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Segment export failed", "SEGMENT_EXPORT_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(content)
}

// tenantFromLocals extracts the authenticated tenant context set by the auth middleware
func tenantFromLocals(c fiber.Ctx) (scope.TenantContext, bool) {
	tenant, ok := c.Locals("tenant").(scope.TenantContext)
	return tenant, ok
}

// criterionErrorDetails surfaces a criterion validation failure with its
// offending index and field so the UI can highlight the bad row.
func criterionErrorDetails(err error) (string, any, bool) {
	var berr *businessflow.BusinessError
	if !errors.As(err, &berr) || berr.Code != "SEGMENT_CRITERION_INVALID" {
		return "", nil, false
	}
	return berr.Code, berr.Message, true
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *SegmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *SegmentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
