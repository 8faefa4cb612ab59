package dto

import (
	"github.com/campsight/segmentation/models"
)

// CreateSegmentRequest represents the request to create a new segment
type CreateSegmentRequest struct {
	Name           string              `json:"name" validate:"required,min=1,max=255"`
	Description    *string             `json:"description,omitempty" validate:"omitempty,max=2000"`
	Scope          string              `json:"scope" validate:"required,oneof=global organization campground"`
	OrganizationID *uint               `json:"organization_id,omitempty"`
	CampgroundID   *uint               `json:"campground_id,omitempty"`
	Criteria       models.CriteriaList `json:"criteria" validate:"required,min=1"`
}

// UpdateSegmentRequest represents a partial update of a segment definition
type UpdateSegmentRequest struct {
	Name        *string             `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string             `json:"description,omitempty" validate:"omitempty,max=2000"`
	Criteria    models.CriteriaList `json:"criteria,omitempty"`
}

// DuplicateSegmentRequest optionally overrides the duplicate's target scope.
// When empty, the duplicate lands in the caller's own scope.
type DuplicateSegmentRequest struct {
	Scope          *string `json:"scope,omitempty" validate:"omitempty,oneof=organization campground"`
	OrganizationID *uint   `json:"organization_id,omitempty"`
	CampgroundID   *uint   `json:"campground_id,omitempty"`
}

// SegmentResponse represents a segment in API responses. Internal corpus
// handles are never exposed; the cached count carries an explicit staleness
// indicator instead of failing or blanking when a run could not complete.
type SegmentResponse struct {
	UUID           string              `json:"uuid"`
	Name           string              `json:"name"`
	Description    *string             `json:"description,omitempty"`
	Scope          string              `json:"scope"`
	OrganizationID *uint               `json:"organization_id,omitempty"`
	CampgroundID   *uint               `json:"campground_id,omitempty"`
	Criteria       models.CriteriaList `json:"criteria"`
	IsTemplate     bool                `json:"is_template"`
	Status         string              `json:"status"`
	GuestCount     *int64              `json:"guest_count,omitempty"`
	CountStale     bool                `json:"count_stale"`
	ComputedAt     *string             `json:"computed_at,omitempty"`
	CreatedBy      *uint               `json:"created_by,omitempty"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      *string             `json:"updated_at,omitempty"`
}

// ListSegmentsFilter represents filter criteria for listing segments
type ListSegmentsFilter struct {
	Scope  *string `json:"scope,omitempty" validate:"omitempty,oneof=global organization campground"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=active archived"`
	Name   *string `json:"name,omitempty"`
}

// ListSegmentsRequest represents a paginated list request for visible segments
type ListSegmentsRequest struct {
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	OrderBy string              `json:"orderby"` // newest, oldest
	Filter  *ListSegmentsFilter `json:"filter,omitempty"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// ListSegmentsResponse represents a paginated list of segments
type ListSegmentsResponse struct {
	Message    string            `json:"message"`
	Items      []SegmentResponse `json:"items"`
	Pagination PaginationInfo    `json:"pagination"`
}

// RecountResponse represents the outcome of a recount trigger. Pending means
// the corpus was large enough that the run continues asynchronously.
type RecountResponse struct {
	Message    string `json:"message"`
	Status     string `json:"status"` // completed, pending
	GuestCount *int64 `json:"guest_count,omitempty"`
	CountStale bool   `json:"count_stale"`
}
