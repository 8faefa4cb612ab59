// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"time"

	"github.com/campsight/segmentation/app/dto"
	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// ClientMetadataFromContext rebuilds the caller's client metadata from the
// request-scoped values the HTTP layer stores on the context. Values missing
// from the context (background workers, tests) come back empty.
func ClientMetadataFromContext(ctx context.Context) *ClientMetadata {
	cm := &ClientMetadata{}
	if v, ok := ctx.Value(utils.IPAddressKey).(string); ok {
		cm.IPAddress = v
	}
	if v, ok := ctx.Value(utils.UserAgentKey).(string); ok {
		cm.UserAgent = v
	}
	if v, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		cm.RequestID = v
	}
	return cm
}

// Recounter schedules an asynchronous recount for a segment. Implemented by
// the background worker; injected so the flow never blocks on large corpora.
type Recounter interface {
	Enqueue(segmentUUID uuid.UUID) bool
}

// ToSegmentDTO converts a segment model to its API representation
func ToSegmentDTO(seg *models.Segment) dto.SegmentResponse {
	out := dto.SegmentResponse{
		UUID:           seg.UUID.String(),
		Name:           seg.Name,
		Description:    seg.Description,
		Scope:          seg.Scope.String(),
		OrganizationID: seg.OrganizationID,
		CampgroundID:   seg.CampgroundID,
		Criteria:       seg.Criteria,
		IsTemplate:     seg.IsTemplate,
		Status:         seg.Status.String(),
		GuestCount:     seg.GuestCount,
		CountStale:     seg.CountStale,
		CreatedBy:      seg.CreatedBy,
		CreatedAt:      seg.CreatedAt.Format(time.RFC3339),
	}
	if seg.ComputedAt != nil {
		s := seg.ComputedAt.Format(time.RFC3339)
		out.ComputedAt = &s
	}
	if seg.UpdatedAt != nil {
		s := seg.UpdatedAt.Format(time.RFC3339)
		out.UpdatedAt = &s
	}
	return out
}
