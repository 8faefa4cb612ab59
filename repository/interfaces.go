// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/campsight/segmentation/matching"
	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/scope"
	"github.com/google/uuid"
)

type contextKey string

const TxContextKey contextKey = "tx"

// Repository error constants
var (
	// ErrVersionConflict signals an optimistic-concurrency failure: the
	// segment's edit version moved between read and write.
	ErrVersionConflict = errors.New("segment version conflict")

	// ErrWriteSuperseded signals that a match-result write-back was dropped
	// because a fresher result or a newer edit already landed.
	ErrWriteSuperseded = errors.New("match result superseded by a newer write")
)

// SegmentRepository defines the data access contract for segments
type SegmentRepository interface {
	Save(ctx context.Context, segment *models.Segment) error
	ByID(ctx context.Context, id uint) (*models.Segment, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	ListVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error)
	CountVisible(ctx context.Context, tenant scope.TenantContext, filter models.SegmentFilter) (int64, error)
	UpdateDefinition(ctx context.Context, segment *models.Segment, expectedVersion uint, criteriaChanged bool) error
	SetStatus(ctx context.Context, id uint, status models.SegmentStatus) error
	ListStale(ctx context.Context, limit int) ([]*models.Segment, error)
	ApplyMatchResult(ctx context.Context, result *matching.MatchResult) error
	MarkStale(ctx context.Context, id uint) error
	MarkCountStale(ctx context.Context, organizationID uint, campgroundID *uint) (int64, error)
}

// GuestRepository defines read access to the guest corpus. It also
// implements matching.Corpus so the engine can stream guests per binding.
type GuestRepository interface {
	matching.Corpus
	Save(ctx context.Context, guest *models.Guest) error
	SaveBatch(ctx context.Context, guests []*models.Guest) error
}

// CampgroundRepository defines lookups for campground ownership checks
type CampgroundRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campground, error)
	Save(ctx context.Context, campground *models.Campground) error
}

// OrganizationRepository defines lookups for organizations
type OrganizationRepository interface {
	ByID(ctx context.Context, id uint) (*models.Organization, error)
	Save(ctx context.Context, organization *models.Organization) error
}
