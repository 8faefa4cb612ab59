// Package businessflow contains the core business logic and use cases for segment lifecycle workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Segment-related errors
	ErrSegmentNotFound     = errors.New("segment not found")
	ErrScopeForbidden      = errors.New("tenant cannot access segments at this scope")
	ErrSegmentArchived     = errors.New("segment is archived")
	ErrTemplateImmutable   = errors.New("global templates can only be duplicated, not mutated")
	ErrStaleVersion        = errors.New("segment was modified concurrently, retry with fresh data")
	ErrSegmentNameRequired = errors.New("segment name is required")
	ErrCriteriaRequired    = errors.New("at least one criterion is required")
	ErrInvalidScope        = errors.New("segment scope is invalid")
	ErrOrganizationMissing = errors.New("organization could not be resolved for the requested scope")
	ErrCampgroundMissing   = errors.New("campground could not be resolved for the requested scope")
	ErrCampgroundMismatch  = errors.New("campground does not belong to the organization")
	ErrUpdateRequired      = errors.New("at least one field must be provided for update")
	ErrNoCorpusBound       = errors.New("segment has no bound guest corpus")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

func IsScopeForbidden(err error) bool {
	return errors.Is(err, ErrScopeForbidden)
}

func IsSegmentArchived(err error) bool {
	return errors.Is(err, ErrSegmentArchived)
}

func IsTemplateImmutable(err error) bool {
	return errors.Is(err, ErrTemplateImmutable)
}

func IsStaleVersion(err error) bool {
	return errors.Is(err, ErrStaleVersion)
}

func IsSegmentNameRequired(err error) bool {
	return errors.Is(err, ErrSegmentNameRequired)
}

func IsCriteriaRequired(err error) bool {
	return errors.Is(err, ErrCriteriaRequired)
}

func IsInvalidScope(err error) bool {
	return errors.Is(err, ErrInvalidScope)
}

func IsOrganizationMissing(err error) bool {
	return errors.Is(err, ErrOrganizationMissing)
}

func IsCampgroundMissing(err error) bool {
	return errors.Is(err, ErrCampgroundMissing)
}

func IsCampgroundMismatch(err error) bool {
	return errors.Is(err, ErrCampgroundMismatch)
}

func IsUpdateRequired(err error) bool {
	return errors.Is(err, ErrUpdateRequired)
}

func IsNoCorpusBound(err error) bool {
	return errors.Is(err, ErrNoCorpusBound)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
