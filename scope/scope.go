// Package scope implements the tenant visibility and corpus-binding rules for
// segments. All functions are pure decisions over a TenantContext and a
// segment; storage and matching never embed authorization logic of their own.
package scope

import (
	"errors"

	"github.com/campsight/segmentation/models"
)

// ErrNoCorpus is returned when a corpus binding is requested for a segment
// that is not bound to one (global templates).
var ErrNoCorpus = errors.New("segment has no bound guest corpus")

// TenantContext identifies the caller's position in the tenant hierarchy.
// A platform operator has IsPlatform set; an organization staff member has
// OrganizationID set; property-level staff additionally carry CampgroundID.
type TenantContext struct {
	OrganizationID *uint `json:"organization_id,omitempty"`
	CampgroundID   *uint `json:"campground_id,omitempty"`
	IsPlatform     bool  `json:"is_platform"`
	UserID         uint  `json:"user_id"`
}

// CorpusBinding describes the concrete guest corpus a segment reads.
type CorpusBinding struct {
	Scope          models.SegmentScope
	OrganizationID uint
	CampgroundID   uint
}

// CanView reports whether the caller may read the segment. Global templates
// are readable by every tenant; organization and campground segments are
// visible only within their owning organization.
func CanView(t TenantContext, seg *models.Segment) bool {
	if seg == nil {
		return false
	}
	if t.IsPlatform {
		return true
	}

	switch seg.Scope {
	case models.SegmentScopeGlobal:
		return true
	case models.SegmentScopeOrganization:
		return sameOrganization(t, seg)
	case models.SegmentScopeCampground:
		if t.CampgroundID != nil {
			return seg.CampgroundID != nil && *seg.CampgroundID == *t.CampgroundID
		}
		// Organization-wide staff see all property segments of their org.
		return sameOrganization(t, seg)
	default:
		return false
	}
}

// CanEdit reports whether the caller may mutate the segment. Templates are
// never edited by tenants; they can only be duplicated into a concrete scope.
func CanEdit(t TenantContext, seg *models.Segment) bool {
	if seg == nil {
		return false
	}
	if seg.Scope == models.SegmentScopeGlobal {
		return t.IsPlatform
	}
	if t.IsPlatform {
		return true
	}

	switch seg.Scope {
	case models.SegmentScopeOrganization:
		// Property-level staff cannot edit organization-wide segments.
		return t.CampgroundID == nil && sameOrganization(t, seg)
	case models.SegmentScopeCampground:
		if t.CampgroundID != nil {
			return seg.CampgroundID != nil && *seg.CampgroundID == *t.CampgroundID
		}
		return sameOrganization(t, seg)
	default:
		return false
	}
}

// CanCreate reports whether the caller may create a segment at the requested
// scope with the given owner identifiers.
func CanCreate(t TenantContext, s models.SegmentScope, organizationID, campgroundID *uint) bool {
	switch s {
	case models.SegmentScopeGlobal:
		return t.IsPlatform
	case models.SegmentScopeOrganization:
		if organizationID == nil {
			return false
		}
		if t.IsPlatform {
			return true
		}
		return t.CampgroundID == nil && t.OrganizationID != nil && *t.OrganizationID == *organizationID
	case models.SegmentScopeCampground:
		if organizationID == nil || campgroundID == nil {
			return false
		}
		if t.IsPlatform {
			return true
		}
		if t.OrganizationID == nil || *t.OrganizationID != *organizationID {
			return false
		}
		if t.CampgroundID != nil {
			return *t.CampgroundID == *campgroundID
		}
		return true
	default:
		return false
	}
}

// CorpusBindingFor resolves the concrete corpus a segment may read. An
// organization segment reads all guests across the organization's properties;
// a campground segment reads only that property's guests. Global templates
// return ErrNoCorpus and are never matched directly.
func CorpusBindingFor(seg *models.Segment) (CorpusBinding, error) {
	if seg == nil || !seg.HasCorpus() {
		return CorpusBinding{}, ErrNoCorpus
	}

	switch seg.Scope {
	case models.SegmentScopeOrganization:
		if seg.OrganizationID == nil {
			return CorpusBinding{}, ErrNoCorpus
		}
		return CorpusBinding{Scope: seg.Scope, OrganizationID: *seg.OrganizationID}, nil
	case models.SegmentScopeCampground:
		if seg.CampgroundID == nil {
			return CorpusBinding{}, ErrNoCorpus
		}
		b := CorpusBinding{Scope: seg.Scope, CampgroundID: *seg.CampgroundID}
		if seg.OrganizationID != nil {
			b.OrganizationID = *seg.OrganizationID
		}
		return b, nil
	default:
		return CorpusBinding{}, ErrNoCorpus
	}
}

// DuplicateTarget returns the scope and owner identifiers a duplicated
// segment defaults to: the caller's own campground when they are property
// staff, otherwise the caller's organization.
func DuplicateTarget(t TenantContext) (models.SegmentScope, *uint, *uint, bool) {
	if t.CampgroundID != nil {
		return models.SegmentScopeCampground, t.OrganizationID, t.CampgroundID, t.OrganizationID != nil
	}
	if t.OrganizationID != nil {
		return models.SegmentScopeOrganization, t.OrganizationID, nil, true
	}
	return "", nil, nil, false
}

func sameOrganization(t TenantContext, seg *models.Segment) bool {
	return t.OrganizationID != nil && seg.OrganizationID != nil && *t.OrganizationID == *seg.OrganizationID
}
