package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campsight/segmentation/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SegmentScope represents the tenant level a segment is bound to
type SegmentScope string

const (
	SegmentScopeGlobal       SegmentScope = "global"
	SegmentScopeOrganization SegmentScope = "organization"
	SegmentScopeCampground   SegmentScope = "campground"
)

// String returns the string representation of the scope
func (s SegmentScope) String() string {
	return string(s)
}

// Valid checks if the scope is valid
func (s SegmentScope) Valid() bool {
	switch s {
	case SegmentScopeGlobal, SegmentScopeOrganization, SegmentScopeCampground:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SegmentScope
func (s *SegmentScope) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SegmentScope(v)
	case []byte:
		*s = SegmentScope(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SegmentScope", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SegmentScope
func (s SegmentScope) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SegmentScope: %s", s)
	}
	return string(s), nil
}

// SegmentStatus represents the lifecycle status of a segment
type SegmentStatus string

const (
	SegmentStatusActive   SegmentStatus = "active"
	SegmentStatusArchived SegmentStatus = "archived"
)

// String returns the string representation of the status
func (s SegmentStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SegmentStatus) Valid() bool {
	switch s {
	case SegmentStatusActive, SegmentStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SegmentStatus
func (s *SegmentStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SegmentStatus(v)
	case []byte:
		*s = SegmentStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SegmentStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SegmentStatus
func (s SegmentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SegmentStatus: %s", s)
	}
	return string(s), nil
}

// CriterionValueKind identifies the shape of a criterion value
type CriterionValueKind string

const (
	CriterionValueString    CriterionValueKind = "string"
	CriterionValueStringSet CriterionValueKind = "string_set"
	CriterionValueInt       CriterionValueKind = "int"
	CriterionValueBool      CriterionValueKind = "bool"
	CriterionValueIntPair   CriterionValueKind = "int_pair"
)

// CriterionValue is the tagged union holding a criterion's comparison value.
// The shape is resolved once when the JSON is decoded; downstream code
// switches on Kind instead of re-inspecting raw JSON.
type CriterionValue struct {
	Kind CriterionValueKind `json:"-"`
	Str  string             `json:"-"`
	Set  []string           `json:"-"`
	Int  int                `json:"-"`
	Bool bool               `json:"-"`
	Pair [2]int             `json:"-"`
}

// UnmarshalJSON decodes the polymorphic wire value into the tagged union.
func (v *CriterionValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case string:
		v.Kind = CriterionValueString
		v.Str = t
	case bool:
		v.Kind = CriterionValueBool
		v.Bool = t
	case float64:
		if t != float64(int(t)) {
			return fmt.Errorf("criterion numeric value must be an integer, got %v", t)
		}
		v.Kind = CriterionValueInt
		v.Int = int(t)
	case []any:
		return v.unmarshalArray(t)
	default:
		return fmt.Errorf("unsupported criterion value type %T", raw)
	}

	return nil
}

func (v *CriterionValue) unmarshalArray(items []any) error {
	if len(items) == 0 {
		return fmt.Errorf("criterion value array must not be empty")
	}

	switch items[0].(type) {
	case string:
		set := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("criterion string set contains non-string element %v", item)
			}
			set = append(set, s)
		}
		v.Kind = CriterionValueStringSet
		v.Set = set
	case float64:
		if len(items) != 2 {
			return fmt.Errorf("criterion numeric pair must have exactly 2 elements, got %d", len(items))
		}
		pair := [2]int{}
		for i, item := range items {
			f, ok := item.(float64)
			if !ok || f != float64(int(f)) {
				return fmt.Errorf("criterion numeric pair contains non-integer element %v", item)
			}
			pair[i] = int(f)
		}
		v.Kind = CriterionValueIntPair
		v.Pair = pair
	default:
		return fmt.Errorf("unsupported criterion value array element %T", items[0])
	}

	return nil
}

// MarshalJSON encodes the tagged union back to its wire shape.
func (v CriterionValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case CriterionValueString:
		return json.Marshal(v.Str)
	case CriterionValueStringSet:
		return json.Marshal(v.Set)
	case CriterionValueInt:
		return json.Marshal(v.Int)
	case CriterionValueBool:
		return json.Marshal(v.Bool)
	case CriterionValueIntPair:
		return json.Marshal([2]int{v.Pair[0], v.Pair[1]})
	default:
		return nil, fmt.Errorf("cannot marshal CriterionValue with kind %q", v.Kind)
	}
}

// Criterion is one typed predicate within a segment
type Criterion struct {
	Type     string         `json:"type"`
	Operator string         `json:"operator"`
	Value    CriterionValue `json:"value"`
}

// CriteriaList is the ordered criteria set stored as JSONB on a segment
type CriteriaList []Criterion

// Value implements the driver.Valuer interface for CriteriaList
func (c CriteriaList) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for CriteriaList
func (c *CriteriaList) Scan(value any) error {
	if value == nil {
		*c = CriteriaList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CriteriaList", value)
	}

	return json.Unmarshal(bytes, c)
}

// Segment represents a named, scoped guest-grouping rule in the database
type Segment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_segments_uuid" json:"uuid"`
	Name           string        `gorm:"type:varchar(255);not null" json:"name"`
	Description    *string       `gorm:"type:text" json:"description,omitempty"`
	Scope          SegmentScope  `gorm:"type:segment_scope;not null;index:idx_segments_scope" json:"scope"`
	OrganizationID *uint         `gorm:"index:idx_segments_organization_id" json:"organization_id,omitempty"`
	CampgroundID   *uint         `gorm:"index:idx_segments_campground_id" json:"campground_id,omitempty"`
	Criteria       CriteriaList  `gorm:"type:jsonb;not null" json:"criteria"`
	IsTemplate     bool          `gorm:"not null;default:false" json:"is_template"`
	Status         SegmentStatus `gorm:"type:segment_status;not null;default:'active';index:idx_segments_status" json:"status"`
	GuestCount     *int64        `json:"guest_count,omitempty"`
	CountStale     bool          `gorm:"not null;default:true" json:"count_stale"`
	CorpusVersion  *int64        `json:"corpus_version,omitempty"`
	ComputedAt     *time.Time    `json:"computed_at,omitempty"`
	Version        uint          `gorm:"not null;default:0" json:"version"`
	CreatedBy      *uint         `json:"created_by,omitempty"`
	CreatedAt      time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_segments_created_at" json:"created_at"`
	UpdatedAt      *time.Time    `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Campground   *Campground   `gorm:"foreignKey:CampgroundID;references:ID" json:"campground,omitempty"`
}

// TableName returns the table name for the model
func (Segment) TableName() string {
	return "segments"
}

// BeforeCreate is called before creating a new record
func (s *Segment) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SegmentStatusActive
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (s *Segment) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	s.UpdatedAt = &now
	return nil
}

// IsArchived checks if the segment is archived
func (s *Segment) IsArchived() bool {
	return s.Status == SegmentStatusArchived
}

// IsEditable checks if the segment definition can be mutated.
// Archived segments keep their criteria immutable for audit; templates are
// never edited in place, only duplicated into a concrete scope.
func (s *Segment) IsEditable() bool {
	return s.Status == SegmentStatusActive && !s.IsTemplate
}

// HasCorpus checks whether the segment is bound to a concrete guest corpus.
// Global templates have no corpus and are never matched directly.
func (s *Segment) HasCorpus() bool {
	return s.Scope != SegmentScopeGlobal
}

// SegmentFilter represents filter criteria for segments
type SegmentFilter struct {
	ID             *uint          `json:"id,omitempty"`
	UUID           *uuid.UUID     `json:"uuid,omitempty"`
	Scope          *SegmentScope  `json:"scope,omitempty"`
	Status         *SegmentStatus `json:"status,omitempty"`
	OrganizationID *uint          `json:"organization_id,omitempty"`
	CampgroundID   *uint          `json:"campground_id,omitempty"`
	IsTemplate     *bool          `json:"is_template,omitempty"`
	Name           *string        `json:"name,omitempty"`
	CreatedAfter   *time.Time     `json:"created_after,omitempty"`
	CreatedBefore  *time.Time     `json:"created_before,omitempty"`
}
