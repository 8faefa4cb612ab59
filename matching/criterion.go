// Package matching implements the criterion vocabulary and the engine that
// evaluates segment criteria against a guest corpus.
package matching

import (
	"fmt"

	"github.com/campsight/segmentation/models"
)

// CriterionType is one entry in the fixed predicate vocabulary
type CriterionType string

const (
	CriterionCountry      CriterionType = "country"
	CriterionState        CriterionType = "state"
	CriterionCity         CriterionType = "city"
	CriterionHasChildren  CriterionType = "has_children"
	CriterionHasPets      CriterionType = "has_pets"
	CriterionRigType      CriterionType = "rig_type"
	CriterionStayLength   CriterionType = "stay_length"
	CriterionStayReason   CriterionType = "stay_reason"
	CriterionRepeatStays  CriterionType = "repeat_stays"
	CriterionBookingMonth CriterionType = "booking_month"
	CriterionArrivalDay   CriterionType = "arrival_day"
)

// Operator is a comparison operator applicable to a criterion type
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorIn          Operator = "in"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorBetween     Operator = "between"
)

// ValidationErrorKind classifies why a criterion was rejected
type ValidationErrorKind string

const (
	ErrorKindUnknownType     ValidationErrorKind = "unknown_type"
	ErrorKindIllegalOperator ValidationErrorKind = "illegal_operator"
	ErrorKindMalformedValue  ValidationErrorKind = "malformed_value"
)

// CriterionError reports a criterion that failed validation, with enough
// detail for the caller to correct the request.
type CriterionError struct {
	Kind     ValidationErrorKind `json:"kind"`
	Index    int                 `json:"index"`
	Type     string              `json:"type"`
	Operator string              `json:"operator,omitempty"`
	Detail   string              `json:"detail"`
}

func (e *CriterionError) Error() string {
	return fmt.Sprintf("criterion %d (%s): %s", e.Index, e.Type, e.Detail)
}

// typeSpec declares a criterion type's legal operators (each mapped to the
// value shape it requires) and how to read the matched attribute off a guest.
// Adding a criterion type means adding one entry here; the engine and the
// store never carry type-specific logic.
type typeSpec struct {
	operators map[Operator]models.CriterionValueKind

	// exactly one extractor is set, matching the attribute's kind
	stringAttr func(g *models.Guest) (string, bool)
	boolAttr   func(g *models.Guest) bool
	intAttr    func(g *models.Guest) int

	// inclusive bounds for calendar-component types; zero means unbounded
	minInt, maxInt int
}

var stringOperators = map[Operator]models.CriterionValueKind{
	OperatorEquals: models.CriterionValueString,
	OperatorIn:     models.CriterionValueStringSet,
}

var boolOperators = map[Operator]models.CriterionValueKind{
	OperatorEquals: models.CriterionValueBool,
}

var intOperators = map[Operator]models.CriterionValueKind{
	OperatorEquals:      models.CriterionValueInt,
	OperatorGreaterThan: models.CriterionValueInt,
	OperatorLessThan:    models.CriterionValueInt,
	OperatorBetween:     models.CriterionValueIntPair,
}

var vocabulary = map[CriterionType]typeSpec{
	CriterionCountry: {
		operators:  stringOperators,
		stringAttr: func(g *models.Guest) (string, bool) { return g.Country, g.Country != "" },
	},
	CriterionState: {
		operators:  stringOperators,
		stringAttr: func(g *models.Guest) (string, bool) { return g.State, g.State != "" },
	},
	CriterionCity: {
		operators:  stringOperators,
		stringAttr: func(g *models.Guest) (string, bool) { return g.City, g.City != "" },
	},
	CriterionHasChildren: {
		operators: boolOperators,
		boolAttr:  func(g *models.Guest) bool { return g.HasChildren },
	},
	CriterionHasPets: {
		operators: boolOperators,
		boolAttr:  func(g *models.Guest) bool { return g.HasPets },
	},
	CriterionRigType: {
		operators: stringOperators,
		stringAttr: func(g *models.Guest) (string, bool) {
			if g.RigType == nil {
				return "", false
			}
			return *g.RigType, true
		},
	},
	CriterionStayLength: {
		operators: intOperators,
		intAttr:   func(g *models.Guest) int { return g.StayLength },
	},
	CriterionStayReason: {
		operators: stringOperators,
		stringAttr: func(g *models.Guest) (string, bool) {
			if g.StayReason == nil {
				return "", false
			}
			return *g.StayReason, true
		},
	},
	CriterionRepeatStays: {
		operators: intOperators,
		intAttr:   func(g *models.Guest) int { return g.RepeatStays },
	},
	CriterionBookingMonth: {
		operators: intOperators,
		intAttr:   func(g *models.Guest) int { return g.BookingMonth },
		minInt:    1,
		maxInt:    12,
	},
	CriterionArrivalDay: {
		operators: intOperators,
		intAttr:   func(g *models.Guest) int { return g.ArrivalDay },
		minInt:    1,
		maxInt:    31,
	},
}

// Validate checks a single criterion against the vocabulary. The index is
// carried into the error so callers can point at the offending entry.
func Validate(index int, c models.Criterion) error {
	spec, ok := vocabulary[CriterionType(c.Type)]
	if !ok {
		return &CriterionError{
			Kind:   ErrorKindUnknownType,
			Index:  index,
			Type:   c.Type,
			Detail: fmt.Sprintf("unknown criterion type %q", c.Type),
		}
	}

	requiredKind, ok := spec.operators[Operator(c.Operator)]
	if !ok {
		return &CriterionError{
			Kind:     ErrorKindIllegalOperator,
			Index:    index,
			Type:     c.Type,
			Operator: c.Operator,
			Detail:   fmt.Sprintf("operator %q is not legal for type %q", c.Operator, c.Type),
		}
	}

	if c.Value.Kind != requiredKind {
		return &CriterionError{
			Kind:     ErrorKindMalformedValue,
			Index:    index,
			Type:     c.Type,
			Operator: c.Operator,
			Detail:   fmt.Sprintf("operator %q on type %q requires a %s value, got %s", c.Operator, c.Type, requiredKind, c.Value.Kind),
		}
	}

	return validateValue(index, c, spec)
}

func validateValue(index int, c models.Criterion, spec typeSpec) error {
	malformed := func(detail string) error {
		return &CriterionError{
			Kind:     ErrorKindMalformedValue,
			Index:    index,
			Type:     c.Type,
			Operator: c.Operator,
			Detail:   detail,
		}
	}

	switch c.Value.Kind {
	case models.CriterionValueString:
		if c.Value.Str == "" {
			return malformed("string value must not be empty")
		}
	case models.CriterionValueStringSet:
		if len(c.Value.Set) == 0 {
			return malformed("set value must not be empty")
		}
		for _, s := range c.Value.Set {
			if s == "" {
				return malformed("set value must not contain empty strings")
			}
		}
	case models.CriterionValueInt:
		if err := checkIntBounds(c.Value.Int, spec); err != nil {
			return malformed(err.Error())
		}
	case models.CriterionValueIntPair:
		lo, hi := c.Value.Pair[0], c.Value.Pair[1]
		if lo > hi {
			return malformed(fmt.Sprintf("between bounds must be ordered, got [%d, %d]", lo, hi))
		}
		if err := checkIntBounds(lo, spec); err != nil {
			return malformed(err.Error())
		}
		if err := checkIntBounds(hi, spec); err != nil {
			return malformed(err.Error())
		}
	}

	return nil
}

func checkIntBounds(v int, spec typeSpec) error {
	if spec.minInt == 0 && spec.maxInt == 0 {
		return nil
	}
	if v < spec.minInt || v > spec.maxInt {
		return fmt.Errorf("value %d is outside the legal range %d-%d", v, spec.minInt, spec.maxInt)
	}
	return nil
}

// ValidateCriteria validates every criterion in a segment definition and
// returns the first failure.
func ValidateCriteria(criteria models.CriteriaList) error {
	for i, c := range criteria {
		if err := Validate(i, c); err != nil {
			return err
		}
	}
	return nil
}

// KnownTypes returns the vocabulary's type names, for documentation endpoints
// and error messages.
func KnownTypes() []string {
	types := make([]string, 0, len(vocabulary))
	for t := range vocabulary {
		types = append(types, string(t))
	}
	return types
}
