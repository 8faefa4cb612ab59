package matching

import (
	"testing"

	"github.com/campsight/segmentation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strValue(s string) models.CriterionValue {
	return models.CriterionValue{Kind: models.CriterionValueString, Str: s}
}

func setValue(items ...string) models.CriterionValue {
	return models.CriterionValue{Kind: models.CriterionValueStringSet, Set: items}
}

func intValue(n int) models.CriterionValue {
	return models.CriterionValue{Kind: models.CriterionValueInt, Int: n}
}

func boolValue(b bool) models.CriterionValue {
	return models.CriterionValue{Kind: models.CriterionValueBool, Bool: b}
}

func pairValue(lo, hi int) models.CriterionValue {
	return models.CriterionValue{Kind: models.CriterionValueIntPair, Pair: [2]int{lo, hi}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		criterion models.Criterion
		wantKind  ValidationErrorKind
	}{
		{
			name:      "country equals",
			criterion: models.Criterion{Type: "country", Operator: "equals", Value: strValue("US")},
		},
		{
			name:      "state in set",
			criterion: models.Criterion{Type: "state", Operator: "in", Value: setValue("TX", "AZ")},
		},
		{
			name:      "has_pets equals bool",
			criterion: models.Criterion{Type: "has_pets", Operator: "equals", Value: boolValue(true)},
		},
		{
			name:      "stay_length greater_than",
			criterion: models.Criterion{Type: "stay_length", Operator: "greater_than", Value: intValue(7)},
		},
		{
			name:      "booking_month between",
			criterion: models.Criterion{Type: "booking_month", Operator: "between", Value: pairValue(6, 8)},
		},
		{
			name:      "unknown type",
			criterion: models.Criterion{Type: "shoe_size", Operator: "equals", Value: intValue(42)},
			wantKind:  ErrorKindUnknownType,
		},
		{
			name:      "between on string type",
			criterion: models.Criterion{Type: "country", Operator: "between", Value: pairValue(1, 2)},
			wantKind:  ErrorKindIllegalOperator,
		},
		{
			name:      "in on bool type",
			criterion: models.Criterion{Type: "has_children", Operator: "in", Value: setValue("yes")},
			wantKind:  ErrorKindIllegalOperator,
		},
		{
			name:      "greater_than on bool type",
			criterion: models.Criterion{Type: "has_pets", Operator: "greater_than", Value: intValue(0)},
			wantKind:  ErrorKindIllegalOperator,
		},
		{
			name:      "string value for int operator",
			criterion: models.Criterion{Type: "repeat_stays", Operator: "equals", Value: strValue("3")},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "empty string value",
			criterion: models.Criterion{Type: "city", Operator: "equals", Value: strValue("")},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "empty set value",
			criterion: models.Criterion{Type: "state", Operator: "in", Value: setValue()},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "set containing empty string",
			criterion: models.Criterion{Type: "state", Operator: "in", Value: setValue("TX", "")},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "unordered between bounds",
			criterion: models.Criterion{Type: "stay_length", Operator: "between", Value: pairValue(10, 3)},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "booking month out of range",
			criterion: models.Criterion{Type: "booking_month", Operator: "equals", Value: intValue(13)},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "arrival day zero",
			criterion: models.Criterion{Type: "arrival_day", Operator: "equals", Value: intValue(0)},
			wantKind:  ErrorKindMalformedValue,
		},
		{
			name:      "arrival day between out of range",
			criterion: models.Criterion{Type: "arrival_day", Operator: "between", Value: pairValue(1, 32)},
			wantKind:  ErrorKindMalformedValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(3, tt.criterion)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var cerr *CriterionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantKind, cerr.Kind)
			assert.Equal(t, 3, cerr.Index)
			assert.Equal(t, tt.criterion.Type, cerr.Type)
		})
	}
}

func TestValidateCriteriaReportsFirstFailure(t *testing.T) {
	criteria := models.CriteriaList{
		{Type: "country", Operator: "equals", Value: strValue("US")},
		{Type: "nonsense", Operator: "equals", Value: strValue("x")},
		{Type: "city", Operator: "equals", Value: strValue("")},
	}

	err := ValidateCriteria(criteria)
	require.Error(t, err)

	var cerr *CriterionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, cerr.Index)
	assert.Equal(t, ErrorKindUnknownType, cerr.Kind)
}

func TestKnownTypes(t *testing.T) {
	types := KnownTypes()
	assert.Len(t, types, 11)
	assert.Contains(t, types, "country")
	assert.Contains(t, types, "has_pets")
	assert.Contains(t, types, "arrival_day")
}
