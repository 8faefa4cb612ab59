package matching

import (
	"testing"

	"github.com/campsight/segmentation/models"
	"github.com/campsight/segmentation/utils"
	"github.com/stretchr/testify/assert"
)

func testGuest(mutate func(*models.Guest)) *models.Guest {
	g := &models.Guest{
		Country:      "US",
		State:        "TX",
		City:         "Austin",
		HasChildren:  false,
		HasPets:      true,
		RigType:      utils.ToPtr("travel_trailer"),
		StayReason:   utils.ToPtr("vacation"),
		StayLength:   5,
		RepeatStays:  2,
		BookingMonth: 7,
		ArrivalDay:   14,
	}
	if mutate != nil {
		mutate(g)
	}
	return g
}

func TestCompilePredicate(t *testing.T) {
	tests := []struct {
		name      string
		criterion models.Criterion
		guest     *models.Guest
		want      bool
	}{
		{
			name:      "string equals matches",
			criterion: models.Criterion{Type: "state", Operator: "equals", Value: strValue("TX")},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "string equals is case insensitive",
			criterion: models.Criterion{Type: "state", Operator: "equals", Value: strValue("tx")},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "string equals rejects different value",
			criterion: models.Criterion{Type: "state", Operator: "equals", Value: strValue("AZ")},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "empty string attribute never matches",
			criterion: models.Criterion{Type: "country", Operator: "equals", Value: strValue("US")},
			guest:     testGuest(func(g *models.Guest) { g.Country = "" }),
			want:      false,
		},
		{
			name:      "nil optional attribute never matches",
			criterion: models.Criterion{Type: "rig_type", Operator: "equals", Value: strValue("travel_trailer")},
			guest:     testGuest(func(g *models.Guest) { g.RigType = nil }),
			want:      false,
		},
		{
			name:      "in matches set member case insensitively",
			criterion: models.Criterion{Type: "state", Operator: "in", Value: setValue("az", "Tx", "NM")},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "in rejects non-member",
			criterion: models.Criterion{Type: "state", Operator: "in", Value: setValue("AZ", "NM")},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "in with nil attribute never matches",
			criterion: models.Criterion{Type: "stay_reason", Operator: "in", Value: setValue("vacation")},
			guest:     testGuest(func(g *models.Guest) { g.StayReason = nil }),
			want:      false,
		},
		{
			name:      "bool equals matches",
			criterion: models.Criterion{Type: "has_pets", Operator: "equals", Value: boolValue(true)},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "bool equals rejects mismatch",
			criterion: models.Criterion{Type: "has_children", Operator: "equals", Value: boolValue(true)},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "int equals matches",
			criterion: models.Criterion{Type: "stay_length", Operator: "equals", Value: intValue(5)},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "greater_than is strict",
			criterion: models.Criterion{Type: "stay_length", Operator: "greater_than", Value: intValue(5)},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "greater_than matches larger value",
			criterion: models.Criterion{Type: "stay_length", Operator: "greater_than", Value: intValue(4)},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "less_than is strict",
			criterion: models.Criterion{Type: "repeat_stays", Operator: "less_than", Value: intValue(2)},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "between includes lower bound",
			criterion: models.Criterion{Type: "booking_month", Operator: "between", Value: pairValue(7, 9)},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "between includes upper bound",
			criterion: models.Criterion{Type: "arrival_day", Operator: "between", Value: pairValue(10, 14)},
			guest:     testGuest(nil),
			want:      true,
		},
		{
			name:      "between rejects value outside range",
			criterion: models.Criterion{Type: "booking_month", Operator: "between", Value: pairValue(1, 3)},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "unknown type never matches",
			criterion: models.Criterion{Type: "shoe_size", Operator: "equals", Value: intValue(42)},
			guest:     testGuest(nil),
			want:      false,
		},
		{
			name:      "unknown operator never matches",
			criterion: models.Criterion{Type: "state", Operator: "like", Value: strValue("T%")},
			guest:     testGuest(nil),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred := CompilePredicate(tt.criterion)
			assert.Equal(t, tt.want, pred(tt.guest))
		})
	}
}

func TestMatchesAll(t *testing.T) {
	guest := testGuest(nil)

	t.Run("all criteria must hold", func(t *testing.T) {
		preds := CompileCriteria(models.CriteriaList{
			{Type: "state", Operator: "equals", Value: strValue("TX")},
			{Type: "has_pets", Operator: "equals", Value: boolValue(true)},
			{Type: "stay_length", Operator: "greater_than", Value: intValue(3)},
		})
		assert.True(t, MatchesAll(preds, guest))
	})

	t.Run("one failing criterion rejects the guest", func(t *testing.T) {
		preds := CompileCriteria(models.CriteriaList{
			{Type: "state", Operator: "equals", Value: strValue("TX")},
			{Type: "has_children", Operator: "equals", Value: boolValue(true)},
		})
		assert.False(t, MatchesAll(preds, guest))
	})

	t.Run("empty criteria match every guest", func(t *testing.T) {
		assert.True(t, MatchesAll(nil, guest))
	})

	t.Run("evaluation short-circuits on first failure", func(t *testing.T) {
		calls := 0
		counting := Predicate(func(g *models.Guest) bool {
			calls++
			return true
		})
		failing := Predicate(func(g *models.Guest) bool { return false })

		assert.False(t, MatchesAll([]Predicate{failing, counting}, guest))
		assert.Equal(t, 0, calls)
	})
}
