package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriterionValueUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CriterionValue
		wantErr bool
	}{
		{
			name:  "string",
			input: `"TX"`,
			want:  CriterionValue{Kind: CriterionValueString, Str: "TX"},
		},
		{
			name:  "bool",
			input: `true`,
			want:  CriterionValue{Kind: CriterionValueBool, Bool: true},
		},
		{
			name:  "integer",
			input: `7`,
			want:  CriterionValue{Kind: CriterionValueInt, Int: 7},
		},
		{
			name:    "fractional number is rejected",
			input:   `7.5`,
			wantErr: true,
		},
		{
			name:  "string set",
			input: `["TX","AZ","NM"]`,
			want:  CriterionValue{Kind: CriterionValueStringSet, Set: []string{"TX", "AZ", "NM"}},
		},
		{
			name:  "integer pair",
			input: `[6,8]`,
			want:  CriterionValue{Kind: CriterionValueIntPair, Pair: [2]int{6, 8}},
		},
		{
			name:    "three-element numeric array is rejected",
			input:   `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "empty array is rejected",
			input:   `[]`,
			wantErr: true,
		},
		{
			name:    "mixed array is rejected",
			input:   `["TX",3]`,
			wantErr: true,
		},
		{
			name:    "pair with fractional element is rejected",
			input:   `[1,2.5]`,
			wantErr: true,
		},
		{
			name:    "object is rejected",
			input:   `{"min":1}`,
			wantErr: true,
		},
		{
			name:    "null is rejected",
			input:   `null`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v CriterionValue
			err := json.Unmarshal([]byte(tt.input), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestCriterionValueMarshalRoundTrip(t *testing.T) {
	inputs := []string{`"vacation"`, `false`, `12`, `["TX","AZ"]`, `[1,31]`}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			var v CriterionValue
			require.NoError(t, json.Unmarshal([]byte(input), &v))

			out, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, input, string(out))
		})
	}
}

func TestCriterionValueMarshalUnknownKind(t *testing.T) {
	_, err := json.Marshal(CriterionValue{})
	assert.Error(t, err)
}

func TestCriteriaListScanValue(t *testing.T) {
	criteria := CriteriaList{
		{Type: "state", Operator: "in", Value: CriterionValue{Kind: CriterionValueStringSet, Set: []string{"TX", "AZ"}}},
		{Type: "has_pets", Operator: "equals", Value: CriterionValue{Kind: CriterionValueBool, Bool: true}},
	}

	raw, err := criteria.Value()
	require.NoError(t, err)

	var decoded CriteriaList
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, criteria, decoded)

	t.Run("scan from string", func(t *testing.T) {
		var fromString CriteriaList
		require.NoError(t, fromString.Scan(string(raw.([]byte))))
		assert.Equal(t, criteria, fromString)
	})

	t.Run("scan nil yields empty list", func(t *testing.T) {
		var fromNil CriteriaList
		require.NoError(t, fromNil.Scan(nil))
		assert.Empty(t, fromNil)
	})

	t.Run("scan rejects unexpected type", func(t *testing.T) {
		var v CriteriaList
		assert.Error(t, v.Scan(42))
	})
}

func TestSegmentScope(t *testing.T) {
	assert.True(t, SegmentScopeGlobal.Valid())
	assert.True(t, SegmentScopeOrganization.Valid())
	assert.True(t, SegmentScopeCampground.Valid())
	assert.False(t, SegmentScope("region").Valid())

	val, err := SegmentScopeCampground.Value()
	require.NoError(t, err)
	assert.Equal(t, "campground", val)

	_, err = SegmentScope("region").Value()
	assert.Error(t, err)

	var s SegmentScope
	require.NoError(t, s.Scan("organization"))
	assert.Equal(t, SegmentScopeOrganization, s)

	require.NoError(t, s.Scan([]byte("global")))
	assert.Equal(t, SegmentScopeGlobal, s)

	assert.Error(t, s.Scan(7))
}

func TestSegmentStatus(t *testing.T) {
	assert.True(t, SegmentStatusActive.Valid())
	assert.True(t, SegmentStatusArchived.Valid())
	assert.False(t, SegmentStatus("deleted").Valid())

	val, err := SegmentStatusArchived.Value()
	require.NoError(t, err)
	assert.Equal(t, "archived", val)

	var s SegmentStatus
	require.NoError(t, s.Scan("active"))
	assert.Equal(t, SegmentStatusActive, s)
}

func TestSegmentHelpers(t *testing.T) {
	active := &Segment{Scope: SegmentScopeOrganization, Status: SegmentStatusActive}
	assert.False(t, active.IsArchived())
	assert.True(t, active.IsEditable())
	assert.True(t, active.HasCorpus())

	archived := &Segment{Scope: SegmentScopeCampground, Status: SegmentStatusArchived}
	assert.True(t, archived.IsArchived())
	assert.False(t, archived.IsEditable())
	assert.True(t, archived.HasCorpus())

	template := &Segment{Scope: SegmentScopeGlobal, Status: SegmentStatusActive, IsTemplate: true}
	assert.False(t, template.IsArchived())
	assert.False(t, template.IsEditable())
	assert.False(t, template.HasCorpus())
}
