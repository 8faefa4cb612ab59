package matching

import (
	"strings"

	"github.com/campsight/segmentation/models"
)

// Predicate is a pure, stateless match function for one criterion. It is
// safe to evaluate concurrently across many guests.
type Predicate func(g *models.Guest) bool

// opFn builds the comparison for one operator given the criterion's type
// spec and decoded value.
type opFn func(spec typeSpec, v models.CriterionValue) Predicate

var allOps = map[Operator]opFn{
	OperatorEquals:      operatorEqualsFn,
	OperatorIn:          operatorInFn,
	OperatorGreaterThan: operatorGreaterThanFn,
	OperatorLessThan:    operatorLessThanFn,
	OperatorBetween:     operatorBetweenFn,
}

// CompilePredicate turns a validated criterion into its predicate function.
// The criterion must have passed Validate; an unknown type or operator yields
// a predicate that never matches, mirroring the write-time rejection.
func CompilePredicate(c models.Criterion) Predicate {
	spec, ok := vocabulary[CriterionType(c.Type)]
	if !ok {
		return predicateNone
	}
	fn, ok := allOps[Operator(c.Operator)]
	if !ok {
		return predicateNone
	}
	return fn(spec, c.Value)
}

// CompileCriteria compiles a segment's criteria into per-criterion
// predicates, preserving declaration order for short-circuit evaluation.
func CompileCriteria(criteria models.CriteriaList) []Predicate {
	preds := make([]Predicate, 0, len(criteria))
	for _, c := range criteria {
		preds = append(preds, CompilePredicate(c))
	}
	return preds
}

// MatchesAll reports whether the guest satisfies every predicate. Evaluation
// short-circuits on the first failure, so the per-guest cost is bounded by
// the cheapest failing criterion.
func MatchesAll(preds []Predicate, g *models.Guest) bool {
	for _, p := range preds {
		if !p(g) {
			return false
		}
	}
	return true
}

func predicateNone(g *models.Guest) bool {
	return false
}

func operatorEqualsFn(spec typeSpec, v models.CriterionValue) Predicate {
	switch {
	case spec.stringAttr != nil:
		want := v.Str
		get := spec.stringAttr
		return func(g *models.Guest) bool {
			have, ok := get(g)
			// a missing attribute is an automatic non-match
			return ok && strings.EqualFold(have, want)
		}
	case spec.boolAttr != nil:
		want := v.Bool
		get := spec.boolAttr
		return func(g *models.Guest) bool {
			return get(g) == want
		}
	case spec.intAttr != nil:
		want := v.Int
		get := spec.intAttr
		return func(g *models.Guest) bool {
			return get(g) == want
		}
	}
	return predicateNone
}

func operatorInFn(spec typeSpec, v models.CriterionValue) Predicate {
	if spec.stringAttr == nil {
		return predicateNone
	}
	members := make(map[string]struct{}, len(v.Set))
	for _, s := range v.Set {
		members[strings.ToLower(s)] = struct{}{}
	}
	get := spec.stringAttr
	return func(g *models.Guest) bool {
		have, ok := get(g)
		if !ok {
			return false
		}
		_, found := members[strings.ToLower(have)]
		return found
	}
}

func operatorGreaterThanFn(spec typeSpec, v models.CriterionValue) Predicate {
	return intComparison(spec, func(have int) bool { return have > v.Int })
}

func operatorLessThanFn(spec typeSpec, v models.CriterionValue) Predicate {
	return intComparison(spec, func(have int) bool { return have < v.Int })
}

// operatorBetweenFn is inclusive on both bounds. Calendar-component types
// (booking_month, arrival_day) compare within a single cycle and never wrap.
func operatorBetweenFn(spec typeSpec, v models.CriterionValue) Predicate {
	lo, hi := v.Pair[0], v.Pair[1]
	return intComparison(spec, func(have int) bool { return have >= lo && have <= hi })
}

func intComparison(spec typeSpec, cmp func(int) bool) Predicate {
	if spec.intAttr == nil {
		return predicateNone
	}
	get := spec.intAttr
	return func(g *models.Guest) bool {
		return cmp(get(g))
	}
}
