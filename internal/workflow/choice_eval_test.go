package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluatePredicate_Leaf(t *testing.T) {
	input := map[string]any{
		"age":     float64(30),
		"country": "US",
		"active":  true,
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"numeric equals true", Predicate{Variable: "$.age", Comparator: CompNumericEquals, Literal: float64(30)}, true},
		{"numeric equals false", Predicate{Variable: "$.age", Comparator: CompNumericEquals, Literal: float64(31)}, false},
		{"numeric greater than", Predicate{Variable: "$.age", Comparator: CompNumericGreaterThan, Literal: float64(18)}, true},
		{"string equals", Predicate{Variable: "$.country", Comparator: CompStringEquals, Literal: "US"}, true},
		{"boolean equals", Predicate{Variable: "$.active", Comparator: CompBooleanEquals, Literal: true}, true},
		{"is present true", Predicate{Variable: "$.age", Comparator: CompIsPresent, Literal: true}, true},
		{"is present on missing key", Predicate{Variable: "$.missing", Comparator: CompIsPresent, Literal: true}, false},
		{"is null on missing key", Predicate{Variable: "$.missing", Comparator: CompIsNull, Literal: true}, true},
		{"is numeric true", Predicate{Variable: "$.age", Comparator: CompIsNumeric, Literal: true}, true},
		{"is numeric false for string", Predicate{Variable: "$.country", Comparator: CompIsNumeric, Literal: true}, false},
		{"is string true", Predicate{Variable: "$.country", Comparator: CompIsString, Literal: true}, true},
		{"is string false for number", Predicate{Variable: "$.age", Comparator: CompIsString, Literal: true}, false},
		{"type mismatch on string comparator is a non-match, not a panic", Predicate{Variable: "$.age", Comparator: CompStringEquals, Literal: "30"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evaluatePredicate(tc.pred, input))
		})
	}
}

func TestEvaluatePredicate_Connectives(t *testing.T) {
	input := map[string]any{"age": float64(30), "country": "US"}

	and := Predicate{And: []Predicate{
		{Variable: "$.age", Comparator: CompNumericGreaterThanEquals, Literal: float64(18)},
		{Variable: "$.country", Comparator: CompStringEquals, Literal: "US"},
	}}
	assert.True(t, evaluatePredicate(and, input))

	or := Predicate{Or: []Predicate{
		{Variable: "$.country", Comparator: CompStringEquals, Literal: "CA"},
		{Variable: "$.country", Comparator: CompStringEquals, Literal: "US"},
	}}
	assert.True(t, evaluatePredicate(or, input))

	not := Predicate{Not: &Predicate{Variable: "$.country", Comparator: CompStringEquals, Literal: "CA"}}
	assert.True(t, evaluatePredicate(not, input))
}

func TestCoerceBool(t *testing.T) {
	v, ok := coerceBool("true")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = coerceBool("False")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = coerceBool("maybe")
	assert.False(t, ok)
}
