package workflow

import (
	"strconv"
	"strings"
)

// Predicate is one node of a Choice rule's boolean tree (spec.md 4.7):
// either a leaf comparator against a path's value, or an And/Or/Not
// combination of child predicates. Exactly one of the leaf fields
// (Comparator set) or the connective fields (And/Or/Not) is populated;
// the builder enforces that shape when constructing a ChoiceState.
type Predicate struct {
	Variable   string
	Comparator string
	Literal    Value

	And []Predicate
	Or  []Predicate
	Not *Predicate
}

// The 16 comparators a Choice rule leaf may use.
const (
	CompStringEquals            = "StringEquals"
	CompStringLessThan          = "StringLessThan"
	CompStringGreaterThan       = "StringGreaterThan"
	CompStringLessThanEquals    = "StringLessThanEquals"
	CompStringGreaterThanEquals = "StringGreaterThanEquals"
	CompNumericEquals           = "NumericEquals"
	CompNumericLessThan         = "NumericLessThan"
	CompNumericGreaterThan      = "NumericGreaterThan"
	CompNumericLessThanEquals   = "NumericLessThanEquals"
	CompNumericGreaterThanEquals = "NumericGreaterThanEquals"
	CompBooleanEquals           = "BooleanEquals"
	CompIsPresent               = "IsPresent"
	CompIsNull                  = "IsNull"
	CompIsString                = "IsString"
	CompIsNumeric               = "IsNumeric"
	CompIsBoolean               = "IsBoolean"
)

// evaluatePredicate walks the predicate tree against effectiveInput.
// Predicates never raise errors: any comparator applied to a value of
// the wrong shape simply evaluates to false (spec.md 4.7's
// type-coercion rules), so a Choice rule with a type mismatch is a
// non-match, not a fatal error.
func evaluatePredicate(p Predicate, effectiveInput Value) bool {
	switch {
	case len(p.And) > 0:
		for _, child := range p.And {
			if !evaluatePredicate(child, effectiveInput) {
				return false
			}
		}
		return true
	case len(p.Or) > 0:
		for _, child := range p.Or {
			if evaluatePredicate(child, effectiveInput) {
				return true
			}
		}
		return false
	case p.Not != nil:
		return !evaluatePredicate(*p.Not, effectiveInput)
	default:
		return evaluateComparator(p, effectiveInput)
	}
}

func evaluateComparator(p Predicate, effectiveInput Value) bool {
	actual := getAt(effectiveInput, p.Variable)

	switch p.Comparator {
	case CompIsPresent:
		// spec.md 9 open question (a): the path evaluator's reads
		// never distinguish a missing key from a key present with an
		// explicit JSON null, so IsPresent/IsNull are defined purely
		// in terms of the resolved value being non-nil/nil. See
		// DESIGN.md for the rationale.
		want, _ := p.Literal.(bool)
		return (actual != nil) == want
	case CompIsNull:
		want, _ := p.Literal.(bool)
		return (actual == nil) == want
	case CompIsString:
		_, ok := actual.(string)
		want, _ := p.Literal.(bool)
		return ok == want
	case CompIsNumeric:
		_, ok := actual.(float64)
		want, _ := p.Literal.(bool)
		return ok == want
	case CompIsBoolean:
		_, ok := actual.(bool)
		want, _ := p.Literal.(bool)
		return ok == want
	case CompBooleanEquals:
		b, ok := coerceBool(actual)
		if !ok {
			return false
		}
		want, ok := coerceBool(p.Literal)
		return ok && b == want
	case CompStringEquals, CompStringLessThan, CompStringGreaterThan,
		CompStringLessThanEquals, CompStringGreaterThanEquals:
		actualStr, ok1 := actual.(string)
		wantStr, ok2 := p.Literal.(string)
		if !ok1 || !ok2 {
			return false
		}
		return compareStrings(p.Comparator, actualStr, wantStr)
	case CompNumericEquals, CompNumericLessThan, CompNumericGreaterThan,
		CompNumericLessThanEquals, CompNumericGreaterThanEquals:
		actualNum, ok1 := coerceFloat(actual)
		wantNum, ok2 := coerceFloat(p.Literal)
		if !ok1 || !ok2 {
			return false
		}
		return compareNumbers(p.Comparator, actualNum, wantNum)
	default:
		return false
	}
}

func compareStrings(comparator, a, b string) bool {
	switch comparator {
	case CompStringEquals:
		return a == b
	case CompStringLessThan:
		return a < b
	case CompStringGreaterThan:
		return a > b
	case CompStringLessThanEquals:
		return a <= b
	case CompStringGreaterThanEquals:
		return a >= b
	default:
		return false
	}
}

func compareNumbers(comparator string, a, b float64) bool {
	switch comparator {
	case CompNumericEquals:
		return a == b
	case CompNumericLessThan:
		return a < b
	case CompNumericGreaterThan:
		return a > b
	case CompNumericLessThanEquals:
		return a <= b
	case CompNumericGreaterThanEquals:
		return a >= b
	default:
		return false
	}
}

// coerceFloat implements the "numeric parse both sides as float, else
// false" rule: a JSON number is used directly, a string is parsed, and
// anything else fails the coercion (the caller then treats the whole
// comparison as a non-match rather than an error).
func coerceFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// coerceBool implements BooleanEquals' coercion: a JSON boolean is used
// directly, and the strings "true"/"false" (case-insensitive) coerce to
// the matching boolean.
func coerceBool(v Value) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(t) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
