// Package check compares UI-observed values against store-derived expectations.
package check

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
)

const (
	RuleNameExactEquality            = "exact-equality"
	RuleNameNumericEquality          = "numeric-equality-with-rounding"
	RuleNameSetSubset                = "set-subset"
	RuleNameOrderedSequenceEquality  = "ordered-sequence-equality"
	RuleNameContains                 = "contains"
	RuleNameAtLeast                  = "at-least"
	RuleNameDiffers                  = "differs"
	errorMessageConsistencyViolation = "check: consistency violation"
)

// ErrConsistencyViolation is matched by every *Violation.
var ErrConsistencyViolation = errors.New(errorMessageConsistencyViolation)

// Violation carries both operands of a failed comparison. Expected always comes from
// the store, Actual from the page.
type Violation struct {
	Rule     string
	Expected any
	Actual   any
	Detail   string
}

func (violation *Violation) Error() string {
	message := fmt.Sprintf("%s: %s: expected %v, actual %v", errorMessageConsistencyViolation, violation.Rule, violation.Expected, violation.Actual)
	if violation.Detail != "" {
		message += ": " + violation.Detail
	}
	return message
}

func (violation *Violation) Unwrap() error {
	return ErrConsistencyViolation
}

// Rule decides whether actual is equivalent to expected. A non-empty detail explains a
// mismatch; err reports operands the rule cannot compare.
type Rule[T any] struct {
	Name    string
	Compare func(expected T, actual T) (equivalent bool, detail string, err error)
}

// AssertEquivalent applies rule and returns a *Violation on mismatch.
func AssertEquivalent[T any](expected T, actual T, rule Rule[T]) error {
	if rule.Compare == nil {
		return fmt.Errorf("check: rule %q has no comparison", rule.Name)
	}
	equivalent, detail, compareErr := rule.Compare(expected, actual)
	if compareErr != nil {
		return fmt.Errorf("check: %s: %w", rule.Name, compareErr)
	}
	if equivalent {
		return nil
	}
	return &Violation{Rule: rule.Name, Expected: expected, Actual: actual, Detail: detail}
}

// ExactEquality holds when both operands are ==.
func ExactEquality[T comparable]() Rule[T] {
	return Rule[T]{
		Name: RuleNameExactEquality,
		Compare: func(expected T, actual T) (bool, string, error) {
			return expected == actual, "", nil
		},
	}
}

// NumericEqualityWithRounding rounds both amounts half-up to precision fractional digits
// before comparing, so independently computed sums agree when they differ by less than
// half a unit in the last place.
func NumericEqualityWithRounding(precision int) Rule[extract.Amount] {
	return Rule[extract.Amount]{
		Name: fmt.Sprintf("%s(%d)", RuleNameNumericEquality, precision),
		Compare: func(expected extract.Amount, actual extract.Amount) (bool, string, error) {
			roundedExpected, expectedErr := expected.Round(precision)
			if expectedErr != nil {
				return false, "", expectedErr
			}
			roundedActual, actualErr := actual.Round(precision)
			if actualErr != nil {
				return false, "", actualErr
			}
			if roundedExpected.Cmp(roundedActual) == 0 {
				return true, "", nil
			}
			return false, fmt.Sprintf("rounded %s != %s", roundedExpected, roundedActual), nil
		},
	}
}

// SetSubset holds when every distinct element of actual appears in expected.
func SetSubset[T comparable]() Rule[[]T] {
	return Rule[[]T]{
		Name: RuleNameSetSubset,
		Compare: func(expected []T, actual []T) (bool, string, error) {
			missing := lo.Uniq(lo.Without(actual, expected...))
			if len(missing) == 0 {
				return true, "", nil
			}
			return false, fmt.Sprintf("not in expected: %v", missing), nil
		},
	}
}

// OrderedSequenceEquality holds when both sequences have the same elements in the same order.
func OrderedSequenceEquality[T comparable]() Rule[[]T] {
	return Rule[[]T]{
		Name: RuleNameOrderedSequenceEquality,
		Compare: func(expected []T, actual []T) (bool, string, error) {
			if len(expected) != len(actual) {
				return false, fmt.Sprintf("length %d != %d", len(expected), len(actual)), nil
			}
			for index := range expected {
				if expected[index] != actual[index] {
					return false, fmt.Sprintf("first difference at index %d", index), nil
				}
			}
			return true, "", nil
		},
	}
}

// Contains holds when actual contains the expected fragment.
func Contains() Rule[string] {
	return Rule[string]{
		Name: RuleNameContains,
		Compare: func(expected string, actual string) (bool, string, error) {
			return strings.Contains(actual, expected), "", nil
		},
	}
}

// AtLeast holds when actual is not smaller than expected.
func AtLeast() Rule[int] {
	return Rule[int]{
		Name: RuleNameAtLeast,
		Compare: func(expected int, actual int) (bool, string, error) {
			return actual >= expected, "", nil
		},
	}
}

// Differs holds when actual is not the zero value and differs from expected, as for a
// value that must be regenerated.
func Differs[T comparable]() Rule[T] {
	return Rule[T]{
		Name: RuleNameDiffers,
		Compare: func(expected T, actual T) (bool, string, error) {
			var zero T
			if actual == zero {
				return false, "actual is empty", nil
			}
			return actual != expected, "", nil
		},
	}
}

// AnyContains holds when every expected fragment occurs in some element of actual.
func AnyContains() Rule[[]string] {
	return Rule[[]string]{
		Name: RuleNameContains,
		Compare: func(expected []string, actual []string) (bool, string, error) {
			for _, fragment := range expected {
				if !lo.SomeBy(actual, func(value string) bool { return strings.Contains(value, fragment) }) {
					return false, fmt.Sprintf("no value contains %q", fragment), nil
				}
			}
			return true, "", nil
		},
	}
}
