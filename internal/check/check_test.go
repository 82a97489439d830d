package check_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
)

func mustAmount(testingT *testing.T, text string) extract.Amount {
	testingT.Helper()
	amount, parseErr := extract.ParseAmount(text)
	require.NoError(testingT, parseErr)
	return amount
}

func TestNumericEqualityWithRounding(testingT *testing.T) {
	rule := check.NumericEqualityWithRounding(2)
	testCases := []struct {
		name      string
		expected  string
		actual    string
		wantEqual bool
	}{
		{name: "sub-cent sum artifact", expected: "121999.999", actual: "₹122,000.00", wantEqual: true},
		{name: "ten rupee gap", expected: "121990.00", actual: "₹122,000.00", wantEqual: false},
		{name: "seeded cart of five hundred", expected: "500", actual: "₹500.00", wantEqual: true},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(t *testing.T) {
			assertErr := check.AssertEquivalent(mustAmount(t, testCase.expected), mustAmount(t, testCase.actual), rule)
			if testCase.wantEqual {
				require.NoError(t, assertErr)
				return
			}
			require.ErrorIs(t, assertErr, check.ErrConsistencyViolation)
			var violation *check.Violation
			require.True(t, errors.As(assertErr, &violation))
			require.Equal(t, "numeric-equality-with-rounding(2)", violation.Rule)
			require.Equal(t, "121990.00", violation.Expected.(extract.Amount).String())
			require.Equal(t, "122000.00", violation.Actual.(extract.Amount).String())
			require.Contains(t, violation.Error(), "121990.00")
		})
	}
}

func TestNumericRuleReportsUnusablePrecision(testingT *testing.T) {
	assertErr := check.AssertEquivalent(extract.AmountFromInt(1), extract.AmountFromInt(1), check.NumericEqualityWithRounding(-1))
	require.Error(testingT, assertErr)
	require.False(testingT, errors.Is(assertErr, check.ErrConsistencyViolation))
}

func TestSetSubset(testingT *testing.T) {
	rule := check.SetSubset[string]()
	databaseNames := []string{"Walnut Desk", "Walnut Chair", "Oak Table"}

	require.NoError(testingT, check.AssertEquivalent(databaseNames, []string{"Walnut Desk", "Walnut Chair"}, rule))
	require.NoError(testingT, check.AssertEquivalent(databaseNames, []string{}, rule))
	require.NoError(testingT, check.AssertEquivalent(databaseNames, []string{"Walnut Desk", "Walnut Desk"}, rule))

	assertErr := check.AssertEquivalent(databaseNames, []string{"Walnut Desk", "Pine Shelf"}, rule)
	var violation *check.Violation
	require.True(testingT, errors.As(assertErr, &violation))
	require.Contains(testingT, violation.Detail, "Pine Shelf")
}

func TestOrderedSequenceEquality(testingT *testing.T) {
	rule := check.OrderedSequenceEquality[string]()
	require.NoError(testingT, check.AssertEquivalent([]string{"Product Name", "Price (₹)", "Stock"}, []string{"Product Name", "Price (₹)", "Stock"}, rule))

	reordered := check.AssertEquivalent([]string{"a", "b"}, []string{"b", "a"}, rule)
	require.ErrorIs(testingT, reordered, check.ErrConsistencyViolation)
	require.Contains(testingT, reordered.Error(), "index 0")

	shorter := check.AssertEquivalent([]string{"a", "b"}, []string{"a"}, rule)
	require.ErrorContains(testingT, shorter, "length 2 != 1")
}

func TestScalarRules(testingT *testing.T) {
	require.NoError(testingT, check.AssertEquivalent(int64(3), int64(3), check.ExactEquality[int64]()))
	require.ErrorIs(testingT, check.AssertEquivalent(int64(3), int64(2), check.ExactEquality[int64]()), check.ErrConsistencyViolation)

	require.NoError(testingT, check.AssertEquivalent("Welcome", "Welcome, customer!", check.Contains()))
	require.ErrorIs(testingT, check.AssertEquivalent("Admin", "Welcome", check.Contains()), check.ErrConsistencyViolation)

	require.NoError(testingT, check.AssertEquivalent(1, 4, check.AtLeast()))
	require.ErrorIs(testingT, check.AssertEquivalent(1, 0, check.AtLeast()), check.ErrConsistencyViolation)

	require.NoError(testingT, check.AssertEquivalent([]string{"css"}, []string{"http://shop/favicon.ico", "http://shop/css/style.css"}, check.AnyContains()))
	require.ErrorIs(testingT, check.AssertEquivalent([]string{"css"}, []string{"http://shop/favicon.ico"}, check.AnyContains()), check.ErrConsistencyViolation)
}

func TestDiffers(testingT *testing.T) {
	rule := check.Differs[string]()
	require.NoError(testingT, check.AssertEquivalent("first-session", "second-session", rule))
	require.ErrorIs(testingT, check.AssertEquivalent("first-session", "first-session", rule), check.ErrConsistencyViolation)

	emptyErr := check.AssertEquivalent("first-session", "", rule)
	var violation *check.Violation
	require.True(testingT, errors.As(emptyErr, &violation))
	require.Equal(testingT, "actual is empty", violation.Detail)
}

func TestRuleWithoutComparison(testingT *testing.T) {
	require.Error(testingT, check.AssertEquivalent(1, 1, check.Rule[int]{Name: "empty"}))
}
