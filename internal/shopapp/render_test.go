package shopapp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
)

func TestFormatRupeesRoundsToCents(testingT *testing.T) {
	testCases := []struct {
		name     string
		value    float64
		expected int64
	}{
		{name: "whole", value: 500, expected: 500},
		{name: "rounds up", value: 121999.999, expected: 122000},
		{name: "zero", value: 0, expected: 0},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			rendered := formatRupees(testCase.value)
			require.Equal(testingT, currencySymbol, rendered[:len(currencySymbol)])
			parsed, parseErr := extract.AmountAfterSymbol(rendered, currencySymbol)
			require.NoError(testingT, parseErr)
			require.Zero(testingT, extract.AmountFromInt(testCase.expected).Cmp(parsed), rendered)
		})
	}
}

func TestFormatAmountHasNoGrouping(testingT *testing.T) {
	require.Equal(testingT, "12345.00", formatAmount(12345))
	require.Equal(testingT, "789.50", formatAmount(789.5))
}

func TestNormalizeBasePath(testingT *testing.T) {
	require.Equal(testingT, DefaultShopBasePath, normalizeBasePath("  ", DefaultShopBasePath))
	require.Equal(testingT, "/shop", normalizeBasePath("shop/", DefaultShopBasePath))
	require.Equal(testingT, "/", normalizeBasePath("/", DefaultShopBasePath))
}
