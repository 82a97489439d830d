package scenarios

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
)

const (
	testGroupCart        = "cart"
	testScenarioLogin    = "login/admin"
	testGlobSignup       = "signup/*"
	testUnknownScenario  = "checkout/express"
	testBrokenPattern    = "login/["
	testQuotedTitle      = `Bob's "weekly" task`
	testProductNameQuote = "Tea 'Leaf'"
)

func scenarioNames(scenarios []harness.Scenario) []string {
	return lo.Map(scenarios, func(scenario harness.Scenario, _ int) string { return scenario.Name })
}

func TestCatalogueNamesAreUniqueAndGrouped(testingT *testing.T) {
	catalogue := All()
	names := scenarioNames(catalogue)
	require.Len(testingT, lo.Uniq(names), len(names))
	for _, scenario := range catalogue {
		require.NotNil(testingT, scenario.Run, scenario.Name)
		require.Contains(testingT, scenario.Name, scenario.Group+"/")
	}
	require.Equal(testingT,
		[]string{"login", "signup", "customer-home", "cart", "pay", "admin-home", "add-product", "delete-product", "update-stock", "session", "smoke", "todo"},
		Groups(),
	)
}

func TestSelect(testingT *testing.T) {
	testCases := []struct {
		name     string
		patterns []string
		expected []string
	}{
		{name: "exact name", patterns: []string{testScenarioLogin}, expected: []string{testScenarioLogin}},
		{
			name:     "glob",
			patterns: []string{testGlobSignup},
			expected: []string{"signup/unique", "signup/duplicate", "signup/password-mismatch"},
		},
		{name: "unknown", patterns: []string{testUnknownScenario}, expected: []string{}},
		{
			name:     "catalogue order across patterns",
			patterns: []string{"smoke", testScenarioLogin},
			expected: []string{testScenarioLogin, "smoke/stylesheets"},
		},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(testingT *testing.T) {
			selected, selectErr := Select(testCase.patterns)
			require.NoError(testingT, selectErr)
			require.Equal(testingT, testCase.expected, scenarioNames(selected))
		})
	}
}

func TestSelectByGroupAndPrefix(testingT *testing.T) {
	byGroup, groupErr := Select([]string{testGroupCart})
	require.NoError(testingT, groupErr)
	require.Len(testingT, byGroup, 7)

	byPrefix, prefixErr := Select([]string{testGroupCart + "/"})
	require.NoError(testingT, prefixErr)
	require.Equal(testingT, scenarioNames(byGroup), scenarioNames(byPrefix))
}

func TestSelectWithoutPatternsReturnsCatalogue(testingT *testing.T) {
	selected, selectErr := Select(nil)
	require.NoError(testingT, selectErr)
	require.Equal(testingT, scenarioNames(All()), scenarioNames(selected))
}

func TestSelectRejectsMalformedPattern(testingT *testing.T) {
	_, selectErr := Select([]string{testBrokenPattern})
	require.True(testingT, errors.Is(selectErr, ErrInvalidPattern))
}

func TestScopedLocatorsQuoteValues(testingT *testing.T) {
	checkbox, checkboxIsXPath := taskCheckbox(testQuotedTitle).Expression()
	require.True(testingT, checkboxIsXPath)
	require.Equal(testingT,
		`//td[contains(text(), concat('Bob', "'", 's "weekly" task'))]/..//input[@type='checkbox']`,
		checkbox,
	)

	plus, plusIsXPath := productBoxPart(testProductNameQuote, "plus").Expression()
	require.True(testingT, plusIsXPath)
	require.Equal(testingT,
		`//div[contains(@class,'product-box')][.//h3[normalize-space(.)="Tea 'Leaf'"]]//*[contains(concat(' ', normalize-space(@class), ' '), ' plus ')]`,
		plus,
	)

	quantity, quantityIsXPath := cartQuantityField(7).Expression()
	require.False(testingT, quantityIsXPath)
	require.Equal(testingT, `[name="quantities[7]"]`, quantity)
}

func TestHomePathFollowsRole(testingT *testing.T) {
	require.Equal(testingT, PathAdminHome, homePath("admin"))
	require.Equal(testingT, PathCustomerHome, homePath("customer"))
}

// idleDriver satisfies browser.Driver for bodies that never touch the page.
type idleDriver struct {
	browser.Driver
}

type idleAllocator struct{}

func (idleAllocator) Allocate(context.Context, session.Options) (session.Allocation, error) {
	return session.Allocation{Driver: idleDriver{}}, nil
}

func runWithIdleBrowser(testingT *testing.T, body func(ctx context.Context, testCase *harness.Case) error) harness.Result {
	testingT.Helper()
	runner := harness.NewRunner(session.NewController(idleAllocator{}, nil), nil, harness.Config{}, nil)
	return runner.Run(context.Background(), harness.Scenario{Name: testingT.Name(), Run: body})
}

func TestFirstCartLine(testingT *testing.T) {
	storedLine := shopdata.CartLine{ProductID: 7, Name: "Tea", Quantity: 2}

	var first shopdata.CartLine
	present := runWithIdleBrowser(testingT, func(_ context.Context, testCase *harness.Case) error {
		line, lineErr := firstCartLine(testCase, []shopdata.CartLine{storedLine})
		first = line
		return lineErr
	})
	require.Equal(testingT, harness.OutcomePassed, present.Outcome)
	require.Equal(testingT, storedLine, first)

	empty := runWithIdleBrowser(testingT, func(_ context.Context, testCase *harness.Case) error {
		_, lineErr := firstCartLine(testCase, nil)
		return lineErr
	})
	require.Equal(testingT, harness.OutcomeFailed, empty.Outcome)
	require.Equal(testingT, harness.KindConsistencyViolation, empty.Kind)
	var violation *check.Violation
	require.True(testingT, errors.As(empty.Err, &violation))
	require.Equal(testingT, 1, violation.Expected)
	require.Equal(testingT, 0, violation.Actual)
}

func TestFixturesRequireStore(testingT *testing.T) {
	result := runWithIdleBrowser(testingT, func(ctx context.Context, testCase *harness.Case) error {
		_, seedErr := SeedCustomer(ctx, testCase)
		return seedErr
	})
	require.Equal(testingT, harness.OutcomeFailed, result.Outcome)
	require.Equal(testingT, harness.KindSetupFailure, result.Kind)
	require.ErrorIs(testingT, result.Err, harness.ErrNoStore)
}
