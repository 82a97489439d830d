package scenarios

import (
	"context"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	groupLogin  = "login"
	groupSignup = "signup"

	invalidLoginPassword = "wrongpass"
	mismatchedPassword   = "differentpass"
)

func authScenarios() []harness.Scenario {
	return []harness.Scenario{
		{Name: "login/admin", Group: groupLogin, Run: loginAdminReachesDashboard},
		{Name: "login/customer", Group: groupLogin, Run: loginCustomerReachesHome},
		{Name: "login/invalid", Group: groupLogin, Run: invalidLoginShowsError},
		{Name: "signup/unique", Group: groupSignup, Run: uniqueSignupCreatesUser},
		{Name: "signup/duplicate", Group: groupSignup, Run: duplicateSignupRejected},
		{Name: "signup/password-mismatch", Group: groupSignup, Run: mismatchedSignupRejected},
	}
}

func loginAdminReachesDashboard(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginAdmin(ctx, testCase); loginErr != nil {
		return loginErr
	}
	return expectURLContains(ctx, testCase, PathAdminHome)
}

func loginCustomerReachesHome(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	return expectURLContains(ctx, testCase, PathCustomerHome)
}

func invalidLoginShowsError(ctx context.Context, testCase *harness.Case) error {
	if navigateErr := testCase.Navigate(ctx, PathLogin); navigateErr != nil {
		return navigateErr
	}
	if fillErr := fillForm(ctx, testCase,
		formField{loginUsername, shopdata.UniqueName("fakeuser")},
		formField{loginPassword, invalidLoginPassword},
	); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.Click(ctx, loginButton); clickErr != nil {
		return clickErr
	}
	return expectText(ctx, testCase, errorMessage, TextInvalidLogin)
}

func submitSignup(ctx context.Context, testCase *harness.Case, username string, password string, confirmation string) error {
	if navigateErr := testCase.Navigate(ctx, PathSignup); navigateErr != nil {
		return navigateErr
	}
	if fillErr := fillForm(ctx, testCase,
		formField{signupUsername, username},
		formField{signupPassword, password},
		formField{signupConfirm, confirmation},
	); fillErr != nil {
		return fillErr
	}
	return testCase.Click(ctx, signupButton)
}

// cleanupSignup deletes username on teardown and returns the store for later reads.
func cleanupSignup(testCase *harness.Case, username string) (*shopdata.Store, error) {
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return nil, storeErr
	}
	testCase.Cleanup("delete signed up user "+username, func(ctx context.Context) error {
		return store.DeleteUser(ctx, username)
	})
	return store, nil
}

func uniqueSignupCreatesUser(ctx context.Context, testCase *harness.Case) error {
	username := shopdata.UniqueName(fixtureCustomerPrefix)
	store, storeErr := cleanupSignup(testCase, username)
	if storeErr != nil {
		return storeErr
	}
	if submitErr := submitSignup(ctx, testCase, username, fixturePassword, fixturePassword); submitErr != nil {
		return submitErr
	}
	if textErr := expectText(ctx, testCase, successMessage, TextAccountCreated); textErr != nil {
		return textErr
	}
	_, found, lookupErr := store.UserID(ctx, username)
	if lookupErr != nil {
		return lookupErr
	}
	return harness.Compare(testCase, found, true, check.ExactEquality[bool]())
}

func duplicateSignupRejected(ctx context.Context, testCase *harness.Case) error {
	existing, seedErr := SeedCustomer(ctx, testCase)
	if seedErr != nil {
		return seedErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	if submitErr := submitSignup(ctx, testCase, existing.Username, fixturePassword, fixturePassword); submitErr != nil {
		return submitErr
	}
	if textErr := expectText(ctx, testCase, errorMessage, TextUsernameTaken); textErr != nil {
		return textErr
	}
	userID, found, lookupErr := store.UserID(ctx, existing.Username)
	if lookupErr != nil {
		return lookupErr
	}
	if compareErr := harness.Compare(testCase, found, true, check.ExactEquality[bool]()); compareErr != nil {
		return compareErr
	}
	return harness.Compare(testCase, userID, existing.ID, check.ExactEquality[int64]())
}

func mismatchedSignupRejected(ctx context.Context, testCase *harness.Case) error {
	username := shopdata.UniqueName("user_mismatch")
	store, storeErr := cleanupSignup(testCase, username)
	if storeErr != nil {
		return storeErr
	}
	if submitErr := submitSignup(ctx, testCase, username, fixturePassword, mismatchedPassword); submitErr != nil {
		return submitErr
	}
	if textErr := expectText(ctx, testCase, errorMessage, TextPasswordMismatch); textErr != nil {
		return textErr
	}
	_, found, lookupErr := store.UserID(ctx, username)
	if lookupErr != nil {
		return lookupErr
	}
	return harness.Compare(testCase, found, false, check.ExactEquality[bool]())
}

// expectText waits for locator and checks that its text contains fragment.
func expectText(ctx context.Context, testCase *harness.Case, locator browser.Locator, fragment string) error {
	text, textErr := testCase.Text(ctx, locator)
	if textErr != nil {
		return textErr
	}
	return harness.Compare(testCase, fragment, text, check.Contains())
}

// expectURLContains waits for the URL to contain fragment.
func expectURLContains(ctx context.Context, testCase *harness.Case, fragment string) error {
	_, waitErr := testCase.WaitUntil(ctx, wait.URLContains(fragment))
	return waitErr
}
