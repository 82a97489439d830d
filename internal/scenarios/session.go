package scenarios

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	groupSession = "session"
	groupSmoke   = "smoke"

	stylesheetFragment = "css"
	loginPromptText    = "username"
)

func sessionScenarios() []harness.Scenario {
	return []harness.Scenario{
		{Name: "session/cookie-issued", Group: groupSession, Run: loginIssuesSessionCookie},
		{Name: "session/cookie-regenerated", Group: groupSession, Run: clearedCookieIsRegenerated},
		{Name: "session/browser-restart", Group: groupSession, Run: restartedBrowserRequiresLogin},
		{Name: "smoke/stylesheets", Group: groupSmoke, Run: loginPageLinksStylesheet},
	}
}

func sessionCookie(ctx context.Context, testCase *harness.Case) (string, error) {
	cookies, cookiesErr := testCase.Cookies(ctx)
	if cookiesErr != nil {
		return "", cookiesErr
	}
	value, found := extract.CookieValue(cookies, SessionCookieName)
	if !found {
		return "", &check.Violation{
			Rule:     check.RuleNameContains,
			Expected: SessionCookieName,
			Actual:   cookieNames(cookies),
			Detail:   fmt.Sprintf("no %s cookie", SessionCookieName),
		}
	}
	return value, nil
}

func cookieNames(cookies []browser.Cookie) []string {
	return lo.Map(cookies, func(cookie browser.Cookie, _ int) string { return cookie.Name })
}

func loginIssuesSessionCookie(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	value, cookieErr := sessionCookie(ctx, testCase)
	if cookieErr != nil {
		return cookieErr
	}
	return harness.Compare(testCase, "", value, check.Differs[string]())
}

func clearedCookieIsRegenerated(ctx context.Context, testCase *harness.Case) error {
	if navigateErr := testCase.Navigate(ctx, PathLogin); navigateErr != nil {
		return navigateErr
	}
	original, originalErr := sessionCookie(ctx, testCase)
	if originalErr != nil {
		return originalErr
	}
	if clearErr := testCase.ClearCookies(ctx); clearErr != nil {
		return clearErr
	}
	if reloadErr := testCase.Reload(ctx); reloadErr != nil {
		return reloadErr
	}
	if _, presentErr := testCase.Element(ctx, loginUsername); presentErr != nil {
		return presentErr
	}
	regenerated, regeneratedErr := sessionCookie(ctx, testCase)
	if regeneratedErr != nil {
		return regeneratedErr
	}
	return harness.Compare(testCase, original, regenerated, check.Differs[string]())
}

func restartedBrowserRequiresLogin(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if reopenErr := testCase.Reopen(ctx); reopenErr != nil {
		return reopenErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.AnyOf(wait.ElementPresent(loginUsername), wait.PageContains(loginPromptText)))
	return waitErr
}

func loginPageLinksStylesheet(ctx context.Context, testCase *harness.Case) error {
	if navigateErr := testCase.Navigate(ctx, PathLogin); navigateErr != nil {
		return navigateErr
	}
	links, linksErr := testCase.Elements(ctx, stylesheetLinks)
	if linksErr != nil {
		return linksErr
	}
	return harness.Compare(testCase, []string{stylesheetFragment}, extract.Attributes(links, "href"), check.AnyContains())
}
