package testutil

import (
	"testing"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
)

const headlessBrowserSkipReason = "chromedp headless browser not available"

// RequireHeadlessBrowser returns session options for a located headless browser, or
// skips the test when none is installed.
func RequireHeadlessBrowser(testingT *testing.T) session.Options {
	testingT.Helper()
	if testing.Short() {
		testingT.Skip(headlessBrowserSkipReason + " in short mode")
	}
	browserExecutablePath, locateErr := session.LocateBrowser()
	if locateErr != nil {
		testingT.Skipf("%s: %v", headlessBrowserSkipReason, locateErr)
	}
	options := session.DefaultOptions()
	options.ExecPath = browserExecutablePath
	options.Flags = map[string]any{"ignore-certificate-errors": true}
	return options
}
