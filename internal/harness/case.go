package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	errorMessageNoSession = "harness: case has no active session"

	logEventCaseNavigated     = "case_navigated"
	logEventWaitTimeout       = "wait_timeout"
	logEventCaseViolation     = "case_violation"
	logEventSessionReopened   = "session_reopened"
	logEventCleanupFailed     = "cleanup_failed"
	logFieldCase              = "case"
	logFieldURL               = "url"
	logFieldCondition         = "condition"
	logFieldAttempts          = "attempts"
	logFieldRule              = "rule"
	logFieldExpected          = "expected"
	logFieldActual            = "actual"
	logFieldCleanup           = "cleanup"
	logFieldPreviousSessionID = "previous_session_id"
)

// Targets are the base URLs of the applications under test.
type Targets struct {
	BaseURL     string
	TodoBaseURL string
}

type cleanupEntry struct {
	description string
	teardown    func(ctx context.Context) error
}

// Case is the per-run context a scenario body drives. It owns one session at a time
// and records the lifecycle states it passes through.
type Case struct {
	name        string
	controller  *session.Controller
	options     session.Options
	session     *session.Session
	store       *shopdata.Store
	targets     Targets
	waitOptions wait.Options
	logger      *zap.Logger
	states      []State
	cleanups    []cleanupEntry
}

func (testCase *Case) Name() string {
	return testCase.name
}

func (testCase *Case) Logger() *zap.Logger {
	return testCase.logger
}

// Store returns the authoritative-state helpers, or ErrNoStore when the runner was
// built without one.
func (testCase *Case) Store() (*shopdata.Store, error) {
	if testCase.store == nil {
		return nil, ErrNoStore
	}
	return testCase.store, nil
}

// States returns the lifecycle states recorded so far, consecutive repeats collapsed.
func (testCase *Case) States() []State {
	return append([]State(nil), testCase.states...)
}

func (testCase *Case) record(state State) {
	if count := len(testCase.states); count > 0 && testCase.states[count-1] == state {
		return
	}
	testCase.states = append(testCase.states, state)
}

// Driver exposes the browser of the current session.
func (testCase *Case) Driver() (browser.Driver, error) {
	if testCase.session == nil || testCase.session.State() != session.StateActive {
		return nil, errors.New(errorMessageNoSession)
	}
	return testCase.session.Driver(), nil
}

// Cleanup registers teardown to run after the body, in reverse registration order,
// whatever the outcome.
func (testCase *Case) Cleanup(description string, teardown func(ctx context.Context) error) {
	testCase.cleanups = append(testCase.cleanups, cleanupEntry{description: description, teardown: teardown})
}

func (testCase *Case) runCleanups(ctx context.Context) error {
	var teardownErrs []error
	for index := len(testCase.cleanups) - 1; index >= 0; index-- {
		entry := testCase.cleanups[index]
		if teardownErr := runTeardown(ctx, entry); teardownErr != nil {
			testCase.logger.Warn(logEventCleanupFailed,
				zap.String(logFieldCase, testCase.name),
				zap.String(logFieldCleanup, entry.description),
				zap.Error(teardownErr),
			)
			teardownErrs = append(teardownErrs, fmt.Errorf("cleanup %s: %w", entry.description, teardownErr))
		}
	}
	testCase.cleanups = nil
	return errors.Join(teardownErrs...)
}

func runTeardown(ctx context.Context, entry cleanupEntry) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered}
		}
	}()
	return entry.teardown(ctx)
}

// TargetURL resolves path against the shop base URL. Absolute URLs pass through.
func (testCase *Case) TargetURL(path string) string {
	return joinURL(testCase.targets.BaseURL, path)
}

// TodoURL resolves path against the todo application base URL.
func (testCase *Case) TodoURL(path string) string {
	return joinURL(testCase.targets.TodoBaseURL, path)
}

func joinURL(baseURL string, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Navigate loads a shop page.
func (testCase *Case) Navigate(ctx context.Context, path string) error {
	return testCase.navigate(ctx, testCase.TargetURL(path))
}

// NavigateTodo loads a todo application page.
func (testCase *Case) NavigateTodo(ctx context.Context, path string) error {
	return testCase.navigate(ctx, testCase.TodoURL(path))
}

func (testCase *Case) navigate(ctx context.Context, targetURL string) error {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return driverErr
	}
	if navigateErr := driver.Navigate(ctx, targetURL); navigateErr != nil {
		return navigateErr
	}
	testCase.record(StateNavigated)
	testCase.logger.Debug(logEventCaseNavigated, zap.String(logFieldCase, testCase.name), zap.String(logFieldURL, targetURL))
	return nil
}

// WaitUntil blocks until condition holds under the case wait options.
func (testCase *Case) WaitUntil(ctx context.Context, condition wait.Condition) (wait.Result, error) {
	return testCase.waitWith(ctx, condition, testCase.waitOptions)
}

// WaitUntilWithin is WaitUntil with an explicit timeout.
func (testCase *Case) WaitUntilWithin(ctx context.Context, condition wait.Condition, timeout time.Duration) (wait.Result, error) {
	options := testCase.waitOptions
	options.Timeout = timeout
	return testCase.waitWith(ctx, condition, options)
}

func (testCase *Case) waitWith(ctx context.Context, condition wait.Condition, options wait.Options) (wait.Result, error) {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return wait.Result{}, driverErr
	}
	testCase.record(StateWaitingForCondition)
	result, waitErr := wait.Until(ctx, driver, condition, options)
	if waitErr != nil {
		var timeoutErr *wait.TimeoutError
		if errors.As(waitErr, &timeoutErr) {
			testCase.record(StateTimedOut)
			testCase.logger.Info(logEventWaitTimeout,
				zap.String(logFieldCase, testCase.name),
				zap.String(logFieldCondition, timeoutErr.Condition),
				zap.Int(logFieldAttempts, timeoutErr.Attempts),
			)
		}
		return wait.Result{}, waitErr
	}
	testCase.record(StateConditionMet)
	return result, nil
}

// Element waits for locator and returns its first match in document order.
func (testCase *Case) Element(ctx context.Context, locator browser.Locator) (browser.Element, error) {
	return testCase.firstOf(ctx, wait.ElementPresent(locator))
}

// VisibleElement waits for the first visible match of locator.
func (testCase *Case) VisibleElement(ctx context.Context, locator browser.Locator) (browser.Element, error) {
	return testCase.firstOf(ctx, wait.ElementVisible(locator))
}

func (testCase *Case) firstOf(ctx context.Context, condition wait.Condition) (browser.Element, error) {
	result, waitErr := testCase.WaitUntil(ctx, condition)
	if waitErr != nil {
		return browser.Element{}, waitErr
	}
	element, _ := result.First()
	testCase.record(StateExtracted)
	return element, nil
}

// Elements waits until locator matches at least once and returns every match.
func (testCase *Case) Elements(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	return testCase.allOf(ctx, wait.AllElementsPresent(locator))
}

// ElementsOrNone returns every current match of locator, possibly none.
func (testCase *Case) ElementsOrNone(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	return testCase.allOf(ctx, wait.AllElementsPresentOrNone(locator))
}

func (testCase *Case) allOf(ctx context.Context, condition wait.Condition) ([]browser.Element, error) {
	result, waitErr := testCase.WaitUntil(ctx, condition)
	if waitErr != nil {
		return nil, waitErr
	}
	testCase.record(StateExtracted)
	return result.Elements, nil
}

// Text returns the normalised text of the first match of locator.
func (testCase *Case) Text(ctx context.Context, locator browser.Locator) (string, error) {
	element, elementErr := testCase.Element(ctx, locator)
	if elementErr != nil {
		return "", elementErr
	}
	return extract.Text(element), nil
}

// Amount parses the currency amount shown by locator. With a non-empty symbol only the
// text after it is parsed, so labels such as "Total Price:" are ignored.
func (testCase *Case) Amount(ctx context.Context, locator browser.Locator, symbol string) (extract.Amount, error) {
	text, textErr := testCase.Text(ctx, locator)
	if textErr != nil {
		return extract.Amount{}, textErr
	}
	if symbol == "" {
		return extract.ParseAmount(text)
	}
	return extract.AmountAfterSymbol(text, symbol)
}

// Table parses the first table inside the first match of locator.
func (testCase *Case) Table(ctx context.Context, locator browser.Locator) (extract.Table, error) {
	element, elementErr := testCase.Element(ctx, locator)
	if elementErr != nil {
		return extract.Table{}, elementErr
	}
	return extract.ParseTable(element.OuterHTML)
}

// Cookies returns the cookies visible to the current page.
func (testCase *Case) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return nil, driverErr
	}
	cookies, cookiesErr := driver.Cookies(ctx)
	if cookiesErr != nil {
		return nil, cookiesErr
	}
	testCase.record(StateExtracted)
	return cookies, nil
}

// URL returns the current page URL.
func (testCase *Case) URL(ctx context.Context) (string, error) {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return "", driverErr
	}
	return driver.CurrentURL(ctx)
}

// Source returns the current document markup.
func (testCase *Case) Source(ctx context.Context) (string, error) {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return "", driverErr
	}
	return driver.Source(ctx)
}

// Title returns the current document title.
func (testCase *Case) Title(ctx context.Context) (string, error) {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return "", driverErr
	}
	return driver.Title(ctx)
}

// Click waits until locator is clickable and clicks its first clickable match.
func (testCase *Case) Click(ctx context.Context, locator browser.Locator) error {
	driver, waitErr := testCase.awaitInteractive(ctx, wait.ElementClickable(locator))
	if waitErr != nil {
		return waitErr
	}
	return driver.Click(ctx, locator)
}

// ClickScript waits for locator and clicks it from script, bypassing overlays.
func (testCase *Case) ClickScript(ctx context.Context, locator browser.Locator) error {
	driver, waitErr := testCase.awaitInteractive(ctx, wait.ElementPresent(locator))
	if waitErr != nil {
		return waitErr
	}
	return driver.ClickScript(ctx, locator)
}

// Fill waits until locator is visible, clears it and types text.
func (testCase *Case) Fill(ctx context.Context, locator browser.Locator, text string) error {
	driver, waitErr := testCase.awaitInteractive(ctx, wait.ElementVisible(locator))
	if waitErr != nil {
		return waitErr
	}
	if clearErr := driver.Clear(ctx, locator); clearErr != nil {
		return clearErr
	}
	return driver.Type(ctx, locator, text)
}

// Select waits for the select element and chooses value.
func (testCase *Case) Select(ctx context.Context, locator browser.Locator, value string) error {
	driver, waitErr := testCase.awaitInteractive(ctx, wait.ElementPresent(locator))
	if waitErr != nil {
		return waitErr
	}
	return driver.SelectOption(ctx, locator, value)
}

func (testCase *Case) awaitInteractive(ctx context.Context, condition wait.Condition) (browser.Driver, error) {
	if _, waitErr := testCase.WaitUntil(ctx, condition); waitErr != nil {
		return nil, waitErr
	}
	return testCase.Driver()
}

// ClearCookies drops every browser cookie of the session.
func (testCase *Case) ClearCookies(ctx context.Context) error {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return driverErr
	}
	return driver.ClearCookies(ctx)
}

// Reload reloads the current page.
func (testCase *Case) Reload(ctx context.Context) error {
	driver, driverErr := testCase.Driver()
	if driverErr != nil {
		return driverErr
	}
	if reloadErr := driver.Reload(ctx); reloadErr != nil {
		return reloadErr
	}
	testCase.record(StateNavigated)
	return nil
}

// Reopen releases the current session and acquires a fresh one with the same options,
// which discards every session cookie of the browser.
func (testCase *Case) Reopen(ctx context.Context) error {
	previousSessionID := ""
	if testCase.session != nil {
		previousSessionID = testCase.session.ID()
		if releaseErr := testCase.session.Release(); releaseErr != nil {
			return releaseErr
		}
	}
	reopened, acquireErr := testCase.controller.Acquire(ctx, testCase.options)
	if acquireErr != nil {
		return acquireErr
	}
	testCase.session = reopened
	testCase.logger.Info(logEventSessionReopened,
		zap.String(logFieldCase, testCase.name),
		zap.String(logFieldPreviousSessionID, previousSessionID),
	)
	return nil
}

// Compare checks actual against the store-derived expected value under rule.
func Compare[T any](testCase *Case, expected T, actual T, rule check.Rule[T]) error {
	testCase.record(StateCompared)
	compareErr := check.AssertEquivalent(expected, actual, rule)
	var violation *check.Violation
	if errors.As(compareErr, &violation) {
		testCase.logger.Info(logEventCaseViolation,
			zap.String(logFieldCase, testCase.name),
			zap.String(logFieldRule, violation.Rule),
			zap.Any(logFieldExpected, violation.Expected),
			zap.Any(logFieldActual, violation.Actual),
		)
	}
	return compareErr
}
