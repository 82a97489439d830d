package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	screenshotQuality        = 90
	documentSourceExpression = "document.documentElement ? document.documentElement.outerHTML : ''"
	errorMessageNavigate     = "browser: navigate"
	errorMessageProbe        = "browser: probe"
	errorMessageClick        = "browser: click"
	errorMessageType         = "browser: type"
	errorMessageClear        = "browser: clear"
	errorMessageSelect       = "browser: select option"
	errorMessageCookies      = "browser: read cookies"
	errorMessageScreenshot   = "browser: screenshot"
	errorMessageClearCookies = "browser: clear cookies"
	errorMessageReload       = "browser: reload"
)

// ChromeDriver drives one chromedp browser context. Calls are bounded by the context
// passed to them; the browser context itself outlives individual calls.
type ChromeDriver struct {
	browserContext context.Context
}

// NewChromeDriver wraps a context created by chromedp.NewContext.
func NewChromeDriver(browserContext context.Context) *ChromeDriver {
	return &ChromeDriver{browserContext: browserContext}
}

func (driver *ChromeDriver) Navigate(ctx context.Context, targetURL string) error {
	if runErr := driver.run(ctx, chromedp.Navigate(targetURL)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageNavigate, targetURL, runErr)
	}
	return nil
}

func (driver *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if runErr := driver.run(ctx, chromedp.Location(&location)); runErr != nil {
		return "", runErr
	}
	return location, nil
}

func (driver *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	if runErr := driver.run(ctx, chromedp.Title(&title)); runErr != nil {
		return "", runErr
	}
	return title, nil
}

func (driver *ChromeDriver) Source(ctx context.Context) (string, error) {
	var source string
	if runErr := driver.run(ctx, chromedp.Evaluate(documentSourceExpression, &source)); runErr != nil {
		return "", runErr
	}
	return source, nil
}

func (driver *ChromeDriver) Probe(ctx context.Context, locator Locator) ([]Element, error) {
	var elements []Element
	if runErr := driver.run(ctx, chromedp.Evaluate(ProbeScript(locator), &elements)); runErr != nil {
		return nil, fmt.Errorf("%s %s: %w", errorMessageProbe, locator, runErr)
	}
	return elements, nil
}

func (driver *ChromeDriver) Click(ctx context.Context, locator Locator) error {
	selector, queryOption := queryFor(locator)
	if runErr := driver.run(ctx, chromedp.Click(selector, queryOption)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageClick, locator, runErr)
	}
	return nil
}

// ClickScript dispatches element.click() on the first match, bypassing pointer
// hit-testing for controls covered by other elements.
func (driver *ChromeDriver) ClickScript(ctx context.Context, locator Locator) error {
	var clicked bool
	if runErr := driver.run(ctx, chromedp.Evaluate(clickScript(locator), &clicked)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageClick, locator, runErr)
	}
	if !clicked {
		return NoMatchError{Locator: locator}
	}
	return nil
}

func (driver *ChromeDriver) Clear(ctx context.Context, locator Locator) error {
	selector, queryOption := queryFor(locator)
	if runErr := driver.run(ctx, chromedp.Clear(selector, queryOption)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageClear, locator, runErr)
	}
	return nil
}

func (driver *ChromeDriver) Type(ctx context.Context, locator Locator, text string) error {
	selector, queryOption := queryFor(locator)
	if runErr := driver.run(ctx, chromedp.SendKeys(selector, text, queryOption)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageType, locator, runErr)
	}
	return nil
}

func (driver *ChromeDriver) SelectOption(ctx context.Context, locator Locator, value string) error {
	var selected bool
	if runErr := driver.run(ctx, chromedp.Evaluate(selectOptionScript(locator, value), &selected)); runErr != nil {
		return fmt.Errorf("%s %s: %w", errorMessageSelect, locator, runErr)
	}
	if !selected {
		return NoMatchError{Locator: locator}
	}
	return nil
}

func (driver *ChromeDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	var networkCookies []*network.Cookie
	readCookies := chromedp.ActionFunc(func(actionContext context.Context) error {
		var readErr error
		networkCookies, readErr = network.GetCookies().Do(actionContext)
		return readErr
	})
	if runErr := driver.run(ctx, readCookies); runErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageCookies, runErr)
	}
	cookies := make([]Cookie, 0, len(networkCookies))
	for _, networkCookie := range networkCookies {
		if networkCookie == nil {
			continue
		}
		cookies = append(cookies, Cookie{
			Name:     networkCookie.Name,
			Value:    networkCookie.Value,
			Domain:   networkCookie.Domain,
			Path:     networkCookie.Path,
			HTTPOnly: networkCookie.HTTPOnly,
			Secure:   networkCookie.Secure,
		})
	}
	return cookies, nil
}

func (driver *ChromeDriver) ClearCookies(ctx context.Context) error {
	clearCookies := chromedp.ActionFunc(func(actionContext context.Context) error {
		return network.ClearBrowserCookies().Do(actionContext)
	})
	if runErr := driver.run(ctx, clearCookies); runErr != nil {
		return fmt.Errorf("%s: %w", errorMessageClearCookies, runErr)
	}
	return nil
}

func (driver *ChromeDriver) Reload(ctx context.Context) error {
	if runErr := driver.run(ctx, chromedp.Reload()); runErr != nil {
		return fmt.Errorf("%s: %w", errorMessageReload, runErr)
	}
	return nil
}

func (driver *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var screenshot []byte
	if runErr := driver.run(ctx, chromedp.FullScreenshot(&screenshot, screenshotQuality)); runErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageScreenshot, runErr)
	}
	return screenshot, nil
}

// Evaluate runs script in the page and decodes its JSON-serialisable result into
// destination. A nil destination discards the result.
func (driver *ChromeDriver) Evaluate(ctx context.Context, script string, destination any) error {
	return driver.run(ctx, chromedp.Evaluate(script, destination))
}

func (driver *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runContext, cancel := context.WithCancel(driver.browserContext)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runContext, actions...)
}

func queryFor(locator Locator) (string, chromedp.QueryOption) {
	expression, isXPath := locator.Expression()
	if isXPath {
		return expression, chromedp.BySearch
	}
	return expression, chromedp.ByQuery
}
