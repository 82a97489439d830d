package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

const (
	// EnvironmentKeyChromedpBrowser and EnvironmentKeyChromePath override browser discovery.
	EnvironmentKeyChromedpBrowser = "CHROMEDP_BROWSER"
	EnvironmentKeyChromePath      = "CHROME_PATH"

	errorMessageStartBrowser   = "session: start browser"
	errorMessageStartupTimeout = "session: browser startup timed out"
	errorMessageLocateBrowser  = "session: locate browser executable"

	logEventBrowserStarting = "browser_starting"
	logFieldExecPath        = "exec_path"
)

// ErrBrowserNotFound reports that no Chrome or Chromium executable could be located.
var ErrBrowserNotFound = errors.New("session: browser executable not found")

var browserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
	"headless-shell",
}

// LocateBrowser resolves a browser executable from the environment, then from PATH.
func LocateBrowser() (string, error) {
	for _, environmentKey := range []string{EnvironmentKeyChromedpBrowser, EnvironmentKeyChromePath} {
		environmentValue := strings.TrimSpace(os.Getenv(environmentKey))
		if environmentValue != "" {
			return environmentValue, nil
		}
	}
	for _, executableName := range browserExecutableNames {
		executablePath, lookupErr := exec.LookPath(executableName)
		if lookupErr == nil {
			return executablePath, nil
		}
	}
	return "", fmt.Errorf("%s: %w", errorMessageLocateBrowser, ErrBrowserNotFound)
}

// ChromeAllocator launches a dedicated Chrome process per session through chromedp.
type ChromeAllocator struct {
	logger *zap.Logger
}

func NewChromeAllocator(logger *zap.Logger) *ChromeAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeAllocator{logger: logger}
}

// Allocate starts the browser eagerly so that an unavailable browser surfaces here
// rather than on the first navigation.
func (allocator *ChromeAllocator) Allocate(ctx context.Context, options Options) (Allocation, error) {
	allocatorOptions := allocatorOptionsFor(options)
	allocator.logger.Debug(logEventBrowserStarting, zap.String(logFieldExecPath, options.ExecPath))

	// The browser lifetime belongs to the session, not to the caller's context.
	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions...)
	browserContext, browserCancel := chromedp.NewContext(allocatorContext)

	terminate := func() error {
		cancelErr := chromedp.Cancel(browserContext)
		browserCancel()
		allocatorCancel()
		if cancelErr != nil && !errors.Is(cancelErr, context.Canceled) {
			return cancelErr
		}
		return nil
	}

	startResult := make(chan error, 1)
	go func() {
		startResult <- chromedp.Run(browserContext)
	}()

	startupTimer := time.NewTimer(options.StartupTimeout)
	defer startupTimer.Stop()

	select {
	case startErr := <-startResult:
		if startErr != nil {
			_ = terminate()
			return Allocation{}, fmt.Errorf("%s: %w", errorMessageStartBrowser, startErr)
		}
	case <-startupTimer.C:
		_ = terminate()
		return Allocation{}, fmt.Errorf("%s after %s", errorMessageStartupTimeout, options.StartupTimeout)
	case <-ctx.Done():
		_ = terminate()
		return Allocation{}, fmt.Errorf("%s: %w", errorMessageStartBrowser, ctx.Err())
	}

	return Allocation{
		Driver:    browser.NewChromeDriver(browserContext),
		Terminate: terminate,
	}, nil
}

func allocatorOptionsFor(options Options) []chromedp.ExecAllocatorOption {
	allocatorOptions := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(options.WindowWidth, options.WindowHeight),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !options.Headless {
		allocatorOptions = append(allocatorOptions, chromedp.Flag("headless", false))
	}
	if strings.TrimSpace(options.ExecPath) != "" {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(strings.TrimSpace(options.ExecPath)))
	}
	for flagName, flagValue := range options.Flags {
		allocatorOptions = append(allocatorOptions, chromedp.Flag(flagName, flagValue))
	}
	return allocatorOptions
}
