// Package harness runs verification scenarios: one browser session per case, guaranteed
// teardown and release, and diagnostics captured only when a case fails.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	defaultWorkers          = 1
	defaultTeardownTimeout  = 30 * time.Second
	diagnosticsTimeout      = 10 * time.Second
	diagnosticsTimeLayout   = "20060102T150405.000"
	diagnosticsHTMLSuffix   = ".html"
	diagnosticsImageSuffix  = ".png"
	diagnosticsFileMode     = 0o644
	diagnosticsDirMode      = 0o755
	errorMessageNilScenario = "harness: scenario has no body"

	logEventCaseStarted        = "case_started"
	logEventCasePassed         = "case_passed"
	logEventCaseFailed         = "case_failed"
	logEventCaseSkipped        = "case_skipped"
	logEventDiagnosticsWritten = "diagnostics_written"
	logEventDiagnosticsFailed  = "diagnostics_failed"
	logFieldKind               = "kind"
	logFieldDuration           = "duration"
	logFieldPath               = "path"
)

var unsafeFileNameCharacters = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Scenario is one named verification case.
type Scenario struct {
	Name  string
	Group string
	Run   func(ctx context.Context, testCase *Case) error
}

// Outcome is the final verdict of a case.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Diagnostics are the artifacts written for a failed case.
type Diagnostics struct {
	HTMLPath       string
	ScreenshotPath string
}

// Result describes one finished case.
type Result struct {
	Name        string
	Outcome     Outcome
	Kind        Kind
	Err         error
	States      []State
	Duration    time.Duration
	Diagnostics Diagnostics
}

// Config holds runner settings.
type Config struct {
	Targets         Targets
	SessionOptions  session.Options
	WaitOptions     wait.Options
	Workers         int
	DiagnosticsDir  string
	TeardownTimeout time.Duration
}

func (config Config) normalized() Config {
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	if config.TeardownTimeout <= 0 {
		config.TeardownTimeout = defaultTeardownTimeout
	}
	return config
}

// Runner executes scenarios.
type Runner struct {
	controller *session.Controller
	store      *shopdata.Store
	config     Config
	logger     *zap.Logger
}

func NewRunner(controller *session.Controller, store *shopdata.Store, config Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{controller: controller, store: store, config: config.normalized(), logger: logger}
}

// Run executes scenario in a fresh session. Cleanups run and the session is released
// on every path, panics in the body included.
func (runner *Runner) Run(ctx context.Context, scenario Scenario) Result {
	startedAt := time.Now()
	testCase := &Case{
		name:        scenario.Name,
		controller:  runner.controller,
		options:     runner.config.SessionOptions,
		store:       runner.store,
		targets:     runner.config.Targets,
		waitOptions: runner.config.WaitOptions,
		logger:      runner.logger,
	}
	testCase.record(StateInit)
	runner.logger.Info(logEventCaseStarted, zap.String(logFieldCase, scenario.Name))

	caseErr := runner.execute(ctx, testCase, scenario)
	result := Result{Name: scenario.Name, Err: caseErr, Kind: Classify(caseErr)}

	switch result.Kind {
	case KindNone:
		result.Outcome = OutcomePassed
		testCase.record(StatePassed)
	case KindSkipped:
		result.Outcome = OutcomeSkipped
		testCase.record(StateSkipped)
	default:
		result.Outcome = OutcomeFailed
		testCase.record(StateFailed)
		result.Diagnostics = runner.captureDiagnostics(ctx, testCase, caseErr)
	}

	teardownContext, cancelTeardown := context.WithTimeout(context.WithoutCancel(ctx), runner.config.TeardownTimeout)
	teardownErr := testCase.runCleanups(teardownContext)
	cancelTeardown()
	releaseErr := testCase.session.Release()
	testCase.record(StateSessionReleased)

	if cleanupErr := errors.Join(teardownErr, releaseErr); cleanupErr != nil && result.Outcome != OutcomeFailed {
		result.Outcome = OutcomeFailed
		result.Err = errors.Join(caseErr, cleanupErr)
		result.Kind = Classify(cleanupErr)
	}

	result.States = testCase.States()
	result.Duration = time.Since(startedAt)
	runner.logResult(result)
	return result
}

func (runner *Runner) execute(ctx context.Context, testCase *Case, scenario Scenario) (err error) {
	if scenario.Run == nil {
		return errors.New(errorMessageNilScenario)
	}
	acquired, acquireErr := runner.controller.Acquire(ctx, runner.config.SessionOptions)
	if acquireErr != nil {
		return acquireErr
	}
	testCase.session = acquired
	testCase.record(StateSessionAcquired)

	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered, Stack: debug.Stack()}
		}
	}()
	return scenario.Run(ctx, testCase)
}

func (runner *Runner) logResult(result Result) {
	fields := []zap.Field{
		zap.String(logFieldCase, result.Name),
		zap.Duration(logFieldDuration, result.Duration),
	}
	switch result.Outcome {
	case OutcomePassed:
		runner.logger.Info(logEventCasePassed, fields...)
	case OutcomeSkipped:
		runner.logger.Info(logEventCaseSkipped, append(fields, zap.Error(result.Err))...)
	default:
		runner.logger.Error(logEventCaseFailed, append(fields, zap.String(logFieldKind, string(result.Kind)), zap.Error(result.Err))...)
	}
}

// RunAll runs scenarios on up to Workers goroutines, each case in its own session.
// Results keep the order of scenarios.
func (runner *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(runner.config.Workers)
	for index := range scenarios {
		group.Go(func() error {
			results[index] = runner.Run(groupContext, scenarios[index])
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (runner *Runner) captureDiagnostics(ctx context.Context, testCase *Case, caseErr error) Diagnostics {
	directory := strings.TrimSpace(runner.config.DiagnosticsDir)
	if directory == "" {
		return Diagnostics{}
	}
	if mkdirErr := os.MkdirAll(directory, diagnosticsDirMode); mkdirErr != nil {
		runner.logger.Warn(logEventDiagnosticsFailed, zap.String(logFieldCase, testCase.name), zap.Error(mkdirErr))
		return Diagnostics{}
	}
	baseName := filepath.Join(directory, diagnosticsFileStem(testCase.name, time.Now()))
	captureContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsTimeout)
	defer cancel()

	var diagnostics Diagnostics
	if markup := pageMarkup(captureContext, testCase, caseErr); markup != "" {
		diagnostics.HTMLPath = runner.writeArtifact(testCase.name, baseName+diagnosticsHTMLSuffix, []byte(markup))
	}
	if driver, driverErr := testCase.Driver(); driverErr == nil {
		if screenshot, screenshotErr := driver.Screenshot(captureContext); screenshotErr == nil && len(screenshot) > 0 {
			diagnostics.ScreenshotPath = runner.writeArtifact(testCase.name, baseName+diagnosticsImageSuffix, screenshot)
		}
	}
	return diagnostics
}

func pageMarkup(ctx context.Context, testCase *Case, caseErr error) string {
	if source, sourceErr := testCase.Source(ctx); sourceErr == nil && source != "" {
		return source
	}
	var timeoutErr *wait.TimeoutError
	if errors.As(caseErr, &timeoutErr) {
		return timeoutErr.Snapshot
	}
	return ""
}

func (runner *Runner) writeArtifact(caseName string, path string, contents []byte) string {
	if writeErr := os.WriteFile(path, contents, diagnosticsFileMode); writeErr != nil {
		runner.logger.Warn(logEventDiagnosticsFailed, zap.String(logFieldCase, caseName), zap.Error(writeErr))
		return ""
	}
	runner.logger.Info(logEventDiagnosticsWritten, zap.String(logFieldCase, caseName), zap.String(logFieldPath, path))
	return path
}

func diagnosticsFileStem(caseName string, at time.Time) string {
	stem := strings.Trim(unsafeFileNameCharacters.ReplaceAllString(caseName, "_"), "_")
	if stem == "" {
		stem = "case"
	}
	return fmt.Sprintf("%s-%s", stem, at.UTC().Format(diagnosticsTimeLayout))
}
