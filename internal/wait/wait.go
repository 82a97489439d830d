// Package wait blocks until a condition over the live page holds or a timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 250 * time.Millisecond

	errorMessageTimeoutExceeded = "wait: timeout exceeded"
	errorMessageCancelled       = "wait: cancelled"
)

// ErrTimeoutExceeded is matched by every *TimeoutError.
var ErrTimeoutExceeded = errors.New(errorMessageTimeoutExceeded)

// Observer is the read-only view of a page that conditions evaluate against.
type Observer interface {
	Probe(ctx context.Context, locator browser.Locator) ([]browser.Element, error)
	CurrentURL(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
}

// Options bounds a wait.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

func DefaultOptions() Options {
	return Options{Timeout: defaultTimeout, PollInterval: defaultPollInterval}
}

func (options Options) normalized() Options {
	if options.Timeout <= 0 {
		options.Timeout = defaultTimeout
	}
	if options.PollInterval <= 0 {
		options.PollInterval = defaultPollInterval
	}
	if options.PollInterval > options.Timeout {
		options.PollInterval = options.Timeout
	}
	return options
}

// TimeoutError reports a condition that never held. Snapshot holds the page source at
// expiry when it could be read.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Elapsed   time.Duration
	Attempts  int
	LastErr   error
	Snapshot  string
}

func (timeoutError *TimeoutError) Error() string {
	message := fmt.Sprintf("%s after %s (%d attempts): %s", errorMessageTimeoutExceeded, timeoutError.Timeout, timeoutError.Attempts, timeoutError.Condition)
	if timeoutError.LastErr != nil {
		message += fmt.Sprintf(": last error: %v", timeoutError.LastErr)
	}
	return message
}

func (timeoutError *TimeoutError) Unwrap() error {
	return ErrTimeoutExceeded
}

// Until evaluates condition every PollInterval until it holds or Timeout elapses.
// Evaluation errors count as "not yet"; the last one is kept on the TimeoutError.
// The final sleep is clipped to the deadline, so a satisfied condition is noticed
// within one poll interval and expiry is reported before Timeout+PollInterval.
func Until(ctx context.Context, observer Observer, condition Condition, options Options) (Result, error) {
	options = options.normalized()
	startedAt := time.Now()
	deadline := startedAt.Add(options.Timeout)
	evaluationDeadline := deadline.Add(options.PollInterval / 2)

	pollTimer := time.NewTimer(options.PollInterval)
	pollTimer.Stop()
	defer pollTimer.Stop()

	attempts := 0
	var lastErr error
	for {
		attempts++
		result, satisfied, evaluateErr := evaluate(ctx, observer, condition, evaluationDeadline)
		if evaluateErr == nil && satisfied {
			return result, nil
		}
		if evaluateErr != nil {
			lastErr = evaluateErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("%s: %s: %w", errorMessageCancelled, condition.Describe(), ctxErr)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{}, &TimeoutError{
				Condition: condition.Describe(),
				Timeout:   options.Timeout,
				Elapsed:   time.Since(startedAt),
				Attempts:  attempts,
				LastErr:   lastErr,
				Snapshot:  captureSnapshot(ctx, observer, deadline.Add(options.PollInterval-options.PollInterval/4)),
			}
		}

		delay := options.PollInterval
		if remaining < delay {
			delay = remaining
		}
		pollTimer.Reset(delay)
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("%s: %s: %w", errorMessageCancelled, condition.Describe(), ctx.Err())
		case <-pollTimer.C:
		}
	}
}

func evaluate(ctx context.Context, observer Observer, condition Condition, evaluationDeadline time.Time) (Result, bool, error) {
	evaluationContext, cancel := context.WithDeadline(ctx, evaluationDeadline)
	defer cancel()
	return condition.Evaluate(evaluationContext, observer)
}

// captureSnapshot reads the page source before snapshotDeadline, which keeps expiry
// inside Timeout+PollInterval even when the renderer has stalled.
func captureSnapshot(ctx context.Context, observer Observer, snapshotDeadline time.Time) string {
	if !time.Now().Before(snapshotDeadline) {
		return ""
	}
	snapshotContext, cancel := context.WithDeadline(ctx, snapshotDeadline)
	defer cancel()
	source, sourceErr := observer.Source(snapshotContext)
	if sourceErr != nil {
		return ""
	}
	return source
}
