package harness

import (
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	errorMessageSkipped = "harness: case skipped"
	errorMessagePanic   = "harness: case panicked"
	errorMessageNoStore = "harness: case has no store"
)

// ErrSkipped marks a case that could not run meaningfully, for example because no
// product is in stock to seed a cart with.
var ErrSkipped = errors.New(errorMessageSkipped)

// ErrNoStore is returned by Case.Store when the runner was built without a store.
var ErrNoStore = errors.New(errorMessageNoStore)

// Skipf returns an error that makes the runner report the case as skipped.
func Skipf(format string, arguments ...any) error {
	return fmt.Errorf("%w: %s", ErrSkipped, fmt.Sprintf(format, arguments...))
}

// Kind is the failure taxonomy a case error falls into.
type Kind string

const (
	KindNone                 Kind = ""
	KindSetupFailure         Kind = "setup-failure"
	KindTimeoutExceeded      Kind = "timeout-exceeded"
	KindParseError           Kind = "parse-error"
	KindConsistencyViolation Kind = "consistency-violation"
	KindStoreError           Kind = "store-error"
	KindSkipped              Kind = "skipped"
	KindUnexpected           Kind = "unexpected"
)

// Classify maps err onto the failure taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSkipped):
		return KindSkipped
	case errors.Is(err, session.ErrSetupFailure), errors.Is(err, ErrNoStore):
		return KindSetupFailure
	case errors.Is(err, storage.ErrStore):
		return KindStoreError
	case errors.Is(err, wait.ErrTimeoutExceeded):
		return KindTimeoutExceeded
	case errors.Is(err, check.ErrConsistencyViolation):
		return KindConsistencyViolation
	case errors.Is(err, extract.ErrParse):
		return KindParseError
	default:
		return KindUnexpected
	}
}

// PanicError wraps a value recovered from a panicking case body.
type PanicError struct {
	Value any
	Stack []byte
}

func (panicError *PanicError) Error() string {
	return fmt.Sprintf("%s: %v", errorMessagePanic, panicError.Value)
}
