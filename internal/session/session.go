package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

const (
	defaultWindowWidth    = 1280
	defaultWindowHeight   = 800
	defaultStartupTimeout = 20 * time.Second

	errorMessageSetupFailure     = "session: setup failure"
	errorMessageMissingAllocator = "session: missing allocator"
	errorMessageNilDriver        = "session: allocator returned no driver"

	logEventSessionAcquired = "session_acquired"
	logEventSessionReleased = "session_released"
	logEventReleaseFailed   = "session_release_failed"
	logFieldSessionID       = "session_id"
	logFieldWindow          = "window"
	logFieldHeadless        = "headless"
)

// ErrSetupFailure marks a session that could not be acquired. It is fatal for the
// test case that requested it and is never retried.
var ErrSetupFailure = errors.New(errorMessageSetupFailure)

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateTerminated
)

func (state State) String() string {
	switch state {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(state))
	}
}

// Options configures one browser session.
type Options struct {
	WindowWidth    int
	WindowHeight   int
	Headless       bool
	ExecPath       string
	Flags          map[string]any
	StartupTimeout time.Duration
}

// DefaultOptions returns a headless 1280x800 configuration.
func DefaultOptions() Options {
	return Options{
		WindowWidth:    defaultWindowWidth,
		WindowHeight:   defaultWindowHeight,
		Headless:       true,
		StartupTimeout: defaultStartupTimeout,
	}
}

func (options Options) normalized() Options {
	if options.WindowWidth <= 0 {
		options.WindowWidth = defaultWindowWidth
	}
	if options.WindowHeight <= 0 {
		options.WindowHeight = defaultWindowHeight
	}
	if options.StartupTimeout <= 0 {
		options.StartupTimeout = defaultStartupTimeout
	}
	return options
}

// Allocation is a started browser plus the function that terminates it.
type Allocation struct {
	Driver    browser.Driver
	Terminate func() error
}

// Allocator starts browser processes.
type Allocator interface {
	Allocate(ctx context.Context, options Options) (Allocation, error)
}

// Controller hands out sessions, one per test case.
type Controller struct {
	allocator Allocator
	logger    *zap.Logger
}

func NewController(allocator Allocator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{allocator: allocator, logger: logger}
}

// Acquire starts a new browser session. Failures wrap ErrSetupFailure.
func (controller *Controller) Acquire(ctx context.Context, options Options) (*Session, error) {
	if controller == nil || controller.allocator == nil {
		return nil, fmt.Errorf("%w: %s", ErrSetupFailure, errorMessageMissingAllocator)
	}
	normalizedOptions := options.normalized()
	allocation, allocateErr := controller.allocator.Allocate(ctx, normalizedOptions)
	if allocateErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailure, allocateErr)
	}
	if allocation.Driver == nil {
		if allocation.Terminate != nil {
			_ = allocation.Terminate()
		}
		return nil, fmt.Errorf("%w: %s", ErrSetupFailure, errorMessageNilDriver)
	}

	session := &Session{
		id:        uuid.NewString(),
		options:   normalizedOptions,
		driver:    allocation.Driver,
		terminate: allocation.Terminate,
		state:     StateActive,
		logger:    controller.logger,
	}
	controller.logger.Info(logEventSessionAcquired,
		zap.String(logFieldSessionID, session.id),
		zap.String(logFieldWindow, fmt.Sprintf("%dx%d", normalizedOptions.WindowWidth, normalizedOptions.WindowHeight)),
		zap.Bool(logFieldHeadless, normalizedOptions.Headless),
	)
	return session, nil
}

// With acquires a session, runs body and releases the session on every exit path,
// panics included. A release failure is reported only when body succeeded.
func (controller *Controller) With(ctx context.Context, options Options, body func(*Session) error) (err error) {
	session, acquireErr := controller.Acquire(ctx, options)
	if acquireErr != nil {
		return acquireErr
	}
	defer func() {
		releaseErr := session.Release()
		if err == nil {
			err = releaseErr
		}
	}()
	return body(session)
}

// Session is one browser instance owned by exactly one test case.
type Session struct {
	id          string
	options     Options
	driver      browser.Driver
	terminate   func() error
	logger      *zap.Logger
	stateMutex  sync.Mutex
	state       State
	releaseOnce sync.Once
	releaseErr  error
}

func (session *Session) ID() string {
	return session.id
}

func (session *Session) Options() Options {
	return session.options
}

func (session *Session) Driver() browser.Driver {
	return session.driver
}

func (session *Session) State() State {
	if session == nil {
		return StateUninitialized
	}
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.state
}

// Release terminates the browser. Only the first call has an effect; later calls
// return the first call's result.
func (session *Session) Release() error {
	if session == nil {
		return nil
	}
	session.releaseOnce.Do(func() {
		if session.terminate != nil {
			session.releaseErr = session.terminate()
		}
		session.stateMutex.Lock()
		session.state = StateTerminated
		session.stateMutex.Unlock()
		if session.releaseErr != nil {
			session.logger.Warn(logEventReleaseFailed, zap.String(logFieldSessionID, session.id), zap.Error(session.releaseErr))
			return
		}
		session.logger.Info(logEventSessionReleased, zap.String(logFieldSessionID, session.id))
	})
	return session.releaseErr
}
