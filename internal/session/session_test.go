package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
)

const (
	testBodyFailureMessage     = "body failed"
	testAllocateFailureMessage = "chrome missing"
)

type countingAllocator struct {
	mutex          sync.Mutex
	allocations    int
	terminations   int
	allocateErr    error
	terminateErr   error
	receivedOption session.Options
}

func (allocator *countingAllocator) Allocate(_ context.Context, options session.Options) (session.Allocation, error) {
	allocator.mutex.Lock()
	defer allocator.mutex.Unlock()
	allocator.receivedOption = options
	if allocator.allocateErr != nil {
		return session.Allocation{}, allocator.allocateErr
	}
	allocator.allocations++
	return session.Allocation{
		Driver: struct{ browser.Driver }{},
		Terminate: func() error {
			allocator.mutex.Lock()
			defer allocator.mutex.Unlock()
			allocator.terminations++
			return allocator.terminateErr
		},
	}, nil
}

func (allocator *countingAllocator) counts() (int, int) {
	allocator.mutex.Lock()
	defer allocator.mutex.Unlock()
	return allocator.allocations, allocator.terminations
}

func TestAcquireAppliesDefaultsAndActivatesSession(testingT *testing.T) {
	allocator := &countingAllocator{}
	controller := session.NewController(allocator, zap.NewNop())

	acquired, acquireErr := controller.Acquire(context.Background(), session.Options{Headless: true})
	require.NoError(testingT, acquireErr)
	require.Equal(testingT, session.StateActive, acquired.State())
	require.NotEmpty(testingT, acquired.ID())
	require.Equal(testingT, 1280, allocator.receivedOption.WindowWidth)
	require.Equal(testingT, 800, allocator.receivedOption.WindowHeight)
	require.Positive(testingT, allocator.receivedOption.StartupTimeout)

	require.NoError(testingT, acquired.Release())
	require.Equal(testingT, session.StateTerminated, acquired.State())
}

func TestReleaseTerminatesExactlyOnce(testingT *testing.T) {
	allocator := &countingAllocator{terminateErr: errors.New("already gone")}
	controller := session.NewController(allocator, nil)

	acquired, acquireErr := controller.Acquire(context.Background(), session.DefaultOptions())
	require.NoError(testingT, acquireErr)

	firstErr := acquired.Release()
	secondErr := acquired.Release()
	require.Error(testingT, firstErr)
	require.Equal(testingT, firstErr, secondErr)

	allocations, terminations := allocator.counts()
	require.Equal(testingT, 1, allocations)
	require.Equal(testingT, 1, terminations)
}

func TestAcquireFailureIsSetupFailure(testingT *testing.T) {
	allocator := &countingAllocator{allocateErr: errors.New(testAllocateFailureMessage)}
	controller := session.NewController(allocator, nil)

	acquired, acquireErr := controller.Acquire(context.Background(), session.DefaultOptions())
	require.Nil(testingT, acquired)
	require.ErrorIs(testingT, acquireErr, session.ErrSetupFailure)
	require.ErrorContains(testingT, acquireErr, testAllocateFailureMessage)

	var nilController *session.Controller
	_, nilErr := nilController.Acquire(context.Background(), session.DefaultOptions())
	require.ErrorIs(testingT, nilErr, session.ErrSetupFailure)
}

func TestWithReleasesOnEveryExitPath(testingT *testing.T) {
	testCases := []struct {
		name        string
		body        func(*session.Session) error
		expectPanic bool
		expectErr   bool
	}{
		{
			name: "success",
			body: func(*session.Session) error { return nil },
		},
		{
			name:      "failure",
			body:      func(*session.Session) error { return errors.New(testBodyFailureMessage) },
			expectErr: true,
		},
		{
			name:        "panic",
			body:        func(*session.Session) error { panic(testBodyFailureMessage) },
			expectPanic: true,
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(t *testing.T) {
			allocator := &countingAllocator{}
			controller := session.NewController(allocator, nil)

			var withErr error
			run := func() {
				withErr = controller.With(context.Background(), session.DefaultOptions(), testCase.body)
			}
			if testCase.expectPanic {
				require.Panics(t, run)
			} else {
				run()
			}

			if testCase.expectErr {
				require.ErrorContains(t, withErr, testBodyFailureMessage)
			} else if !testCase.expectPanic {
				require.NoError(t, withErr)
			}

			allocations, terminations := allocator.counts()
			require.Equal(t, 1, allocations)
			require.Equal(t, 1, terminations)
		})
	}
}

func TestSessionLifecycleIsLogged(testingT *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	controller := session.NewController(&countingAllocator{}, zap.New(observedCore))

	require.NoError(testingT, controller.With(context.Background(), session.DefaultOptions(), func(*session.Session) error {
		return nil
	}))

	require.Equal(testingT, 1, observedLogs.FilterMessage("session_acquired").Len())
	require.Equal(testingT, 1, observedLogs.FilterMessage("session_released").Len())
}

func TestStateNames(testingT *testing.T) {
	require.Equal(testingT, "uninitialized", session.StateUninitialized.String())
	require.Equal(testingT, "active", session.StateActive.String())
	require.Equal(testingT, "terminated", session.StateTerminated.String())

	var missing *session.Session
	require.Equal(testingT, session.StateUninitialized, missing.State())
}

func TestLocateBrowserPrefersEnvironment(testingT *testing.T) {
	testingT.Setenv(session.EnvironmentKeyChromedpBrowser, "/opt/chrome/chrome")
	located, locateErr := session.LocateBrowser()
	require.NoError(testingT, locateErr)
	require.Equal(testingT, "/opt/chrome/chrome", located)
}
