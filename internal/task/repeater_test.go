package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testRepeaterInterval = 10 * time.Millisecond
	testRepeaterLong     = time.Hour
	testRepeaterTimeout  = 2 * time.Second
)

func TestNewRepeaterDefaultsInterval(testingT *testing.T) {
	repeater := NewRepeater(0, 0, func(context.Context, int) {})
	require.Equal(testingT, time.Minute, repeater.interval)
}

func TestRepeaterRunsFirstPassImmediately(testingT *testing.T) {
	passes := make(chan int, 4)
	repeater := NewRepeater(testRepeaterLong, 0, func(_ context.Context, pass int) {
		passes <- pass
	})
	repeater.Start(context.Background())
	testingT.Cleanup(repeater.Stop)

	select {
	case pass := <-passes:
		require.Equal(testingT, 1, pass)
	case <-time.After(testRepeaterTimeout):
		testingT.Fatal("first pass did not run")
	}

	repeater.Trigger()
	select {
	case pass := <-passes:
		require.Equal(testingT, 2, pass)
	case <-time.After(testRepeaterTimeout):
		testingT.Fatal("triggered pass did not run")
	}
}

func TestRepeaterStopsAfterMaxPasses(testingT *testing.T) {
	var mutex sync.Mutex
	var seen []int
	repeater := NewRepeater(testRepeaterInterval, 3, func(_ context.Context, pass int) {
		mutex.Lock()
		defer mutex.Unlock()
		seen = append(seen, pass)
	})
	repeater.Start(context.Background())

	select {
	case <-repeater.Done():
	case <-time.After(testRepeaterTimeout):
		testingT.Fatal("repeater did not finish")
	}
	require.Equal(testingT, 3, repeater.Passes())
	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(testingT, []int{1, 2, 3}, seen)
}

func TestRepeaterStopsOnCancel(testingT *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repeater := NewRepeater(testRepeaterInterval, 0, func(context.Context, int) {})
	repeater.Start(ctx)
	require.Eventually(testingT, func() bool { return repeater.Passes() > 0 }, testRepeaterTimeout, testRepeaterInterval)

	cancel()
	select {
	case <-repeater.Done():
	case <-time.After(testRepeaterTimeout):
		testingT.Fatal("repeater ignored cancellation")
	}
	repeater.Stop()
	require.Nil(testingT, repeater.cancel)
}

func TestRepeaterHandlesNilReceiver(testingT *testing.T) {
	var repeater *Repeater
	repeater.Start(context.Background())
	repeater.Trigger()
	repeater.Stop()
	require.Nil(testingT, repeater.Done())
	require.Zero(testingT, repeater.Passes())
}

func TestRepeaterSkipsStartWhenPassMissing(testingT *testing.T) {
	repeater := NewRepeater(testRepeaterInterval, 0, nil)
	repeater.Start(context.Background())
	require.Nil(testingT, repeater.cancel)
	require.Nil(testingT, repeater.Done())
}

func TestRepeaterStartIsIdempotent(testingT *testing.T) {
	repeater := NewRepeater(testRepeaterLong, 0, func(context.Context, int) {})
	repeater.Start(context.Background())
	doneAfterStart := repeater.Done()
	require.NotNil(testingT, repeater.cancel)
	repeater.Start(context.Background())
	require.Equal(testingT, doneAfterStart, repeater.Done())
	repeater.Stop()
}
