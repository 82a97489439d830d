// Package task runs work on a fixed interval. shopcheck monitor uses it to rerun a
// scenario selection until interrupted.
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultInterval = time.Minute

// PassFunc performs one pass. pass counts from 1.
type PassFunc func(ctx context.Context, pass int)

// Repeater runs a PassFunc immediately on Start and then every interval, or sooner when
// triggered, until stopped or until maxPasses passes have run. maxPasses <= 0 means no limit.
type Repeater struct {
	interval     time.Duration
	maxPasses    int
	pass         PassFunc
	trigger      chan struct{}
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	completed    atomic.Int64
}

func NewRepeater(interval time.Duration, maxPasses int, pass PassFunc) *Repeater {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Repeater{
		interval:  interval,
		maxPasses: maxPasses,
		pass:      pass,
		trigger:   make(chan struct{}, 1),
	}
}

func (repeater *Repeater) Start(ctx context.Context) {
	if repeater == nil || repeater.pass == nil {
		return
	}
	repeater.controlMutex.Lock()
	if repeater.cancel != nil {
		repeater.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	repeater.cancel = cancel
	done := make(chan struct{})
	repeater.done = done
	repeater.controlMutex.Unlock()

	go repeater.loop(runtimeCtx, done)
}

// Done is closed once the loop exits. It is nil before Start.
func (repeater *Repeater) Done() <-chan struct{} {
	if repeater == nil {
		return nil
	}
	repeater.controlMutex.Lock()
	defer repeater.controlMutex.Unlock()
	return repeater.done
}

// Passes reports how many passes have finished.
func (repeater *Repeater) Passes() int {
	if repeater == nil {
		return 0
	}
	return int(repeater.completed.Load())
}

func (repeater *Repeater) Trigger() {
	if repeater == nil {
		return
	}
	select {
	case repeater.trigger <- struct{}{}:
	default:
	}
}

func (repeater *Repeater) Stop() {
	if repeater == nil {
		return
	}
	repeater.controlMutex.Lock()
	cancel := repeater.cancel
	done := repeater.done
	repeater.cancel = nil
	repeater.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (repeater *Repeater) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if !repeater.run(ctx) {
		return
	}
	timer := time.NewTimer(repeater.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-repeater.trigger:
		case <-timer.C:
		}
		if !repeater.run(ctx) {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(repeater.interval)
	}
}

// run performs one pass and reports whether another may follow.
func (repeater *Repeater) run(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	passNumber := int(repeater.completed.Load()) + 1
	repeater.pass(ctx, passNumber)
	repeater.completed.Add(1)
	return repeater.maxPasses <= 0 || passNumber < repeater.maxPasses
}
