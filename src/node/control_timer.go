package node

import (
	"math/rand"
	"sync/atomic"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is the jittered heartbeat behind the gossip loop.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the heartbeatTimer
	stopCh       chan struct{}      //receives instruction to stop the heartbeatTimer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
	set          int32              //read outside the Run loop, hence atomic
}

// NewControlTimer ...
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// NewRandomControlTimer adds a random component to the timeout so that nodes
// do not gossip in lockstep.
func NewRandomControlTimer() *ControlTimer {

	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min == 0 {
			return nil
		}
		extra := (time.Duration(rand.Int63()) % min)
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// Run ...
func (c *ControlTimer) Run(init time.Duration) {

	setTimer := func(t time.Duration) <-chan time.Time {
		atomic.StoreInt32(&c.set, 1)
		return c.timerFactory(t)
	}

	timer := setTimer(init)
	for {
		select {
		case <-timer:
			c.tickCh <- struct{}{}
			atomic.StoreInt32(&c.set, 0)
		case t := <-c.resetCh:
			timer = setTimer(t)
		case <-c.stopCh:
			timer = nil
			atomic.StoreInt32(&c.set, 0)
		case <-c.shutdownCh:
			atomic.StoreInt32(&c.set, 0)
			return
		}
	}
}

// isSet reports whether the timer is armed.
func (c *ControlTimer) isSet() bool {
	return atomic.LoadInt32(&c.set) == 1
}

// Shutdown ...
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
