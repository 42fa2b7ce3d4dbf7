package platform

import (
	"sync"

	"boarddemo-go/services/hal/core"
)

// SoftClock stands in for a low-frequency oscillator on targets whose
// timebase is already running (hosts, Linux, RP2). It reports started a
// fixed number of polls after the start task.
type SoftClock struct {
	mu        sync.Mutex
	src       core.ClockSource
	triggered bool
	polls     int
	// StartAfter is the number of Started polls that still report false
	// after TriggerStart.
	StartAfter int
}

func (c *SoftClock) SelectSource(src core.ClockSource) {
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
}

func (c *SoftClock) ClearStarted() {
	c.mu.Lock()
	c.triggered = false
	c.polls = 0
	c.mu.Unlock()
}

func (c *SoftClock) TriggerStart() {
	c.mu.Lock()
	c.triggered = true
	c.mu.Unlock()
}

func (c *SoftClock) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.triggered {
		return false
	}
	if c.polls < c.StartAfter {
		c.polls++
		return false
	}
	return true
}

// Source returns the last selected source.
func (c *SoftClock) Source() core.ClockSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src
}
