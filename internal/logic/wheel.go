package logic

import (
	"math/rand"
	"time"
)

// RevolutionCounter counts wheel revolutions inside a rolling window and
// reports when a target count is reached.
//
// Each revolution extends the window by interval. A revolution that arrives
// after the window has expired starts a new run at count 1. Once the target
// is reached the counter disarms and ignores revolutions until the next Reset.
type RevolutionCounter struct {
	interval time.Duration
	count    int
	deadline time.Time
	target   int
	armed    bool
}

// NewRevolutionCounter creates a disarmed counter with the given
// maximum inter-revolution interval.
func NewRevolutionCounter(interval time.Duration) *RevolutionCounter {
	return &RevolutionCounter{interval: interval}
}

// Reset clears the count and starts a new window at now. When armed is true
// the counter will qualify once count reaches target.
func (c *RevolutionCounter) Reset(now time.Time, target int, armed bool) {
	c.count = 0
	c.deadline = now
	c.target = target
	c.armed = armed && target > 0
}

// Revolution records a rising wheel transition at now. It returns true
// exactly once per Reset: on the revolution that brings count to target.
func (c *RevolutionCounter) Revolution(now time.Time) bool {
	if !c.armed {
		return false
	}

	if now.After(c.deadline) {
		c.count = 1
	} else {
		c.count++
	}
	c.deadline = now.Add(c.interval)

	if c.count >= c.target {
		c.armed = false
		return true
	}
	return false
}

// Count returns the revolutions in the current window.
func (c *RevolutionCounter) Count() int {
	return c.count
}

// Target returns the revolution target set by the last Reset.
func (c *RevolutionCounter) Target() int {
	return c.target
}

// Armed reports whether the counter can still qualify.
func (c *RevolutionCounter) Armed() bool {
	return c.armed
}

// DrawTarget returns a revolution target drawn uniformly from [min, max].
func DrawTarget(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
