package rig

import "time"

// Clock timestamps events relative to a fixed experiment epoch.
type Clock struct {
	epoch time.Time
	now   func() time.Time
}

// NewClock fixes the epoch at now().
func NewClock(now func() time.Time) Clock {
	if now == nil {
		now = time.Now
	}
	return Clock{epoch: now(), now: now}
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	return c.now()
}

// Epoch returns the experiment start time.
func (c Clock) Epoch() time.Time {
	return c.epoch
}

// Elapsed returns seconds from the epoch to t.
func (c Clock) Elapsed(t time.Time) float64 {
	return t.Sub(c.epoch).Seconds()
}
