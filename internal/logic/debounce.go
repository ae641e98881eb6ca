package logic

import "time"

// Debouncer suppresses spurious transitions of a mechanical or electrical
// contact. A change of level is accepted only if at least window has passed
// since the last accepted change.
type Debouncer struct {
	window     time.Duration
	seeded     bool
	state      bool
	lastChange time.Time
}

// NewDebouncer creates a debouncer with the given bounce window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Sample feeds a raw pin reading taken at now. It returns the transition and
// true if the reading is an accepted change of level. The first sample only
// seeds the state and never emits.
func (d *Debouncer) Sample(level bool, now time.Time) (Transition, bool) {
	if !d.seeded {
		d.seeded = true
		d.state = level
		d.lastChange = now
		return Transition{}, false
	}

	if level == d.state {
		return Transition{}, false
	}
	if now.Sub(d.lastChange) < d.window {
		return Transition{}, false
	}

	d.state = level
	d.lastChange = now
	return Transition{State: level, Time: now}, true
}

// State returns the current debounced level and whether the debouncer has
// been seeded by a first sample.
func (d *Debouncer) State() (level bool, seeded bool) {
	return d.state, d.seeded
}

// Window returns the bounce window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}
