package logic

import "time"

// PumpGate decides when the reward pump runs. The pump starts when a reward
// is engaged and the door is open, and stops pumpOn after it started,
// independent of the door. A stop on timeout consumes the reward.
type PumpGate struct {
	duration time.Duration
	engaged  bool
	on       bool
	deadline time.Time
}

// NewPumpGate creates a gate with the given pump-on duration.
func NewPumpGate(duration time.Duration) *PumpGate {
	return &PumpGate{duration: duration}
}

// Engage marks a reward as available from now.
func (g *PumpGate) Engage(now time.Time) {
	g.engaged = true
	g.deadline = now.Add(g.duration)
}

// Disengage withdraws the reward. It returns PumpStop if the pump was
// running and must be switched off.
func (g *PumpGate) Disengage() PumpAction {
	g.engaged = false
	if g.on {
		g.on = false
		return PumpStop
	}
	return PumpHold
}

// Evaluate returns the pump action for the door state at now. A PumpStop
// returned here is a timeout: the reward has been consumed and the gate is
// no longer engaged.
func (g *PumpGate) Evaluate(now time.Time, doorOpen bool) PumpAction {
	if g.engaged && doorOpen && !g.on {
		g.on = true
		g.deadline = now.Add(g.duration)
		return PumpStart
	}
	if g.on && now.After(g.deadline) {
		g.on = false
		g.engaged = false
		return PumpStop
	}
	return PumpHold
}

// On reports whether the pump should currently be running.
func (g *PumpGate) On() bool {
	return g.on
}

// Engaged reports whether a reward is currently available.
func (g *PumpGate) Engaged() bool {
	return g.engaged
}

// Deadline returns the time after which a running pump stops.
func (g *PumpGate) Deadline() time.Time {
	return g.deadline
}
