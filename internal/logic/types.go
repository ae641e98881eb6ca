// Package logic contains the pure state machines behind the rig's runtime.
// Nothing here touches GPIO, channels or the OS, and the current time is
// always passed in.
package logic

import "time"

// Transition is a debounced change of a pin's level.
type Transition struct {
	State bool // true = High
	Time  time.Time
}

// PumpAction is what the door monitor must do to the pump output after
// evaluating the gate.
type PumpAction int

const (
	// PumpHold leaves the output unchanged.
	PumpHold PumpAction = iota
	// PumpStart drives the output high.
	PumpStart
	// PumpStop drives the output low.
	PumpStop
)

func (a PumpAction) String() string {
	switch a {
	case PumpStart:
		return "START"
	case PumpStop:
		return "STOP"
	default:
		return "HOLD"
	}
}
