package rig

import (
	"github.com/sweeney/behavior-rig/internal/event"
)

// phaseChange tells the wheel monitor that the coordinator entered a new
// phase. In a Control phase the monitor arms for Target revolutions.
type phaseChange struct {
	Seq    uint64
	Phase  event.Phase
	Target int
}

// qualify is the wheel monitor's one notification per Control phase that
// the revolution target was reached.
type qualify struct {
	Seq   uint64
	Count int
}

// rewardSignal engages or disengages the reward at the door monitor.
type rewardSignal struct {
	Seq     uint64
	Engaged bool
}

// consumed tells the coordinator that the pump ran for its full duration
// during the Reward phase Seq.
type consumed struct {
	Seq uint64
}

// links holds every pipe between the four contexts.
type links struct {
	wheelEvents *Pipe[event.Event]
	doorEvents  *Pipe[event.Event]
	coordEvents *Pipe[event.Event]

	phase    *Pipe[phaseChange]  // coordinator -> wheel
	qualify  *Pipe[qualify]      // wheel -> coordinator
	reward   *Pipe[rewardSignal] // coordinator -> door
	consumed *Pipe[consumed]     // door -> coordinator
}

func newLinks(eventBuffer, controlBuffer int) *links {
	return &links{
		wheelEvents: NewPipe[event.Event](eventBuffer),
		doorEvents:  NewPipe[event.Event](eventBuffer),
		coordEvents: NewPipe[event.Event](eventBuffer),
		phase:       NewPipe[phaseChange](controlBuffer),
		qualify:     NewPipe[qualify](controlBuffer),
		reward:      NewPipe[rewardSignal](controlBuffer),
		consumed:    NewPipe[consumed](controlBuffer),
	}
}
