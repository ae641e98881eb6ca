package logic

import (
	"math/rand"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
)

// RewardWindow is the stimulus state machine: the rig is either in a
// Control phase waiting for a qualifying wheel run, or in a Reward phase
// that ends on consumption or when its deadline passes.
//
// Every phase change increments Seq so that messages tagged with an older
// phase can be recognised and dropped.
type RewardWindow struct {
	maxDuration time.Duration
	framePeriod time.Duration

	phase     event.Phase
	seq       uint64
	began     time.Time
	deadline  time.Time
	nextFrame time.Time
}

// NewRewardWindow creates a window in the Control phase beginning at now.
func NewRewardWindow(maxDuration, framePeriod time.Duration, now time.Time) *RewardWindow {
	return &RewardWindow{
		maxDuration: maxDuration,
		framePeriod: framePeriod,
		phase:       event.PhaseControl,
		seq:         1,
		began:       now,
	}
}

// Enter starts a Reward phase at now. It is a no-op returning false when a
// Reward phase is already in progress.
func (w *RewardWindow) Enter(now time.Time) bool {
	if w.phase == event.PhaseReward {
		return false
	}
	w.phase = event.PhaseReward
	w.seq++
	w.began = now
	w.deadline = now.Add(w.maxDuration)
	w.nextFrame = now.Add(w.framePeriod)
	return true
}

// Exit returns to the Control phase at now. It returns false when not in a
// Reward phase.
func (w *RewardWindow) Exit(now time.Time) bool {
	if w.phase != event.PhaseReward {
		return false
	}
	w.phase = event.PhaseControl
	w.seq++
	w.began = now
	w.deadline = time.Time{}
	w.nextFrame = time.Time{}
	return true
}

// Expired reports whether the Reward phase deadline has passed.
func (w *RewardWindow) Expired(now time.Time) bool {
	return w.phase == event.PhaseReward && now.After(w.deadline)
}

// FrameDue reports whether the next reward frame should be shown at now and
// schedules the one after it.
func (w *RewardWindow) FrameDue(now time.Time) bool {
	if w.phase != event.PhaseReward || now.Before(w.nextFrame) {
		return false
	}
	w.nextFrame = w.nextFrame.Add(w.framePeriod)
	if w.nextFrame.Before(now) {
		// Catch up after a stall rather than flashing through missed frames.
		w.nextFrame = now.Add(w.framePeriod)
	}
	return true
}

// Phase returns the current phase.
func (w *RewardWindow) Phase() event.Phase { return w.phase }

// Seq returns the sequence number of the current phase.
func (w *RewardWindow) Seq() uint64 { return w.seq }

// Began returns when the current phase started.
func (w *RewardWindow) Began() time.Time { return w.began }

// Deadline returns when the current Reward phase force-ends. Zero in Control.
func (w *RewardWindow) Deadline() time.Time { return w.deadline }

// ImagePicker chooses which image to show next.
type ImagePicker struct {
	control      []string
	reward       []string
	randomReward bool
	rng          *rand.Rand
	next         int
}

// NewImagePicker creates a picker over the control and reward sets. Reward
// images are cycled in order unless randomReward is set.
func NewImagePicker(control, reward []string, randomReward bool, rng *rand.Rand) *ImagePicker {
	return &ImagePicker{
		control:      control,
		reward:       reward,
		randomReward: randomReward,
		rng:          rng,
	}
}

// Control returns a control image chosen uniformly at random, or "" when the
// control set is empty.
func (p *ImagePicker) Control() string {
	if len(p.control) == 0 {
		return ""
	}
	return p.control[p.rng.Intn(len(p.control))]
}

// Reward returns the next reward image.
func (p *ImagePicker) Reward() string {
	if len(p.reward) == 0 {
		return ""
	}
	if p.randomReward {
		return p.reward[p.rng.Intn(len(p.reward))]
	}
	img := p.reward[p.next]
	p.next = (p.next + 1) % len(p.reward)
	return img
}
