package rig

import (
	"log"
	"math/rand"
	"time"

	"github.com/sweeney/behavior-rig/internal/display"
	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/logic"
	"github.com/sweeney/behavior-rig/internal/protocol"
)

// coordinator drives the stimulus state machine. It is the only context
// that changes phase, chooses images and engages the reward.
type coordinator struct {
	proto   protocol.Protocol
	display display.Display
	window  *logic.RewardWindow
	picker  *logic.ImagePicker
	rng     *rand.Rand
	clock   Clock
	stop    *Stop
	endAt   time.Time

	events   *Pipe[event.Event]
	phase    *Pipe[phaseChange]
	qualify  *Pipe[qualify]
	reward   *Pipe[rewardSignal]
	consumed *Pipe[consumed]

	rewards int
}

func newCoordinator(proto protocol.Protocol, disp display.Display, rng *rand.Rand, clock Clock, stop *Stop, l *links) *coordinator {
	c := &coordinator{
		proto:    proto,
		display:  disp,
		picker:   logic.NewImagePicker(proto.ControlImages, proto.RewardImages, proto.RandomRewardOrder, rng),
		rng:      rng,
		clock:    clock,
		stop:     stop,
		events:   l.coordEvents,
		phase:    l.phase,
		qualify:  l.qualify,
		reward:   l.reward,
		consumed: l.consumed,
	}
	c.endAt = clock.Epoch().Add(proto.ExperimentDuration)
	return c
}

// Start enters the first Control phase at now.
func (c *coordinator) Start(now time.Time) {
	c.window = logic.NewRewardWindow(c.proto.MaxRewardDuration, c.proto.RewardFramePeriod, now)
	c.show(c.picker.Control(), event.PhaseControl, now)
	c.announceControl()
}

// Step advances the state machine to now. A Reward phase ends on whichever
// of consumption or deadline is seen first; both in the same step end it
// once.
func (c *coordinator) Step(now time.Time) {
	for {
		msg, ok := c.consumed.TryRecv()
		if !ok {
			break
		}
		if c.window.Phase() == event.PhaseReward && msg.Seq == c.window.Seq() {
			log.Printf("coordinator: reward %d consumed", c.rewards)
			c.endReward(now)
		}
	}
	if c.window.Expired(now) {
		log.Printf("coordinator: reward %d timed out", c.rewards)
		c.endReward(now)
	}

	for {
		q, ok := c.qualify.TryRecv()
		if !ok {
			break
		}
		if c.window.Phase() == event.PhaseControl && q.Seq == c.window.Seq() {
			log.Printf("coordinator: wheel target reached (%d revolutions)", q.Count)
			c.startReward(now)
		}
	}

	if c.window.FrameDue(now) {
		c.show(c.picker.Reward(), event.PhaseReward, now)
	}

	if !now.Before(c.endAt) {
		c.stop.Set(CauseDuration)
	}
	if c.display.QuitRequested() {
		c.stop.Set(CauseKeypress)
	}
}

func (c *coordinator) startReward(now time.Time) {
	c.window.Enter(now)
	c.rewards++
	c.show(c.picker.Reward(), event.PhaseReward, now)
	c.send(c.reward.Offer(rewardSignal{Seq: c.window.Seq(), Engaged: true}), "reward engage")
	c.send(c.phase.Offer(phaseChange{Seq: c.window.Seq(), Phase: event.PhaseReward}), "phase change")
}

func (c *coordinator) endReward(now time.Time) {
	c.window.Exit(now)
	c.show(c.picker.Control(), event.PhaseControl, now)
	c.send(c.reward.Offer(rewardSignal{Seq: c.window.Seq(), Engaged: false}), "reward disengage")
	c.announceControl()
}

func (c *coordinator) announceControl() {
	target := logic.DrawTarget(c.rng, c.proto.MinRevolutions, c.proto.MaxRevolutions)
	log.Printf("coordinator: control phase %d, target %d revolutions", c.window.Seq(), target)
	c.send(c.phase.Offer(phaseChange{Seq: c.window.Seq(), Phase: event.PhaseControl, Target: target}), "phase change")
}

func (c *coordinator) show(image string, phase event.Phase, now time.Time) {
	if err := c.display.Show(image); err != nil {
		log.Printf("coordinator: show %q: %v", image, err)
		c.events.Send(event.Event{
			Source:  event.SourceCoordinator,
			Kind:    event.KindChannelError,
			Detail:  "display: " + err.Error(),
			Elapsed: c.clock.Elapsed(now),
		})
		return
	}
	c.events.Send(event.Event{
		Source:  event.SourceCoordinator,
		Kind:    event.KindImageShown,
		Image:   image,
		Phase:   phase,
		Elapsed: c.clock.Elapsed(now),
	})
}

func (c *coordinator) send(ok bool, what string) {
	if !ok {
		log.Printf("coordinator: %s dropped, receiver not keeping up", what)
	}
}

// Run drives the state machine on every tick until stop is set.
func (c *coordinator) Run(tick <-chan time.Time) {
	defer c.close()

	c.Start(c.clock.Now())
	for !c.stop.IsSet() {
		select {
		case <-c.stop.Done():
		case <-tick:
			c.Step(c.clock.Now())
		}
	}
}

func (c *coordinator) close() {
	if c.window != nil && c.window.Phase() == event.PhaseReward {
		c.reward.Offer(rewardSignal{Seq: c.window.Seq(), Engaged: false})
	}
	c.phase.Close()
	c.reward.Close()
	c.events.Close()
}
