package rig

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/gpio"
	"github.com/sweeney/behavior-rig/internal/logic"
)

// doorMonitor samples the reward-port door sensor and is the only writer of
// the pump output. The pump runs while a reward is engaged and the door is
// open, for at most the pump-on duration.
type doorMonitor struct {
	door      gpio.Input
	pump      gpio.Output
	openLevel bool
	debounce  *logic.Debouncer
	gate      *logic.PumpGate
	clock     Clock
	stop      *Stop

	events   *Pipe[event.Event]
	reward   *Pipe[rewardSignal]
	consumed *Pipe[consumed]

	seq uint64
}

func newDoorMonitor(door gpio.Input, pump gpio.Output, openLevel bool, bounce, pumpOn time.Duration, clock Clock, stop *Stop, l *links) *doorMonitor {
	return &doorMonitor{
		door:      door,
		pump:      pump,
		openLevel: openLevel,
		debounce:  logic.NewDebouncer(bounce),
		gate:      logic.NewPumpGate(pumpOn),
		clock:     clock,
		stop:      stop,
		events:    l.doorEvents,
		reward:    l.reward,
		consumed:  l.consumed,
	}
}

// Step applies pending reward signals, takes one door sample at now and
// drives the pump accordingly.
func (m *doorMonitor) Step(now time.Time) error {
	for {
		sig, ok := m.reward.TryRecv()
		if !ok {
			break
		}
		if sig.Engaged {
			m.seq = sig.Seq
			m.gate.Engage(now)
			continue
		}
		if m.gate.Disengage() == logic.PumpStop {
			if err := m.setPump(false, now); err != nil {
				return err
			}
		}
	}

	level, err := m.door.Read()
	if err != nil {
		return fmt.Errorf("read door pin: %w", err)
	}
	if tr, ok := m.debounce.Sample(level, now); ok {
		m.events.Send(event.Event{
			Source:  event.SourceDoor,
			Kind:    event.KindPinTransition,
			State:   tr.State,
			Elapsed: m.clock.Elapsed(tr.Time),
		})
	}

	state, _ := m.debounce.State()
	switch m.gate.Evaluate(now, state == m.openLevel) {
	case logic.PumpStart:
		if err := m.setPump(true, now); err != nil {
			m.gate.Disengage()
			return err
		}
	case logic.PumpStop:
		if err := m.setPump(false, now); err != nil {
			return err
		}
		if !m.consumed.Offer(consumed{Seq: m.seq}) {
			log.Printf("door: consumed notification dropped (seq %d)", m.seq)
		}
	}
	return nil
}

func (m *doorMonitor) setPump(on bool, now time.Time) error {
	if err := m.pump.Write(on); err != nil {
		return fmt.Errorf("write pump pin: %w", err)
	}
	kind := event.KindPumpOff
	if on {
		kind = event.KindPumpOn
	}
	m.events.Send(event.Event{
		Source:  event.SourceDoor,
		Kind:    kind,
		Elapsed: m.clock.Elapsed(now),
	})
	return nil
}

// Run samples on every tick until stop is set or a pin fails. The pump is
// always left low on return.
func (m *doorMonitor) Run(tick <-chan time.Time) (err error) {
	defer func() { m.close(err) }()

	for {
		select {
		case <-m.stop.Done():
			return nil
		case <-tick:
			if m.stop.IsSet() {
				return nil
			}
			if err := m.Step(m.clock.Now()); err != nil {
				return err
			}
		}
	}
}

func (m *doorMonitor) close(cause error) {
	now := m.clock.Now()
	wasOn := m.gate.Disengage() == logic.PumpStop
	err := errors.Join(m.pump.Write(false), m.pump.Close())
	if err != nil {
		log.Printf("door: release pump: %v", err)
	}
	if wasOn {
		m.events.Send(event.Event{
			Source:  event.SourceDoor,
			Kind:    event.KindPumpOff,
			Elapsed: m.clock.Elapsed(now),
		})
	}
	// The fault record goes last so the logger sees it as the stream's end.
	if cause != nil {
		log.Printf("door: %v", cause)
		m.events.Send(event.Event{
			Source:  event.SourceDoor,
			Kind:    event.KindChannelError,
			Detail:  cause.Error(),
			Elapsed: m.clock.Elapsed(now),
		})
	}
	if err := m.door.Close(); err != nil {
		log.Printf("door: close pin: %v", err)
	}
	m.consumed.Close()
	m.events.Close()
}
