package rig

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/gpio"
	"github.com/sweeney/behavior-rig/internal/logic"
)

// wheelMonitor samples the running-wheel sensor, logs every debounced
// transition and notifies the coordinator once per Control phase when the
// revolution target is reached.
type wheelMonitor struct {
	pin      gpio.Input
	debounce *logic.Debouncer
	counter  *logic.RevolutionCounter
	clock    Clock
	stop     *Stop

	events  *Pipe[event.Event]
	phase   *Pipe[phaseChange]
	qualify *Pipe[qualify]

	seq uint64
}

func newWheelMonitor(pin gpio.Input, bounce, interval time.Duration, clock Clock, stop *Stop, l *links) *wheelMonitor {
	return &wheelMonitor{
		pin:      pin,
		debounce: logic.NewDebouncer(bounce),
		counter:  logic.NewRevolutionCounter(interval),
		clock:    clock,
		stop:     stop,
		events:   l.wheelEvents,
		phase:    l.phase,
		qualify:  l.qualify,
	}
}

// Step applies pending phase changes, then takes one sample at now.
func (m *wheelMonitor) Step(now time.Time) error {
	for {
		pc, ok := m.phase.TryRecv()
		if !ok {
			break
		}
		m.seq = pc.Seq
		m.counter.Reset(now, pc.Target, pc.Phase == event.PhaseControl)
	}

	level, err := m.pin.Read()
	if err != nil {
		return fmt.Errorf("read wheel pin: %w", err)
	}
	tr, ok := m.debounce.Sample(level, now)
	if !ok {
		return nil
	}

	m.events.Send(event.Event{
		Source:  event.SourceWheel,
		Kind:    event.KindPinTransition,
		State:   tr.State,
		Elapsed: m.clock.Elapsed(tr.Time),
	})

	if tr.State && m.counter.Revolution(now) {
		if !m.qualify.Offer(qualify{Seq: m.seq, Count: m.counter.Count()}) {
			log.Printf("wheel: qualify notification dropped (seq %d)", m.seq)
		}
	}
	return nil
}

// Run samples on every tick until stop is set or the sensor fails.
func (m *wheelMonitor) Run(tick <-chan time.Time) (err error) {
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

func (m *wheelMonitor) close(cause error) {
	if cause != nil {
		log.Printf("wheel: %v", cause)
		m.events.Send(event.Event{
			Source:  event.SourceWheel,
			Kind:    event.KindChannelError,
			Detail:  cause.Error(),
			Elapsed: m.clock.Elapsed(m.clock.Now()),
		})
	}
	if err := m.pin.Close(); err != nil {
		log.Printf("wheel: close pin: %v", err)
	}
	m.qualify.Close()
	m.events.Close()
}
