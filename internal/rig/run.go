// Package rig runs one unattended experiment: four concurrent contexts (wheel
// monitor, door monitor, stimulus coordinator and result logger) linked only
// by message pipes and a shared stop flag.
package rig

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sweeney/behavior-rig/internal/display"
	"github.com/sweeney/behavior-rig/internal/gpio"
	"github.com/sweeney/behavior-rig/internal/protocol"
)

// Hardware is the set of devices a run drives. Run takes ownership and
// closes every one of them before returning.
type Hardware struct {
	Wheel   gpio.Input
	Door    gpio.Input
	Pump    gpio.Output
	Display display.Display
}

// Paths locates the run's output files.
type Paths struct {
	Results string
}

// Config tunes the runtime. Zero fields take the DefaultConfig value.
type Config struct {
	WheelPoll       time.Duration
	DoorPoll        time.Duration
	CoordinatorPoll time.Duration

	WheelBounce time.Duration
	DoorBounce  time.Duration

	// DoorOpenLevel is the debounced door level that means "open".
	DoorOpenLevel bool

	LoggerWait  time.Duration
	LoggerDrain time.Duration

	EventBuffer   int
	ControlBuffer int

	// Rand drives revolution targets and image choice. Seeded from the
	// clock when nil.
	Rand *rand.Rand

	// Stop lets the caller end the run, e.g. on a signal. Created when nil.
	Stop *Stop

	Mirror   Mirror
	Observer Observer
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		WheelPoll:       time.Millisecond,
		DoorPoll:        time.Millisecond,
		CoordinatorPoll: 5 * time.Millisecond,
		WheelBounce:     time.Millisecond,
		DoorBounce:      time.Millisecond,
		DoorOpenLevel:   true,
		LoggerWait:      100 * time.Millisecond,
		LoggerDrain:     time.Second,
		EventBuffer:     4096,
		ControlBuffer:   16,
	}
}

func (c Config) withDefaults(clock Clock) Config {
	d := DefaultConfig()
	if c.WheelPoll <= 0 {
		c.WheelPoll = d.WheelPoll
	}
	if c.DoorPoll <= 0 {
		c.DoorPoll = d.DoorPoll
	}
	if c.CoordinatorPoll <= 0 {
		c.CoordinatorPoll = d.CoordinatorPoll
	}
	if c.WheelBounce <= 0 {
		c.WheelBounce = d.WheelBounce
	}
	if c.DoorBounce <= 0 {
		c.DoorBounce = d.DoorBounce
	}
	if c.LoggerWait <= 0 {
		c.LoggerWait = d.LoggerWait
	}
	if c.LoggerDrain <= 0 {
		c.LoggerDrain = d.LoggerDrain
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.ControlBuffer <= 0 {
		c.ControlBuffer = d.ControlBuffer
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(clock.Epoch().UnixNano()))
	}
	if c.Stop == nil {
		c.Stop = NewStop()
	}
	return c
}

// Outcome summarizes a finished run.
type Outcome struct {
	Cause    string
	Degraded bool    // a context failed or an error record was written
	Faults   []error // fatal errors of individual contexts
	Elapsed  float64 // seconds from epoch to return
	Events   int     // event records written
}

// Run executes one experiment and blocks until every context has exited.
// The coordinator, and therefore the display, is driven from the calling
// goroutine.
//
// Only configuration and results-file errors are returned; a sensor failure
// during the run ends that context, is recorded in the results file and
// reported in Outcome.Faults while the rest of the run continues.
func Run(proto protocol.Protocol, clock Clock, paths Paths, hw Hardware, cfg Config) (Outcome, error) {
	if err := proto.Validate(); err != nil {
		closeHardware(hw)
		return Outcome{}, err
	}
	cfg = cfg.withDefaults(clock)
	stop := cfg.Stop
	l := newLinks(cfg.EventBuffer, cfg.ControlBuffer)

	rl, err := openResultLogger(paths.Results, Header(clock.Epoch(), proto.Summary()), clock, stop, l, cfg.LoggerWait, cfg.LoggerDrain)
	if err != nil {
		closeHardware(hw)
		return Outcome{}, err
	}
	rl.mirror = cfg.Mirror
	rl.observer = cfg.Observer

	wheel := newWheelMonitor(hw.Wheel, cfg.WheelBounce, proto.WheelInterval, clock, stop, l)
	door := newDoorMonitor(hw.Door, hw.Pump, cfg.DoorOpenLevel, cfg.DoorBounce, proto.PumpOnDuration, clock, stop, l)
	coord := newCoordinator(proto, hw.Display, cfg.Rand, clock, stop, l)

	log.Printf("rig: starting, results=%s", paths.Results)

	var (
		wg        sync.WaitGroup
		wheelErr  error
		doorErr   error
		summary   LoggerSummary
		wheelTick = time.NewTicker(cfg.WheelPoll)
		doorTick  = time.NewTicker(cfg.DoorPoll)
		coordTick = time.NewTicker(cfg.CoordinatorPoll)
	)
	defer wheelTick.Stop()
	defer doorTick.Stop()
	defer coordTick.Stop()

	wg.Add(3)
	go func() {
		defer wg.Done()
		summary = rl.Run()
	}()
	go func() {
		defer wg.Done()
		wheelErr = wheel.Run(wheelTick.C)
	}()
	go func() {
		defer wg.Done()
		doorErr = door.Run(doorTick.C)
	}()

	coord.Run(coordTick.C)
	wg.Wait()

	if err := hw.Display.Close(); err != nil {
		log.Printf("rig: close display: %v", err)
	}

	out := Outcome{
		Cause:   stop.Cause(),
		Elapsed: clock.Elapsed(clock.Now()),
		Events:  summary.Written,
	}
	if wheelErr != nil {
		out.Faults = append(out.Faults, wheelErr)
	}
	if doorErr != nil {
		out.Faults = append(out.Faults, doorErr)
	}
	out.Degraded = len(out.Faults) > 0 || summary.Errors > 0
	log.Printf("rig: stopped, cause=%q events=%d degraded=%v", out.Cause, out.Events, out.Degraded)

	if summary.Err != nil {
		return out, fmt.Errorf("write results file: %w", summary.Err)
	}
	return out, nil
}

func closeHardware(hw Hardware) {
	var errs []error
	if hw.Wheel != nil {
		errs = append(errs, hw.Wheel.Close())
	}
	if hw.Door != nil {
		errs = append(errs, hw.Door.Close())
	}
	if hw.Pump != nil {
		errs = append(errs, hw.Pump.Close())
	}
	if hw.Display != nil {
		errs = append(errs, hw.Display.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("rig: release hardware: %v", err)
	}
}
