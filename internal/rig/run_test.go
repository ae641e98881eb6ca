package rig

import (
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/behavior-rig/internal/display"
	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/gpio"
	"github.com/sweeney/behavior-rig/internal/protocol"
)

type testRig struct {
	wheel *gpio.FakeInput
	door  *gpio.FakeInput
	pump  *gpio.FakeOutput
	disp  *display.Fake
}

func newTestRig(wheel, door *gpio.FakeInput) testRig {
	return testRig{wheel: wheel, door: door, pump: gpio.NewFakeOutput(), disp: display.NewFake()}
}

func (r testRig) hardware() Hardware {
	return Hardware{Wheel: r.wheel, Door: r.door, Pump: r.pump, Display: r.disp}
}

func (r testRig) assertReleased(t *testing.T) {
	t.Helper()
	if !r.wheel.Closed() || !r.door.Closed() {
		t.Error("input pins not closed")
	}
	if !r.pump.Closed() || r.pump.Level() {
		t.Errorf("pump: closed=%v level=%v, want closed and low", r.pump.Closed(), r.pump.Level())
	}
	if !r.disp.Closed() {
		t.Error("display not closed")
	}
}

func fastProtocol() protocol.Protocol {
	return protocol.Protocol{
		ControlImages:      []string{"gray.png"},
		RewardImages:       []string{"vertical_bw.png"},
		MinRevolutions:     2,
		MaxRevolutions:     2,
		MaxRewardDuration:  2 * time.Second,
		PumpOnDuration:     50 * time.Millisecond,
		WheelInterval:      5 * time.Second,
		RewardFramePeriod:  20 * time.Millisecond,
		ExperimentDuration: time.Hour,
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.LoggerWait = 10 * time.Millisecond
	cfg.Rand = rand.New(rand.NewSource(1))
	return cfg
}

func resultsPath(t *testing.T) Paths {
	return Paths{Results: filepath.Join(t.TempDir(), "results.txt")}
}

func TestRunStopsOnDuration(t *testing.T) {
	p := fastProtocol()
	p.ExperimentDuration = 200 * time.Millisecond
	r := newTestRig(gpio.NewFakeInput(false), gpio.NewFakeInput(false))
	paths := resultsPath(t)

	out, err := Run(p, NewClock(time.Now), paths, r.hardware(), fastConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Cause != CauseDuration || out.Degraded {
		t.Errorf("outcome: got %+v, want clean duration stop", out)
	}
	if out.Elapsed < 0.2 {
		t.Errorf("elapsed: got %.3f, want >= 0.2", out.Elapsed)
	}
	r.assertReleased(t)

	lines := readLines(t, paths.Results)
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Date: ", "revolutions: 2-2", Separator, "Image - Name: gray.png, Phase: Control, Time: "} {
		if !strings.Contains(joined, want) {
			t.Errorf("results missing %q:\n%s", want, joined)
		}
	}
	if last := lines[len(lines)-1]; !strings.HasPrefix(last, "Successful termination - Cause: experiment duration elapsed, Time: ") {
		t.Errorf("marker: got %q", last)
	}
	if out.Events != len(parseEvents(lines)) {
		t.Errorf("Events: got %d, file has %d", out.Events, len(parseEvents(lines)))
	}
}

func TestRunExternalStop(t *testing.T) {
	r := newTestRig(gpio.NewFakeInput(false), gpio.NewFakeInput(true))
	cfg := fastConfig()
	cfg.Stop = NewStop()

	stopped := make(chan time.Time, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		stopped <- time.Now()
		cfg.Stop.Set("SIGTERM")
	}()

	out, err := Run(fastProtocol(), NewClock(time.Now), resultsPath(t), r.hardware(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d := time.Since(<-stopped); d > time.Second {
		t.Errorf("Run returned %v after stop", d)
	}
	if out.Cause != "SIGTERM" {
		t.Errorf("cause: got %q, want SIGTERM", out.Cause)
	}
	r.assertReleased(t)
}

// pumpWatcher stops the run once the first reward has been consumed and
// the rig is back in Control.
type pumpWatcher struct {
	mu     sync.Mutex
	stop   *Stop
	pumped bool
}

func (w *pumpWatcher) Observe(e event.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case e.Kind == event.KindPumpOff:
		w.pumped = true
	case e.Kind == event.KindImageShown && e.Phase == event.PhaseControl && w.pumped:
		w.stop.Set("test")
	}
}

func TestRunRewardCycle(t *testing.T) {
	// Two revolutions; the long first low gives the coordinator time to arm
	// the wheel.
	var script []bool
	for _, lows := range []int{100, 30} {
		for n := 0; n < lows; n++ {
			script = append(script, false)
		}
		for n := 0; n < 30; n++ {
			script = append(script, true)
		}
	}
	script = append(script, false)

	r := newTestRig(gpio.NewFakeInput(script...), gpio.NewFakeInput(true))
	cfg := fastConfig()
	cfg.Stop = NewStop()
	cfg.Observer = &pumpWatcher{stop: cfg.Stop}
	paths := resultsPath(t)

	go func() {
		time.Sleep(10 * time.Second)
		cfg.Stop.Set("timeout")
	}()

	out, err := Run(fastProtocol(), NewClock(time.Now), paths, r.hardware(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Cause != "test" {
		t.Fatalf("cause: got %q, want the reward cycle to complete", out.Cause)
	}
	r.assertReleased(t)

	events := parseEvents(readLines(t, paths.Results))
	var on, off *event.Event
	rises, rewardImages := 0, 0
	for i := range events {
		e := &events[i]
		switch {
		case e.Source == event.SourceWheel && e.State:
			rises++
		case e.Kind == event.KindImageShown && e.Phase == event.PhaseReward:
			rewardImages++
		case e.Kind == event.KindPumpOn && on == nil:
			on = e
		case e.Kind == event.KindPumpOff && off == nil:
			off = e
		}
	}
	if rises != 2 {
		t.Errorf("wheel rises: got %d, want 2", rises)
	}
	if rewardImages == 0 {
		t.Error("no reward image shown")
	}
	if on == nil || off == nil {
		t.Fatalf("pump events missing: on=%v off=%v", on, off)
	}
	if d := off.Elapsed - on.Elapsed; d <= 0.05 {
		t.Errorf("pump ran %.3fs, want > 0.05", d)
	}
}

func TestRunSensorFaultDegrades(t *testing.T) {
	wheel := gpio.NewFakeInput(false)
	wheel.SetError(errors.New("line vanished"))
	r := newTestRig(wheel, gpio.NewFakeInput(false))
	p := fastProtocol()
	p.ExperimentDuration = 200 * time.Millisecond
	paths := resultsPath(t)

	out, err := Run(p, NewClock(time.Now), paths, r.hardware(), fastConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Degraded || len(out.Faults) != 1 {
		t.Fatalf("outcome: got %+v, want one fault", out)
	}
	if !strings.Contains(out.Faults[0].Error(), "read wheel pin") {
		t.Errorf("fault: got %v", out.Faults[0])
	}
	if out.Cause != CauseDuration {
		t.Errorf("cause: got %q, want the run to continue to its duration", out.Cause)
	}
	r.assertReleased(t)

	lines := readLines(t, paths.Results)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Error - Source: wheel, Detail: read wheel pin: line vanished") {
		t.Errorf("missing fault record:\n%s", joined)
	}
	if strings.Contains(joined, "channel closed unexpectedly") {
		t.Errorf("fault reported twice:\n%s", joined)
	}
	if last := lines[len(lines)-1]; !strings.HasPrefix(last, "Terminated with errors - Cause: experiment duration elapsed, Errors: 1,") {
		t.Errorf("marker: got %q", last)
	}
}

func TestRunRejectsInvalidProtocol(t *testing.T) {
	p := fastProtocol()
	p.RewardImages = nil
	r := newTestRig(gpio.NewFakeInput(false), gpio.NewFakeInput(false))

	_, err := Run(p, NewClock(time.Now), resultsPath(t), r.hardware(), fastConfig())
	var fe *protocol.FieldError
	if !errors.As(err, &fe) || fe.Field != "reward_images" {
		t.Fatalf("Run: got %v, want reward_images field error", err)
	}
	r.assertReleased(t)
}

func TestRunResultsFileError(t *testing.T) {
	r := newTestRig(gpio.NewFakeInput(false), gpio.NewFakeInput(false))
	paths := Paths{Results: filepath.Join(t.TempDir(), "missing", "results.txt")}

	if _, err := Run(fastProtocol(), NewClock(time.Now), paths, r.hardware(), fastConfig()); err == nil {
		t.Fatal("expected error for unwritable results path")
	}
	r.assertReleased(t)
}
