package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/behavior-rig/internal/event"
)

func testConfig() Config {
	return Config{
		RigID:         "cage-3",
		Results:       "/data/results.txt",
		PollMs:        1,
		WheelBounceMs: 1,
		DoorBounceMs:  1,
		Broker:        "tcp://localhost:1883",
		HTTPAddr:      ":8080",
		Protocol:      []string{"revolutions: 5-5"},
	}
}

func wheel(high bool, t float64) event.Event {
	return event.Event{Source: event.SourceWheel, Kind: event.KindPinTransition, State: high, Elapsed: t}
}

func door(high bool, t float64) event.Event {
	return event.Event{Source: event.SourceDoor, Kind: event.KindPinTransition, State: high, Elapsed: t}
}

func image(name string, phase event.Phase, t float64) event.Event {
	return event.Event{Source: event.SourceCoordinator, Kind: event.KindImageShown, Image: name, Phase: phase, Elapsed: t}
}

// rewardCycle is the event stream of one consumed reward.
func rewardCycle() []event.Event {
	return []event.Event{
		image("gray.png", event.PhaseControl, 0),
		wheel(true, 1), wheel(false, 1.5),
		wheel(true, 2), wheel(false, 2.5),
		image("vertical_bw.png", event.PhaseReward, 2),
		door(true, 2.2),
		{Source: event.SourceDoor, Kind: event.KindPumpOn, Elapsed: 2.2},
		image("horizontal_bw.png", event.PhaseReward, 3),
		door(false, 3.1),
		{Source: event.SourceDoor, Kind: event.KindPumpOff, Elapsed: 4.21},
		image("gray.png", event.PhaseControl, 4.22),
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if !snap.Running || snap.Phase != event.PhaseControl {
		t.Errorf("initial state: running=%v phase=%s", snap.Running, snap.Phase)
	}
	if snap.Config.RigID != "cage-3" {
		t.Errorf("Config.RigID: got %q", snap.Config.RigID)
	}
}

func TestObserveRewardCycle(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	for _, e := range rewardCycle() {
		tr.Observe(e)
	}

	snap := tr.Snapshot()
	want := Counts{WheelRevolutions: 2, DoorOpenings: 1, PumpRuns: 1, RewardPhases: 1, Images: 4}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}
	if snap.Phase != event.PhaseControl || snap.Image != "gray.png" {
		t.Errorf("phase/image: got %s/%s", snap.Phase, snap.Image)
	}
	if snap.Pump || snap.Door || snap.Wheel {
		t.Errorf("levels: pump=%v door=%v wheel=%v, want all off", snap.Pump, snap.Door, snap.Wheel)
	}
	if snap.Elapsed != 4.22 {
		t.Errorf("Elapsed: got %v, want 4.22", snap.Elapsed)
	}
}

func TestObserveOutOfOrderKeepsLatestElapsed(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Observe(wheel(true, 5))
	tr.Observe(door(true, 3))
	if got := tr.Snapshot().Elapsed; got != 5 {
		t.Errorf("Elapsed: got %v, want 5", got)
	}
}

func TestObserveErrorDegrades(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Observe(event.Event{Source: event.SourceWheel, Kind: event.KindChannelError, Detail: "gone"})

	snap := tr.Snapshot()
	if snap.Counts.Errors != 1 || !snap.Degraded {
		t.Errorf("got errors=%d degraded=%v", snap.Counts.Errors, snap.Degraded)
	}
}

func TestFinish(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Observe(event.Event{Source: event.SourceDoor, Kind: event.KindPumpOn})
	tr.Finish("keypress", false)

	snap := tr.Snapshot()
	if snap.Running || snap.Cause != "keypress" || snap.Pump || snap.Degraded {
		t.Errorf("after Finish: %+v", snap)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	snap := tr.Snapshot()
	snap.Config.Protocol[0] = "mutated"
	snap.Counts.Errors = 99

	again := tr.Snapshot()
	if again.Config.Protocol[0] != "revolutions: 5-5" || again.Counts.Errors != 0 {
		t.Error("Snapshot shares state with the tracker")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, testConfig())
	if up := tr.Snapshot().Uptime(); up < 90*time.Second || up > 95*time.Second {
		t.Errorf("Uptime: got %v, want ~90s", up)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())
	for _, e := range rewardCycle()[:8] {
		tr.Observe(e)
	}
	tr.SetMQTTConnected(true)
	snap := tr.Snapshot()
	snap.Now = start.Add(65 * time.Second)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Phase != "Reward" || s.Pump != "ON" || s.Door != "HIGH" || s.Wheel != "LOW" {
		t.Errorf("state: phase=%s pump=%s door=%s wheel=%s", s.Phase, s.Pump, s.Door, s.Wheel)
	}
	if s.UptimeSeconds != 65 || s.StartTime != "2026-02-01T08:00:00Z" {
		t.Errorf("time: uptime=%d start=%s", s.UptimeSeconds, s.StartTime)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt: %+v", s.MQTT)
	}
	if s.Counts.RewardPhases != 1 || s.Counts.PumpRuns != 1 {
		t.Errorf("counts: %+v", s.Counts)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON must not carry event/reason")
	}
	if len(s.Config.Protocol) != 1 {
		t.Errorf("protocol: %v", s.Config.Protocol)
	}
}

func TestFormatJSONBlankImage(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Observe(image("", event.PhaseControl, 0))
	if !strings.Contains(string(FormatJSON(tr.Snapshot())), `"image": "(blank)"`) {
		t.Error("blank image not rendered as (blank)")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Finish("experiment duration elapsed", true)

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "experiment duration elapsed"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "SHUTDOWN" || s.Reason != "experiment duration elapsed" || s.Running || !s.Degraded {
		t.Errorf("got %+v", s)
	}

	data := FormatStatusEvent(tr.Snapshot(), "STARTUP", "")
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("empty reason should be omitted: %s", data)
	}
}

func TestCollector(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	for _, e := range rewardCycle()[:8] {
		tr.Observe(e)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(tr)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		if got := m.GetLabel()[0].GetValue(); got != "cage-3" {
			t.Errorf("%s: rig label %q", mf.GetName(), got)
		}
		if c := m.GetCounter(); c != nil {
			values[mf.GetName()] = c.GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	want := map[string]float64{
		"behavior_rig_wheel_revolutions_total": 2,
		"behavior_rig_door_openings_total":     1,
		"behavior_rig_pump_runs_total":         1,
		"behavior_rig_reward_phases_total":     1,
		"behavior_rig_pump_on":                 1,
		"behavior_rig_reward_phase":            1,
		"behavior_rig_running":                 1,
		"behavior_rig_mqtt_connected":          0,
		"behavior_rig_elapsed_seconds":         2.5,
	}
	for name, v := range want {
		got, ok := values[name]
		if !ok {
			t.Errorf("%s missing", name)
			continue
		}
		if got != v {
			t.Errorf("%s: got %v, want %v", name, got, v)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, e := range rewardCycle() {
				tr.Observe(e)
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				FormatJSON(tr.Snapshot())
				tr.SetMQTTConnected(n%2 == 0)
			}
		}()
	}
	wg.Wait()
	if got := tr.Snapshot().Counts.PumpRuns; got != 4 {
		t.Errorf("PumpRuns: got %d, want 4", got)
	}
}
