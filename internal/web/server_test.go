package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		RigID:         "cage-3",
		Results:       "/data/results.txt",
		PollMs:        1,
		WheelBounceMs: 1,
		DoorBounceMs:  1,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":8080",
		Protocol:      []string{"revolutions: 5-5", "reward order: cyclic"},
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Observe(event.Event{Source: event.SourceCoordinator, Kind: event.KindImageShown, Image: "vertical_bw.png", Phase: event.PhaseReward, Elapsed: 4})
	tr.Observe(event.Event{Source: event.SourceDoor, Kind: event.KindPumpOn, Elapsed: 4.2})
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Phase != "Reward" || sj.Status.Pump != "ON" || sj.Status.Image != "vertical_bw.png" {
		t.Errorf("state: %+v", sj.Status)
	}
	if !sj.Status.MQTT.Connected || sj.Status.RigID != "cage-3" {
		t.Errorf("mqtt/rig: %+v %q", sj.Status.MQTT, sj.Status.RigID)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Observe(event.Event{Source: event.SourceCoordinator, Kind: event.KindImageShown, Phase: event.PhaseControl})

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		if resp.StatusCode != 200 {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: Content-Type %q", path, ct)
		}
		for _, want := range []string{"Behavior Rig cage-3", "(blank)", "revolutions: 5-5", "running", "tcp://192.168.1.200:1883"} {
			if !strings.Contains(body, want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestHTMLShowsTermination(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Observe(event.Event{Source: event.SourceWheel, Kind: event.KindChannelError, Detail: "gone"})
	tr.Finish("keypress", true)

	_, body := get(t, ts.URL+"/")
	if !strings.Contains(body, "stopped (keypress)") || !strings.Contains(body, "degraded") {
		t.Errorf("termination not shown:\n%s", body)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, _ := get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Observe(event.Event{Source: event.SourceWheel, Kind: event.KindPinTransition, State: true, Elapsed: 1})
	tr.Observe(event.Event{Source: event.SourceWheel, Kind: event.KindPinTransition, State: false, Elapsed: 1.5})
	tr.Observe(event.Event{Source: event.SourceWheel, Kind: event.KindPinTransition, State: true, Elapsed: 2})

	resp, body := get(t, ts.URL+"/metrics")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	for _, want := range []string{
		`behavior_rig_wheel_revolutions_total{rig="cage-3"} 2`,
		`behavior_rig_running{rig="cage-3"} 1`,
		`behavior_rig_pump_on{rig="cage-3"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	_, before := get(t, ts.URL+"/index.json")
	tr.Observe(event.Event{Source: event.SourceDoor, Kind: event.KindPumpOn})
	_, after := get(t, ts.URL+"/index.json")

	if !strings.Contains(before, `"pump": "OFF"`) || !strings.Contains(after, `"pump": "ON"`) {
		t.Errorf("pump change not reflected:\nbefore: %s\nafter: %s", before, after)
	}
}

func TestResultsEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	content := "Date: 2026-01-01T00:00:00Z\nWheel - State: High, Time: 1.000000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := status.NewTracker(time.Now(), status.Config{RigID: "cage-3", Results: path})
	ts := httptest.NewServer(New(":0", tr).Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/results.txt")
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if body != content {
		t.Errorf("body: got %q, want %q", body, content)
	}

	os.Remove(path)
	if resp, _ := get(t, ts.URL+"/results.txt"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", resp.StatusCode)
	}
}
