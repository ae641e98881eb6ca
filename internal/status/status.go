// Package status tracks live rig state for the HTTP status page, the
// metrics endpoint and MQTT lifecycle notices.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
)

// Config is the runtime configuration shown on the status page.
type Config struct {
	RigID         string
	Results       string
	PollMs        float64
	WheelBounceMs float64
	DoorBounceMs  float64
	Broker        string
	HTTPAddr      string
	Protocol      []string // protocol summary lines
}

// Counts tallies the events seen so far.
type Counts struct {
	WheelRevolutions int
	DoorOpenings     int
	PumpRuns         int
	RewardPhases     int
	Images           int
	Errors           int
}

// Snapshot is a point-in-time copy of rig state, safe to use after the lock
// is released.
type Snapshot struct {
	Phase   event.Phase
	Image   string
	Wheel   bool
	Door    bool
	Pump    bool
	Counts  Counts
	Elapsed float64 // experiment time of the latest event

	Running  bool
	Cause    string
	Degraded bool

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the time since the run started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds rig state behind an RWMutex. It is fed by the result logger
// as events reach disk.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a running Tracker in the Control phase.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     event.PhaseControl,
			Running:   true,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Observe folds e into the tracked state.
func (t *Tracker) Observe(e event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	if e.Elapsed > s.Elapsed {
		s.Elapsed = e.Elapsed
	}
	switch e.Kind {
	case event.KindPinTransition:
		if e.Source == event.SourceWheel {
			if e.State && !s.Wheel {
				s.Counts.WheelRevolutions++
			}
			s.Wheel = e.State
		} else {
			if e.State && !s.Door {
				s.Counts.DoorOpenings++
			}
			s.Door = e.State
		}
	case event.KindPumpOn:
		s.Pump = true
		s.Counts.PumpRuns++
	case event.KindPumpOff:
		s.Pump = false
	case event.KindImageShown:
		if e.Phase == event.PhaseReward && s.Phase != event.PhaseReward {
			s.Counts.RewardPhases++
		}
		s.Phase = e.Phase
		s.Image = e.Image
		s.Counts.Images++
	case event.KindChannelError:
		s.Counts.Errors++
		s.Degraded = true
	}
}

// Finish records the end of the run.
func (t *Tracker) Finish(cause string, degraded bool) {
	t.mu.Lock()
	t.snap.Running = false
	t.snap.Cause = cause
	t.snap.Degraded = t.snap.Degraded || degraded
	t.snap.Pump = false
	t.mu.Unlock()
}

// SetMQTTConnected records the broker connection state.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state with Now set to the time of
// the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Config.Protocol = append([]string(nil), t.snap.Config.Protocol...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
