package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	RigID         string     `json:"rig_id"`
	Running       bool       `json:"running"`
	Cause         string     `json:"cause,omitempty"`
	Degraded      bool       `json:"degraded"`
	Phase         string     `json:"phase"`
	Image         string     `json:"image"`
	Wheel         string     `json:"wheel"`
	Door          string     `json:"door"`
	Pump          string     `json:"pump"`
	Elapsed       float64    `json:"elapsed_seconds"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports broker connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON form of Counts.
type CountsJSON struct {
	WheelRevolutions int `json:"wheel_revolutions"`
	DoorOpenings     int `json:"door_openings"`
	PumpRuns         int `json:"pump_runs"`
	RewardPhases     int `json:"reward_phases"`
	Images           int `json:"images"`
	Errors           int `json:"errors"`
}

// ConfigJSON is the JSON form of Config.
type ConfigJSON struct {
	Results       string   `json:"results"`
	PollMs        float64  `json:"poll_ms"`
	WheelBounceMs float64  `json:"wheel_bounce_ms"`
	DoorBounceMs  float64  `json:"door_bounce_ms"`
	Broker        string   `json:"broker,omitempty"`
	HTTPAddr      string   `json:"http_addr"`
	Protocol      []string `json:"protocol"`
}

func level(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	image := snap.Image
	if image == "" {
		image = event.BlankImage
	}
	return StatusInner{
		RigID:         snap.Config.RigID,
		Running:       snap.Running,
		Cause:         snap.Cause,
		Degraded:      snap.Degraded,
		Phase:         string(snap.Phase),
		Image:         image,
		Wheel:         level(snap.Wheel),
		Door:          level(snap.Door),
		Pump:          onOff(snap.Pump),
		Elapsed:       snap.Elapsed,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			WheelRevolutions: snap.Counts.WheelRevolutions,
			DoorOpenings:     snap.Counts.DoorOpenings,
			PumpRuns:         snap.Counts.PumpRuns,
			RewardPhases:     snap.Counts.RewardPhases,
			Images:           snap.Counts.Images,
			Errors:           snap.Counts.Errors,
		},
		Config: ConfigJSON{
			Results:       snap.Config.Results,
			PollMs:        snap.Config.PollMs,
			WheelBounceMs: snap.Config.WheelBounceMs,
			DoorBounceMs:  snap.Config.DoorBounceMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Protocol:      snap.Config.Protocol,
		},
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT lifecycle
// notice.
func FormatStatusEvent(snap Snapshot, name, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = name
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
