// Package mqtt mirrors rig events and lifecycle notices to an MQTT broker.
// The results file remains the record of truth; publishing is best-effort.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
)

// TopicPrefix is prepended to the rig ID in every topic.
const TopicPrefix = "behavior/rig/"

// TopicEvents returns the topic carrying rig events.
func TopicEvents(rigID string) string {
	return TopicPrefix + rigID + "/events"
}

// TopicSystem returns the topic carrying lifecycle notices.
func TopicSystem(rigID string) string {
	return TopicPrefix + rigID + "/system"
}

// Publisher publishes rig events and lifecycle notices.
type Publisher interface {
	// Publish sends a rig event. It must not block the caller for long and
	// a failure must not end the run.
	Publish(e event.Event) error

	// PublishSystem sends a lifecycle notice.
	PublishSystem(s SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle notice such as STARTUP or SHUTDOWN.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // STARTUP, SHUTDOWN, RECONNECTED
	Reason     string // termination cause or signal, shutdown only
	RawPayload []byte // pre-rendered JSON; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the JSON body published for a rig event.
type Payload struct {
	Rig EventPayload `json:"rig"`
}

// EventPayload carries one event. Line is the exact results-file record.
type EventPayload struct {
	Elapsed float64 `json:"elapsed"`
	Source  string  `json:"source"`
	Kind    string  `json:"kind"`
	State   string  `json:"state,omitempty"`
	Image   string  `json:"image,omitempty"`
	Phase   string  `json:"phase,omitempty"`
	Detail  string  `json:"detail,omitempty"`
	Line    string  `json:"line"`
}

// FormatPayload renders the JSON body for e.
func FormatPayload(e event.Event) ([]byte, error) {
	p := EventPayload{
		Elapsed: e.Elapsed,
		Source:  string(e.Source),
		Kind:    string(e.Kind),
		Line:    event.Format(e),
	}
	switch e.Kind {
	case event.KindPinTransition:
		p.State = "LOW"
		if e.State {
			p.State = "HIGH"
		}
	case event.KindImageShown:
		p.Image = e.Image
		if p.Image == "" {
			p.Image = event.BlankImage
		}
		p.Phase = string(e.Phase)
	case event.KindChannelError:
		p.Detail = e.Detail
	}
	return json.Marshal(Payload{Rig: p})
}

// SystemPayload is the JSON body for simple lifecycle notices.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner holds the notice fields.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload renders the JSON body for s, or returns s.RawPayload
// when set.
func FormatSystemPayload(s SystemEvent) ([]byte, error) {
	if s.RawPayload != nil {
		return s.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
			Event:     s.Event,
			Reason:    s.Reason,
		},
	})
}
