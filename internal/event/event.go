// Package event defines the records exchanged between the rig's concurrent
// contexts and their line-oriented serialization in the results file.
package event

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Source identifies the context that produced an event.
type Source string

const (
	SourceWheel       Source = "wheel"
	SourceDoor        Source = "door"
	SourceCoordinator Source = "coordinator"
)

// Kind is the type of an event.
type Kind string

const (
	KindPinTransition Kind = "PIN_TRANSITION"
	KindPumpOn        Kind = "PUMP_ON"
	KindPumpOff       Kind = "PUMP_OFF"
	KindImageShown    Kind = "IMAGE_SHOWN"
	KindChannelError  Kind = "CHANNEL_ERROR"
)

// Phase names the stimulus phase an image was shown in.
type Phase string

const (
	PhaseControl Phase = "Control"
	PhaseReward  Phase = "Reward"
)

// Event is an immutable record of something observed during a run.
// Elapsed is seconds since the experiment epoch.
type Event struct {
	Source  Source
	Kind    Kind
	Elapsed float64

	// State is the new pin level for KindPinTransition.
	State bool

	// Image and Phase are set for KindImageShown. An empty Image means the
	// display was blanked.
	Image string
	Phase Phase

	// Detail describes a KindChannelError.
	Detail string
}

// Line prefixes used in the results file.
const (
	prefixWheel = "Wheel"
	prefixDoor  = "Door"
	prefixPump  = "Pump"
	prefixImage = "Image"
	prefixError = "Error"

	timeField = ", Time: "

	// BlankImage is written in place of an empty image name.
	BlankImage = "(blank)"
)

// Format returns the results-file line for e, without a line terminator.
func Format(e Event) string {
	t := strconv.FormatFloat(e.Elapsed, 'f', 6, 64)
	switch e.Kind {
	case KindPinTransition:
		prefix := prefixDoor
		if e.Source == SourceWheel {
			prefix = prefixWheel
		}
		return fmt.Sprintf("%s - State: %s%s%s", prefix, levelString(e.State), timeField, t)
	case KindPumpOn:
		return fmt.Sprintf("%s - State: On%s%s", prefixPump, timeField, t)
	case KindPumpOff:
		return fmt.Sprintf("%s - State: Off%s%s", prefixPump, timeField, t)
	case KindImageShown:
		name := e.Image
		if name == "" {
			name = BlankImage
		}
		return fmt.Sprintf("%s - Name: %s, Phase: %s%s%s", prefixImage, name, e.Phase, timeField, t)
	case KindChannelError:
		return fmt.Sprintf("%s - Source: %s, Detail: %s%s%s", prefixError, e.Source, e.Detail, timeField, t)
	default:
		return fmt.Sprintf("%s - Source: %s, Detail: unknown kind %q%s%s", prefixError, e.Source, e.Kind, timeField, t)
	}
}

// ParseLine parses a line produced by Format. Lines that are not event
// records (header, termination marker) return ok=false.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	head, rest, found := strings.Cut(line, " - ")
	if !found {
		return Event{}, false
	}
	i := strings.LastIndex(rest, timeField)
	if i < 0 {
		return Event{}, false
	}
	elapsed, err := strconv.ParseFloat(rest[i+len(timeField):], 64)
	if err != nil {
		return Event{}, false
	}
	fields := parseFields(rest[:i])

	e := Event{Elapsed: elapsed}
	switch head {
	case prefixWheel, prefixDoor:
		e.Kind = KindPinTransition
		e.Source = SourceDoor
		if head == prefixWheel {
			e.Source = SourceWheel
		}
		switch fields["State"] {
		case "High":
			e.State = true
		case "Low":
		default:
			return Event{}, false
		}
	case prefixPump:
		e.Source = SourceDoor
		switch fields["State"] {
		case "On":
			e.Kind = KindPumpOn
		case "Off":
			e.Kind = KindPumpOff
		default:
			return Event{}, false
		}
	case prefixImage:
		e.Source = SourceCoordinator
		e.Kind = KindImageShown
		e.Image = fields["Name"]
		if e.Image == BlankImage {
			e.Image = ""
		}
		e.Phase = Phase(fields["Phase"])
	case prefixError:
		e.Kind = KindChannelError
		e.Source = Source(fields["Source"])
		e.Detail = fields["Detail"]
	default:
		return Event{}, false
	}
	return e, true
}

// parseFields splits "Key: value, Key: value" pairs. Detail is always the
// last field and may itself contain commas.
func parseFields(s string) map[string]string {
	out := make(map[string]string)
	for s != "" {
		key, rest, ok := strings.Cut(s, ": ")
		if !ok {
			break
		}
		if key == "Detail" {
			out[key] = rest
			break
		}
		val, next, more := strings.Cut(rest, ", ")
		out[key] = val
		if !more {
			break
		}
		s = next
	}
	return out
}

// SortByElapsed orders events chronologically. Events from different
// producers arrive at the logger in no particular order.
func SortByElapsed(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Elapsed < events[j].Elapsed
	})
}

func levelString(high bool) string {
	if high {
		return "High"
	}
	return "Low"
}
