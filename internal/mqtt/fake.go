package mqtt

import (
	"sync"

	"github.com/sweeney/behavior-rig/internal/event"
)

// FakePublisher records published messages for test assertions. Safe for
// concurrent use, as the result logger publishes from its own goroutine.
type FakePublisher struct {
	mu sync.Mutex

	events         []event.Event
	payloads       [][]byte
	systemEvents   []SystemEvent
	systemPayloads [][]byte

	publishErr       error
	publishSystemErr error
	closed           bool
	connected        bool
}

// NewFakePublisher creates a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{connected: true}
}

// Publish records e.
func (f *FakePublisher) Publish(e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	payload, err := FormatPayload(e)
	if err != nil {
		return err
	}
	f.events = append(f.events, e)
	f.payloads = append(f.payloads, payload)
	return nil
}

// PublishSystem records s.
func (f *FakePublisher) PublishSystem(s SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishSystemErr != nil {
		return f.publishSystemErr
	}
	payload, err := FormatSystemPayload(s)
	if err != nil {
		return err
	}
	f.systemEvents = append(f.systemEvents, s)
	f.systemPayloads = append(f.systemPayloads, payload)
	return nil
}

// SetErrors makes Publish and PublishSystem fail (nil clears).
func (f *FakePublisher) SetErrors(publish, system error) {
	f.mu.Lock()
	f.publishErr, f.publishSystemErr = publish, system
	f.mu.Unlock()
}

// SetConnected controls IsConnected.
func (f *FakePublisher) SetConnected(c bool) {
	f.mu.Lock()
	f.connected = c
	f.mu.Unlock()
}

// IsConnected reports the value set by SetConnected.
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Events returns a copy of the published rig events.
func (f *FakePublisher) Events() []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Event(nil), f.events...)
}

// Payloads returns a copy of the rig event payloads.
func (f *FakePublisher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

// SystemEvents returns a copy of the published lifecycle notices.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SystemPayloads returns a copy of the lifecycle payloads.
func (f *FakePublisher) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayloads...)
}

// Close marks the publisher closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
