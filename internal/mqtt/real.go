package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/behavior-rig/internal/event"
)

// BacklogSize is how many messages are held while the broker is unreachable.
const BacklogSize = 1000

// RealPublisher publishes to an MQTT broker. Messages published while the
// connection is down are held and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	rigID  string

	mu      sync.Mutex
	pending *backlog
}

// NewRealPublisher connects to broker. The connection is retried in the
// background, so a broker that is down at startup is not fatal.
func NewRealPublisher(broker, rigID string) (*RealPublisher, error) {
	p := &RealPublisher{
		rigID:   rigID,
		pending: newBacklog(BacklogSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("behavior-rig-"+rigID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem(rigID), will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.replay() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// Publish sends e at QoS 0 without waiting for the network.
func (p *RealPublisher) Publish(e event.Event) error {
	payload, err := FormatPayload(e)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.send(outbound{topic: TopicEvents(p.rigID), payload: payload})
	return nil
}

// PublishSystem sends s at QoS 1 and waits for the broker when connected.
func (p *RealPublisher) PublishSystem(s SystemEvent) error {
	payload, err := FormatSystemPayload(s)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	m := outbound{topic: TopicSystem(p.rigID), payload: payload, qos: 1, retained: s.Retained}
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return nil
	}
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

func (p *RealPublisher) send(m outbound) {
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return
	}
	p.client.Publish(m.topic, m.qos, m.retained, m.payload)
}

func (p *RealPublisher) hold(m outbound) {
	p.mu.Lock()
	p.pending.add(m)
	p.mu.Unlock()
}

func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs, dropped := p.pending.take()
	p.mu.Unlock()

	if dropped > 0 {
		log.Printf("mqtt: %d messages dropped while disconnected", dropped)
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: connected, replaying %d messages", len(msgs))
	}
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.client.Publish(TopicSystem(p.rigID), 1, false, mustSystemPayload("RECONNECTED"))
}

func mustSystemPayload(name string) []byte {
	b, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: name})
	if err != nil {
		log.Printf("mqtt: format %s: %v", name, err)
	}
	return b
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects, waiting up to one second for in-flight messages.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
