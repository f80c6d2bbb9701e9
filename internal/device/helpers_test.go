package device

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

type published struct {
	topic   string
	payload string
	qos     byte
	retain  bool
}

// fakePublisher stands in for the session.
type fakePublisher struct {
	connected    bool
	prefix       string
	discovery    session.DiscoveryInfo
	availability session.Availability

	published []published
	handlers  map[string][]session.MessageHandler
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		connected: true,
		prefix:    "kitchen",
		discovery: session.DiscoveryInfo{Prefix: "homeassistant", Retain: true},
		availability: session.Availability{
			Topic:               "kitchen/status",
			PayloadAvailable:    "online",
			PayloadNotAvailable: "offline",
		},
		handlers: make(map[string][]session.MessageHandler),
	}
}

func (p *fakePublisher) Publish(topic, payload string, qos byte, retain bool) bool {
	if !p.connected {
		return false
	}
	p.published = append(p.published, published{topic, payload, qos, retain})
	return true
}

func (p *fakePublisher) PublishMessage(m session.Message) bool {
	return p.Publish(m.Topic, m.Payload, m.QoS, m.Retain)
}

func (p *fakePublisher) PublishJSON(topic string, build session.JSONBuilder, qos byte, retain bool) bool {
	payload, err := session.BuildJSON(build)
	if err != nil {
		return false
	}
	return p.Publish(topic, payload, qos, retain)
}

func (p *fakePublisher) Subscribe(topic string, h session.MessageHandler, _ byte) {
	p.handlers[topic] = append(p.handlers[topic], h)
}

func (p *fakePublisher) SubscribeJSON(string, session.JSONHandler, byte) {}

func (p *fakePublisher) IsConnected() bool                    { return p.connected }
func (p *fakePublisher) TopicPrefix() string                  { return p.prefix }
func (p *fakePublisher) Availability() session.Availability   { return p.availability }
func (p *fakePublisher) DiscoveryInfo() session.DiscoveryInfo { return p.discovery }

func (p *fakePublisher) deliver(topic, payload string) {
	for _, h := range p.handlers[topic] {
		h.OnMessage(topic, payload)
	}
}

func (p *fakePublisher) publishedTo(topic string) []published {
	var out []published
	for _, m := range p.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePublisher) reset() {
	p.published = nil
}

// fakeClock is advanced by hand.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testNode = NodeInfo{ID: "kitchen", Name: "Kitchen Node", Version: "1.2.0"}
