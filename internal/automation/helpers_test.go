package automation

import (
	"github.com/nerrad567/gray-logic-node/internal/session"
)

type published struct {
	topic   string
	payload string
	qos     byte
	retain  bool
}

// fakePublisher records publishes and subscriptions.
type fakePublisher struct {
	connected bool
	published []published
	handlers  map[string][]session.MessageHandler
	json      map[string][]session.JSONHandler
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		connected: true,
		handlers:  make(map[string][]session.MessageHandler),
		json:      make(map[string][]session.JSONHandler),
	}
}

func (p *fakePublisher) Publish(topic, payload string, qos byte, retain bool) bool {
	if !p.connected || topic == "" {
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

func (p *fakePublisher) SubscribeJSON(topic string, h session.JSONHandler, _ byte) {
	p.json[topic] = append(p.json[topic], h)
}

func (p *fakePublisher) IsConnected() bool                    { return p.connected }
func (p *fakePublisher) TopicPrefix() string                  { return "node" }
func (p *fakePublisher) Availability() session.Availability   { return session.Availability{} }
func (p *fakePublisher) DiscoveryInfo() session.DiscoveryInfo { return session.DiscoveryInfo{} }

// deliver hands payload to every handler on topic. JSON handlers go through
// the session's decoder.
func (p *fakePublisher) deliver(topic, payload string) {
	for _, h := range p.handlers[topic] {
		h.OnMessage(topic, payload)
	}
	for _, h := range p.json[topic] {
		session.JSONMessageHandler(h).OnMessage(topic, payload)
	}
}

var _ session.Publisher = (*fakePublisher)(nil)
