package session

import (
	"fmt"
	"time"
)

// ResubscribeInterval is the wait between attempts to subscribe a topic the
// transport refused.
const ResubscribeInterval = time.Second

// MessageHandler receives messages for a subscribed topic.
type MessageHandler interface {
	OnMessage(topic, payload string)
}

// HandlerFunc adapts a function to the MessageHandler interface.
type HandlerFunc func(topic, payload string)

// OnMessage calls f(topic, payload).
func (f HandlerFunc) OnMessage(topic, payload string) {
	f(topic, payload)
}

// JSONHandler receives messages whose payload decoded to a JSON object.
type JSONHandler interface {
	OnJSONMessage(topic string, obj JSONObject)
}

// JSONHandlerFunc adapts a function to the JSONHandler interface.
type JSONHandlerFunc func(topic string, obj JSONObject)

// OnJSONMessage calls f(topic, obj).
func (f JSONHandlerFunc) OnJSONMessage(topic string, obj JSONObject) {
	f(topic, obj)
}

// RawJSONHandler is a JSONHandler that also needs the payload exactly as it
// arrived. It is called instead of OnJSONMessage.
type RawJSONHandler interface {
	JSONHandler
	OnRawJSONMessage(topic, payload string, obj JSONObject)
}

// JSONMessageHandler wraps h so that it only sees payloads holding a JSON
// object. Other payloads are dropped.
func JSONMessageHandler(h JSONHandler) MessageHandler {
	return jsonDecoder{next: h, logger: noopLogger{}}
}

// jsonDecoder decorates a JSONHandler: payloads that are not a JSON object
// are dropped without calling next.
type jsonDecoder struct {
	next   JSONHandler
	logger Logger
}

func (d jsonDecoder) OnMessage(topic, payload string) {
	obj, err := ParseJSON(payload)
	if err != nil {
		d.logger.Debug("dropping malformed json payload", "topic", topic, "error", err)
		return
	}
	if raw, ok := d.next.(RawJSONHandler); ok {
		raw.OnRawJSONMessage(topic, payload, obj)
		return
	}
	d.next.OnJSONMessage(topic, obj)
}

// subscription is one registry entry. Entries are never removed; several
// entries may share a topic.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler

	subscribed    bool
	resubscribeAt time.Time
}

// SubscriptionStatus is a read-only view of a registry entry.
type SubscriptionStatus struct {
	Topic      string `json:"topic"`
	QoS        byte   `json:"qos"`
	Subscribed bool   `json:"subscribed"`
}

// Subscribe registers handler for messages on topic.
//
// The subscription is sent to the broker straight away when connected and
// on every later connection. Wildcard topics are not supported: incoming
// messages are matched by exact, case-sensitive comparison.
func (c *Client) Subscribe(topic string, handler MessageHandler, qos byte) {
	if handler == nil {
		c.logger.Warn("ignoring subscription without handler", "topic", topic)
		return
	}

	for _, sub := range c.subscriptions {
		if sub.topic == topic {
			c.logger.Debug("topic already has a subscription, both handlers will fire",
				"topic", topic, "qos", qos, "existing_qos", sub.qos)
			break
		}
	}

	sub := &subscription{topic: topic, qos: qos, handler: handler}
	c.subscriptions = append(c.subscriptions, sub)

	if c.state == StateConnected {
		c.trySubscribe(sub, c.now())
	}
}

// SubscribeFunc registers a plain function for messages on topic.
func (c *Client) SubscribeFunc(topic string, fn func(topic, payload string), qos byte) {
	if fn == nil {
		c.Subscribe(topic, nil, qos)
		return
	}
	c.Subscribe(topic, HandlerFunc(fn), qos)
}

// SubscribeJSON registers handler for JSON object messages on topic.
// Payloads that fail to parse are dropped.
func (c *Client) SubscribeJSON(topic string, handler JSONHandler, qos byte) {
	if handler == nil {
		c.Subscribe(topic, nil, qos)
		return
	}
	c.Subscribe(topic, jsonDecoder{next: handler, logger: c.logger}, qos)
}

// SubscribeJSONFunc registers a plain function for JSON object messages on topic.
func (c *Client) SubscribeJSONFunc(topic string, fn func(topic string, obj JSONObject), qos byte) {
	if fn == nil {
		c.Subscribe(topic, nil, qos)
		return
	}
	c.SubscribeJSON(topic, JSONHandlerFunc(fn), qos)
}

// Subscriptions returns the registry in registration order.
func (c *Client) Subscriptions() []SubscriptionStatus {
	out := make([]SubscriptionStatus, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		out = append(out, SubscriptionStatus{
			Topic:      sub.topic,
			QoS:        sub.qos,
			Subscribed: sub.subscribed,
		})
	}
	return out
}

// trySubscribe sends one subscribe request unless the entry is already
// subscribed. A refused request is retried by the tick after
// ResubscribeInterval.
func (c *Client) trySubscribe(sub *subscription, now time.Time) {
	if sub.subscribed {
		return
	}

	sub.subscribed = c.transport.Subscribe(sub.topic, sub.qos)
	sub.resubscribeAt = now
	if !sub.subscribed {
		c.logger.Debug("subscribe not accepted, will retry", "topic", sub.topic, "qos", sub.qos)
	}
}

// resubscribeAll is called on entry to Connected.
func (c *Client) resubscribeAll(now time.Time) {
	for _, sub := range c.subscriptions {
		c.trySubscribe(sub, now)
	}
}

// resubscribeDue retries entries whose retry interval has elapsed.
func (c *Client) resubscribeDue(now time.Time) {
	for _, sub := range c.subscriptions {
		if sub.subscribed {
			continue
		}
		if sub.resubscribeAt.IsZero() || now.Sub(sub.resubscribeAt) > ResubscribeInterval {
			c.trySubscribe(sub, now)
		}
	}
}

// resetSubscriptions marks every entry unsubscribed. Called on disconnect
// and before each new connection attempt.
func (c *Client) resetSubscriptions() {
	for _, sub := range c.subscriptions {
		sub.subscribed = false
		sub.resubscribeAt = time.Time{}
	}
}

// markSubscribeFailed handles a negative subscribe acknowledgement.
func (c *Client) markSubscribeFailed(topic string, now time.Time) {
	for _, sub := range c.subscriptions {
		if sub.topic == topic {
			sub.subscribed = false
			sub.resubscribeAt = now
		}
	}
	c.logger.Warn("broker rejected subscription", "topic", topic)
}

// dispatch delivers one message to every matching handler in registration
// order. A panicking handler is logged and does not stop the others.
func (c *Client) dispatch(topic, payload string) {
	c.stats.MessagesReceived++

	// Handlers may subscribe while we iterate; new entries wait for the
	// next message.
	subs := c.subscriptions
	for _, sub := range subs {
		if sub.topic != topic {
			continue
		}
		c.invoke(sub, topic, payload)
	}
}

func (c *Client) invoke(sub *subscription, topic, payload string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panic recovered",
				"topic", topic,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()
	sub.handler.OnMessage(topic, payload)
}
