package session

import (
	"log/slog"
	"time"
)

// EventKind classifies session events.
type EventKind string

const (
	// EventStateChange is emitted on every state transition.
	EventStateChange EventKind = "state_change"

	// EventReboot is emitted when the watchdog gives up on the broker.
	EventReboot EventKind = "reboot"
)

// Event describes something that happened to the session.
type Event struct {
	Time   time.Time        `json:"time"`
	Kind   EventKind        `json:"kind"`
	From   State            `json:"from"`
	To     State            `json:"to"`
	Reason DisconnectReason `json:"reason"`
}

// Observer is notified of session events on the loop goroutine.
// Implementations must not block.
type Observer interface {
	OnSessionEvent(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// OnSessionEvent calls f(e).
func (f ObserverFunc) OnSessionEvent(e Event) {
	f(e)
}

// AddObserver registers o for every subsequent event.
func (c *Client) AddObserver(o Observer) {
	if o == nil {
		return
	}
	c.observers = append(c.observers, o)
}

func (c *Client) emit(e Event) {
	for _, o := range c.observers {
		c.notifyObserver(o, e)
	}
}

func (c *Client) notifyObserver(o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("session observer panic recovered", "panic", r)
		}
	}()
	o.OnSessionEvent(e)
}

// Counters are running totals since the client was created.
type Counters struct {
	Connects         uint64 `json:"connects"`
	Disconnects      uint64 `json:"disconnects"`
	BirthsSent       uint64 `json:"births_sent"`
	Published        uint64 `json:"published"`
	PublishFailed    uint64 `json:"publish_failed"`
	MessagesReceived uint64 `json:"messages_received"`
}

// Status is a point-in-time copy of the session, safe to hand to other
// goroutines.
type Status struct {
	State                string               `json:"state"`
	Broker               string               `json:"broker"`
	ResolvedIP           string               `json:"resolved_ip,omitempty"`
	ClientID             string               `json:"client_id"`
	TopicPrefix          string               `json:"topic_prefix"`
	LastConnected        time.Time            `json:"last_connected"`
	LastDisconnect       time.Time            `json:"last_disconnect"`
	LastDisconnectReason string               `json:"last_disconnect_reason"`
	Availability         Availability         `json:"availability"`
	Discovery            DiscoveryInfo        `json:"discovery"`
	Subscriptions        []SubscriptionStatus `json:"subscriptions"`
	Components           int                  `json:"components"`
	Counters             Counters             `json:"counters"`
}

// Snapshot returns a copy of the session status.
func (c *Client) Snapshot() Status {
	s := Status{
		State:                c.state.String(),
		Broker:               c.brokerAddress(),
		ClientID:             c.creds.ClientID,
		TopicPrefix:          c.topicPrefix,
		LastConnected:        c.lastConnected,
		LastDisconnect:       c.lastDisconnect,
		LastDisconnectReason: c.lastReason.String(),
		Availability:         c.availability,
		Discovery:            c.discovery,
		Subscriptions:        c.Subscriptions(),
		Components:           len(c.components),
		Counters:             c.stats,
	}
	if c.ip.IsValid() {
		s.ResolvedIP = c.ip.String()
	}
	return s
}

// DumpConfig logs the session configuration.
func (c *Client) DumpConfig() {
	c.logger.Info("mqtt session config",
		"broker", c.brokerAddress(),
		"username", c.creds.Username,
		"client_id", c.creds.ClientID,
		"topic_prefix", c.topicPrefix,
		"keepalive", c.keepAlive,
		"reboot_timeout", c.rebootTimeout,
		"subscriptions", len(c.subscriptions),
	)
	if c.discovery.Enabled() {
		c.logger.Info("mqtt discovery",
			"prefix", c.discovery.Prefix,
			"retain", c.discovery.Retain,
			"clean", c.discovery.Clean,
		)
	}
	c.logger.Info("mqtt session messages",
		messageAttr("birth", c.birth),
		messageAttr("last_will", c.lastWill),
		messageAttr("shutdown", c.shutdown),
		messageAttr("log", c.logMessage),
		"log_level", c.logLevel.String(),
	)
}

func messageAttr(name string, m Message) slog.Attr {
	if !m.Enabled() {
		return slog.String(name, "disabled")
	}
	return slog.Group(name,
		slog.String("topic", m.Topic),
		slog.Int("qos", int(m.QoS)),
		slog.Bool("retain", m.Retain),
	)
}
