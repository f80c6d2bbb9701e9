package session

import (
	"log/slog"
	"strings"
)

// Publish sends payload to topic.
//
// Returns false without touching the transport when the session is not
// connected, the topic is empty, qos is above 2 or the payload is larger
// than the configured maximum. Otherwise returns whether the transport
// accepted the message. Never blocks.
func (c *Client) Publish(topic, payload string, qos byte, retain bool) bool {
	ok := c.publish(topic, payload, qos, retain)
	if ok {
		c.stats.Published++
	} else {
		c.stats.PublishFailed++
	}

	// Log lines are published through here; logging them again would loop.
	if topic != "" && topic == c.logMessage.Topic {
		return ok
	}
	if ok {
		c.logger.Debug("published", "topic", topic, "qos", qos, "retain", retain, "bytes", len(payload))
	} else {
		c.logger.Debug("publish failed", "topic", topic, "state", c.state.String())
	}
	return ok
}

func (c *Client) publish(topic, payload string, qos byte, retain bool) bool {
	if c.state != StateConnected {
		return false
	}
	if topic == "" || qos > 2 {
		return false
	}
	if len(payload) > c.maxPayloadSize {
		return false
	}
	return c.transport.Publish(topic, []byte(payload), qos, retain)
}

// PublishMessage sends m. A message with an empty topic is not sent.
func (c *Client) PublishMessage(m Message) bool {
	return c.Publish(m.Topic, m.Payload, m.QoS, m.Retain)
}

// PublishJSON runs build against an empty object and publishes the result.
// A builder that fails or panics makes the publish fail.
func (c *Client) PublishJSON(topic string, build JSONBuilder, qos byte, retain bool) bool {
	payload, err := BuildJSON(build)
	if err != nil {
		c.logger.Warn("json payload not built", "topic", topic, "error", err)
		c.stats.PublishFailed++
		return false
	}
	return c.Publish(topic, payload, qos, retain)
}

// SetLogLevel sets the lowest level forwarded to the log topic.
func (c *Client) SetLogLevel(level slog.Level) {
	c.logLevel = level
}

// JoinTopic joins a prefix and suffix with a single slash.
func JoinTopic(prefix, suffix string) string {
	return prefix + "/" + suffix
}

// HasWildcard reports whether topic contains an MQTT wildcard character.
func HasWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
