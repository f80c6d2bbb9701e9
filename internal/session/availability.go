package session

import "time"

// SetTopicPrefix sets the topic prefix and resets the birth, last will,
// shutdown and log messages to their defaults under it:
//
//	birth     <prefix>/status  "online"   retained
//	last will <prefix>/status  "offline"  retained
//	shutdown  <prefix>/status  "offline"  retained
//	log       <prefix>/debug
//
// Call the individual setters afterwards to override any of them.
func (c *Client) SetTopicPrefix(prefix string) {
	c.topicPrefix = prefix

	status := JoinTopic(prefix, "status")
	c.birth = Message{Topic: status, Payload: PayloadOnline, Retain: true}
	c.lastWill = Message{Topic: status, Payload: PayloadOffline, Retain: true}
	c.shutdown = Message{Topic: status, Payload: PayloadOffline, Retain: true}
	c.logMessage = Message{Topic: JoinTopic(prefix, "debug")}

	c.recalculateAvailability()
}

// TopicPrefix returns the topic prefix.
func (c *Client) TopicPrefix() string {
	return c.topicPrefix
}

// SetLastWill sets the message the broker publishes if the node drops off
// without a clean disconnect. Takes effect on the next connect.
func (c *Client) SetLastWill(m Message) {
	c.lastWill = m
	c.recalculateAvailability()
}

// DisableLastWill removes the last will. Availability is disabled with it.
func (c *Client) DisableLastWill() {
	c.lastWill = Message{}
	c.recalculateAvailability()
}

// LastWill returns the last will message.
func (c *Client) LastWill() Message {
	return c.lastWill
}

// SetBirthMessage sets the message published once after every connect.
func (c *Client) SetBirthMessage(m Message) {
	c.birth = m
	c.recalculateAvailability()
}

// DisableBirthMessage stops the birth message.
func (c *Client) DisableBirthMessage() {
	c.birth = Message{}
	c.recalculateAvailability()
}

// BirthMessage returns the birth message.
func (c *Client) BirthMessage() Message {
	return c.birth
}

// SetShutdownMessage sets the message published by Shutdown.
func (c *Client) SetShutdownMessage(m Message) {
	c.shutdown = m
}

// DisableShutdownMessage stops the shutdown message.
func (c *Client) DisableShutdownMessage() {
	c.shutdown = Message{}
}

// ShutdownMessage returns the shutdown message.
func (c *Client) ShutdownMessage() Message {
	return c.shutdown
}

// SetLogMessage sets the topic, QoS and retain flag for forwarded log
// lines. The payload field is ignored.
func (c *Client) SetLogMessage(m Message) {
	m.Payload = ""
	c.logMessage = m
}

// DisableLog stops log forwarding.
func (c *Client) DisableLog() {
	c.logMessage = Message{}
}

// LogMessage returns the log forwarding message template.
func (c *Client) LogMessage() Message {
	return c.logMessage
}

// SetDiscoveryInfo enables Home Assistant discovery under prefix.
func (c *Client) SetDiscoveryInfo(prefix string, retain, clean bool) {
	c.discovery = DiscoveryInfo{Prefix: prefix, Retain: retain, Clean: clean}
	c.recalculateAvailability()
}

// DisableDiscovery turns discovery off.
func (c *Client) DisableDiscovery() {
	c.discovery = DiscoveryInfo{Retain: c.discovery.Retain}
	c.recalculateAvailability()
}

// DiscoveryInfo returns the discovery settings.
func (c *Client) DiscoveryInfo() DiscoveryInfo {
	return c.discovery
}

// IsDiscoveryEnabled reports whether a discovery prefix is set.
func (c *Client) IsDiscoveryEnabled() bool {
	return c.discovery.Enabled()
}

// Availability returns the availability derived from the last will and
// birth messages.
func (c *Client) Availability() Availability {
	return c.availability
}

// recalculateAvailability derives availability from the current
// configuration. The result depends only on the last will and birth
// messages, so repeated calls give the same value.
//
// The topic and "not available" payload mirror the last will. The
// "available" payload is the birth payload when birth goes to the same
// topic, and "online" otherwise.
func (c *Client) recalculateAvailability() {
	if !c.lastWill.Enabled() {
		c.availability = Availability{}
		return
	}

	available := PayloadOnline
	if c.birth.Enabled() && c.birth.Topic == c.lastWill.Topic {
		available = c.birth.Payload
	}

	c.availability = Availability{
		Topic:               c.lastWill.Topic,
		PayloadAvailable:    available,
		PayloadNotAvailable: c.lastWill.Payload,
	}
}

// SetKeepAlive sets the MQTT keepalive interval used on the next connect.
func (c *Client) SetKeepAlive(d time.Duration) {
	c.keepAlive = d
}

// SetCleanSession sets the clean session flag used on the next connect.
func (c *Client) SetCleanSession(clean bool) {
	c.cleanSession = clean
}

// SetClientID sets the client id, truncated to MaxClientIDLength.
func (c *Client) SetClientID(id string) {
	c.creds.ClientID = TruncateClientID(id)
}

// ClientID returns the client id.
func (c *Client) ClientID() string {
	return c.creds.ClientID
}

// Credentials returns the broker address and login details.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// SetRebootTimeout sets how long the broker may stay unreachable before
// the watchdog restarts the device. Zero disables the watchdog.
func (c *Client) SetRebootTimeout(d time.Duration) {
	c.rebootTimeout = d
}

// SetBootWait sets how long CanProceed waits for a first connection after
// Setup. Zero waits forever.
func (c *Client) SetBootWait(d time.Duration) {
	c.bootWait = d
}

// SetMaxPayloadSize sets the largest payload Publish accepts. Values below
// one keep the current limit.
func (c *Client) SetMaxPayloadSize(n int) {
	if n > 0 {
		c.maxPayloadSize = n
	}
}
