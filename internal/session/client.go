package session

import (
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
)

// Timing constants for the connection state machine.
const (
	// ReconnectDelay is the minimum time between two connection attempts.
	ReconnectDelay = 5 * time.Second

	// DNSTimeout bounds how long ResolvingAddress waits for the resolver.
	DNSTimeout = 20 * time.Second

	// ConnectTimeout bounds how long Connecting waits for the broker.
	ConnectTimeout = 60 * time.Second

	// DefaultKeepAlive is the MQTT keepalive interval.
	DefaultKeepAlive = 15 * time.Second

	// DefaultRebootTimeout is how long the broker may stay unreachable
	// before the device is restarted.
	DefaultRebootTimeout = 5 * time.Minute

	// DefaultMaxPayloadSize is the largest payload Publish accepts (1MB).
	DefaultMaxPayloadSize = 1 << 20
)

// ErrNoTransport is returned by New when Deps.Transport is nil.
var ErrNoTransport = errors.New("session: transport is required")

// Deps are the collaborators of a Client. Only Transport is required.
type Deps struct {
	Transport Transport

	// Resolver looks up the broker host name. When nil, the host name is
	// handed to the transport unresolved.
	Resolver Resolver

	// Network gates connection attempts on the link being up.
	Network NetworkStatus

	// Rebooter is called by the watchdog. When nil the watchdog only logs.
	Rebooter Rebooter

	// Logs is drained every tick into the log topic.
	Logs LogSource

	Logger Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Client is the MQTT session manager.
//
// All methods must be called from the goroutine that runs Loop.
type Client struct {
	creds        Credentials
	topicPrefix  string
	keepAlive    time.Duration
	cleanSession bool

	rebootTimeout  time.Duration
	bootWait       time.Duration
	maxPayloadSize int

	lastWill   Message
	birth      Message
	shutdown   Message
	logMessage Message
	logLevel   slog.Level

	discovery    DiscoveryInfo
	availability Availability

	transport Transport
	resolver  Resolver
	network   NetworkStatus
	rebooter  Rebooter
	logs      LogSource
	logger    Logger
	now       func() time.Time

	state          State
	lookup         Lookup
	dnsBegin       time.Time
	ip             netip.Addr
	connectBegin   time.Time
	lastAttempt    time.Time
	setupAt        time.Time
	lastConnected  time.Time
	everConnected  bool
	birthSent      bool
	rebootFired    bool
	pendingReason  DisconnectReason
	lastReason     DisconnectReason
	lastDisconnect time.Time

	subscriptions []*subscription
	components    []Component
	observers     []Observer

	stats Counters
}

// New creates a Client for the broker in creds.
//
// Birth, last will, shutdown and log messages default to topics under
// topicPrefix (see SetTopicPrefix). Discovery defaults to the
// "homeassistant" prefix, retained.
func New(creds Credentials, topicPrefix string, deps Deps) (*Client, error) {
	if deps.Transport == nil {
		return nil, ErrNoTransport
	}

	c := &Client{
		creds:          creds,
		keepAlive:      DefaultKeepAlive,
		rebootTimeout:  DefaultRebootTimeout,
		maxPayloadSize: DefaultMaxPayloadSize,
		logLevel:       slog.LevelDebug,
		discovery: DiscoveryInfo{
			Prefix: DefaultDiscoveryPrefix,
			Retain: true,
		},
		transport: deps.Transport,
		resolver:  deps.Resolver,
		network:   deps.Network,
		rebooter:  deps.Rebooter,
		logs:      deps.Logs,
		logger:    deps.Logger,
		now:       deps.Clock,
	}
	c.creds.ClientID = TruncateClientID(creds.ClientID)

	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.SetTopicPrefix(topicPrefix)
	return c, nil
}

// Setup prepares the client for its first tick. The first connection
// attempt is made by Loop.
func (c *Client) Setup() error {
	now := c.now()
	c.setupAt = now
	c.lastConnected = now
	c.logger.Info("mqtt session starting",
		"broker", c.brokerAddress(),
		"client_id", c.creds.ClientID,
	)
	return nil
}

// Loop runs one tick of the state machine. It never blocks.
func (c *Client) Loop() {
	c.transport.Poll(eventSink{c})

	now := c.now()

	if c.network != nil && !c.network.IsConnected() {
		c.pendingReason = ReasonTCPDisconnected
		c.checkWatchdog(now)
		return
	}

	if c.pendingReason != ReasonNone {
		c.logger.Warn("mqtt disconnected", "reason", c.pendingReason.String())
		c.pendingReason = ReasonNone
	}

	switch c.state {
	case StateDisconnected:
		if c.lastAttempt.IsZero() || now.Sub(c.lastAttempt) > ReconnectDelay {
			c.startResolve(now)
		}
	case StateResolvingAddress:
		c.checkResolve(now)
	case StateConnecting:
		c.checkConnecting(now)
	case StateConnected:
		if !c.transport.IsConnected() {
			c.logger.Warn("lost mqtt client connection")
			c.disconnected(ReasonTCPDisconnected, now)
			break
		}
		if c.birth.Enabled() && !c.birthSent {
			c.sendBirth()
		}
		c.lastConnected = now
		c.resubscribeDue(now)
		c.drainLogs()
	}

	c.checkWatchdog(now)
}

// startResolve leaves Disconnected. Literal IP addresses and a nil resolver
// go straight to Connecting.
func (c *Client) startResolve(now time.Time) {
	c.resetSubscriptions()
	c.lastAttempt = now
	c.lookup = nil

	if addr, err := netip.ParseAddr(c.creds.Address); err == nil {
		c.ip = addr
		c.startConnect(now)
		return
	}
	if c.resolver == nil {
		c.ip = netip.Addr{}
		c.startConnect(now)
		return
	}

	c.logger.Debug("resolving broker address", "host", c.creds.Address)
	c.lookup = c.resolver.Lookup(c.creds.Address)
	c.dnsBegin = now
	c.setState(StateResolvingAddress, ReasonNone, now)
}

func (c *Client) checkResolve(now time.Time) {
	if c.lookup == nil {
		c.setState(StateDisconnected, ReasonDNSFailure, now)
		return
	}

	addr, done, err := c.lookup.Result()
	if !done {
		if now.Sub(c.dnsBegin) > DNSTimeout {
			c.logger.Warn("dns lookup timed out", "host", c.creds.Address, "timeout", DNSTimeout)
			c.lookup = nil
			c.pendingReason = ReasonDNSFailure
			c.lastReason = ReasonDNSFailure
			c.setState(StateDisconnected, ReasonDNSFailure, now)
		}
		return
	}

	c.lookup = nil
	if err != nil || !addr.IsValid() {
		c.logger.Warn("dns lookup failed", "host", c.creds.Address, "error", err)
		c.pendingReason = ReasonDNSFailure
		c.lastReason = ReasonDNSFailure
		c.setState(StateDisconnected, ReasonDNSFailure, now)
		return
	}

	c.ip = addr
	c.logger.Debug("resolved broker address", "host", c.creds.Address, "ip", addr.String())
	c.startConnect(now)
}

func (c *Client) startConnect(now time.Time) {
	address := c.creds.Address
	if c.ip.IsValid() {
		address = c.ip.String()
	}

	c.logger.Info("connecting to mqtt broker",
		"address", hostPort(address, c.creds.Port),
		"client_id", c.creds.ClientID,
	)

	c.transport.Disconnect()
	c.transport.Connect(ConnectOptions{
		Address:      address,
		Host:         c.creds.Address,
		Port:         c.creds.Port,
		ClientID:     c.creds.ClientID,
		Username:     c.creds.Username,
		Password:     c.creds.Password,
		Will:         c.lastWill,
		KeepAlive:    c.keepAlive,
		CleanSession: c.cleanSession,
	})

	c.connectBegin = now
	c.lastAttempt = now
	c.setState(StateConnecting, ReasonNone, now)
}

func (c *Client) checkConnecting(now time.Time) {
	if now.Sub(c.connectBegin) > ConnectTimeout {
		c.logger.Warn("mqtt connect timed out", "timeout", ConnectTimeout)
		c.transport.Disconnect()
		c.disconnected(ReasonConnectTimeout, now)
	}
}

// connected handles the transport's connect callback.
func (c *Client) connected(now time.Time) {
	if c.state != StateConnecting {
		c.logger.Debug("ignoring connect event", "state", c.state.String())
		return
	}

	c.logger.Info("mqtt connected", "broker", c.brokerAddress())

	c.everConnected = true
	c.lastConnected = now
	c.birthSent = false
	c.rebootFired = false
	c.stats.Connects++
	c.setState(StateConnected, ReasonNone, now)

	if c.birth.Enabled() {
		c.sendBirth()
	}

	for _, comp := range c.components {
		c.notify(comp)
	}

	c.resubscribeAll(now)
}

// disconnected moves to Disconnected from any state and forgets every
// subscription.
func (c *Client) disconnected(reason DisconnectReason, now time.Time) {
	if c.state == StateDisconnected {
		return
	}
	if reason == ReasonNone {
		reason = ReasonUnknown
	}

	if c.state == StateConnected {
		c.stats.Disconnects++
	}
	c.lookup = nil
	c.pendingReason = reason
	c.lastReason = reason
	c.lastDisconnect = now
	c.resetSubscriptions()
	c.setState(StateDisconnected, reason, now)
}

func (c *Client) sendBirth() {
	c.birthSent = c.PublishMessage(c.birth)
	if c.birthSent {
		c.stats.BirthsSent++
	}
}

func (c *Client) notify(comp Component) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("component reconnect hook panic recovered", "panic", r)
		}
	}()
	comp.OnReconnect()
}

// checkWatchdog restarts the device once per outage when the broker has
// been unreachable for longer than the reboot timeout.
func (c *Client) checkWatchdog(now time.Time) {
	if c.rebootTimeout == 0 || c.state == StateConnected || c.rebootFired {
		return
	}
	if c.lastConnected.IsZero() || now.Sub(c.lastConnected) <= c.rebootTimeout {
		return
	}

	c.rebootFired = true
	c.logger.Error("can't connect to mqtt broker, restarting",
		"unreachable_for", now.Sub(c.lastConnected).Truncate(time.Second),
		"reboot_timeout", c.rebootTimeout,
	)
	c.emit(Event{Time: now, Kind: EventReboot, From: c.state, To: c.state, Reason: c.lastReason})
	if c.rebooter != nil {
		c.rebooter.Reboot("mqtt broker unreachable")
	}
}

// drainLogs forwards queued log lines to the log topic. Lines below the
// configured level and failed publishes are dropped.
func (c *Client) drainLogs() {
	if c.logs == nil {
		return
	}
	if !c.logMessage.Enabled() {
		c.logs.Drain(func(slog.Level, string) {})
		return
	}
	c.logs.Drain(func(level slog.Level, line string) {
		if level < c.logLevel {
			return
		}
		c.Publish(c.logMessage.Topic, line, c.logMessage.QoS, c.logMessage.Retain)
	})
}

func (c *Client) setState(to State, reason DisconnectReason, now time.Time) {
	from := c.state
	c.state = to
	if from == to {
		return
	}
	c.emit(Event{Time: now, Kind: EventStateChange, From: from, To: to, Reason: reason})
}

// SetupPriority places the session after the network and before the
// components that publish through it.
func (c *Client) SetupPriority() float64 {
	return lifecycle.PriorityAfterNetwork
}

// CanProceed reports whether dependent components may start. True once a
// connection was made, or after the boot wait elapsed when one is set.
func (c *Client) CanProceed() bool {
	if c.state == StateConnected || c.everConnected {
		return true
	}
	if c.bootWait > 0 && !c.setupAt.IsZero() && c.now().Sub(c.setupAt) >= c.bootWait {
		return true
	}
	return false
}

// Shutdown publishes the shutdown message when connected and closes the
// transport.
func (c *Client) Shutdown() {
	now := c.now()
	if c.state == StateConnected && c.shutdown.Enabled() {
		if !c.PublishMessage(c.shutdown) {
			c.logger.Warn("shutdown message not sent", "topic", c.shutdown.Topic)
		}
	}
	c.transport.Disconnect()

	if c.state != StateDisconnected {
		c.lastReason = ReasonShutdown
		c.lastDisconnect = now
		c.resetSubscriptions()
		c.setState(StateDisconnected, ReasonShutdown, now)
	}
	c.logger.Info("mqtt session stopped")
}

// IsConnected reports whether the session is in the Connected state.
func (c *Client) IsConnected() bool {
	return c.state == StateConnected
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state
}

// LastDisconnectReason returns the reason of the most recent disconnect.
func (c *Client) LastDisconnectReason() DisconnectReason {
	return c.lastReason
}

// Register adds a component that is notified after every (re)connection.
func (c *Client) Register(comp Component) {
	if comp == nil {
		return
	}
	c.components = append(c.components, comp)
}

func (c *Client) brokerAddress() string {
	return hostPort(c.creds.Address, c.creds.Port)
}

func hostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// eventSink receives transport events delivered from Poll.
type eventSink struct {
	c *Client
}

func (s eventSink) OnConnect() {
	s.c.connected(s.c.now())
}

func (s eventSink) OnDisconnect(reason DisconnectReason) {
	c := s.c
	if c.state == StateDisconnected {
		return
	}
	c.logger.Debug("transport reported disconnect", "reason", reason.String(), "state", c.state.String())
	c.disconnected(reason, c.now())
}

func (s eventSink) OnMessage(topic, payload string) {
	s.c.dispatch(topic, payload)
}

func (s eventSink) OnSubscribeFailed(topic string) {
	s.c.markSubscribeFailed(topic, s.c.now())
}
