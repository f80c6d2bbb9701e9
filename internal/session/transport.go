package session

import (
	"log/slog"
	"net/netip"
	"time"
)

// ConnectOptions is everything the Transport needs for one connect attempt.
type ConnectOptions struct {
	// Address is the resolved broker IP (or the configured host when the
	// resolver was bypassed).
	Address string

	// Host is the configured broker name, used for TLS server name checks.
	Host string
	Port uint16

	ClientID string
	Username string
	Password string

	// Will is handed to the broker at connect time. Disabled when its
	// topic is empty.
	Will Message

	KeepAlive    time.Duration
	CleanSession bool
}

// TransportHandler receives transport events. The Client implements it.
type TransportHandler interface {
	OnConnect()
	OnDisconnect(reason DisconnectReason)
	OnMessage(topic, payload string)
	OnSubscribeFailed(topic string)
}

// Transport is the MQTT protocol client the session drives.
//
// Implementations must not block: Connect starts an attempt, Publish and
// Subscribe queue a request and report whether it was accepted. Events are
// buffered by the implementation and delivered only from Poll, which the
// Client calls at the start of every tick.
type Transport interface {
	Connect(opts ConnectOptions)
	Disconnect()
	Publish(topic string, payload []byte, qos byte, retain bool) bool
	Subscribe(topic string, qos byte) bool
	IsConnected() bool
	Poll(h TransportHandler)
}

// Lookup is an in-flight DNS resolution. Dropping a Lookup without reading
// its result is safe.
type Lookup interface {
	// Result reports the resolved address once done is true. A non-nil
	// error means the lookup failed.
	Result() (addr netip.Addr, done bool, err error)
}

// Resolver starts asynchronous host name lookups.
type Resolver interface {
	Lookup(host string) Lookup
}

// NetworkStatus reports whether the underlying network link is up.
type NetworkStatus interface {
	IsConnected() bool
}

// Rebooter restarts the device. Called once when the broker stays
// unreachable for longer than the reboot timeout.
type Rebooter interface {
	Reboot(reason string)
}

// RebootFunc adapts a function to the Rebooter interface.
type RebootFunc func(reason string)

// Reboot calls f(reason).
func (f RebootFunc) Reboot(reason string) {
	f(reason)
}

// LogSource yields queued log lines for publishing to the log topic.
type LogSource interface {
	Drain(fn func(level slog.Level, line string))
}

// Logger is the logging interface used by the session.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
