package session

import (
	"errors"
	"log/slog"
	"net/netip"
	"testing"
	"time"
)

// =============================================================================
// Fakes
// =============================================================================

type publishCall struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
}

// fakeTransport records calls and delivers queued events from Poll.
type fakeTransport struct {
	connected bool

	connects    []ConnectOptions
	disconnects int
	published   []publishCall
	subscribed  []string

	rejectSubscribe bool
	rejectPublish   bool

	events []func(h TransportHandler)
}

func (f *fakeTransport) Connect(opts ConnectOptions) {
	f.connects = append(f.connects, opts)
}

func (f *fakeTransport) Disconnect() {
	f.disconnects++
	f.connected = false
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retain bool) bool {
	if f.rejectPublish {
		return false
	}
	f.published = append(f.published, publishCall{Topic: topic, Payload: string(payload), QoS: qos, Retain: retain})
	return true
}

func (f *fakeTransport) Subscribe(topic string, qos byte) bool {
	if f.rejectSubscribe {
		return false
	}
	f.subscribed = append(f.subscribed, topic)
	return true
}

func (f *fakeTransport) IsConnected() bool {
	return f.connected
}

func (f *fakeTransport) Poll(h TransportHandler) {
	events := f.events
	f.events = nil
	for _, ev := range events {
		ev(h)
	}
}

// acceptConnect queues a successful connect for the next Poll.
func (f *fakeTransport) acceptConnect() {
	f.events = append(f.events, func(h TransportHandler) {
		f.connected = true
		h.OnConnect()
	})
}

func (f *fakeTransport) dropConnection(reason DisconnectReason) {
	f.events = append(f.events, func(h TransportHandler) {
		f.connected = false
		h.OnDisconnect(reason)
	})
}

func (f *fakeTransport) deliver(topic, payload string) {
	f.events = append(f.events, func(h TransportHandler) {
		h.OnMessage(topic, payload)
	})
}

func (f *fakeTransport) failSubscribe(topic string) {
	f.events = append(f.events, func(h TransportHandler) {
		h.OnSubscribeFailed(topic)
	})
}

func (f *fakeTransport) publishedTo(topic string) []publishCall {
	var out []publishCall
	for _, p := range f.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeLookup struct {
	addr netip.Addr
	done bool
	err  error
}

func (l *fakeLookup) Result() (netip.Addr, bool, error) {
	return l.addr, l.done, l.err
}

type fakeResolver struct {
	lookups []string
	next    *fakeLookup
}

func (r *fakeResolver) Lookup(host string) Lookup {
	r.lookups = append(r.lookups, host)
	l := r.next
	if l == nil {
		l = &fakeLookup{}
	}
	r.next = nil
	return l
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeNetwork struct {
	up bool
}

func (n *fakeNetwork) IsConnected() bool { return n.up }

type logLine struct {
	level slog.Level
	line  string
}

type fakeLogs struct {
	lines []logLine
}

func (l *fakeLogs) Drain(fn func(level slog.Level, line string)) {
	lines := l.lines
	l.lines = nil
	for _, ln := range lines {
		fn(ln.level, ln.line)
	}
}

var errLookup = errors.New("no such host")

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	client    *Client
	transport *fakeTransport
	resolver  *fakeResolver
	clock     *fakeClock
	events    []Event
}

// newHarness builds a client for "broker.lan" with prefix "livingroom"
// and runs Setup.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		transport: &fakeTransport{},
		resolver:  &fakeResolver{},
		clock:     newFakeClock(),
	}

	client, err := New(NewCredentials("broker.lan", 1883, "user", "secret", "livingroom-node"), "livingroom", Deps{
		Transport: h.transport,
		Resolver:  h.resolver,
		Clock:     h.clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	client.AddObserver(ObserverFunc(func(e Event) {
		h.events = append(h.events, e)
	}))
	if err := client.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	h.client = client
	return h
}

// connect drives the client from Disconnected to Connected.
func (h *harness) connect(t *testing.T) {
	t.Helper()

	h.resolver.next = &fakeLookup{addr: netip.MustParseAddr("192.168.1.10"), done: true}
	h.client.Loop() // Disconnected -> ResolvingAddress
	h.client.Loop() // ResolvingAddress -> Connecting
	h.transport.acceptConnect()
	h.client.Loop() // Connecting -> Connected

	if got := h.client.State(); got != StateConnected {
		t.Fatalf("State() = %v, want %v", got, StateConnected)
	}
}
