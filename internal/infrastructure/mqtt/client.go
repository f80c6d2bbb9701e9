package mqtt

import (
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Transport implements session.Transport on top of paho.mqtt.golang.
//
// Thread Safety:
//   - Connect, Disconnect, Publish, Subscribe and Poll are called from the
//     session loop goroutine.
//   - Paho callbacks run on paho goroutines and only append to the event
//     queue under mu.
type Transport struct {
	opts   Options
	logger Logger

	mu         sync.Mutex
	client     pahomqtt.Client
	generation uint64
	events     []event
	messages   int
	dropped    uint64
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
	eventMessage
	eventSubscribeFailed
)

// event is a paho callback result waiting for the next Poll.
type event struct {
	kind       eventKind
	generation uint64
	reason     session.DisconnectReason
	topic      string
	payload    string
}

// NewTransport creates a Transport. No connection is made until the
// session calls Connect.
func NewTransport(opts Options) *Transport {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transport{opts: opts, logger: logger}
}

// Connect starts a connection attempt with a fresh paho client. The
// outcome arrives as a connect or disconnect event on a later Poll.
func (t *Transport) Connect(c session.ConnectOptions) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	opts, err := buildClientOptions(c, t.opts)
	if err != nil {
		t.logger.Error("invalid mqtt client options", "error", err)
		t.push(event{kind: eventDisconnect, generation: gen, reason: reasonFor(err)})
		return
	}

	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.push(event{
			kind:       eventMessage,
			generation: gen,
			topic:      msg.Topic(),
			payload:    string(msg.Payload()),
		})
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.push(event{kind: eventConnect, generation: gen})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.logger.Warn("mqtt connection lost", "error", err)
		t.push(event{kind: eventDisconnect, generation: gen, reason: reasonFor(err)})
	})

	client := pahomqtt.NewClient(opts)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()

	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			t.logger.Debug("mqtt connect failed", "error", err)
			t.push(event{kind: eventDisconnect, generation: gen, reason: reasonFor(err)})
		}
	}()
}

// Disconnect closes the current paho client, if any. Events still queued
// for it are discarded.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.generation++
	t.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports whether the current paho client has an open
// connection.
func (t *Transport) IsConnected() bool {
	client := t.current()
	return client != nil && client.IsConnectionOpen()
}

// Poll delivers queued events for the current client to h, in arrival
// order.
func (t *Transport) Poll(h session.TransportHandler) {
	t.mu.Lock()
	events := t.events
	t.events = nil
	t.messages = 0
	gen := t.generation
	t.mu.Unlock()

	for _, ev := range events {
		if ev.generation != gen {
			continue
		}
		switch ev.kind {
		case eventConnect:
			h.OnConnect()
		case eventDisconnect:
			h.OnDisconnect(ev.reason)
		case eventMessage:
			h.OnMessage(ev.topic, ev.payload)
		case eventSubscribeFailed:
			h.OnSubscribeFailed(ev.topic)
		}
	}
}

// Dropped returns the number of messages discarded because the event
// buffer was full.
func (t *Transport) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// push queues ev. Message events beyond the buffer size are dropped;
// connection events are always kept.
func (t *Transport) push(ev event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.kind == eventMessage {
		if t.messages >= t.opts.EventBuffer {
			t.dropped++
			return
		}
		t.messages++
	}
	t.events = append(t.events, ev)
}

func (t *Transport) current() pahomqtt.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

func (t *Transport) currentWithGeneration() (pahomqtt.Client, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client, t.generation
}

var _ session.Transport = (*Transport)(nil)
