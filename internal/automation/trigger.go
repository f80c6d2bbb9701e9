package automation

import (
	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// MessageTrigger fires its actions when a message arrives on its topic.
type MessageTrigger struct {
	id      string
	topic   string
	qos     byte
	payload *string
	actions Chain

	pub    session.Publisher
	logger Logger
	fired  uint64
}

// NewMessageTrigger creates a trigger for topic. It subscribes during Setup.
func NewMessageTrigger(pub session.Publisher, topic string, qos byte) *MessageTrigger {
	return &MessageTrigger{
		topic:  topic,
		qos:    qos,
		pub:    pub,
		logger: noopLogger{},
	}
}

// SetID names the trigger in logs.
func (t *MessageTrigger) SetID(id string) { t.id = id }

// SetLogger sets the trigger's logger.
func (t *MessageTrigger) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetPayload restricts the trigger to messages whose payload equals p.
func (t *MessageTrigger) SetPayload(p string) {
	t.payload = &p
}

// Add appends actions to the trigger's chain.
func (t *MessageTrigger) Add(actions ...Action) {
	t.actions = append(t.actions, actions...)
}

// Fired returns how many times the trigger has played its actions.
func (t *MessageTrigger) Fired() uint64 { return t.fired }

// OnMessage implements session.MessageHandler.
func (t *MessageTrigger) OnMessage(topic, payload string) {
	if t.payload != nil && payload != *t.payload {
		return
	}
	t.fired++
	t.actions.Play(Context{Topic: topic, Payload: payload})
}

// Setup subscribes to the trigger topic.
func (t *MessageTrigger) Setup() error {
	t.pub.Subscribe(t.topic, t, t.qos)
	return nil
}

// Loop does nothing; the trigger is driven by the session.
func (t *MessageTrigger) Loop() {}

// SetupPriority places triggers after the session.
func (t *MessageTrigger) SetupPriority() float64 {
	return lifecycle.PriorityAfterConnection
}

// DumpConfig logs the trigger.
func (t *MessageTrigger) DumpConfig() {
	args := []any{"id", t.id, "topic", t.topic, "qos", t.qos, "actions", len(t.actions)}
	if t.payload != nil {
		args = append(args, "payload", *t.payload)
	}
	t.logger.Info("mqtt message trigger", args...)
}

// JSONMessageTrigger fires its actions when a JSON object arrives on its
// topic. Payloads that are not a JSON object are ignored.
type JSONMessageTrigger struct {
	id      string
	topic   string
	qos     byte
	actions Chain

	pub    session.Publisher
	logger Logger
	fired  uint64
}

// NewJSONMessageTrigger creates a JSON trigger for topic.
func NewJSONMessageTrigger(pub session.Publisher, topic string, qos byte) *JSONMessageTrigger {
	return &JSONMessageTrigger{
		topic:  topic,
		qos:    qos,
		pub:    pub,
		logger: noopLogger{},
	}
}

// SetID names the trigger in logs.
func (t *JSONMessageTrigger) SetID(id string) { t.id = id }

// SetLogger sets the trigger's logger.
func (t *JSONMessageTrigger) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Add appends actions to the trigger's chain.
func (t *JSONMessageTrigger) Add(actions ...Action) {
	t.actions = append(t.actions, actions...)
}

// Fired returns how many times the trigger has played its actions.
func (t *JSONMessageTrigger) Fired() uint64 { return t.fired }

// OnRawJSONMessage implements session.RawJSONHandler. The context carries
// the payload as received alongside the decoded object.
func (t *JSONMessageTrigger) OnRawJSONMessage(topic, payload string, obj session.JSONObject) {
	t.fired++
	t.actions.Play(Context{Topic: topic, Payload: payload, JSON: obj})
}

// OnJSONMessage implements session.JSONHandler for callers that only have
// the decoded object. Payload is then a re-encoding of obj with sorted keys.
func (t *JSONMessageTrigger) OnJSONMessage(topic string, obj session.JSONObject) {
	payload, err := session.BuildJSON(func(out session.JSONObject) error {
		for k, v := range obj {
			out[k] = v
		}
		return nil
	})
	if err != nil {
		payload = ""
	}
	t.OnRawJSONMessage(topic, payload, obj)
}

// Setup subscribes to the trigger topic.
func (t *JSONMessageTrigger) Setup() error {
	t.pub.SubscribeJSON(t.topic, t, t.qos)
	return nil
}

// Loop does nothing; the trigger is driven by the session.
func (t *JSONMessageTrigger) Loop() {}

// SetupPriority places triggers after the session.
func (t *JSONMessageTrigger) SetupPriority() float64 {
	return lifecycle.PriorityAfterConnection
}

// DumpConfig logs the trigger.
func (t *JSONMessageTrigger) DumpConfig() {
	t.logger.Info("mqtt json message trigger", "id", t.id, "topic", t.topic, "qos", t.qos, "actions", len(t.actions))
}

var (
	_ lifecycle.Component    = (*MessageTrigger)(nil)
	_ lifecycle.Component    = (*JSONMessageTrigger)(nil)
	_ session.MessageHandler = (*MessageTrigger)(nil)
	_ session.JSONHandler    = (*JSONMessageTrigger)(nil)
)
