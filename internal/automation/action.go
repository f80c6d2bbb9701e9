package automation

import (
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Logger is the logging interface used by automation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Action is something a trigger does when it fires.
type Action interface {
	Invoke(ctx Context)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx Context)

// Invoke calls f(ctx).
func (f ActionFunc) Invoke(ctx Context) {
	f(ctx)
}

// Chain runs actions in order. A failing action does not stop the chain.
type Chain []Action

// Play invokes every action with ctx.
func (c Chain) Play(ctx Context) {
	for _, a := range c {
		if a != nil {
			a.Invoke(ctx)
		}
	}
}

// PublishAction publishes a message built from its Values.
type PublishAction struct {
	Topic   Value[string]
	Payload Value[string]
	QoS     Value[byte]
	Retain  Value[bool]

	pub    session.Publisher
	logger Logger
}

// NewPublishAction creates an action that publishes through pub. QoS and
// Retain default to 0 and false.
func NewPublishAction(pub session.Publisher, topic, payload Value[string]) *PublishAction {
	return &PublishAction{
		Topic:   topic,
		Payload: payload,
		pub:     pub,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used to report skipped publishes.
func (a *PublishAction) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Invoke resolves every field and publishes. Resolution errors skip the
// publish; they are logged, not returned.
func (a *PublishAction) Invoke(ctx Context) {
	topic, err := a.Topic.Resolve(ctx)
	if err != nil {
		a.logger.Warn("publish action topic failed", "error", err)
		return
	}
	payload, err := a.Payload.Resolve(ctx)
	if err != nil {
		a.logger.Warn("publish action payload failed", "topic", topic, "error", err)
		return
	}
	qos, retain, ok := resolveDelivery(a.QoS, a.Retain, ctx, topic, a.logger)
	if !ok {
		return
	}

	if !a.pub.Publish(topic, payload, qos, retain) {
		a.logger.Debug("publish action not sent", "topic", topic)
	}
}

// PublishJSONAction publishes a JSON object filled by Build.
type PublishJSONAction struct {
	Topic  Value[string]
	Build  func(ctx Context, obj session.JSONObject) error
	QoS    Value[byte]
	Retain Value[bool]

	pub    session.Publisher
	logger Logger
}

// NewPublishJSONAction creates an action that publishes the object filled
// by build through pub.
func NewPublishJSONAction(pub session.Publisher, topic Value[string], build func(Context, session.JSONObject) error) *PublishJSONAction {
	return &PublishJSONAction{
		Topic:  topic,
		Build:  build,
		pub:    pub,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report skipped publishes.
func (a *PublishJSONAction) SetLogger(logger Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Invoke resolves the delivery fields, runs Build and publishes.
func (a *PublishJSONAction) Invoke(ctx Context) {
	topic, err := a.Topic.Resolve(ctx)
	if err != nil {
		a.logger.Warn("publish json action topic failed", "error", err)
		return
	}
	qos, retain, ok := resolveDelivery(a.QoS, a.Retain, ctx, topic, a.logger)
	if !ok {
		return
	}

	var build session.JSONBuilder
	if a.Build != nil {
		build = func(obj session.JSONObject) error {
			return a.Build(ctx, obj)
		}
	}
	if !a.pub.PublishJSON(topic, build, qos, retain) {
		a.logger.Debug("publish json action not sent", "topic", topic)
	}
}

func resolveDelivery(qv Value[byte], rv Value[bool], ctx Context, topic string, logger Logger) (byte, bool, bool) {
	qos, err := qv.Resolve(ctx)
	if err != nil {
		logger.Warn("publish action qos failed", "topic", topic, "error", err)
		return 0, false, false
	}
	retain, err := rv.Resolve(ctx)
	if err != nil {
		logger.Warn("publish action retain failed", "topic", topic, "error", err)
		return 0, false, false
	}
	return qos, retain, true
}
