package automation

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Build creates one trigger per configured automation. The triggers still
// need to be registered with the scheduler.
func Build(automations []config.AutomationConfig, pub session.Publisher, logger Logger) ([]lifecycle.Component, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	triggers := make([]lifecycle.Component, 0, len(automations))
	for i, a := range automations {
		name := a.ID
		if name == "" {
			name = fmt.Sprintf("automations[%d]", i)
		}

		if a.Trigger.Topic == "" {
			return nil, fmt.Errorf("%w: %s: topic is required", ErrInvalidTrigger, name)
		}
		if a.Trigger.QoS < 0 || a.Trigger.QoS > 2 {
			return nil, fmt.Errorf("%w: %s: qos %d", ErrInvalidTrigger, name, a.Trigger.QoS)
		}

		actions, err := BuildActions(a.Actions, pub, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		if a.Trigger.JSON {
			t := NewJSONMessageTrigger(pub, a.Trigger.Topic, byte(a.Trigger.QoS))
			t.SetID(name)
			t.SetLogger(logger)
			t.Add(actions...)
			triggers = append(triggers, t)
			continue
		}

		t := NewMessageTrigger(pub, a.Trigger.Topic, byte(a.Trigger.QoS))
		t.SetID(name)
		t.SetLogger(logger)
		if a.Trigger.Payload != nil {
			t.SetPayload(*a.Trigger.Payload)
		}
		t.Add(actions...)
		triggers = append(triggers, t)
	}
	return triggers, nil
}

// BuildActions compiles configured actions into a Chain.
func BuildActions(actions []config.ActionConfig, pub session.Publisher, logger Logger) (Chain, error) {
	chain := make(Chain, 0, len(actions))
	for i, a := range actions {
		action, err := buildAction(a, pub, logger)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		chain = append(chain, action)
	}
	return chain, nil
}

func buildAction(a config.ActionConfig, pub session.Publisher, logger Logger) (Action, error) {
	topic, err := stringValue(a.Topic, a.TopicExpr)
	if err != nil {
		return nil, err
	}
	if a.Topic == "" && a.TopicExpr == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidAction)
	}
	if a.QoS < 0 || a.QoS > 2 {
		return nil, fmt.Errorf("%w: qos %d", ErrInvalidAction, a.QoS)
	}

	retain := Const(a.Retain)
	if a.RetainExpr != "" {
		if retain, err = Expr[bool](a.RetainExpr); err != nil {
			return nil, err
		}
	}

	if len(a.JSON) > 0 {
		build, err := jsonBuilder(a.JSON)
		if err != nil {
			return nil, err
		}
		action := NewPublishJSONAction(pub, topic, build)
		action.QoS = Const(byte(a.QoS))
		action.Retain = retain
		action.SetLogger(logger)
		return action, nil
	}

	payload, err := stringValue(a.Payload, a.PayloadExpr)
	if err != nil {
		return nil, err
	}
	action := NewPublishAction(pub, topic, payload)
	action.QoS = Const(byte(a.QoS))
	action.Retain = retain
	action.SetLogger(logger)
	return action, nil
}

func stringValue(literal, source string) (Value[string], error) {
	if source != "" {
		return Expr[string](source)
	}
	return Const(literal), nil
}

// jsonBuilder compiles one expression per key. Keys are set in sorted
// order so error messages are stable.
func jsonBuilder(fields map[string]string) (func(Context, session.JSONObject) error, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]Value[any], len(keys))
	for i, k := range keys {
		v, err := Expr[any](fields[k])
		if err != nil {
			return nil, fmt.Errorf("json.%s: %w", k, err)
		}
		values[i] = v
	}

	return func(ctx Context, obj session.JSONObject) error {
		for i, k := range keys {
			v, err := values[i].Resolve(ctx)
			if err != nil {
				return fmt.Errorf("json.%s: %w", k, err)
			}
			obj[k] = v
		}
		return nil
	}, nil
}
