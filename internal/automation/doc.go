// Package automation connects MQTT messages to publish actions.
//
// A trigger subscribes to one topic through the session and plays its
// action chain whenever a matching message arrives. Actions publish through
// the same session; each field of an action is a Value that is either a
// constant, a Go function of the trigger Context, or an expression compiled
// with github.com/expr-lang/expr.
//
// # Key Types
//
//   - Context: the message that fired a trigger (topic, payload, json)
//   - Value: constant, function or expression resolved against a Context
//   - Action, Chain: what happens when a trigger fires
//   - PublishAction, PublishJSONAction: publish through a session.Publisher
//   - MessageTrigger, JSONMessageTrigger: lifecycle components that subscribe
//
// # Expressions
//
// Expressions see three variables:
//
//	topic    string          topic the message arrived on
//	payload  string          raw payload
//	json     map[string]any  decoded object (empty for plain triggers)
//
// For example `json.temperature > 25` or `upper(payload)`.
//
// # Thread Safety
//
// Triggers and actions run on the session loop goroutine only.
//
// # Usage
//
//	triggers, err := automation.Build(cfg.Automations, client, log)
//	if err != nil {
//	    return err
//	}
//	for _, t := range triggers {
//	    scheduler.Register(t)
//	}
package automation
