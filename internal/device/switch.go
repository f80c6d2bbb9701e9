package device

import (
	"strings"

	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Output receives a switch's state.
type Output interface {
	Write(on bool) error
}

// Switch is an on/off entity commanded through its command topic.
//
// Commands "ON", "OFF" and "TOGGLE" are accepted in any case. Every change
// is written to the output, echoed to the state topic and plays the
// matching automation chain.
type Switch struct {
	entity
	output    Output
	onTurnOn  automation.Chain
	onTurnOff automation.Chain

	state    bool
	commands uint64
}

// NewSwitch creates a Switch. output may be nil.
func NewSwitch(objectID, name, icon string, output Output, node NodeInfo, pub session.Publisher) *Switch {
	s := &Switch{
		entity: newEntity(KindSwitch, objectID, name, node, pub),
		output: output,
	}
	s.icon = icon
	return s
}

// OnTurnOn appends actions played when the switch turns on.
func (s *Switch) OnTurnOn(actions ...automation.Action) {
	s.onTurnOn = append(s.onTurnOn, actions...)
}

// OnTurnOff appends actions played when the switch turns off.
func (s *Switch) OnTurnOff(actions ...automation.Action) {
	s.onTurnOff = append(s.onTurnOff, actions...)
}

// Setup subscribes to the command topic.
func (s *Switch) Setup() error {
	s.pub.Subscribe(s.CommandTopic(), session.HandlerFunc(s.onCommand), 0)
	return nil
}

// Loop does nothing; the switch is driven by commands.
func (s *Switch) Loop() {}

// OnReconnect republishes the discovery config and the current state.
func (s *Switch) OnReconnect() {
	s.publishDiscovery(func(obj session.JSONObject) {
		obj["command_topic"] = s.CommandTopic()
		obj["payload_on"] = PayloadOn
		obj["payload_off"] = PayloadOff
	})
	s.publishState(s.State())
}

// Set changes the state and reports whether it changed. The current
// state is published either way.
func (s *Switch) Set(on bool) bool {
	if on == s.state {
		s.publishState(s.State())
		return false
	}
	s.state = on

	if s.output != nil {
		if err := s.output.Write(on); err != nil {
			s.logger.Error("switch output failed", "id", s.objectID, "error", err)
		}
	}
	s.publishState(s.State())

	ctx := automation.Context{Topic: s.StateTopic(), Payload: s.State()}
	if on {
		s.onTurnOn.Play(ctx)
	} else {
		s.onTurnOff.Play(ctx)
	}
	return true
}

// IsOn reports the switch state.
func (s *Switch) IsOn() bool { return s.state }

// State returns "ON" or "OFF".
func (s *Switch) State() string {
	if s.state {
		return PayloadOn
	}
	return PayloadOff
}

// Commands returns the number of accepted commands.
func (s *Switch) Commands() uint64 { return s.commands }

func (s *Switch) onCommand(_, payload string) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case PayloadOn:
		s.commands++
		s.Set(true)
	case PayloadOff:
		s.commands++
		s.Set(false)
	case PayloadToggle:
		s.commands++
		s.Set(!s.state)
	default:
		s.logger.Warn("unknown switch command", "id", s.objectID, "payload", payload)
	}
}

// DumpConfig logs the switch.
func (s *Switch) DumpConfig() {
	s.logger.Info("switch",
		"id", s.objectID,
		"name", s.name,
		"command_topic", s.CommandTopic(),
		"on_turn_on", len(s.onTurnOn),
		"on_turn_off", len(s.onTurnOff),
	)
}

// Info returns the API view of the switch.
func (s *Switch) Info() Info {
	return Info{
		Kind:           s.kind,
		ObjectID:       s.objectID,
		Name:           s.name,
		State:          s.State(),
		StateTopic:     s.StateTopic(),
		CommandTopic:   s.CommandTopic(),
		DiscoveryTopic: s.DiscoveryTopic(),
	}
}
