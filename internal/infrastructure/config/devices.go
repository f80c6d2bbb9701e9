package config

import (
	"fmt"
	"regexp"
)

// Sensor value sources.
const (
	SourceUptime = "uptime"
	SourceFile   = "file"
	SourceStatus = "status"
)

// objectIDPattern matches ids that are safe inside MQTT topics and Home
// Assistant object ids.
var objectIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// DevicesConfig lists the components this node exposes.
type DevicesConfig struct {
	Sensors       []SensorConfig       `yaml:"sensors"`
	BinarySensors []BinarySensorConfig `yaml:"binary_sensors"`
	Switches      []SwitchConfig       `yaml:"switches"`
}

// SensorConfig describes a numeric sensor.
type SensorConfig struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Source      string  `yaml:"source"`
	Path        string  `yaml:"path"`
	Scale       float64 `yaml:"scale"`
	Precision   int     `yaml:"precision"`
	Unit        string  `yaml:"unit"`
	DeviceClass string  `yaml:"device_class"`
	StateClass  string  `yaml:"state_class"`
	Icon        string  `yaml:"icon"`
	Interval    int     `yaml:"interval"`
}

// BinarySensorConfig describes an on/off sensor.
//
// Source "status" reports whether the node is connected to the broker.
// Source "file" reads a file and treats "1", "on" or "true" as on.
type BinarySensorConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Source      string `yaml:"source"`
	Path        string `yaml:"path"`
	DeviceClass string `yaml:"device_class"`
	Interval    int    `yaml:"interval"`
}

// SwitchConfig describes a switch controlled over MQTT.
type SwitchConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`

	// Path, when set, receives "1" or "0" on every state change.
	Path string `yaml:"path"`

	OnTurnOn  []ActionConfig `yaml:"on_turn_on"`
	OnTurnOff []ActionConfig `yaml:"on_turn_off"`
}

// AutomationConfig binds a message trigger to a list of actions.
type AutomationConfig struct {
	ID      string         `yaml:"id"`
	Trigger TriggerConfig  `yaml:"trigger"`
	Actions []ActionConfig `yaml:"actions"`
}

// TriggerConfig describes an MQTT message trigger.
type TriggerConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`

	// Payload, when set, restricts the trigger to this exact payload.
	Payload *string `yaml:"payload"`

	// JSON decodes the payload; malformed payloads do not fire.
	JSON bool `yaml:"json"`
}

// ActionConfig describes a publish action. Fields ending in _expr are
// expressions evaluated against the trigger context (topic, payload, json).
type ActionConfig struct {
	Topic       string `yaml:"topic"`
	TopicExpr   string `yaml:"topic_expr"`
	Payload     string `yaml:"payload"`
	PayloadExpr string `yaml:"payload_expr"`

	// JSON publishes an object; each value is an expression.
	JSON map[string]string `yaml:"json"`

	QoS        int    `yaml:"qos"`
	Retain     bool   `yaml:"retain"`
	RetainExpr string `yaml:"retain_expr"`
}

func (d *DevicesConfig) validate() []string {
	var errs []string
	seen := make(map[string]bool)

	checkID := func(kind string, i int, id string) {
		field := fmt.Sprintf("devices.%s[%d].id", kind, i)
		switch {
		case id == "":
			errs = append(errs, field+" is required")
		case !objectIDPattern.MatchString(id):
			errs = append(errs, field+" must match [a-z0-9_]+")
		case seen[kind+"/"+id]:
			errs = append(errs, fmt.Sprintf("%s %q is duplicated", field, id))
		}
		seen[kind+"/"+id] = true
	}

	for i, s := range d.Sensors {
		checkID("sensors", i, s.ID)
		switch s.Source {
		case SourceUptime:
		case SourceFile:
			if s.Path == "" {
				errs = append(errs, fmt.Sprintf("devices.sensors[%d].path is required for source %q", i, SourceFile))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices.sensors[%d].source must be %q or %q", i, SourceUptime, SourceFile))
		}
		if s.Interval < 0 {
			errs = append(errs, fmt.Sprintf("devices.sensors[%d].interval must not be negative", i))
		}
		if s.Precision < 0 {
			errs = append(errs, fmt.Sprintf("devices.sensors[%d].precision must not be negative", i))
		}
	}

	for i, b := range d.BinarySensors {
		checkID("binary_sensors", i, b.ID)
		switch b.Source {
		case SourceStatus:
		case SourceFile:
			if b.Path == "" {
				errs = append(errs, fmt.Sprintf("devices.binary_sensors[%d].path is required for source %q", i, SourceFile))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices.binary_sensors[%d].source must be %q or %q", i, SourceStatus, SourceFile))
		}
	}

	for i, s := range d.Switches {
		checkID("switches", i, s.ID)
		errs = append(errs, validateActions(fmt.Sprintf("devices.switches[%d].on_turn_on", i), s.OnTurnOn)...)
		errs = append(errs, validateActions(fmt.Sprintf("devices.switches[%d].on_turn_off", i), s.OnTurnOff)...)
	}

	return errs
}

func validateAutomations(automations []AutomationConfig) []string {
	var errs []string
	for i, a := range automations {
		field := fmt.Sprintf("automations[%d]", i)
		if a.Trigger.Topic == "" {
			errs = append(errs, field+".trigger.topic is required")
		} else if hasWildcard(a.Trigger.Topic) {
			errs = append(errs, field+".trigger.topic must not contain wildcards")
		}
		if !validQoS(a.Trigger.QoS) {
			errs = append(errs, field+".trigger.qos must be 0, 1, or 2")
		}
		if a.Trigger.JSON && a.Trigger.Payload != nil {
			errs = append(errs, field+".trigger cannot combine json with a payload filter")
		}
		if len(a.Actions) == 0 {
			errs = append(errs, field+".actions must not be empty")
		}
		errs = append(errs, validateActions(field+".actions", a.Actions)...)
	}
	return errs
}

func validateActions(field string, actions []ActionConfig) []string {
	var errs []string
	for i, a := range actions {
		prefix := fmt.Sprintf("%s[%d]", field, i)

		if (a.Topic == "") == (a.TopicExpr == "") {
			errs = append(errs, prefix+" needs exactly one of topic or topic_expr")
		} else if hasWildcard(a.Topic) {
			errs = append(errs, prefix+".topic must not contain wildcards")
		}

		payloads := 0
		if a.Payload != "" {
			payloads++
		}
		if a.PayloadExpr != "" {
			payloads++
		}
		if len(a.JSON) > 0 {
			payloads++
		}
		if payloads > 1 {
			errs = append(errs, prefix+" accepts only one of payload, payload_expr or json")
		}

		if !validQoS(a.QoS) {
			errs = append(errs, prefix+".qos must be 0, 1, or 2")
		}
		if a.Retain && a.RetainExpr != "" {
			errs = append(errs, prefix+" accepts only one of retain or retain_expr")
		}
	}
	return errs
}
