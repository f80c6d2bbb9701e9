package device

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Kind is the Home Assistant component type of an entity.
type Kind string

// Supported entity kinds.
const (
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
	KindSwitch       Kind = "switch"
)

// Payloads used by binary sensors and switches.
const (
	PayloadOn     = "ON"
	PayloadOff    = "OFF"
	PayloadToggle = "TOGGLE"
)

// manufacturer is reported in the discovery device block.
const manufacturer = "Gray Logic"

// NodeInfo describes the node in discovery configs.
type NodeInfo struct {
	// ID is the node name; it appears in discovery topics and unique ids.
	ID string

	// Name is the human-readable device name.
	Name string

	// Version is reported as the device software version.
	Version string
}

// Logger defines the logging interface used by entities.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entity is implemented by every device in this package.
type Entity interface {
	lifecycle.Component
	session.Component

	Kind() Kind
	ObjectID() string
	Info() Info
}

// Info is a read-only view of an entity for the API.
type Info struct {
	Kind           Kind   `json:"kind"`
	ObjectID       string `json:"object_id"`
	Name           string `json:"name"`
	State          string `json:"state"`
	StateTopic     string `json:"state_topic"`
	CommandTopic   string `json:"command_topic,omitempty"`
	DiscoveryTopic string `json:"discovery_topic,omitempty"`
}

// entity holds what every kind shares: identity, topics and discovery.
type entity struct {
	kind     Kind
	objectID string
	name     string
	icon     string

	node   NodeInfo
	pub    session.Publisher
	logger Logger
	now    func() time.Time
}

func newEntity(kind Kind, objectID, name string, node NodeInfo, pub session.Publisher) entity {
	if name == "" {
		name = objectID
	}
	return entity{
		kind:     kind,
		objectID: objectID,
		name:     name,
		node:     node,
		pub:      pub,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// Kind returns the entity kind.
func (e *entity) Kind() Kind { return e.kind }

// ObjectID returns the entity id, unique per kind.
func (e *entity) ObjectID() string { return e.objectID }

// SetLogger sets the entity's logger.
func (e *entity) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetupPriority places entities after the session.
func (e *entity) SetupPriority() float64 {
	return lifecycle.PriorityAfterConnection
}

// StateTopic returns <prefix>/<kind>/<object_id>/state.
func (e *entity) StateTopic() string {
	return session.JoinTopic(e.pub.TopicPrefix(), string(e.kind)+"/"+e.objectID+"/state")
}

// CommandTopic returns <prefix>/<kind>/<object_id>/command.
func (e *entity) CommandTopic() string {
	return session.JoinTopic(e.pub.TopicPrefix(), string(e.kind)+"/"+e.objectID+"/command")
}

// DiscoveryTopic returns the discovery config topic, or "" when discovery
// is disabled.
func (e *entity) DiscoveryTopic() string {
	d := e.pub.DiscoveryInfo()
	if !d.Enabled() {
		return ""
	}
	return d.Prefix + "/" + string(e.kind) + "/" + e.node.ID + "/" + e.objectID + "/config"
}

// UniqueID identifies the entity across nodes.
func (e *entity) UniqueID() string {
	return e.node.ID + "_" + e.objectID
}

// publishDiscovery sends the discovery config. fill adds kind-specific
// fields. With discovery in clean mode an empty retained payload is sent
// instead, which removes the entity from Home Assistant.
func (e *entity) publishDiscovery(fill func(obj session.JSONObject)) bool {
	topic := e.DiscoveryTopic()
	if topic == "" {
		return true
	}

	d := e.pub.DiscoveryInfo()
	if d.Clean {
		return e.pub.Publish(topic, "", 0, true)
	}

	return e.pub.PublishJSON(topic, func(obj session.JSONObject) error {
		obj["name"] = e.name
		obj["unique_id"] = e.UniqueID()
		obj["object_id"] = e.node.ID + "_" + e.objectID
		obj["state_topic"] = e.StateTopic()
		if e.icon != "" {
			obj["icon"] = e.icon
		}

		if a := e.pub.Availability(); a.Enabled() {
			obj["availability_topic"] = a.Topic
			obj["payload_available"] = a.PayloadAvailable
			obj["payload_not_available"] = a.PayloadNotAvailable
		}

		device := map[string]any{
			"identifiers":  []any{e.node.ID},
			"name":         e.node.Name,
			"manufacturer": manufacturer,
		}
		if e.node.Version != "" {
			device["sw_version"] = e.node.Version
		}
		obj["device"] = device

		if fill != nil {
			fill(obj)
		}
		return nil
	}, 0, d.Retain)
}

// publishState sends a retained state message.
func (e *entity) publishState(payload string) bool {
	return e.pub.Publish(e.StateTopic(), payload, 0, true)
}
