package device

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// BinarySensor publishes an on/off reading whenever it changes.
type BinarySensor struct {
	entity
	source      BoolSource
	deviceClass string
	interval    time.Duration

	state    bool
	hasState bool
	lastRead time.Time
}

// NewBinarySensor creates a BinarySensor reading from source every interval.
// A non-positive interval reads on every tick.
func NewBinarySensor(objectID, name, deviceClass string, source BoolSource, interval time.Duration, node NodeInfo, pub session.Publisher) *BinarySensor {
	return &BinarySensor{
		entity:      newEntity(KindBinarySensor, objectID, name, node, pub),
		source:      source,
		deviceClass: deviceClass,
		interval:    interval,
	}
}

// Setup takes the first reading.
func (b *BinarySensor) Setup() error {
	b.read()
	return nil
}

// Loop reads the source and publishes on change.
func (b *BinarySensor) Loop() {
	if b.interval > 0 && b.now().Sub(b.lastRead) < b.interval {
		return
	}
	if b.read() && b.pub.IsConnected() {
		b.publishState(b.State())
	}
}

// OnReconnect republishes the discovery config and the current state.
func (b *BinarySensor) OnReconnect() {
	b.read()
	b.publishDiscovery(func(obj session.JSONObject) {
		obj["payload_on"] = PayloadOn
		obj["payload_off"] = PayloadOff
		if b.deviceClass != "" {
			obj["device_class"] = b.deviceClass
		}
	})
	if b.hasState {
		b.publishState(b.State())
	}
}

// State returns "ON", "OFF" or "" before the first reading.
func (b *BinarySensor) State() string {
	switch {
	case !b.hasState:
		return ""
	case b.state:
		return PayloadOn
	default:
		return PayloadOff
	}
}

// DumpConfig logs the binary sensor.
func (b *BinarySensor) DumpConfig() {
	b.logger.Info("binary sensor",
		"id", b.objectID,
		"name", b.name,
		"device_class", b.deviceClass,
		"state_topic", b.StateTopic(),
	)
}

// Info returns the API view of the binary sensor.
func (b *BinarySensor) Info() Info {
	return Info{
		Kind:           b.kind,
		ObjectID:       b.objectID,
		Name:           b.name,
		State:          b.State(),
		StateTopic:     b.StateTopic(),
		DiscoveryTopic: b.DiscoveryTopic(),
	}
}

// read updates the state and reports whether it changed.
func (b *BinarySensor) read() bool {
	b.lastRead = b.now()
	v, err := b.source.Read()
	if err != nil {
		b.logger.Warn("binary sensor read failed", "id", b.objectID, "error", err)
		return false
	}
	changed := !b.hasState || v != b.state
	b.state = v
	b.hasState = true
	return changed
}
