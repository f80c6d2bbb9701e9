// Package device provides the entities a Gray Logic Node exposes over MQTT.
//
// Each entity announces itself with a Home Assistant discovery config and
// publishes its state under the session's topic prefix:
//
//	<discovery_prefix>/<kind>/<node>/<object_id>/config   discovery (retained)
//	<topic_prefix>/<kind>/<object_id>/state              state (retained)
//	<topic_prefix>/<kind>/<object_id>/command            commands (switches)
//
// Entities are dependent components of the session: after every
// (re)connection the session calls OnReconnect, which republishes the
// discovery config and the current state. They are also lifecycle
// components, ticked by the scheduler to poll their value sources.
//
// # Key Types
//
//   - Sensor: numeric value read from a ValueSource
//   - BinarySensor: on/off value read from a BoolSource
//   - Switch: on/off state set through its command topic
//   - Registry: the node's entities, in registration order
//
// # Thread Safety
//
// Entities are owned by the loop goroutine. Other goroutines read them
// through Registry.Snapshot, posted onto the loop.
//
// # Usage
//
//	entities, err := device.Build(cfg.Devices, node, client, log)
//	if err != nil {
//	    return err
//	}
//	for _, e := range entities.All() {
//	    client.Register(e)
//	    scheduler.Register(e)
//	}
package device
