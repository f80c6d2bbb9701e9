// Package mqtt provides the MQTT transport for the Gray Logic node session.
//
// This package manages:
//   - One paho.mqtt.golang client per connection attempt
//   - Non-blocking publish and subscribe requests
//   - Buffering of connect, disconnect, message and subscribe-failure events
//     until the session loop collects them with Poll
//   - Optional TLS with certificate fingerprint pinning
//
// # Architecture
//
// The session package owns reconnection, subscriptions and the birth and
// last will messages. This package only speaks the protocol:
//
//	session.Client ─Connect/Publish/Subscribe→ Transport ─paho→ Broker
//	session.Client ←─────────── Poll(events) ─ Transport ←paho─ Broker
//
// Paho's auto-reconnect and connect-retry are disabled. Every call to
// Connect replaces the previous paho client; events still queued from an
// older client are discarded by Poll.
//
// # Security Considerations
//
//   - TLS is enabled with Options.TLS.Enabled (ssl:// scheme)
//   - Fingerprints pin the broker's leaf certificate (SHA-1 or SHA-256 hex).
//     When fingerprints are set and no CA file is given, chain verification
//     is replaced by the fingerprint check
//   - Anonymous access is only for local development
//
// # Usage
//
//	transport := mqtt.NewTransport(mqtt.Options{Logger: log})
//	client, err := session.New(creds, "kitchen", session.Deps{Transport: transport})
package mqtt
