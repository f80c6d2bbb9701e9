// Package session manages the node's MQTT session with a single broker.
//
// This package owns:
//   - The connection state machine (Disconnected → ResolvingAddress →
//     Connecting → Connected) with reconnect delay, DNS and connect timeouts
//   - The subscription registry and per-subscription resubscribe timers
//   - Birth, last will, shutdown and log forwarding messages
//   - Home Assistant discovery settings and the derived availability topic
//   - The list of dependent components notified on every (re)connection
//
// # Execution Model
//
// A Client is driven by a single goroutine: the lifecycle scheduler calls
// Loop periodically and every public method is expected to run on that same
// goroutine. Nothing in Loop blocks. DNS lookups, connects, publishes and
// subscribes are fire-and-forget against the Transport and Resolver; their
// results are collected on later ticks (Transport.Poll, Lookup.Result).
//
// # Usage
//
//	client := session.New(session.NewCredentials("broker.lan", 1883, "", "", "kitchen-node"),
//	    "kitchen", session.Deps{
//	        Transport: transport,
//	        Resolver:  resolver,
//	        Logger:    log,
//	    })
//	client.SubscribeFunc("kitchen/light/command", func(topic, payload string) {
//	    log.Info("command received", "payload", payload)
//	}, 0)
//
//	scheduler.Register(client)
//
// Publishing returns false instead of an error: callers on an embedded node
// have nothing better to do with a failed publish than move on.
package session
