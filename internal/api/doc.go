// Package api implements the node's local HTTP diagnostics API and its
// WebSocket event stream.
//
// This package provides:
//   - Session status, counters and an ad-hoc publish endpoint
//   - Entity listing and switch commands
//   - Session history read from the SQLite event log
//   - A WebSocket hub that relays session events as they happen
//
// # Threading
//
// The MQTT session and the entity registry are owned by the node's loop
// goroutine. Handlers never touch them directly; every read or command is
// posted with Loop.Call and waits for the loop to run it. A stopped loop
// answers 503, a request whose context expires first answers 504.
//
// # Security
//
// The API has no authentication and is meant to bind to localhost or a
// management network only.
package api
