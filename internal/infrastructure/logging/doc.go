// Package logging provides the node's structured logger and the forwarder
// that copies log lines to the MQTT log topic.
//
// Logger wraps log/slog. Every record carries service and version fields,
// and output is JSON or text on stdout or stderr:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// A Forwarder sits beside the normal handler. Records at or above its level
// are rendered as one line ("[W] connection lost component=session ...") and
// kept in a bounded buffer. The session loop drains the buffer and
// publishes each line to <prefix>/debug. A line arriving at a full buffer
// is dropped and counted.
//
//	log := logging.New(cfg.Logging, version)
//	fwd := logging.NewForwarder(slog.LevelInfo, 64)
//	log = log.WithForwarder(fwd)
//	// session.Deps{Logs: fwd, Logger: log.With("component", "session")}
//
// The MQTT transport must log through a logger without the forwarder, or
// publishing a forwarded line would produce another one.
//
// Never log broker passwords or InfluxDB tokens.
package logging
