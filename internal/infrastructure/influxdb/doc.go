// Package influxdb writes node telemetry to InfluxDB.
//
// Two kinds of points are written, both tagged with the node name:
//   - mqtt_session_event: one point per session state change or watchdog
//     reboot, with from/to state, reason and a connected flag
//   - mqtt_session_counters: the session's running totals every report
//     interval
//
// Telemetry is the loop component that produces them. It observes the
// session client and reads its snapshot on the loop goroutine.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Node.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	tel := influxdb.NewTelemetry(client, sessionClient, cfg.GetReportInterval(), log)
//	sessionClient.AddObserver(tel)
//	scheduler.Register(tel)
//
// Writes never block: the client batches points according to batch_size
// and flush_interval, and write failures are delivered to the SetOnError
// callback.
package influxdb
