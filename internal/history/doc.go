// Package history keeps a persistent log of MQTT session events.
//
// The session reports every state transition and watchdog reboot to its
// observers on the loop goroutine. Recorder is such an observer: it queues
// events without blocking and a writer goroutine stores them in SQLite, so
// the log survives the reboot it records.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	rec := history.NewRecorder(repo, history.DefaultQueueSize, log)
//	client.AddObserver(rec)
//	go rec.Run(ctx)
//
//	entries, err := repo.List(ctx, history.Filter{Kind: "reboot", Limit: 10})
package history
