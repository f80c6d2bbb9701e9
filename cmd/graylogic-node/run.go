package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/device"
	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/dns"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// run wires the node and drives its loop until ctx ends or the watchdog
// requests a reboot.
//
// Returns:
//   - error: nil on clean shutdown, lifecycle.ErrRebootRequested (wrapped)
//     after a watchdog reboot, or the first setup failure
func run(ctx context.Context, cfg *config.Config) error {
	// The transport logs every packet at debug; it gets the plain logger so
	// its lines are never forwarded back over MQTT.
	base := logging.New(cfg.Logging, version)
	forwarder := logging.NewForwarder(logging.ParseLevel(cfg.MQTT.Log.Level), cfg.MQTT.Log.Buffer)
	log := base
	if !cfg.MQTT.Log.Disabled {
		log = base.WithForwarder(forwarder)
	}
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
		"node", cfg.Node.Name,
	)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	scheduler := lifecycle.NewScheduler(cfg.GetLoopInterval(), log.With("component", "loop"))
	rebooter := lifecycle.NewRebooter(cfg.Node.RebootCommand, cancel, log.With("component", "reboot"))

	transport := mqtt.NewTransport(mqtt.Options{
		TLS: mqtt.TLSConfig{
			Enabled:      cfg.MQTT.Broker.TLS.Enabled,
			CAFile:       cfg.MQTT.Broker.TLS.CAFile,
			Fingerprints: cfg.MQTT.Broker.TLS.Fingerprints,
		},
		Logger: base.With("component", "mqtt"),
	})
	resolver := dns.New(dns.Config{
		Nameserver: cfg.DNS.Nameserver,
		Timeout:    cfg.GetDNSTimeout(),
	}, log.With("component", "dns"))

	client, err := newSession(cfg, session.Deps{
		Transport: transport,
		Resolver:  resolver,
		Rebooter:  rebooter,
		Logs:      forwarder,
		Logger:    log.With("component", "session"),
	})
	if err != nil {
		return err
	}
	scheduler.Register(client)

	// Entities and automations
	node := device.NodeInfo{ID: cfg.Node.Name, Name: cfg.Node.FriendlyName, Version: version}
	registry, err := device.Build(cfg.Devices, node, client, log.With("component", "device"))
	if err != nil {
		return fmt.Errorf("building devices: %w", err)
	}
	for _, e := range registry.All() {
		scheduler.Register(e)
		client.Register(e)
	}
	automations, err := automation.Build(cfg.Automations, client, log.With("component", "automation"))
	if err != nil {
		return fmt.Errorf("building automations: %w", err)
	}
	for _, a := range automations {
		scheduler.Register(a)
	}
	log.Info("components built", "entities", registry.Count(), "automations", len(automations))

	checks := make(map[string]api.HealthChecker)

	// Session history (optional)
	var repo history.Repository
	var recorder *history.Recorder
	if cfg.Database.Enabled {
		db, dbErr := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", db.Path())
		checks["database"] = db

		sqlRepo := history.NewSQLiteRepository(db.DB)
		repo = sqlRepo
		recorder = history.NewRecorder(sqlRepo, history.DefaultQueueSize, log.With("component", "history"))
		client.AddObserver(recorder)

		// The recorder outlives the loop so the shutdown transition is stored.
		recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Run(recCtx)
		}()
		defer func() {
			stopRecorder()
			wg.Wait()
		}()
	} else {
		log.Info("session history disabled")
	}

	// InfluxDB telemetry (optional). An unreachable server is not fatal.
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Node.Name)
		if influxErr != nil {
			log.Warn("InfluxDB unavailable, telemetry disabled", "url", cfg.InfluxDB.URL, "error", influxErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				base.Warn("InfluxDB write error", "error", err)
			})
			telemetry := influxdb.NewTelemetry(influxClient, client, cfg.GetReportInterval(), log.With("component", "telemetry"))
			scheduler.Register(telemetry)
			client.AddObserver(telemetry)
			checks["influxdb"] = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	// Diagnostics API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Loop:    scheduler,
			Session: client,
			Devices: registry,
			History: repo,
			Checks:  checks,
			Stats: api.StatsFunc(func() map[string]uint64 {
				stats := map[string]uint64{
					"log_lines_dropped":      forwarder.Dropped(),
					"transport_msgs_dropped": transport.Dropped(),
				}
				if recorder != nil {
					stats["history_written"] = recorder.Written()
					stats["history_dropped"] = recorder.Dropped()
				}
				return stats
			}),
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		client.AddObserver(srv.Hub())
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, entering loop")
	err = scheduler.Run(ctx)
	if err != nil {
		log.Error("loop ended", "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// newSession creates the session client and applies the mqtt section of
// cfg over its prefix-derived defaults.
func newSession(cfg *config.Config, deps session.Deps) (*session.Client, error) {
	m := cfg.MQTT
	creds := session.NewCredentials(
		m.Broker.Host,
		uint16(m.Broker.Port), //nolint:gosec // port range checked by config validation
		m.Auth.Username,
		m.Auth.Password,
		m.Broker.ClientID,
	)
	client, err := session.New(creds, m.TopicPrefix, deps)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	client.SetKeepAlive(cfg.GetKeepAlive())
	client.SetCleanSession(m.CleanSession)
	client.SetRebootTimeout(cfg.GetRebootTimeout())
	client.SetBootWait(cfg.GetBootWait())
	client.SetMaxPayloadSize(m.MaxPayloadSize)

	if m.Discovery.Enabled {
		client.SetDiscoveryInfo(m.Discovery.Prefix, m.Discovery.Retain, m.Discovery.Clean)
	} else {
		client.DisableDiscovery()
	}

	applyMessage(m.Birth, client.BirthMessage(), client.SetBirthMessage, client.DisableBirthMessage)
	applyMessage(m.Will, client.LastWill(), client.SetLastWill, client.DisableLastWill)
	applyMessage(m.Shutdown, client.ShutdownMessage(), client.SetShutdownMessage, client.DisableShutdownMessage)

	if m.Log.Disabled {
		client.DisableLog()
	} else {
		lm := client.LogMessage()
		if m.Log.Topic != "" {
			lm.Topic = m.Log.Topic
		}
		lm.QoS = byte(m.Log.QoS) //nolint:gosec // qos checked by config validation
		lm.Retain = m.Log.Retain
		client.SetLogMessage(lm)
		client.SetLogLevel(logging.ParseLevel(m.Log.Level))
	}

	return client, nil
}

// applyMessage overlays the non-empty fields of mc on current.
func applyMessage(mc config.MQTTMessageConfig, current session.Message, set func(session.Message), disable func()) {
	if mc.Disabled {
		disable()
		return
	}
	m := current
	if mc.Topic != "" {
		m.Topic = mc.Topic
	}
	if mc.Payload != "" {
		m.Payload = mc.Payload
	}
	if mc.QoS != 0 {
		m.QoS = byte(mc.QoS) //nolint:gosec // qos checked by config validation
	}
	if mc.Retain != nil {
		m.Retain = *mc.Retain
	}
	if m != current {
		set(m)
	}
}
