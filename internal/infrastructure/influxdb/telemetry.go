package influxdb

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// StatusSource provides session snapshots.
type StatusSource interface {
	Snapshot() session.Status
}

// SessionWriter receives session telemetry.
type SessionWriter interface {
	WriteSessionEvent(e session.Event)
	WriteSessionCounters(s session.Status, ts time.Time)
}

// Telemetry is a loop component that forwards session events to InfluxDB
// and writes the session counters every interval.
//
// It runs on the loop goroutine like the session itself, so Snapshot is
// read without synchronisation.
type Telemetry struct {
	writer   SessionWriter
	source   StatusSource
	interval time.Duration
	now      func() time.Time

	lastReport time.Time
	logger     lifecycle.Logger
}

// NewTelemetry creates a Telemetry component. A zero interval disables
// counter reports.
func NewTelemetry(writer SessionWriter, source StatusSource, interval time.Duration, logger lifecycle.Logger) *Telemetry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Telemetry{
		writer:   writer,
		source:   source,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// OnSessionEvent writes e.
func (t *Telemetry) OnSessionEvent(e session.Event) {
	t.writer.WriteSessionEvent(e)
}

// Setup starts the report interval.
func (t *Telemetry) Setup() error {
	t.lastReport = t.now()
	return nil
}

// Loop writes the counters when the interval has elapsed.
func (t *Telemetry) Loop() {
	if t.interval <= 0 {
		return
	}
	now := t.now()
	if now.Sub(t.lastReport) < t.interval {
		return
	}
	t.lastReport = now
	t.writer.WriteSessionCounters(t.source.Snapshot(), now)
}

// DumpConfig logs the report interval.
func (t *Telemetry) DumpConfig() {
	t.logger.Info("influxdb telemetry", "report_interval", t.interval)
}

// SetupPriority runs telemetry after everything else.
func (t *Telemetry) SetupPriority() float64 {
	return lifecycle.PriorityLate
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var (
	_ lifecycle.Component = (*Telemetry)(nil)
	_ session.Observer    = (*Telemetry)(nil)
	_ SessionWriter       = (*Client)(nil)
)
