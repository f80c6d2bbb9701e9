package device

import (
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// DefaultUpdateInterval is how often sensors are read when no interval is
// configured.
const DefaultUpdateInterval = 60 * time.Second

// SensorOptions are the optional discovery attributes of a Sensor.
type SensorOptions struct {
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	Precision   int
	Interval    time.Duration
}

// Sensor publishes a numeric reading every interval.
type Sensor struct {
	entity
	source ValueSource
	opts   SensorOptions

	value    float64
	hasValue bool
	lastRead time.Time
}

// NewSensor creates a Sensor reading from source.
func NewSensor(objectID, name string, source ValueSource, opts SensorOptions, node NodeInfo, pub session.Publisher) *Sensor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultUpdateInterval
	}
	s := &Sensor{
		entity: newEntity(KindSensor, objectID, name, node, pub),
		source: source,
		opts:   opts,
	}
	s.icon = opts.Icon
	return s
}

// Setup takes the first reading.
func (s *Sensor) Setup() error {
	s.update()
	return nil
}

// Loop reads the source when the interval has elapsed and publishes the
// new value.
func (s *Sensor) Loop() {
	if s.now().Sub(s.lastRead) < s.opts.Interval {
		return
	}
	if s.update() && s.pub.IsConnected() {
		s.publishState(s.State())
	}
}

// OnReconnect republishes the discovery config and the last value.
func (s *Sensor) OnReconnect() {
	s.publishDiscovery(func(obj session.JSONObject) {
		if s.opts.Unit != "" {
			obj["unit_of_measurement"] = s.opts.Unit
		}
		if s.opts.DeviceClass != "" {
			obj["device_class"] = s.opts.DeviceClass
		}
		if s.opts.StateClass != "" {
			obj["state_class"] = s.opts.StateClass
		}
	})
	if s.hasValue {
		s.publishState(s.State())
	}
}

// State returns the last reading formatted with the configured precision,
// or "" before the first successful reading.
func (s *Sensor) State() string {
	if !s.hasValue {
		return ""
	}
	return strconv.FormatFloat(s.value, 'f', s.opts.Precision, 64)
}

// DumpConfig logs the sensor.
func (s *Sensor) DumpConfig() {
	s.logger.Info("sensor",
		"id", s.objectID,
		"name", s.name,
		"unit", s.opts.Unit,
		"interval", s.opts.Interval,
		"state_topic", s.StateTopic(),
	)
}

// Info returns the API view of the sensor.
func (s *Sensor) Info() Info {
	return Info{
		Kind:           s.kind,
		ObjectID:       s.objectID,
		Name:           s.name,
		State:          s.State(),
		StateTopic:     s.StateTopic(),
		DiscoveryTopic: s.DiscoveryTopic(),
	}
}

func (s *Sensor) update() bool {
	s.lastRead = s.now()
	v, err := s.source.Read()
	if err != nil {
		s.logger.Warn("sensor read failed", "id", s.objectID, "error", err)
		return false
	}
	s.value = v
	s.hasValue = true
	return true
}
