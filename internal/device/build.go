package device

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Build creates the configured entities. Switch automation actions publish
// through pub.
func Build(cfg config.DevicesConfig, node NodeInfo, pub session.Publisher, logger Logger) (*Registry, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	reg := NewRegistry()

	for _, sc := range cfg.Sensors {
		var source ValueSource
		switch sc.Source {
		case config.SourceUptime:
			source = NewUptimeSource()
		case config.SourceFile:
			source = FileSource{Path: sc.Path, Scale: sc.Scale}
		default:
			return nil, fmt.Errorf("%w: sensor %q: unknown source %q", ErrInvalidDevice, sc.ID, sc.Source)
		}

		s := NewSensor(sc.ID, sc.Name, source, SensorOptions{
			Unit:        sc.Unit,
			DeviceClass: sc.DeviceClass,
			StateClass:  sc.StateClass,
			Icon:        sc.Icon,
			Precision:   sc.Precision,
			Interval:    time.Duration(sc.Interval) * time.Second,
		}, node, pub)
		s.SetLogger(logger)
		if err := reg.Add(s); err != nil {
			return nil, err
		}
	}

	for _, bc := range cfg.BinarySensors {
		var source BoolSource
		deviceClass := bc.DeviceClass
		switch bc.Source {
		case config.SourceStatus:
			source = ConnectedSource{Status: pub}
			if deviceClass == "" {
				deviceClass = "connectivity"
			}
		case config.SourceFile:
			source = FileBoolSource{Path: bc.Path}
		default:
			return nil, fmt.Errorf("%w: binary sensor %q: unknown source %q", ErrInvalidDevice, bc.ID, bc.Source)
		}

		b := NewBinarySensor(bc.ID, bc.Name, deviceClass, source, time.Duration(bc.Interval)*time.Second, node, pub)
		b.SetLogger(logger)
		if err := reg.Add(b); err != nil {
			return nil, err
		}
	}

	for _, sw := range cfg.Switches {
		var output Output
		if sw.Path != "" {
			output = FileOutput{Path: sw.Path}
		}

		s := NewSwitch(sw.ID, sw.Name, sw.Icon, output, node, pub)
		s.SetLogger(logger)

		on, err := automation.BuildActions(sw.OnTurnOn, pub, logger)
		if err != nil {
			return nil, fmt.Errorf("switch %q on_turn_on: %w", sw.ID, err)
		}
		off, err := automation.BuildActions(sw.OnTurnOff, pub, logger)
		if err != nil {
			return nil, fmt.Errorf("switch %q on_turn_off: %w", sw.ID, err)
		}
		s.OnTurnOn(on...)
		s.OnTurnOff(off...)

		if err := reg.Add(s); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
