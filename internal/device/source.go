package device

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ValueSource yields numeric readings for a Sensor.
type ValueSource interface {
	Read() (float64, error)
}

// BoolSource yields on/off readings for a BinarySensor.
type BoolSource interface {
	Read() (bool, error)
}

// UptimeSource reports seconds since it was created.
type UptimeSource struct {
	start time.Time
	now   func() time.Time
}

// NewUptimeSource creates an UptimeSource starting now.
func NewUptimeSource() *UptimeSource {
	return &UptimeSource{start: time.Now(), now: time.Now}
}

// Read returns whole seconds of uptime.
func (u *UptimeSource) Read() (float64, error) {
	return float64(u.now().Sub(u.start) / time.Second), nil
}

// FileSource reads a number from a file, such as a sysfs thermal zone,
// and multiplies it by Scale.
type FileSource struct {
	Path  string
	Scale float64
}

// Read parses the first field of the file.
func (f FileSource) Read() (float64, error) {
	text, err := readFirstField(f.Path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidReading, f.Path, text)
	}
	scale := f.Scale
	if scale == 0 {
		scale = 1
	}
	return v * scale, nil
}

// FileBoolSource reads on/off from a file. "1", "on", "true" and "yes"
// (any case) are on; "0", "off", "false" and "no" are off.
type FileBoolSource struct {
	Path string
}

// Read parses the first field of the file.
func (f FileBoolSource) Read() (bool, error) {
	text, err := readFirstField(f.Path)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(text) {
	case "1", "on", "true", "yes":
		return true, nil
	case "0", "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %s: %q is not on or off", ErrInvalidReading, f.Path, text)
}

// ConnectedSource reports whether the session is connected.
type ConnectedSource struct {
	Status interface{ IsConnected() bool }
}

// Read returns the session's connection status.
func (c ConnectedSource) Read() (bool, error) {
	return c.Status.IsConnected(), nil
}

// BoolFunc adapts a function to the BoolSource interface.
type BoolFunc func() (bool, error)

// Read calls f().
func (f BoolFunc) Read() (bool, error) { return f() }

// ValueFunc adapts a function to the ValueSource interface.
type ValueFunc func() (float64, error)

// Read calls f().
func (f ValueFunc) Read() (float64, error) { return f() }

func readFirstField(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's config
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidReading, path)
	}
	return fields[0], nil
}

// FileOutput writes "1" or "0" to a file when a switch changes.
type FileOutput struct {
	Path string
}

// Write stores the state.
func (f FileOutput) Write(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := os.WriteFile(f.Path, []byte(v+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	return nil
}
