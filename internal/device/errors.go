package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidDevice) {
//	    // report the offending config entry
//	}
var (
	// ErrInvalidDevice is returned when a device definition is incomplete.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrDeviceExists is returned when two devices of one kind share an id.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrDeviceNotFound is returned when a kind and id do not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidReading is returned when a value source yields unusable data.
	ErrInvalidReading = errors.New("device: invalid reading")
)
