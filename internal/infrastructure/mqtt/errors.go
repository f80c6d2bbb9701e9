package mqtt

import "errors"

// Domain-specific errors for the MQTT transport.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidFingerprint is returned when a configured fingerprint is not
	// a 40 or 64 character hex string.
	ErrInvalidFingerprint = errors.New("mqtt: fingerprint must be SHA-1 or SHA-256 hex")

	// ErrFingerprintMismatch is returned by the TLS handshake when the
	// broker's certificate matches none of the configured fingerprints.
	ErrFingerprintMismatch = errors.New("mqtt: broker certificate fingerprint mismatch")

	// ErrNoPeerCertificate is returned by the TLS handshake when the broker
	// presented no certificate.
	ErrNoPeerCertificate = errors.New("mqtt: broker presented no certificate")

	// ErrCAFile is returned when the CA bundle cannot be read or parsed.
	ErrCAFile = errors.New("mqtt: invalid CA file")
)
