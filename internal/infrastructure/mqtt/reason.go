package mqtt

import (
	"errors"
	"strings"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// reasonFor maps a paho connect or connection-lost error to a session
// disconnect reason.
func reasonFor(err error) session.DisconnectReason {
	switch {
	case err == nil:
		return session.ReasonTCPDisconnected
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion):
		return session.ReasonUnacceptableProtocolVersion
	case errors.Is(err, packets.ErrorRefusedIDRejected):
		return session.ReasonIdentifierRejected
	case errors.Is(err, packets.ErrorRefusedServerUnavailable):
		return session.ReasonServerUnavailable
	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		return session.ReasonMalformedCredentials
	case errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return session.ReasonNotAuthorized
	case errors.Is(err, ErrFingerprintMismatch),
		errors.Is(err, ErrNoPeerCertificate),
		strings.Contains(err.Error(), ErrFingerprintMismatch.Error()):
		return session.ReasonTLSBadFingerprint
	default:
		return session.ReasonTCPDisconnected
	}
}
