package session

import (
	"fmt"
	"unicode/utf8"
)

// MaxClientIDLength is the longest client identifier an MQTT 3.1 broker is
// required to accept.
const MaxClientIDLength = 23

// DefaultDiscoveryPrefix is the Home Assistant discovery prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// Default payloads for the status topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Message is a topic, payload, QoS and retain tuple.
//
// Used for the last will, birth, shutdown and log messages. An empty topic
// means the feature is disabled.
type Message struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
}

// Enabled reports whether the message has a topic.
func (m Message) Enabled() bool {
	return m.Topic != ""
}

// Credentials holds the broker address and login details.
type Credentials struct {
	// Address is the broker host name or IP address, without port.
	Address string
	Port    uint16

	Username string
	Password string

	// ClientID is truncated to MaxClientIDLength bytes.
	ClientID string
}

// NewCredentials builds Credentials, truncating the client id.
func NewCredentials(address string, port uint16, username, password, clientID string) Credentials {
	return Credentials{
		Address:  address,
		Port:     port,
		Username: username,
		Password: password,
		ClientID: TruncateClientID(clientID),
	}
}

// TruncateClientID shortens id to at most MaxClientIDLength bytes, the MQTT
// 3.1 limit on the encoded identifier. A multibyte character that would be
// split is dropped whole. Shorter ids are returned unchanged.
func TruncateClientID(id string) string {
	if len(id) <= MaxClientIDLength {
		return id
	}
	n := MaxClientIDLength
	for n > 0 && !utf8.RuneStart(id[n]) {
		n--
	}
	return id[:n]
}

// Availability describes the topic and payloads other systems use to see
// whether this node is online. An empty topic means availability is disabled.
type Availability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

// Enabled reports whether an availability topic is set.
func (a Availability) Enabled() bool {
	return a.Topic != ""
}

// DiscoveryInfo holds the Home Assistant discovery settings.
//
// See https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery.
type DiscoveryInfo struct {
	// Prefix is the discovery topic prefix. Empty means discovery is disabled.
	Prefix string `json:"prefix"`

	// Retain marks discovery messages as retained.
	Retain bool `json:"retain"`

	// Clean makes components publish empty discovery payloads, removing
	// any entities a previous configuration registered.
	Clean bool `json:"clean"`
}

// Enabled reports whether discovery is on.
func (d DiscoveryInfo) Enabled() bool {
	return d.Prefix != ""
}

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateResolvingAddress
	StateConnecting
	StateConnected
)

// String returns the state name used in logs and the diagnostics API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateResolvingAddress:
		return "resolving_address"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DisconnectReason explains why the session left the Connecting or
// Connected state.
type DisconnectReason int

const (
	ReasonNone DisconnectReason = iota
	ReasonTCPDisconnected
	ReasonUnacceptableProtocolVersion
	ReasonIdentifierRejected
	ReasonServerUnavailable
	ReasonMalformedCredentials
	ReasonNotAuthorized
	ReasonTLSBadFingerprint
	ReasonConnectTimeout
	ReasonDNSFailure
	ReasonShutdown
	ReasonUnknown
)

// String returns a short, log-friendly description.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTCPDisconnected:
		return "tcp_disconnected"
	case ReasonUnacceptableProtocolVersion:
		return "unacceptable_protocol_version"
	case ReasonIdentifierRejected:
		return "identifier_rejected"
	case ReasonServerUnavailable:
		return "server_unavailable"
	case ReasonMalformedCredentials:
		return "malformed_credentials"
	case ReasonNotAuthorized:
		return "not_authorized"
	case ReasonTLSBadFingerprint:
		return "tls_bad_fingerprint"
	case ReasonConnectTimeout:
		return "connect_timeout"
	case ReasonDNSFailure:
		return "dns_failure"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason as its name.
func (r DisconnectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
