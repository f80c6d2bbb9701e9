package mqtt

import (
	"crypto/sha1" //nolint:gosec // SHA-1 fingerprints are accepted for pinning only
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds the TCP/TLS dial inside paho. The session
	// applies its own, longer, connect timeout on top.
	defaultConnectTimeout = 30 * time.Second

	// defaultWriteTimeout bounds a single packet write.
	defaultWriteTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time given to in-flight messages
	// (the shutdown message) on an orderly disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultEventBuffer is the number of queued message events kept
	// between two polls.
	defaultEventBuffer = 1024

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// TLSConfig enables TLS towards the broker.
type TLSConfig struct {
	Enabled bool

	// CAFile is a PEM bundle used to verify the broker chain. Empty uses
	// the system pool.
	CAFile string

	// Fingerprints pins the broker's leaf certificate. Each entry is a
	// SHA-1 (40 hex chars) or SHA-256 (64 hex chars) digest; colons and
	// case are ignored.
	Fingerprints []string
}

// Options configures a Transport.
type Options struct {
	TLS TLSConfig

	// ConnectTimeout bounds the dial. Zero uses 30s.
	ConnectTimeout time.Duration

	// WriteTimeout bounds a single packet write. Zero uses 5s.
	WriteTimeout time.Duration

	// EventBuffer caps the queued message events. Zero uses 1024.
	EventBuffer int

	Logger Logger
}

// buildClientOptions creates paho options for one connect attempt.
//
// This configures:
//   - Broker URL (tcp:// or ssl://) from the resolved address
//   - Client ID, credentials, keepalive and clean session
//   - The last will, when its topic is set
//   - TLS with optional fingerprint pinning
//
// Auto-reconnect and connect-retry are always off; the session decides
// when to try again.
func buildClientOptions(c session.ConnectOptions, o Options) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if o.TLS.Enabled {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Address, strconv.Itoa(int(c.Port)))))

	opts.SetClientID(c.ClientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}

	opts.SetCleanSession(c.CleanSession)
	if c.KeepAlive > 0 {
		opts.SetKeepAlive(c.KeepAlive)
	}

	if c.Will.Enabled() {
		opts.SetWill(c.Will.Topic, c.Will.Payload, c.Will.QoS, c.Will.Retain)
	}

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(true)

	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	writeTimeout := o.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	opts.SetWriteTimeout(writeTimeout)

	if o.TLS.Enabled {
		tlsConfig, err := buildTLSConfig(o.TLS, c.Host)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig creates the TLS configuration for host.
//
// With fingerprints and no CA file, chain verification is skipped and the
// leaf certificate must match a fingerprint. With a CA file, both the chain
// and (when set) a fingerprint must match.
func buildTLSConfig(cfg TLSConfig, host string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tlsMinVersion,
		ServerName: host,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrCAFile, cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if len(cfg.Fingerprints) == 0 {
		return tlsConfig, nil
	}

	pins, err := parseFingerprints(cfg.Fingerprints)
	if err != nil {
		return nil, err
	}
	if cfg.CAFile == "" {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec // replaced by fingerprint verification below
	}
	tlsConfig.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrNoPeerCertificate
		}
		if !pins.match(rawCerts[0]) {
			return ErrFingerprintMismatch
		}
		return nil
	}

	return tlsConfig, nil
}

// fingerprints holds decoded certificate digests by length.
type fingerprints struct {
	sha1   [][]byte
	sha256 [][]byte
}

func parseFingerprints(values []string) (fingerprints, error) {
	var fp fingerprints
	for _, v := range values {
		clean := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), ":", ""))
		raw, err := hex.DecodeString(clean)
		if err != nil {
			return fingerprints{}, fmt.Errorf("%w: %q", ErrInvalidFingerprint, v)
		}
		switch len(raw) {
		case sha1.Size:
			fp.sha1 = append(fp.sha1, raw)
		case sha256.Size:
			fp.sha256 = append(fp.sha256, raw)
		default:
			return fingerprints{}, fmt.Errorf("%w: %q", ErrInvalidFingerprint, v)
		}
	}
	return fp, nil
}

func (fp fingerprints) match(der []byte) bool {
	if len(fp.sha1) > 0 {
		sum := sha1.Sum(der) //nolint:gosec // fingerprint comparison only
		for _, want := range fp.sha1 {
			if subtle.ConstantTimeCompare(sum[:], want) == 1 {
				return true
			}
		}
	}
	if len(fp.sha256) > 0 {
		sum := sha256.Sum256(der)
		for _, want := range fp.sha256 {
			if subtle.ConstantTimeCompare(sum[:], want) == 1 {
				return true
			}
		}
	}
	return false
}
