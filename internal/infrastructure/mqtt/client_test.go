package mqtt

import (
	"crypto/sha1" //nolint:gosec // test fingerprints
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// testConnectOptions returns connect options for a broker that is never
// dialled by these tests.
func testConnectOptions() session.ConnectOptions {
	return session.ConnectOptions{
		Address:   "192.168.1.10",
		Host:      "broker.lan",
		Port:      1883,
		ClientID:  "graylogic-test",
		KeepAlive: 15 * time.Second,
		Will: session.Message{
			Topic:   "kitchen/status",
			Payload: "offline",
			QoS:     1,
			Retain:  true,
		},
	}
}

// recorder implements session.TransportHandler.
type recorder struct {
	calls []string
}

func (r *recorder) OnConnect() { r.calls = append(r.calls, "connect") }
func (r *recorder) OnDisconnect(reason session.DisconnectReason) {
	r.calls = append(r.calls, "disconnect:"+reason.String())
}
func (r *recorder) OnMessage(topic, payload string) {
	r.calls = append(r.calls, "message:"+topic+"="+payload)
}
func (r *recorder) OnSubscribeFailed(topic string) {
	r.calls = append(r.calls, "subfail:"+topic)
}

// =============================================================================
// Client Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	opts, err := buildClientOptions(testConnectOptions(), Options{})
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://192.168.1.10:1883" {
		t.Errorf("Servers = %v, want [tcp://192.168.1.10:1883]", opts.Servers)
	}
	if opts.ClientID != "graylogic-test" {
		t.Errorf("ClientID = %q, want graylogic-test", opts.ClientID)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("auto-reconnect or connect-retry enabled, want both off")
	}
	if !opts.WillEnabled || opts.WillTopic != "kitchen/status" || string(opts.WillPayload) != "offline" {
		t.Errorf("will = %v %q %q, want kitchen/status offline", opts.WillEnabled, opts.WillTopic, opts.WillPayload)
	}
	if opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will qos/retain = %d/%v, want 1/true", opts.WillQos, opts.WillRetained)
	}
	if opts.KeepAlive != 15 {
		t.Errorf("KeepAlive = %d, want 15", opts.KeepAlive)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.TLSConfig != nil && len(opts.TLSConfig.Certificates) > 0 {
		t.Error("TLS configured without TLS enabled")
	}
}

func TestBuildClientOptionsCredentialsAndNoWill(t *testing.T) {
	c := testConnectOptions()
	c.Username = "node"
	c.Password = "secret"
	c.Will = session.Message{}
	c.CleanSession = true

	opts, err := buildClientOptions(c, Options{})
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}
	if opts.Username != "node" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want node/secret", opts.Username, opts.Password)
	}
	if opts.WillEnabled {
		t.Error("WillEnabled = true for a message without topic")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
}

func TestBuildClientOptionsIPv6(t *testing.T) {
	c := testConnectOptions()
	c.Address = "fd00::10"

	opts, err := buildClientOptions(c, Options{TLS: TLSConfig{Enabled: true}})
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}
	if got := opts.Servers[0].String(); got != "ssl://[fd00::10]:1883" {
		t.Errorf("Servers[0] = %q, want ssl://[fd00::10]:1883", got)
	}
	if opts.TLSConfig.ServerName != "broker.lan" {
		t.Errorf("TLS ServerName = %q, want broker.lan", opts.TLSConfig.ServerName)
	}
}

// =============================================================================
// TLS Tests
// =============================================================================

func TestFingerprintVerification(t *testing.T) {
	cert := []byte("broker-certificate-der")
	sum256 := sha256.Sum256(cert)
	sum1 := sha1.Sum(cert) //nolint:gosec // test fingerprint

	colonSHA1 := strings.ToUpper(hex.EncodeToString(sum1[:]))
	var parts []string
	for i := 0; i < len(colonSHA1); i += 2 {
		parts = append(parts, colonSHA1[i:i+2])
	}

	tests := []struct {
		name         string
		fingerprints []string
		wantErr      error
	}{
		{"sha256 match", []string{hex.EncodeToString(sum256[:])}, nil},
		{"sha1 with colons", []string{strings.Join(parts, ":")}, nil},
		{"second pin matches", []string{strings.Repeat("ab", 32), hex.EncodeToString(sum256[:])}, nil},
		{"mismatch", []string{strings.Repeat("ab", 32)}, ErrFingerprintMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildTLSConfig(TLSConfig{Enabled: true, Fingerprints: tt.fingerprints}, "broker.lan")
			if err != nil {
				t.Fatalf("buildTLSConfig() error = %v", err)
			}
			if !cfg.InsecureSkipVerify {
				t.Error("InsecureSkipVerify = false, want chain check replaced by pinning")
			}

			err = cfg.VerifyPeerCertificate([][]byte{cert}, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyPeerCertificate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintNoPeerCertificate(t *testing.T) {
	cfg, err := buildTLSConfig(TLSConfig{Enabled: true, Fingerprints: []string{strings.Repeat("ab", 20)}}, "broker.lan")
	if err != nil {
		t.Fatalf("buildTLSConfig() error = %v", err)
	}
	if err := cfg.VerifyPeerCertificate(nil, nil); !errors.Is(err, ErrNoPeerCertificate) {
		t.Errorf("VerifyPeerCertificate() error = %v, want ErrNoPeerCertificate", err)
	}
}

func TestInvalidFingerprint(t *testing.T) {
	for _, fp := range []string{"zz", strings.Repeat("ab", 10), ""} {
		_, err := buildTLSConfig(TLSConfig{Enabled: true, Fingerprints: []string{fp}}, "broker.lan")
		if !errors.Is(err, ErrInvalidFingerprint) {
			t.Errorf("buildTLSConfig(%q) error = %v, want ErrInvalidFingerprint", fp, err)
		}
	}
}

func TestMissingCAFile(t *testing.T) {
	_, err := buildTLSConfig(TLSConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"}, "broker.lan")
	if !errors.Is(err, ErrCAFile) {
		t.Errorf("buildTLSConfig() error = %v, want ErrCAFile", err)
	}
}

// =============================================================================
// Disconnect Reason Tests
// =============================================================================

func TestReasonFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want session.DisconnectReason
	}{
		{"nil", nil, session.ReasonTCPDisconnected},
		{"protocol", packets.ErrorRefusedBadProtocolVersion, session.ReasonUnacceptableProtocolVersion},
		{"identifier", packets.ErrorRefusedIDRejected, session.ReasonIdentifierRejected},
		{"server unavailable", packets.ErrorRefusedServerUnavailable, session.ReasonServerUnavailable},
		{"bad credentials", packets.ErrorRefusedBadUsernameOrPassword, session.ReasonMalformedCredentials},
		{"not authorised", packets.ErrorRefusedNotAuthorised, session.ReasonNotAuthorized},
		{"wrapped", fmt.Errorf("%w : %w", packets.ErrorRefusedNotAuthorised, errors.New("eof")), session.ReasonNotAuthorized},
		{"fingerprint", fmt.Errorf("network error: %w", ErrFingerprintMismatch), session.ReasonTLSBadFingerprint},
		{"fingerprint text", errors.New("remote error: " + ErrFingerprintMismatch.Error()), session.ReasonTLSBadFingerprint},
		{"eof", errors.New("EOF"), session.ReasonTCPDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reasonFor(tt.err); got != tt.want {
				t.Errorf("reasonFor(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Event Queue Tests
// =============================================================================

func TestPollDeliversInOrder(t *testing.T) {
	tr := NewTransport(Options{})
	gen := tr.generation

	tr.push(event{kind: eventConnect, generation: gen})
	tr.push(event{kind: eventMessage, generation: gen, topic: "a/b", payload: "1"})
	tr.push(event{kind: eventSubscribeFailed, generation: gen, topic: "a/c"})
	tr.push(event{kind: eventDisconnect, generation: gen, reason: session.ReasonNotAuthorized})

	rec := &recorder{}
	tr.Poll(rec)

	want := []string{"connect", "message:a/b=1", "subfail:a/c", "disconnect:not_authorized"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}

	rec.calls = nil
	tr.Poll(rec)
	if len(rec.calls) != 0 {
		t.Errorf("second Poll() delivered %v, want nothing", rec.calls)
	}
}

func TestPollDropsStaleGeneration(t *testing.T) {
	tr := NewTransport(Options{})
	tr.push(event{kind: eventConnect, generation: tr.generation})

	tr.Disconnect()
	tr.push(event{kind: eventDisconnect, generation: tr.generation, reason: session.ReasonConnectTimeout})

	rec := &recorder{}
	tr.Poll(rec)

	if len(rec.calls) != 1 || rec.calls[0] != "disconnect:connect_timeout" {
		t.Errorf("calls = %v, want only the current generation's disconnect", rec.calls)
	}
}

func TestMessageBufferBound(t *testing.T) {
	tr := NewTransport(Options{EventBuffer: 2})
	gen := tr.generation

	for i := 0; i < 5; i++ {
		tr.push(event{kind: eventMessage, generation: gen, topic: "a", payload: fmt.Sprint(i)})
	}
	tr.push(event{kind: eventDisconnect, generation: gen})

	rec := &recorder{}
	tr.Poll(rec)

	if len(rec.calls) != 3 {
		t.Errorf("calls = %v, want two messages and the disconnect", rec.calls)
	}
	if got := tr.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestOperationsWithoutConnection(t *testing.T) {
	tr := NewTransport(Options{})

	if tr.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
	if tr.Publish("a/b", []byte("x"), 0, false) {
		t.Error("Publish() = true without connection")
	}
	if tr.Subscribe("a/b", 0) {
		t.Error("Subscribe() = true without connection")
	}

	// Disconnect without a client must not panic.
	tr.Disconnect()
}

func TestConnectWithInvalidTLSReportsDisconnect(t *testing.T) {
	tr := NewTransport(Options{TLS: TLSConfig{Enabled: true, Fingerprints: []string{"nothex"}}})

	tr.Connect(testConnectOptions())

	rec := &recorder{}
	tr.Poll(rec)
	if len(rec.calls) != 1 || !strings.HasPrefix(rec.calls[0], "disconnect:") {
		t.Errorf("calls = %v, want one disconnect", rec.calls)
	}
}
