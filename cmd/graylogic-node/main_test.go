package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

const testConfig = `
node:
  name: kitchen
  friendly_name: Kitchen Node

mqtt:
  broker:
    host: 127.0.0.1
    port: 1883
    client_id: kitchen-test
  auth:
    username: node
    password: s3cret
  birth_message:
    payload: alive
  will_message:
    topic: kitchen/lwt
    qos: 1
  shutdown_message:
    disabled: true
  log_topic:
    level: warn

logging:
  level: error
  format: text
  output: stdout

database:
  enabled: true
  path: %DB%

influxdb:
  token: influx-token

devices:
  switches:
    - id: relay
      name: Relay
  binary_sensors:
    - id: status
      source: status

automations:
  - id: relay_echo
    trigger:
      topic: kitchen/relay/echo
    actions:
      - topic: kitchen/relay/echoed
        payload: "yes"
`

// writeConfig writes testConfig with the database under a temp dir and
// returns its path and the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "node.db")
	path := filepath.Join(dir, "config.yaml")
	content := strings.ReplaceAll(testConfig, "%DB%", dbPath)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins", "/etc/node.yaml", "/env/node.yaml", "/etc/node.yaml"},
		{"env", "", "/env/node.yaml", "/env/node.yaml"},
		{"default", "", "", defaultConfigPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(configEnv, tt.env)
			if got := resolveConfigPath(tt.flag); got != tt.want {
				t.Errorf("resolveConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{
		"configuration valid",
		"127.0.0.1:1883",
		"kitchen-test",
		"entities:     2",
		"automations:  1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCommand_FromEnv(t *testing.T) {
	path, _ := writeConfig(t)
	t.Setenv(configEnv, path)

	if _, err := execute(t, "validate"); err != nil {
		t.Fatalf("validate error = %v", err)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  broker:\n    port: 0\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := execute(t, "validate", "-c", path)
	if err == nil {
		t.Fatal("validate should fail with port 0")
	}
	if !strings.Contains(err.Error(), "mqtt.broker.port") {
		t.Errorf("error = %v, want mention of mqtt.broker.port", err)
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	if _, err := execute(t, "validate", "--config", "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("validate should fail with a missing config file")
	}
}

func TestDumpConfig_RedactsSecrets(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "dump-config", "--config", path)
	if err != nil {
		t.Fatalf("dump-config error = %v", err)
	}
	if strings.Contains(out, "s3cret") || strings.Contains(out, "influx-token") {
		t.Errorf("secrets leaked in output:\n%s", out)
	}
	if strings.Count(out, redacted) != 2 {
		t.Errorf("want 2 redacted values, got output:\n%s", out)
	}
	if !strings.Contains(out, "topic_prefix: kitchen") {
		t.Errorf("derived topic prefix missing:\n%s", out)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if _, err := execute(t, "run", "--config", "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run should fail with invalid config path")
	}
}

// TestRun_Interrupted runs the whole node for a moment and interrupts it.
// Setup must succeed without a broker and the history database must be
// migrated.
func TestRun_Interrupted(t *testing.T) {
	path, dbPath := writeConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after interrupt")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM session_events").Scan(&count); err != nil {
		t.Fatalf("session_events not created: %v", err)
	}
}

// ─── Session configuration ─────────────────────────────────────────

func newTestSession(t *testing.T, cfg *config.Config) *session.Client {
	t.Helper()
	client, err := newSession(cfg, session.Deps{Transport: mqtt.NewTransport(mqtt.Options{})})
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}
	return client
}

func TestNewSession_AppliesOverrides(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	client := newTestSession(t, cfg)

	if got := client.TopicPrefix(); got != "kitchen" {
		t.Errorf("TopicPrefix() = %q, want kitchen", got)
	}
	if got := client.ClientID(); got != "kitchen-test" {
		t.Errorf("ClientID() = %q, want kitchen-test", got)
	}

	birth := client.BirthMessage()
	if birth.Topic != "kitchen/status" || birth.Payload != "alive" || !birth.Retain {
		t.Errorf("BirthMessage() = %+v", birth)
	}

	will := client.LastWill()
	if will.Topic != "kitchen/lwt" || will.Payload != session.PayloadOffline || will.QoS != 1 {
		t.Errorf("LastWill() = %+v", will)
	}

	if client.ShutdownMessage().Enabled() {
		t.Errorf("ShutdownMessage() = %+v, want disabled", client.ShutdownMessage())
	}

	if got := client.LogMessage().Topic; got != "kitchen/debug" {
		t.Errorf("LogMessage().Topic = %q, want kitchen/debug", got)
	}

	d := client.DiscoveryInfo()
	if d.Prefix != "homeassistant" || !d.Retain {
		t.Errorf("DiscoveryInfo() = %+v", d)
	}
}

func TestNewSession_DisabledFeatures(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.MQTT.Discovery.Enabled = false
	cfg.MQTT.Log.Disabled = true
	cfg.MQTT.Birth.Disabled = true

	client := newTestSession(t, cfg)
	if client.IsDiscoveryEnabled() {
		t.Error("discovery should be disabled")
	}
	if client.LogMessage().Enabled() {
		t.Error("log forwarding should be disabled")
	}
	if client.BirthMessage().Enabled() {
		t.Error("birth message should be disabled")
	}
}

func TestApplyMessage(t *testing.T) {
	current := session.Message{Topic: "node/status", Payload: "online", Retain: true}
	no := false

	tests := []struct {
		name     string
		mc       config.MQTTMessageConfig
		want     session.Message
		wantSet  bool
		disabled bool
	}{
		{"empty keeps defaults", config.MQTTMessageConfig{}, current, false, false},
		{"disabled", config.MQTTMessageConfig{Disabled: true, Topic: "x"}, session.Message{}, false, true},
		{"topic", config.MQTTMessageConfig{Topic: "node/alive"},
			session.Message{Topic: "node/alive", Payload: "online", Retain: true}, true, false},
		{"qos and retain", config.MQTTMessageConfig{QoS: 2, Retain: &no},
			session.Message{Topic: "node/status", Payload: "online", QoS: 2}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got session.Message
			set, disabled := false, false
			applyMessage(tt.mc, current,
				func(m session.Message) { got = m; set = true },
				func() { disabled = true })

			if set != tt.wantSet || disabled != tt.disabled {
				t.Fatalf("set = %v disabled = %v, want %v %v", set, disabled, tt.wantSet, tt.disabled)
			}
			if set && got != tt.want {
				t.Errorf("message = %+v, want %+v", got, tt.want)
			}
		})
	}
}
