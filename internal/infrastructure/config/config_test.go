package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// validConfig returns defaults with derived values filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.applyDerived()
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  name: kitchen
mqtt:
  broker:
    host: broker.lan
    port: 8883
    tls:
      enabled: true
      fingerprints: ["aa:bb"]
  auth:
    username: node
  keep_alive: 30
  birth_message:
    payload: "up"
  will_message:
    disabled: true
devices:
  sensors:
    - id: uptime
      name: Uptime
      source: uptime
  switches:
    - id: relay
      name: Relay
      on_turn_on:
        - topic: kitchen/light/set
          payload: "ON"
automations:
  - id: echo
    trigger:
      topic: kitchen/ping
      payload: "ping"
    actions:
      - topic: kitchen/pong
        payload_expr: 'payload + "!"'
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.Name != "kitchen" {
		t.Errorf("Node.Name = %q, want %q", cfg.Node.Name, "kitchen")
	}
	if cfg.MQTT.TopicPrefix != "kitchen" {
		t.Errorf("MQTT.TopicPrefix = %q, want node name", cfg.MQTT.TopicPrefix)
	}
	if !strings.HasPrefix(cfg.MQTT.Broker.ClientID, "kitchen-") {
		t.Errorf("MQTT.Broker.ClientID = %q, want kitchen- prefix", cfg.MQTT.Broker.ClientID)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.GetKeepAlive().Seconds() != 30 {
		t.Errorf("GetKeepAlive() = %v, want 30s", cfg.GetKeepAlive())
	}
	if !cfg.MQTT.Will.Disabled {
		t.Error("MQTT.Will.Disabled = false, want true")
	}
	if cfg.MQTT.Birth.Payload != "up" {
		t.Errorf("MQTT.Birth.Payload = %q, want up", cfg.MQTT.Birth.Payload)
	}
	if !cfg.MQTT.Discovery.Enabled || cfg.MQTT.Discovery.Prefix != "homeassistant" {
		t.Errorf("MQTT.Discovery = %+v, want default homeassistant", cfg.MQTT.Discovery)
	}
	if len(cfg.Devices.Switches) != 1 || len(cfg.Devices.Switches[0].OnTurnOn) != 1 {
		t.Errorf("Devices.Switches = %+v", cfg.Devices.Switches)
	}
	if len(cfg.Automations) != 1 || *cfg.Automations[0].Trigger.Payload != "ping" {
		t.Errorf("Automations = %+v", cfg.Automations)
	}
}

// TestLoad_ShippedConfig keeps configs/config.yaml loadable.
func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.TopicPrefix != "livingroom" {
		t.Errorf("TopicPrefix = %q, want livingroom", cfg.MQTT.TopicPrefix)
	}
	if got := len(cfg.Devices.Sensors) + len(cfg.Devices.BinarySensors) + len(cfg.Devices.Switches); got != 4 {
		t.Errorf("entities = %d, want 4", got)
	}
	if len(cfg.Automations) != 2 {
		t.Errorf("automations = %d, want 2", len(cfg.Automations))
	}
}

func TestLoad_ExplicitPrefixAndClientID(t *testing.T) {
	path := writeConfig(t, `
node:
  name: kitchen
mqtt:
  topic_prefix: home/kitchen
  broker:
    client_id: fixed-id
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.TopicPrefix != "home/kitchen" {
		t.Errorf("MQTT.TopicPrefix = %q, want home/kitchen", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.Broker.ClientID != "fixed-id" {
		t.Errorf("MQTT.Broker.ClientID = %q, want fixed-id", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoad_RebootTimeoutZeroDisables(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  reboot_timeout: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GetRebootTimeout() != 0 {
		t.Errorf("GetRebootTimeout() = %v, want 0", cfg.GetRebootTimeout())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/node.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  topic_prefix: "home/#"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for wildcard prefix, got nil")
	}
	if !strings.Contains(err.Error(), "mqtt.topic_prefix") {
		t.Errorf("Load() error = %v, want mention of mqtt.topic_prefix", err)
	}
}

// ============================================================================
// Validate
// ============================================================================

func TestConfig_Validate(t *testing.T) {
	payload := "ON"

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", modify: func(*Config) {}},
		{
			name:    "missing node name",
			modify:  func(c *Config) { c.Node.Name = "" },
			wantErr: "node.name is required",
		},
		{
			name:    "node name with slash",
			modify:  func(c *Config) { c.Node.Name = "a/b" },
			wantErr: "node.name must not contain",
		},
		{
			name:    "missing broker host",
			modify:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: "mqtt.broker.host is required",
		},
		{
			name:    "broker port high",
			modify:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "wildcard prefix",
			modify:  func(c *Config) { c.MQTT.TopicPrefix = "home/+" },
			wantErr: "mqtt.topic_prefix must not contain wildcards",
		},
		{
			name:    "zero keep alive",
			modify:  func(c *Config) { c.MQTT.KeepAlive = 0 },
			wantErr: "mqtt.keep_alive",
		},
		{
			name:    "birth qos",
			modify:  func(c *Config) { c.MQTT.Birth.QoS = 3 },
			wantErr: "mqtt.birth_message.qos",
		},
		{
			name:    "log topic wildcard",
			modify:  func(c *Config) { c.MQTT.Log.Topic = "logs/#" },
			wantErr: "mqtt.log_topic.topic",
		},
		{
			name:    "tls settings without tls",
			modify:  func(c *Config) { c.MQTT.Broker.TLS.Fingerprints = []string{"aa"} },
			wantErr: "mqtt.broker.tls.enabled",
		},
		{
			name:    "zero loop interval",
			modify:  func(c *Config) { c.Loop.IntervalMS = 0 },
			wantErr: "loop.interval_ms",
		},
		{
			name: "database enabled without path",
			modify: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name:    "influxdb enabled without url",
			modify:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name: "api enabled with bad port",
			modify: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
			},
			wantErr: "api.port",
		},
		{
			name: "api disabled ignores port",
			modify: func(c *Config) {
				c.API.Port = 0
			},
		},
		{
			name: "sensor file without path",
			modify: func(c *Config) {
				c.Devices.Sensors = []SensorConfig{{ID: "temp", Source: SourceFile}}
			},
			wantErr: "devices.sensors[0].path",
		},
		{
			name: "sensor unknown source",
			modify: func(c *Config) {
				c.Devices.Sensors = []SensorConfig{{ID: "temp", Source: "magic"}}
			},
			wantErr: "devices.sensors[0].source",
		},
		{
			name: "duplicate switch id",
			modify: func(c *Config) {
				c.Devices.Switches = []SwitchConfig{{ID: "relay"}, {ID: "relay"}}
			},
			wantErr: "is duplicated",
		},
		{
			name: "same id across kinds",
			modify: func(c *Config) {
				c.Devices.Switches = []SwitchConfig{{ID: "relay"}}
				c.Devices.BinarySensors = []BinarySensorConfig{{ID: "relay", Source: SourceStatus}}
			},
		},
		{
			name: "bad object id",
			modify: func(c *Config) {
				c.Devices.Switches = []SwitchConfig{{ID: "Relay One"}}
			},
			wantErr: "must match",
		},
		{
			name: "trigger wildcard",
			modify: func(c *Config) {
				c.Automations = []AutomationConfig{{
					Trigger: TriggerConfig{Topic: "a/+"},
					Actions: []ActionConfig{{Topic: "b", Payload: "x"}},
				}}
			},
			wantErr: "automations[0].trigger.topic must not contain wildcards",
		},
		{
			name: "trigger json with payload filter",
			modify: func(c *Config) {
				c.Automations = []AutomationConfig{{
					Trigger: TriggerConfig{Topic: "a", JSON: true, Payload: &payload},
					Actions: []ActionConfig{{Topic: "b"}},
				}}
			},
			wantErr: "cannot combine json",
		},
		{
			name: "automation without actions",
			modify: func(c *Config) {
				c.Automations = []AutomationConfig{{Trigger: TriggerConfig{Topic: "a"}}}
			},
			wantErr: "actions must not be empty",
		},
		{
			name: "action with topic and topic_expr",
			modify: func(c *Config) {
				c.Automations = []AutomationConfig{{
					Trigger: TriggerConfig{Topic: "a"},
					Actions: []ActionConfig{{Topic: "b", TopicExpr: "topic"}},
				}}
			},
			wantErr: "exactly one of topic or topic_expr",
		},
		{
			name: "action with two payloads",
			modify: func(c *Config) {
				c.Automations = []AutomationConfig{{
					Trigger: TriggerConfig{Topic: "a"},
					Actions: []ActionConfig{{Topic: "b", Payload: "x", JSON: map[string]string{"k": "1"}}},
				}}
			},
			wantErr: "only one of payload",
		},
		{
			name: "switch action qos",
			modify: func(c *Config) {
				c.Devices.Switches = []SwitchConfig{{
					ID:       "relay",
					OnTurnOn: []ActionConfig{{Topic: "b", QoS: 5}},
				}}
			},
			wantErr: "devices.switches[0].on_turn_on[0].qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Node.Name = ""
	cfg.MQTT.Broker.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"node.name", "mqtt.broker.host"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

// ============================================================================
// Helpers
// ============================================================================

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Loop: LoopConfig{IntervalMS: 20},
		MQTT: MQTTConfig{KeepAlive: 15, RebootTimeout: 300, BootWait: 5},
		DNS:  DNSConfig{Timeout: 20},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetLoopInterval().Milliseconds(); got != 20 {
		t.Errorf("GetLoopInterval() = %vms, want 20", got)
	}
	if got := cfg.GetKeepAlive().Seconds(); got != 15 {
		t.Errorf("GetKeepAlive() = %v, want 15", got)
	}
	if got := cfg.GetRebootTimeout().Minutes(); got != 5 {
		t.Errorf("GetRebootTimeout() = %v, want 5m", got)
	}
	if got := cfg.GetBootWait().Seconds(); got != 5 {
		t.Errorf("GetBootWait() = %v, want 5", got)
	}
	if got := cfg.GetDNSTimeout().Seconds(); got != 20 {
		t.Errorf("GetDNSTimeout() = %v, want 20", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_NODE_NAME", "garage")
	t.Setenv("GRAYLOGIC_NODE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_NODE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_NODE_MQTT_CLIENT_ID", "garage-1")
	t.Setenv("GRAYLOGIC_NODE_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_NODE_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Node.Name", cfg.Node.Name, "garage"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.ClientID", cfg.MQTT.Broker.ClientID, "garage-1"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Node.Name == "" {
		t.Error("defaultConfig should have non-empty Node.Name")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.KeepAlive != 15 {
		t.Errorf("defaultConfig MQTT.KeepAlive = %d, want 15", cfg.MQTT.KeepAlive)
	}
	if cfg.MQTT.RebootTimeout != 300 {
		t.Errorf("defaultConfig MQTT.RebootTimeout = %d, want 300", cfg.MQTT.RebootTimeout)
	}
	if cfg.API.Enabled || cfg.Database.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave optional services disabled")
	}
}

func TestDefaultClientID(t *testing.T) {
	a := DefaultClientID("kitchen")
	b := DefaultClientID("kitchen")

	if !strings.HasPrefix(a, "kitchen-") || len(a) != len("kitchen-")+6 {
		t.Errorf("DefaultClientID() = %q, want kitchen- plus 6 characters", a)
	}
	if a == b {
		t.Errorf("DefaultClientID() returned %q twice, want distinct suffixes", a)
	}
	if got := DefaultClientID(""); !strings.HasPrefix(got, "graylogic-") {
		t.Errorf("DefaultClientID(\"\") = %q, want graylogic- prefix", got)
	}
}
