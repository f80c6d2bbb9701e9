package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node        NodeConfig         `yaml:"node"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	DNS         DNSConfig          `yaml:"dns"`
	Loop        LoopConfig         `yaml:"loop"`
	Logging     LoggingConfig      `yaml:"logging"`
	Database    DatabaseConfig     `yaml:"database"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	Devices     DevicesConfig      `yaml:"devices"`
	Automations []AutomationConfig `yaml:"automations"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	// Name is used as the discovery node id and, unless overridden, as the
	// MQTT topic prefix and client id.
	Name string `yaml:"name"`

	// FriendlyName is shown in Home Assistant device cards.
	FriendlyName string `yaml:"friendly_name"`

	// RebootCommand is run when the MQTT watchdog expires. When empty the
	// process exits and relies on its supervisor to restart it.
	RebootCommand []string `yaml:"reboot_command"`
}

// MQTTConfig contains MQTT broker connection and session settings.
type MQTTConfig struct {
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	Auth           MQTTAuthConfig      `yaml:"auth"`
	TopicPrefix    string              `yaml:"topic_prefix"`
	KeepAlive      int                 `yaml:"keep_alive"`
	CleanSession   bool                `yaml:"clean_session"`
	RebootTimeout  int                 `yaml:"reboot_timeout"`
	BootWait       int                 `yaml:"boot_wait"`
	MaxPayloadSize int                 `yaml:"max_payload_size"`
	Discovery      MQTTDiscoveryConfig `yaml:"discovery"`
	Birth          MQTTMessageConfig   `yaml:"birth_message"`
	Will           MQTTMessageConfig   `yaml:"will_message"`
	Shutdown       MQTTMessageConfig   `yaml:"shutdown_message"`
	Log            MQTTLogConfig       `yaml:"log_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	ClientID string        `yaml:"client_id"`
	TLS      MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains broker TLS settings.
type MQTTTLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	CAFile  string `yaml:"ca_file"`

	// Fingerprints pins the broker certificate. Each entry is a SHA-1 or
	// SHA-256 hex digest of the DER certificate.
	Fingerprints []string `yaml:"fingerprints"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTDiscoveryConfig controls Home Assistant discovery.
type MQTTDiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	Retain  bool   `yaml:"retain"`
	Clean   bool   `yaml:"clean"`
}

// MQTTMessageConfig overrides one of the birth, will or shutdown messages.
// Empty fields keep the value derived from the topic prefix.
type MQTTMessageConfig struct {
	Disabled bool   `yaml:"disabled"`
	Topic    string `yaml:"topic"`
	Payload  string `yaml:"payload"`
	QoS      int    `yaml:"qos"`
	Retain   *bool  `yaml:"retain"`
}

// MQTTLogConfig controls forwarding of log lines to MQTT.
type MQTTLogConfig struct {
	Disabled bool   `yaml:"disabled"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
	Level    string `yaml:"level"`
	Buffer   int    `yaml:"buffer"`
}

// DNSConfig contains broker name resolution settings.
type DNSConfig struct {
	// Nameserver is queried directly when set. Empty uses the system resolver.
	Nameserver string `yaml:"nameserver"`
	Timeout    int    `yaml:"timeout"`
}

// LoopConfig contains scheduler settings.
type LoopConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// ReportInterval is how often session counters are written, in
	// seconds. Zero writes only session events.
	ReportInterval int `yaml:"report_interval"`
}

// APIConfig contains diagnostics HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// The loading process:
//  1. Start with defaults
//  2. Load from YAML file (overwrites defaults)
//  3. Apply environment variable overrides
//  4. Fill values derived from the node name
//  5. Validate the final configuration
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's flag or env
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Name: "graylogic-node",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			KeepAlive:      15,
			RebootTimeout:  300,
			MaxPayloadSize: 1 << 20,
			Discovery: MQTTDiscoveryConfig{
				Enabled: true,
				Prefix:  "homeassistant",
				Retain:  true,
			},
			Log: MQTTLogConfig{
				Level:  "info",
				Buffer: 64,
			},
		},
		DNS: DNSConfig{
			Timeout: 20,
		},
		Loop: LoopConfig{
			IntervalMS: 16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-node.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			ReportInterval: 60,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8081,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Node
	if v := os.Getenv("GRAYLOGIC_NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_NODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_NODE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyDerived fills settings whose defaults depend on other settings.
func (c *Config) applyDerived() {
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = c.Node.Name
	}
	if c.MQTT.Broker.ClientID == "" {
		c.MQTT.Broker.ClientID = DefaultClientID(c.Node.Name)
	}
	if c.Node.FriendlyName == "" {
		c.Node.FriendlyName = c.Node.Name
	}
}

// DefaultClientID returns name followed by a short random suffix, so two
// nodes sharing a name do not take over each other's broker session.
func DefaultClientID(name string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	if name == "" {
		return "graylogic-" + suffix
	}
	return name + "-" + suffix
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Node validation
	if c.Node.Name == "" {
		errs = append(errs, "node.name is required")
	} else if strings.ContainsAny(c.Node.Name, "/+# ") {
		errs = append(errs, "node.name must not contain '/', '+', '#' or spaces")
	}

	errs = append(errs, c.MQTT.validate()...)

	// DNS validation
	if c.DNS.Timeout < 0 {
		errs = append(errs, "dns.timeout must not be negative")
	}

	// Loop validation
	if c.Loop.IntervalMS < 1 {
		errs = append(errs, "loop.interval_ms must be at least 1")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
		if c.InfluxDB.ReportInterval < 0 {
			errs = append(errs, "influxdb.report_interval must not be negative")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Devices.validate()...)
	errs = append(errs, validateAutomations(c.Automations)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (m *MQTTConfig) validate() []string {
	var errs []string

	if m.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if m.Broker.Port < 1 || m.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if m.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	} else if hasWildcard(m.TopicPrefix) {
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	}
	if m.KeepAlive < 1 {
		errs = append(errs, "mqtt.keep_alive must be at least 1 second")
	}
	if m.RebootTimeout < 0 {
		errs = append(errs, "mqtt.reboot_timeout must not be negative (0 disables)")
	}
	if m.BootWait < 0 {
		errs = append(errs, "mqtt.boot_wait must not be negative")
	}
	if m.MaxPayloadSize < 1 {
		errs = append(errs, "mqtt.max_payload_size must be positive")
	}
	if m.Discovery.Enabled && hasWildcard(m.Discovery.Prefix) {
		errs = append(errs, "mqtt.discovery.prefix must not contain wildcards")
	}
	if !m.Broker.TLS.Enabled && (m.Broker.TLS.CAFile != "" || len(m.Broker.TLS.Fingerprints) > 0) {
		errs = append(errs, "mqtt.broker.tls settings require mqtt.broker.tls.enabled")
	}

	for name, msg := range map[string]MQTTMessageConfig{
		"birth_message":    m.Birth,
		"will_message":     m.Will,
		"shutdown_message": m.Shutdown,
	} {
		if !validQoS(msg.QoS) {
			errs = append(errs, fmt.Sprintf("mqtt.%s.qos must be 0, 1, or 2", name))
		}
		if hasWildcard(msg.Topic) {
			errs = append(errs, fmt.Sprintf("mqtt.%s.topic must not contain wildcards", name))
		}
	}

	if !validQoS(m.Log.QoS) {
		errs = append(errs, "mqtt.log_topic.qos must be 0, 1, or 2")
	}
	if hasWildcard(m.Log.Topic) {
		errs = append(errs, "mqtt.log_topic.topic must not contain wildcards")
	}

	return errs
}

func validQoS(qos int) bool {
	return qos >= 0 && qos <= 2
}

func hasWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetLoopInterval returns the scheduler tick interval.
func (c *Config) GetLoopInterval() time.Duration {
	return time.Duration(c.Loop.IntervalMS) * time.Millisecond
}

// GetKeepAlive returns the MQTT keep-alive interval.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// GetRebootTimeout returns the MQTT watchdog timeout. Zero disables it.
func (c *Config) GetRebootTimeout() time.Duration {
	return time.Duration(c.MQTT.RebootTimeout) * time.Second
}

// GetBootWait returns how long startup waits for the first connection.
func (c *Config) GetBootWait() time.Duration {
	return time.Duration(c.MQTT.BootWait) * time.Second
}

// GetDNSTimeout returns the resolver timeout.
func (c *Config) GetDNSTimeout() time.Duration {
	return time.Duration(c.DNS.Timeout) * time.Second
}

// GetReportInterval returns how often session counters go to InfluxDB.
func (c *Config) GetReportInterval() time.Duration {
	return time.Duration(c.InfluxDB.ReportInterval) * time.Second
}
