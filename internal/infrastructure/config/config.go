package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for logwarden.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Parsing    ParsingConfig    `yaml:"parsing"`
	Analyzers  AnalyzersConfig  `yaml:"analyzers"`
	Output     OutputConfig     `yaml:"output"`
	Queues     QueuesConfig     `yaml:"queues"`
	Shutdown   ShutdownConfig   `yaml:"shutdown"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings for log ingestion.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	CACert   string `yaml:"ca_cert"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Delays are in seconds; the paho client backs off from InitialDelay to MaxDelay.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// ParsingConfig contains the ordered list of parsing rules.
// Rule order matters: the first matching rule wins.
type ParsingConfig struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig defines a single log parsing rule.
//
// Pattern is a regular expression with named capture groups. FieldMap renames
// capture groups to output field names; when empty, groups keep their own names.
type RuleConfig struct {
	Name     string            `yaml:"name"`
	Pattern  string            `yaml:"pattern"`
	FieldMap map[string]string `yaml:"field_map"`
	LogType  string            `yaml:"log_type"`
}

// AnalyzersConfig selects and configures the enabled analyzers.
type AnalyzersConfig struct {
	Enabled []string                  `yaml:"enabled"`
	Configs map[string]map[string]any `yaml:"configs"`
	Workers int                       `yaml:"workers"`
}

// OutputConfig contains command output settings.
//
// When Broker.Host is empty the ingestion broker connection is reused for
// publishing commands.
type OutputConfig struct {
	Enabled                bool             `yaml:"enabled"`
	AllowedCommandPrefixes []string         `yaml:"allowed_command_prefixes"`
	Broker                 MQTTBrokerConfig `yaml:"broker"`
	Auth                   MQTTAuthConfig   `yaml:"auth"`
	TopicPrefix            string           `yaml:"topic_prefix"`
	QoS                    int              `yaml:"qos"`
	Retain                 bool             `yaml:"retain"`
	MaxPublishAttempts     int              `yaml:"max_publish_attempts"`
}

// QueuesConfig bounds the inter-stage queues.
//
// EnqueueWaitMS is how long a producer waits for space before dropping the
// message and incrementing the backpressure counter.
type QueuesConfig struct {
	ParsedCapacity int `yaml:"parsed_capacity"`
	ResultCapacity int `yaml:"result_capacity"`
	EnqueueWaitMS  int `yaml:"enqueue_wait_ms"`
}

// ShutdownConfig controls the graceful shutdown window.
type ShutdownConfig struct {
	DrainTimeout int `yaml:"drain_timeout"` // seconds
}

// MonitoringConfig contains the Prometheus metrics endpoint settings.
type MonitoringConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	UpdateInterval int    `yaml:"update_interval"` // seconds, queue depth gauges
}

// IngestConfig contains optional non-MQTT ingestion sources.
type IngestConfig struct {
	File FileIngestConfig `yaml:"file"`
}

// FileIngestConfig follows a local log file, feeding lines into the same
// parse path as MQTT messages. Intended for development and replay.
type FileIngestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Topic   string `yaml:"topic"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LOGWARDEN_SECTION_KEY
// For example: LOGWARDEN_MQTT_HOST, LOGWARDEN_OUTPUT_TOPIC_PREFIX
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "logwarden",
			},
			QoS:         1,
			TopicPrefix: "network_monitor/logs",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Analyzers: AnalyzersConfig{
			Workers: 2,
		},
		Output: OutputConfig{
			TopicPrefix:        "logwarden/commands",
			QoS:                1,
			MaxPublishAttempts: 5,
		},
		Queues: QueuesConfig{
			ParsedCapacity: 1000,
			ResultCapacity: 500,
			EnqueueWaitMS:  50,
		},
		Shutdown: ShutdownConfig{
			DrainTimeout: 10,
		},
		Monitoring: MonitoringConfig{
			Enabled:        true,
			Host:           "0.0.0.0",
			Port:           9090,
			UpdateInterval: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LOGWARDEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Ingestion broker
	if v := os.Getenv("LOGWARDEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LOGWARDEN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LOGWARDEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LOGWARDEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Output broker
	if v := os.Getenv("LOGWARDEN_OUTPUT_HOST"); v != "" {
		cfg.Output.Broker.Host = v
	}
	if v := os.Getenv("LOGWARDEN_OUTPUT_USERNAME"); v != "" {
		cfg.Output.Auth.Username = v
	}
	if v := os.Getenv("LOGWARDEN_OUTPUT_PASSWORD"); v != "" {
		cfg.Output.Auth.Password = v
	}
	if v := os.Getenv("LOGWARDEN_OUTPUT_TOPIC_PREFIX"); v != "" {
		cfg.Output.TopicPrefix = v
	}

	// Monitoring
	if v := os.Getenv("LOGWARDEN_MONITORING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Monitoring.Port = port
		}
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Ingestion broker validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	}

	// Parsing validation: rule patterns are compiled by the parsing engine,
	// but structural problems are caught here so startup fails with one message.
	for i, rule := range c.Parsing.Rules {
		if rule.Name == "" {
			errs = append(errs, fmt.Sprintf("parsing.rules[%d].name is required", i))
		}
		if rule.Pattern == "" {
			errs = append(errs, fmt.Sprintf("parsing.rules[%d].pattern is required", i))
		}
	}

	// Analyzer validation
	if c.Analyzers.Workers < 1 {
		errs = append(errs, "analyzers.workers must be at least 1")
	}

	// Output validation. An enabled output stage with no allow-list would
	// pass every command through, so it is rejected outright: validation
	// fails closed.
	if c.Output.Enabled {
		if len(c.Output.AllowedCommandPrefixes) == 0 {
			errs = append(errs, "output.allowed_command_prefixes is required when output is enabled")
		}
		if c.Output.TopicPrefix == "" {
			errs = append(errs, "output.topic_prefix is required when output is enabled")
		}
		if strings.ContainsAny(c.Output.TopicPrefix, "#+") {
			errs = append(errs, "output.topic_prefix must not contain wildcards")
		}
		if c.Output.QoS < 0 || c.Output.QoS > 2 {
			errs = append(errs, "output.qos must be 0, 1, or 2")
		}
	}

	// Queue validation
	if c.Queues.ParsedCapacity < 1 {
		errs = append(errs, "queues.parsed_capacity must be at least 1")
	}
	if c.Queues.ResultCapacity < 1 {
		errs = append(errs, "queues.result_capacity must be at least 1")
	}
	if c.Queues.EnqueueWaitMS < 0 {
		errs = append(errs, "queues.enqueue_wait_ms must not be negative")
	}

	// Monitoring validation
	if c.Monitoring.Enabled {
		if c.Monitoring.Port < 1 || c.Monitoring.Port > 65535 {
			errs = append(errs, "monitoring.port must be between 1 and 65535")
		}
	}

	// File ingest validation
	if c.Ingest.File.Enabled && c.Ingest.File.Path == "" {
		errs = append(errs, "ingest.file.path is required when file ingest is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EnqueueWait returns the backpressure wait as a Duration.
func (c *Config) EnqueueWait() time.Duration {
	return time.Duration(c.Queues.EnqueueWaitMS) * time.Millisecond
}

// DrainTimeout returns the shutdown drain window as a Duration.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.Shutdown.DrainTimeout) * time.Second
}

// GaugeUpdateInterval returns the queue depth gauge refresh interval as a Duration.
func (c *Config) GaugeUpdateInterval() time.Duration {
	return time.Duration(c.Monitoring.UpdateInterval) * time.Second
}

// OutputBroker returns the broker settings for command publishing.
// Falls back to the ingestion broker when no dedicated output broker is set.
func (c *Config) OutputBroker() (MQTTBrokerConfig, MQTTAuthConfig) {
	if c.Output.Broker.Host == "" {
		return c.MQTT.Broker, c.MQTT.Auth
	}
	return c.Output.Broker, c.Output.Auth
}
