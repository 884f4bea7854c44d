package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/mqtt"
)

// fakeTransport acts as both the ingest subscriber and the output
// publisher, standing in for connected MQTT clients.
type fakeTransport struct {
	mu        sync.Mutex
	handler   mqtt.MessageHandler
	subTopic  string
	published []publishedCommand
}

type publishedCommand struct {
	topic   string
	payload string
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subTopic = topic
	f.handler = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedCommand{topic, string(payload)})
	return nil
}

func (f *fakeTransport) deliver(t *testing.T, topic, line string) {
	t.Helper()
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("no subscription registered")
	}
	if err := handler(topic, []byte(line)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func (f *fakeTransport) commands() []publishedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedCommand(nil), f.published...)
}

func testConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{
			QoS:         1,
			TopicPrefix: "network_monitor/logs",
		},
		Parsing: config.ParsingConfig{
			Rules: []config.RuleConfig{
				{
					Name:    "sshd_auth_failure",
					Pattern: `\w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2} (?P<host>\S+) sshd\[\d+\]: Failed password for (?P<user>\S+) from (?P<source_ip>\S+)`,
				},
				{
					Name:    "syslog_generic",
					Pattern: `(?P<timestamp>\w{3}\s+\d{1,2} \d{2}:\d{2}:\d{2}) (?P<host>\S+) (?P<process>[\w-]+)(?:\[\d+\])?: (?P<message>.*)`,
				},
			},
		},
		Analyzers: config.AnalyzersConfig{
			Enabled: []string{"rate_threshold"},
			Configs: map[string]map[string]any{
				"rate_threshold": {
					"rule":      "sshd_auth_failure",
					"threshold": 3,
					"commands":  []any{"set firewall.ssh_block=1"},
				},
			},
			Workers: 2,
		},
		Output: config.OutputConfig{
			Enabled:                true,
			AllowedCommandPrefixes: []string{"set firewall.", "set system."},
			TopicPrefix:            "logwarden/commands",
			QoS:                    1,
			MaxPublishAttempts:     2,
		},
		Queues: config.QueuesConfig{
			ParsedCapacity: 64,
			ResultCapacity: 64,
			EnqueueWaitMS:  10,
		},
		Shutdown:   config.ShutdownConfig{DrainTimeout: 2},
		Monitoring: config.MonitoringConfig{UpdateInterval: 1},
		Logging:    config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func testCoordinator(t *testing.T, cfg *config.Config, transport *fakeTransport) *Coordinator {
	t.Helper()

	c, err := New(Deps{
		Config: cfg,
		Logger: logging.New(cfg.Logging, "test"),
		Ingest: transport,
		Output: transport,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidRule(t *testing.T) {
	cfg := testConfig()
	cfg.Parsing.Rules = []config.RuleConfig{{Name: "bad", Pattern: `(?P<x>[`}}

	if _, err := New(Deps{
		Config: cfg,
		Logger: logging.New(cfg.Logging, "test"),
		Ingest: &fakeTransport{},
		Output: &fakeTransport{},
	}); err == nil {
		t.Error("New() expected error for invalid rule")
	}
}

func TestNew_UnknownAnalyzer(t *testing.T) {
	cfg := testConfig()
	cfg.Analyzers.Enabled = []string{"does_not_exist"}

	if _, err := New(Deps{
		Config: cfg,
		Logger: logging.New(cfg.Logging, "test"),
		Ingest: &fakeTransport{},
		Output: &fakeTransport{},
	}); err == nil {
		t.Error("New() expected error for unknown analyzer")
	}
}

func TestNew_OutputEnabledWithoutPublisher(t *testing.T) {
	cfg := testConfig()

	if _, err := New(Deps{
		Config: cfg,
		Logger: logging.New(cfg.Logging, "test"),
		Ingest: &fakeTransport{},
	}); err == nil {
		t.Error("New() expected error for enabled output without publisher")
	}
}

func TestCoordinator_EndToEnd(t *testing.T) {
	transport := &fakeTransport{}
	c := testCoordinator(t, testConfig(), transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if transport.subTopic != "network_monitor/logs/#" {
		t.Errorf("subscribed to %q", transport.subTopic)
	}

	// Three auth failures from the same device trip the rate threshold.
	for i := 0; i < 3; i++ {
		transport.deliver(t,
			"network_monitor/logs/gw-01",
			"Feb 12 03:14:15 gw-01 sshd[991]: Failed password for root from 10.0.0.9 port 22 ssh2",
		)
	}
	// Unrelated traffic and noise.
	transport.deliver(t, "network_monitor/logs/gw-02",
		"Jan  1 00:00:00 gw-02 cron[1]: job started")
	transport.deliver(t, "network_monitor/logs/gw-02", "unparseable noise")

	deadline := time.After(5 * time.Second)
	for len(transport.commands()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for command publish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	commands := transport.commands()
	if len(commands) != 1 {
		t.Fatalf("published %d commands, want 1", len(commands))
	}
	if commands[0].topic != "logwarden/commands/gw-01" {
		t.Errorf("topic = %q, want \"logwarden/commands/gw-01\"", commands[0].topic)
	}
	if commands[0].payload != "set firewall.ssh_block=1" {
		t.Errorf("payload = %q", commands[0].payload)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	stats := c.Stats()
	if stats.Received != 5 {
		t.Errorf("Received = %d, want 5", stats.Received)
	}
	if stats.Parsed != 4 {
		t.Errorf("Parsed = %d, want 4", stats.Parsed)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Published != 1 {
		t.Errorf("Published = %d, want 1", stats.Published)
	}
}

func TestCoordinator_BlockedCommandPublishesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Analyzers.Configs["rate_threshold"]["commands"] = []any{"delete firewall.rule1"}
	cfg.Analyzers.Configs["rate_threshold"]["threshold"] = 1

	transport := &fakeTransport{}
	c := testCoordinator(t, cfg, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	transport.deliver(t,
		"network_monitor/logs/gw-01",
		"Feb 12 03:14:15 gw-01 sshd[991]: Failed password for root from 10.0.0.9 port 22 ssh2",
	)

	// Wait for the result to reach the gate and be rejected.
	deadline := time.After(5 * time.Second)
	for c.Stats().Blocked == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for rejection")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if commands := transport.commands(); len(commands) != 0 {
		t.Errorf("published %d commands from a blocked batch, want 0", len(commands))
	}
	if blocked := c.Stats().Blocked; blocked != 1 {
		t.Errorf("Blocked = %d, want 1", blocked)
	}
}

func TestCoordinator_OutputDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Output = config.OutputConfig{}
	cfg.Analyzers.Configs["rate_threshold"]["threshold"] = 1

	transport := &fakeTransport{}
	c := testCoordinator(t, cfg, transport)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	transport.deliver(t,
		"network_monitor/logs/gw-01",
		"Feb 12 03:14:15 gw-01 sshd[991]: Failed password for root from 10.0.0.9 port 22 ssh2",
	)

	deadline := time.After(5 * time.Second)
	for c.Stats().Results == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for analysis result")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if commands := transport.commands(); len(commands) != 0 {
		t.Errorf("published %d commands with output disabled, want 0", len(commands))
	}
}

func TestCoordinator_HealthCheck(t *testing.T) {
	transport := &fakeTransport{}
	c := testCoordinator(t, testConfig(), transport)

	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() expected error before Start()")
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v after Start()", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() expected error after Close()")
	}
}

func TestCoordinator_CloseBeforeStart(t *testing.T) {
	c := testCoordinator(t, testConfig(), &fakeTransport{})
	if err := c.Close(); err != nil {
		t.Errorf("Close() before Start() error = %v", err)
	}
}
