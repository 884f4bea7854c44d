package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/infrastructure/mqtt"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// Subscriber is the transport capability the adapter needs.
// *mqtt.Client satisfies it; reconnect and subscription restore live there.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// AdapterDeps holds the dependencies required by the Adapter.
type AdapterDeps struct {
	Config  config.MQTTConfig
	Client  Subscriber
	Engine  *parsing.Engine
	Sink    Sink
	Logger  *logging.Logger
	Metrics metrics.Collector
}

// Adapter subscribes to the ingestion topic and parses inbound messages.
//
// Lifecycle: NewAdapter, Start, Stop. After Stop the adapter drops any
// message still delivered by the transport instead of forwarding it.
type Adapter struct {
	cfg     config.MQTTConfig
	client  Subscriber
	intake  intake
	logger  *logging.Logger
	pattern string
	stopped atomic.Bool
}

// NewAdapter creates an ingestion adapter.
//
// Parameters:
//   - deps: Transport client, parsing engine, record sink
//
// Returns:
//   - *Adapter: Adapter ready to start
//   - error: If required dependencies are missing
func NewAdapter(deps AdapterDeps) (*Adapter, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("parsing engine is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("record sink is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	return &Adapter{
		cfg:    deps.Config,
		client: deps.Client,
		intake: intake{
			engine:      deps.Engine,
			sink:        deps.Sink,
			metrics:     deps.Metrics,
			logger:      deps.Logger,
			topicPrefix: deps.Config.TopicPrefix,
		},
		logger:  deps.Logger,
		pattern: mqtt.Topics{}.IngestAll(deps.Config.TopicPrefix),
	}, nil
}

// Start subscribes to the ingestion wildcard topic.
//
// The subscription is tracked by the transport client and restored
// automatically after a reconnect.
//
// Parameters:
//   - ctx: Reserved for lifecycle symmetry; the subscription outlives it
//     until Stop is called
//
// Returns:
//   - error: If the subscribe fails
func (a *Adapter) Start(ctx context.Context) error {
	err := a.client.Subscribe(a.pattern, byte(a.cfg.QoS), a.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", a.pattern, err)
	}

	if a.logger != nil {
		a.logger.Info("log ingestion started", "pattern", a.pattern, "qos", a.cfg.QoS)
	}
	return nil
}

// Stop unsubscribes and stops forwarding records.
//
// Messages already in flight from the broker are dropped, not forwarded,
// so the analysis stage can drain to a fixed backlog during shutdown.
func (a *Adapter) Stop() {
	a.stopped.Store(true)

	if err := a.client.Unsubscribe(a.pattern); err != nil && a.logger != nil {
		a.logger.Warn("unsubscribe failed during shutdown", "pattern", a.pattern, "error", err)
	}

	if a.logger != nil {
		a.logger.Info("log ingestion stopped", "pattern", a.pattern)
	}
}

// handleMessage is the transport callback for inbound log lines.
// It always returns nil: parse failures are terminal for the single
// message and must not surface as transport handler errors.
func (a *Adapter) handleMessage(topic string, payload []byte) error {
	if a.stopped.Load() {
		return nil
	}

	a.intake.process(topic, payload, time.Now())
	return nil
}
