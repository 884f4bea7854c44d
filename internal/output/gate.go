package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wardenlabs/logwarden/internal/analysis"
	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/infrastructure/mqtt"
)

// Publish retry backoff bounds.
const (
	publishRetryInitial = 500 * time.Millisecond
	publishRetryMax     = 5 * time.Second
)

// Publisher is the transport capability the gate needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// GateDeps holds the dependencies required by the Gate.
type GateDeps struct {
	Config    config.OutputConfig
	Publisher Publisher
	Logger    *logging.Logger
	Metrics   metrics.Collector
}

// Gate validates analyzer results and publishes their commands.
type Gate struct {
	cfg       config.OutputConfig
	publisher Publisher
	logger    *logging.Logger
	metrics   metrics.Collector

	// retryInitial seeds the publish backoff; tests shrink it.
	retryInitial time.Duration
}

// NewGate creates a command gate.
//
// Parameters:
//   - deps: Output configuration, transport publisher, logger, metrics
//
// Returns:
//   - *Gate: Gate ready for Run or Publish calls
//   - error: If required dependencies are missing
func NewGate(deps GateDeps) (*Gate, error) {
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	return &Gate{
		cfg:          deps.Config,
		publisher:    deps.Publisher,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		retryInitial: publishRetryInitial,
	}, nil
}

// Run consumes analyzer results until the channel closes or the context
// is cancelled.
//
// Publish errors are logged and counted but never abort the loop; a bad
// batch must not stop later, valid batches.
//
// Parameters:
//   - ctx: Cancels the loop and any in-progress publish retry
//   - results: The dispatcher's outbound queue
//
// Returns:
//   - error: ctx.Err() on cancellation, nil when results closes
func (g *Gate) Run(ctx context.Context, results <-chan *analysis.ActionResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			if err := g.Publish(ctx, result); err != nil && g.logger != nil {
				g.logger.Error("command batch not published",
					"analyzer", result.Analyzer,
					"device_id", result.TargetDeviceID,
					"error", err,
				)
			}
		}
	}
}

// Publish validates one result and publishes its commands.
//
// Results without the set_config action are dropped without error. For
// eligible results, every command must match an allow-listed prefix; if
// any command fails the check the entire batch is rejected and nothing is
// published. Valid commands go out one publish per command, in order, to
// the device's command topic.
//
// Parameters:
//   - ctx: Bounds publish retries
//   - result: The analyzer result to publish
//
// Returns:
//   - error: ErrMissingTarget, ErrCommandBlocked, or ErrPublishFailed
func (g *Gate) Publish(ctx context.Context, result *analysis.ActionResult) error {
	if result.Action != analysis.ActionSetConfig {
		if g.logger != nil {
			g.logger.Debug("result not eligible for output",
				"analyzer", result.Analyzer,
				"action", string(result.Action),
			)
		}
		return nil
	}

	if result.TargetDeviceID == "" {
		g.metrics.CommandBlocked()
		return ErrMissingTarget
	}

	// Fail closed: one bad command rejects the whole batch.
	for _, command := range result.Commands {
		if g.allowed(command) {
			continue
		}
		g.metrics.CommandBlocked()
		if g.logger != nil {
			g.logger.Warn("command batch rejected by allow-list",
				"analyzer", result.Analyzer,
				"device_id", result.TargetDeviceID,
				"command", command,
			)
		}
		return fmt.Errorf("%w: %q", ErrCommandBlocked, command)
	}

	topic := mqtt.Topics{}.DeviceCommand(g.cfg.TopicPrefix, result.TargetDeviceID)
	for i, command := range result.Commands {
		if err := g.publishWithRetry(ctx, topic, command); err != nil {
			return fmt.Errorf("%w: command %d of %d: %v", ErrPublishFailed, i+1, len(result.Commands), err)
		}
		g.metrics.CommandPublished()
		if g.logger != nil {
			g.logger.Info("command published",
				"device_id", result.TargetDeviceID,
				"topic", topic,
				"command", command,
			)
		}
	}

	return nil
}

// allowed reports whether a command matches any allow-listed prefix.
// An empty allow-list permits nothing; Validate() rejects that
// configuration at startup when output is enabled.
func (g *Gate) allowed(command string) bool {
	for _, prefix := range g.cfg.AllowedCommandPrefixes {
		if strings.HasPrefix(command, prefix) {
			return true
		}
	}
	return false
}

// publishWithRetry publishes one command, retrying transient transport
// failures with exponential backoff up to the configured attempt budget.
func (g *Gate) publishWithRetry(ctx context.Context, topic, command string) error {
	attempts := g.cfg.MaxPublishAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := g.retryInitial
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = g.publisher.Publish(topic, []byte(command), byte(g.cfg.QoS), g.cfg.Retain)
		if lastErr == nil {
			return nil
		}

		g.metrics.LogFailed("publish_error")
		if g.logger != nil {
			g.logger.Warn("publish attempt failed",
				"topic", topic,
				"attempt", attempt,
				"error", lastErr,
			)
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > publishRetryMax {
			backoff = publishRetryMax
		}
	}

	return lastErr
}
