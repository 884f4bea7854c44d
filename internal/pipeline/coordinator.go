package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardenlabs/logwarden/internal/analysis"
	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/ingest"
	"github.com/wardenlabs/logwarden/internal/output"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// Queue names used for depth gauges.
const (
	queueParsed = "parsed"
	queueResult = "result"
)

// Deps holds the dependencies required by the Coordinator.
//
// The transport clients are injected already connected; the coordinator
// wires the pipeline stages around them but never dials anything itself.
type Deps struct {
	Config *config.Config
	Logger *logging.Logger

	// Metrics receives all pipeline counters. Optional; counters kept
	// for Stats() work either way.
	Metrics metrics.Collector

	// Ingest is the transport client for log subscription.
	Ingest ingest.Subscriber

	// Output is the transport client for command publishing. Required
	// only when command output is enabled. It may be the same client as
	// Ingest when both sides share one broker.
	Output output.Publisher

	// Registry supplies analyzer factories. Optional; defaults to the
	// built-in registry.
	Registry *analysis.Registry
}

// Coordinator builds the pipeline stages and owns their lifecycle.
//
// Lifecycle: New validates and constructs everything, Start brings the
// stages up in dependency order, Close tears them down in reverse with a
// bounded drain.
type Coordinator struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *countingCollector

	engine     *parsing.Engine
	dispatcher *analysis.Dispatcher
	adapter    *ingest.Adapter
	fileSource *ingest.FileSource
	gate       *output.Gate

	group    *errgroup.Group
	cancel   context.CancelFunc
	gateDone chan struct{}
	started  bool
}

// New builds the pipeline from configuration.
//
// Everything that can fail is failed here: rule compilation, analyzer
// construction (unknown enabled names are rejected), and gate setup. A
// Coordinator that constructs successfully is ready to subscribe.
//
// Parameters:
//   - deps: Configuration and connected transport clients
//
// Returns:
//   - *Coordinator: Coordinator ready to start
//   - error: If any stage fails to build
func New(deps Deps) (*Coordinator, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Ingest == nil {
		return nil, fmt.Errorf("ingest transport client is required")
	}

	cfg := deps.Config
	collector := newCountingCollector(deps.Metrics)

	engine, err := parsing.NewEngine(cfg.Parsing.Rules)
	if err != nil {
		return nil, fmt.Errorf("building parsing engine: %w", err)
	}

	registry := deps.Registry
	if registry == nil {
		registry = analysis.NewRegistry()
	}
	analyzers, err := registry.Build(cfg.Analyzers, deps.Logger.With("component", "analysis"))
	if err != nil {
		return nil, fmt.Errorf("building analyzers: %w", err)
	}

	dispatcher, err := analysis.NewDispatcher(analysis.DispatcherDeps{
		Analyzers:    analyzers,
		Workers:      cfg.Analyzers.Workers,
		InCapacity:   cfg.Queues.ParsedCapacity,
		OutCapacity:  cfg.Queues.ResultCapacity,
		EnqueueWait:  cfg.EnqueueWait(),
		DrainTimeout: cfg.DrainTimeout(),
		Logger:       deps.Logger.With("component", "analysis"),
		Metrics:      collector,
	})
	if err != nil {
		return nil, fmt.Errorf("building dispatcher: %w", err)
	}

	adapter, err := ingest.NewAdapter(ingest.AdapterDeps{
		Config:  cfg.MQTT,
		Client:  deps.Ingest,
		Engine:  engine,
		Sink:    dispatcher,
		Logger:  deps.Logger.With("component", "ingest"),
		Metrics: collector,
	})
	if err != nil {
		return nil, fmt.Errorf("building ingestion adapter: %w", err)
	}

	c := &Coordinator{
		cfg:        cfg,
		logger:     deps.Logger,
		metrics:    collector,
		engine:     engine,
		dispatcher: dispatcher,
		adapter:    adapter,
		gateDone:   make(chan struct{}),
	}

	if cfg.Output.Enabled {
		if deps.Output == nil {
			return nil, fmt.Errorf("output transport client is required when output is enabled")
		}
		c.gate, err = output.NewGate(output.GateDeps{
			Config:    cfg.Output,
			Publisher: deps.Output,
			Logger:    deps.Logger.With("component", "output"),
			Metrics:   collector,
		})
		if err != nil {
			return nil, fmt.Errorf("building command gate: %w", err)
		}
	}

	if cfg.Ingest.File.Enabled {
		c.fileSource, err = ingest.NewFileSource(ingest.FileSourceDeps{
			Config:      cfg.Ingest.File,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Engine:      engine,
			Sink:        dispatcher,
			Logger:      deps.Logger.With("component", "ingest"),
			Metrics:     collector,
		})
		if err != nil {
			return nil, fmt.Errorf("building file source: %w", err)
		}
	}

	return c, nil
}

// Start brings the pipeline up.
//
// Order matters: workers and the result consumer start before the
// transport subscription, so the first inbound message meets a running
// pipeline.
//
// Parameters:
//   - ctx: Parent context; background loops stop when Close is called,
//     not when this context ends, so accepted records are not lost
//
// Returns:
//   - error: If a source fails to start
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group = new(errgroup.Group)

	c.dispatcher.Start(runCtx)

	results := c.dispatcher.Results()
	c.group.Go(func() error {
		defer close(c.gateDone)
		if c.gate != nil {
			return c.gate.Run(runCtx, results)
		}
		return c.drainResults(results)
	})

	c.group.Go(func() error {
		c.gaugeLoop(runCtx)
		return nil
	})

	if c.fileSource != nil {
		if err := c.fileSource.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("starting file source: %w", err)
		}
	}

	// Subscribe last: rules, analyzers and the allow-list are already
	// validated and running at this point.
	if err := c.adapter.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("starting ingestion: %w", err)
	}

	c.started = true
	c.logger.Info("pipeline started",
		"rules", len(c.cfg.Parsing.Rules),
		"analyzers", len(c.cfg.Analyzers.Enabled),
		"workers", c.cfg.Analyzers.Workers,
		"output_enabled", c.cfg.Output.Enabled,
	)
	return nil
}

// drainResults consumes analyzer results when command output is disabled,
// logging report payloads so counter analyzers stay visible.
func (c *Coordinator) drainResults(results <-chan *analysis.ActionResult) error {
	for result := range results {
		if result.Action == analysis.ActionReport {
			c.logger.Info("analysis report",
				"analyzer", result.Analyzer,
				"data", result.Data,
			)
			continue
		}
		c.logger.Debug("analysis result discarded, output disabled",
			"analyzer", result.Analyzer,
			"action", string(result.Action),
		)
	}
	return nil
}

// gaugeLoop refreshes queue depth gauges on the monitoring interval.
func (c *Coordinator) gaugeLoop(ctx context.Context) {
	interval := c.cfg.GaugeUpdateInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in, out := c.dispatcher.QueueDepths()
			c.metrics.QueueDepth(queueParsed, in)
			c.metrics.QueueDepth(queueResult, out)
		}
	}
}

// Stats returns a snapshot of the pipeline counters and queue depths.
func (c *Coordinator) Stats() Stats {
	stats := c.metrics.snapshot()
	stats.ParsedQueueDepth, stats.ResultQueueDepth = c.dispatcher.QueueDepths()
	return stats
}

// HealthCheck verifies the pipeline has been started.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Coordinator) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("pipeline health check: %w", ctx.Err())
	default:
	}

	if !c.started {
		return fmt.Errorf("pipeline not started")
	}
	return nil
}

// Close shuts the pipeline down.
//
// Ingestion stops first so no new records enter, the dispatcher drains
// in-flight records within the grace period, the gate flushes the
// remaining results, and finally the background loops stop.
//
// Returns:
//   - error: ErrDrainTimeout from the dispatcher if in-flight records
//     could not be drained in time
func (c *Coordinator) Close() error {
	if c.cancel == nil {
		return nil
	}

	c.adapter.Stop()
	if c.fileSource != nil {
		if err := c.fileSource.Close(); err != nil {
			c.logger.Warn("file source close failed", "error", err)
		}
	}

	closeErr := c.dispatcher.Close()

	// Let the result consumer finish the drained backlog before pulling
	// its context.
	select {
	case <-c.gateDone:
	case <-time.After(c.cfg.DrainTimeout()):
		c.logger.Warn("result drain timed out")
	}

	c.cancel()

	if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("pipeline goroutine failed", "error", err)
	}

	c.started = false
	stats := c.Stats()
	c.logger.Info("pipeline stopped",
		"received", stats.Received,
		"parsed", stats.Parsed,
		"failed", stats.Failed,
		"results", stats.Results,
		"published", stats.Published,
		"blocked", stats.Blocked,
	)
	return closeErr
}
