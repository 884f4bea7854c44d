// Logwarden - Device Log Analysis Pipeline
//
// This is the main entry point for the Logwarden service. Logwarden
// ingests unstructured device log lines over MQTT, parses them into
// structured records, runs them through pluggable analyzers, and
// publishes validated remote-configuration commands back to devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/infrastructure/mqtt"
	"github.com/wardenlabs/logwarden/internal/pipeline"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Logwarden",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Metrics collector: Prometheus-backed when monitoring is enabled,
	// otherwise a no-op that still lets the pipeline count for Stats()
	var collector metrics.Collector = metrics.Noop{}
	var prom *metrics.Prometheus
	if cfg.Monitoring.Enabled {
		prom = metrics.NewPrometheus()
		collector = prom
	}

	// Connect to the ingestion MQTT broker
	ingestClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := ingestClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	ingestClient.SetLogger(log.With("component", "mqtt"))
	ingestClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	ingestClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Command output client: a dedicated broker connection when one is
	// configured, otherwise the ingestion client does double duty
	outputClient := ingestClient
	if cfg.Output.Enabled && cfg.Output.Broker.Host != "" {
		outputClient, err = connectOutputBroker(cfg, log)
		if err != nil {
			return fmt.Errorf("connecting to output MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from output MQTT")
			if closeErr := outputClient.Close(); closeErr != nil {
				log.Error("error closing output MQTT", "error", closeErr)
			}
		}()
	}

	// Build the pipeline: rules and analyzers are validated here,
	// before anything subscribes
	coordinator, err := pipeline.New(pipeline.Deps{
		Config:  cfg,
		Logger:  log,
		Metrics: collector,
		Ingest:  ingestClient,
		Output:  outputClient,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	defer func() {
		log.Info("stopping pipeline")
		if closeErr := coordinator.Close(); closeErr != nil {
			log.Error("error stopping pipeline", "error", closeErr)
		}
	}()

	// Monitoring endpoint (optional)
	if cfg.Monitoring.Enabled {
		monitor, monErr := metrics.NewServer(metrics.ServerDeps{
			Config:   cfg.Monitoring,
			Logger:   log.With("component", "monitoring"),
			Registry: prom.Registry(),
			Health:   coordinator.HealthCheck,
		})
		if monErr != nil {
			return fmt.Errorf("building monitoring server: %w", monErr)
		}
		if startErr := monitor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting monitoring server: %w", startErr)
		}
		defer func() {
			if closeErr := monitor.Close(); closeErr != nil {
				log.Error("error closing monitoring server", "error", closeErr)
			}
		}()
	} else {
		log.Info("monitoring disabled")
	}

	// Verify everything came up healthy
	if err := healthCheck(ctx, ingestClient, coordinator); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. Monitoring server (if enabled)
	// 2. Pipeline (ingest stop, drain, gate flush)
	// 3. Output MQTT (if dedicated)
	// 4. Ingestion MQTT

	log.Info("Logwarden stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LOGWARDEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LOGWARDEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectOutputBroker dials the dedicated command output broker.
//
// Reconnect settings are shared with the ingestion side; there is no
// reason for the two links to back off differently.
func connectOutputBroker(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	broker, auth := cfg.OutputBroker()

	client, err := mqtt.Connect(config.MQTTConfig{
		Broker:    broker,
		Auth:      auth,
		QoS:       cfg.Output.QoS,
		Reconnect: cfg.MQTT.Reconnect,
	})
	if err != nil {
		return nil, err
	}

	client.SetLogger(log.With("component", "mqtt-output"))
	log.Info("output MQTT connected",
		"broker", fmt.Sprintf("%s:%d", broker.Host, broker.Port),
		"client_id", broker.ClientID,
	)
	return client, nil
}

// healthCheck verifies the infrastructure and pipeline are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - coordinator: Pipeline coordinator to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, coordinator *pipeline.Coordinator) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if err := coordinator.HealthCheck(ctx); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	return nil
}
