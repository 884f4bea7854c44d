// Package metrics provides pipeline instrumentation and the monitoring
// HTTP endpoint for Logwarden.
//
// The Collector interface decouples the pipeline stages from the metrics
// backend: stages record events through the interface, and the Prometheus
// implementation maps them onto counters and gauges registered against a
// dedicated registry. A no-op collector is available for tests and for
// deployments with monitoring disabled.
//
// The Server exposes the registry over HTTP:
//
//	GET /metrics  - Prometheus exposition format
//	GET /healthz  - liveness probe, 200 when the pipeline reports healthy
//
// Usage:
//
//	collector := metrics.NewPrometheus()
//	server, err := metrics.NewServer(metrics.ServerDeps{
//	    Config:   cfg.Monitoring,
//	    Logger:   logger,
//	    Registry: collector.Registry(),
//	})
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All Collector implementations and Server methods are safe
// for concurrent use from multiple goroutines.
package metrics
