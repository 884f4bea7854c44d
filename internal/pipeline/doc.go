// Package pipeline assembles and coordinates the log analysis pipeline.
//
// The Coordinator owns startup ordering and shutdown. Rules, analyzers and
// the allow-list are compiled and validated before the transport
// subscription is made, so the first inbound message always meets a fully
// configured pipeline. On shutdown the ingestion sources stop first, the
// dispatcher drains in-flight records within the configured grace period,
// and the command gate flushes the remaining results before everything
// stops.
//
// Message flow:
//
//	Ingestion (MQTT wildcard, optional file tail)
//	    → Parsing Engine
//	    → Analysis Dispatcher (worker pool, bounded queues)
//	    → Command Output Gate (allow-list, per-device topics)
//
// The Coordinator also keeps process-wide counters and feeds queue depth
// gauges to the metrics collector on a fixed interval.
package pipeline
