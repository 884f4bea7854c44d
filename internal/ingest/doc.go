// Package ingest feeds raw log lines into the parsing engine and onward
// to the analysis dispatcher.
//
// The Adapter is the primary source: it subscribes to the ingestion
// wildcard topic (<prefix>/#) and parses every message in the broker
// callback. Parse failures are terminal for that single message; they are
// counted by reason and dropped, never propagated.
//
// The FileSource is a secondary source for development and replay: it
// tails a local log file and pushes each line through the same intake
// path under a fixed synthetic topic.
//
// Both sources hand parsed records to a Sink with a bounded-wait-then-drop
// policy implemented by the sink itself, so a slow analysis stage can
// never block the transport callback long enough to get the client
// disconnected broker-side.
package ingest
