// Package parsing turns raw device log lines into structured records.
//
// The engine holds an ordered list of compiled rules. Each rule pairs a
// regular expression (with named capture groups) with an optional field map
// that renames captures on their way into the record. Rules are tried in
// declaration order and the first match wins.
//
// Usage:
//
//	engine, err := parsing.NewEngine(cfg.Parsing.Rules)
//	record, err := engine.Parse(payload, topic, time.Now())
//
// The engine holds no per-message state, so a single instance is safe to
// call concurrently from multiple ingestion goroutines without locking.
package parsing
