// Package analysis runs parsed log records through pluggable analyzers.
//
// An Analyzer inspects one record at a time and optionally returns an
// ActionResult describing a follow-up action, such as a remote
// configuration change. Analyzers are registered by name in a Registry
// and enabled through configuration; an enabled name with no registered
// factory fails startup rather than being silently skipped.
//
// The Dispatcher owns the bounded queues around the analyzer stage and a
// fixed-size worker pool. Each worker pulls one record, runs every enabled
// analyzer against it in configuration order, and forwards any results to
// the outbound queue. A panic or error in one analyzer never stops the
// remaining analyzers or the worker.
//
// Usage:
//
//	registry := analysis.NewRegistry()
//	analyzers, err := registry.Build(cfg.Analyzers)
//	dispatcher, err := analysis.NewDispatcher(analysis.DispatcherDeps{...})
//	dispatcher.Start(ctx)
//	defer dispatcher.Close()
//
// Thread Safety: Enqueue and Results are safe for concurrent use.
// Analyzer implementations must be safe for concurrent Analyze calls,
// since the worker pool shares one instance per analyzer.
package analysis
