package metrics

// Collector records pipeline events for monitoring.
//
// Pipeline stages call these methods on their hot paths, so implementations
// must be cheap and must never block.
type Collector interface {
	// LogReceived records a raw log message arriving from the given topic.
	LogReceived(topic string)

	// LogParsed records a log line successfully matched by the named rule.
	LogParsed(rule string)

	// LogFailed records a log line that could not be processed.
	// The reason is a short stable token such as "no_match", "decode_error"
	// or "queue_full".
	LogFailed(reason string)

	// AnalysisResult records an action result produced by the named analyzer.
	AnalysisResult(analyzer string)

	// CommandPublished records a command successfully published to a device.
	CommandPublished()

	// CommandBlocked records a command batch rejected by the allow-list gate.
	CommandBlocked()

	// QueueDepth records the current depth of the named internal queue
	// ("parsed" or "result").
	QueueDepth(queue string, depth int)
}

// Noop is a Collector that discards all observations.
//
// It is the default for components constructed without a collector, keeping
// nil checks out of the hot paths.
type Noop struct{}

func (Noop) LogReceived(string)    {}
func (Noop) LogParsed(string)      {}
func (Noop) LogFailed(string)      {}
func (Noop) AnalysisResult(string) {}
func (Noop) CommandPublished()     {}
func (Noop) CommandBlocked()       {}
func (Noop) QueueDepth(string, int) {}
