package pipeline

import (
	"sync/atomic"

	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
)

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Received  uint64
	Parsed    uint64
	Failed    uint64
	Results   uint64
	Published uint64
	Blocked   uint64

	ParsedQueueDepth int
	ResultQueueDepth int
}

// countingCollector keeps process-local counters alongside whatever
// collector the process was configured with, so Stats() works without a
// metrics backend.
type countingCollector struct {
	next metrics.Collector

	received  atomic.Uint64
	parsed    atomic.Uint64
	failed    atomic.Uint64
	results   atomic.Uint64
	published atomic.Uint64
	blocked   atomic.Uint64
}

func newCountingCollector(next metrics.Collector) *countingCollector {
	if next == nil {
		next = metrics.Noop{}
	}
	return &countingCollector{next: next}
}

func (c *countingCollector) LogReceived(topic string) {
	c.received.Add(1)
	c.next.LogReceived(topic)
}

func (c *countingCollector) LogParsed(rule string) {
	c.parsed.Add(1)
	c.next.LogParsed(rule)
}

func (c *countingCollector) LogFailed(reason string) {
	c.failed.Add(1)
	c.next.LogFailed(reason)
}

func (c *countingCollector) AnalysisResult(analyzer string) {
	c.results.Add(1)
	c.next.AnalysisResult(analyzer)
}

func (c *countingCollector) CommandPublished() {
	c.published.Add(1)
	c.next.CommandPublished()
}

func (c *countingCollector) CommandBlocked() {
	c.blocked.Add(1)
	c.next.CommandBlocked()
}

func (c *countingCollector) QueueDepth(queue string, depth int) {
	c.next.QueueDepth(queue, depth)
}

func (c *countingCollector) snapshot() Stats {
	return Stats{
		Received:  c.received.Load(),
		Parsed:    c.parsed.Load(),
		Failed:    c.failed.Load(),
		Results:   c.results.Load(),
		Published: c.published.Load(),
		Blocked:   c.blocked.Load(),
	}
}
