package analysis

import (
	"sync"

	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

const eventCounterName = "event_counter"

// defaultReportInterval controls how often the counter emits a snapshot:
// one report per rule per this many occurrences.
const defaultReportInterval = 100

// EventCounter counts records per parsing rule and periodically reports
// the running totals.
//
// It never emits commands; its results carry Action == ActionReport and
// exist for operators watching the result stream.
type EventCounter struct {
	reportInterval int
	logger         *logging.Logger

	mu     sync.Mutex
	counts map[string]int
}

// newEventCounter is the registry factory for EventCounter.
//
// Options:
//   - report_interval: emit a report every N occurrences of a rule (default 100)
func newEventCounter(options map[string]any, logger *logging.Logger) (Analyzer, error) {
	interval, err := intOption(options, "report_interval", defaultReportInterval)
	if err != nil {
		return nil, err
	}
	if interval < 1 {
		interval = defaultReportInterval
	}

	return &EventCounter{
		reportInterval: interval,
		logger:         logger,
		counts:         make(map[string]int),
	}, nil
}

// Name returns the analyzer's configuration name.
func (a *EventCounter) Name() string {
	return eventCounterName
}

// Analyze increments the count for the record's rule and returns a report
// every reportInterval occurrences.
func (a *EventCounter) Analyze(record *parsing.Record) (*ActionResult, error) {
	if record.Rule == "" {
		return nil, nil
	}

	a.mu.Lock()
	a.counts[record.Rule]++
	count := a.counts[record.Rule]
	a.mu.Unlock()

	if count%a.reportInterval != 0 {
		return nil, nil
	}

	return &ActionResult{
		Action: ActionReport,
		Data: map[string]any{
			"rule":  record.Rule,
			"count": count,
		},
	}, nil
}

// Close logs the final counts.
func (a *EventCounter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.logger != nil {
		for rule, count := range a.counts {
			a.logger.Info("event counter final count", "rule", rule, "count", count)
		}
	}
	return nil
}
