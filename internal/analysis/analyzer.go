package analysis

import (
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// Action classifies what an ActionResult asks downstream stages to do.
type Action string

const (
	// ActionSetConfig requests remote configuration commands be sent to a
	// device. Only results with this action are eligible for publishing.
	ActionSetConfig Action = "set_config"

	// ActionReport carries informational output (counter snapshots and the
	// like) that is logged but never published as commands.
	ActionReport Action = "report"
)

// ActionResult is the output of an analyzer that fired on a record.
//
// Analyzer is filled in by the dispatcher, so analyzers do not need to
// stamp their own name on results.
type ActionResult struct {
	Analyzer       string
	Action         Action
	TargetDeviceID string
	Commands       []string
	Data           map[string]any
}

// Analyzer is a pluggable unit of log analysis.
//
// Analyze is called once per record. Returning (nil, nil) means the
// analyzer has nothing to say about this record. Implementations must be
// safe for concurrent calls.
type Analyzer interface {
	// Name returns the unique configuration name of this analyzer.
	Name() string

	// Analyze inspects one record and optionally produces an ActionResult.
	Analyze(record *parsing.Record) (*ActionResult, error)
}

// Closer is implemented by analyzers that hold state worth flushing on
// shutdown. The dispatcher calls Close after all workers have stopped.
type Closer interface {
	Close() error
}
