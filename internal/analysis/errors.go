package analysis

import "errors"

// Domain-specific errors for the analysis stage.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownAnalyzer is returned when configuration enables an analyzer
	// name with no registered factory.
	ErrUnknownAnalyzer = errors.New("analysis: unknown analyzer")

	// ErrDuplicateAnalyzer is returned when a factory is registered under a
	// name that is already taken.
	ErrDuplicateAnalyzer = errors.New("analysis: analyzer already registered")

	// ErrInvalidOption is returned when an analyzer's configuration contains
	// a malformed option value.
	ErrInvalidOption = errors.New("analysis: invalid analyzer option")

	// ErrDrainTimeout is returned by Close when in-flight records could not
	// be drained within the grace period.
	ErrDrainTimeout = errors.New("analysis: drain timed out")
)
