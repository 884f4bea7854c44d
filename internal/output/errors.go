package output

import "errors"

// Domain-specific errors for the command gate.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCommandBlocked is returned when a command fails the allow-list
	// check. The whole batch it belongs to is rejected.
	ErrCommandBlocked = errors.New("output: command blocked by allow-list")

	// ErrMissingTarget is returned when a set_config result carries no
	// target device.
	ErrMissingTarget = errors.New("output: result has no target device")

	// ErrPublishFailed is returned when a command could not be published
	// within the configured retry budget.
	ErrPublishFailed = errors.New("output: publish failed")
)
