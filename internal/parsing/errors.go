package parsing

import "errors"

// Domain-specific errors for log parsing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDecode is returned when a payload is not valid UTF-8 text.
	ErrDecode = errors.New("parsing: payload is not valid UTF-8")

	// ErrNoMatch is returned when no configured rule matches a log line.
	ErrNoMatch = errors.New("parsing: no rule matched")

	// ErrInvalidRule is returned when a rule fails to compile.
	ErrInvalidRule = errors.New("parsing: invalid rule")
)
