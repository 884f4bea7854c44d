package parsing

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
)

// Engine parses raw log payloads against an ordered rule list.
//
// The rule list is immutable after construction, so Parse is safe for
// concurrent use without locking.
type Engine struct {
	rules []Rule
}

// NewEngine compiles the configured rules into an Engine.
//
// Rules are tried in the order given. Compilation is fail-fast: a single
// invalid rule aborts construction rather than being silently skipped.
//
// Parameters:
//   - cfgs: Ordered rule definitions from configuration
//
// Returns:
//   - *Engine: Engine ready for Parse calls
//   - error: ErrInvalidRule if any rule fails to compile, or if no rules
//     are configured
func NewEngine(cfgs []config.RuleConfig) (*Engine, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%w: no rules configured", ErrInvalidRule)
	}

	rules := make([]Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		rule, err := CompileRule(cfg)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return &Engine{rules: rules}, nil
}

// RuleNames returns the names of the compiled rules in declaration order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// Parse turns a raw payload into a structured Record.
//
// The payload must be valid UTF-8. Rules are tried in declaration order and
// the first match wins. receivedAt is recorded on the Record rather than
// read from the clock here, so re-parsing the same payload yields a
// structurally identical record.
//
// Parameters:
//   - payload: Raw log line bytes as received from the transport
//   - topic: The topic the payload arrived on
//   - receivedAt: When the payload was received
//
// Returns:
//   - *Record: The parsed record
//   - error: ErrDecode for non-UTF-8 payloads, ErrNoMatch when no rule
//     matches
func (e *Engine) Parse(payload []byte, topic string, receivedAt time.Time) (*Record, error) {
	if !utf8.Valid(payload) {
		return nil, ErrDecode
	}
	line := string(payload)

	for _, rule := range e.rules {
		fields := rule.match(line)
		if fields == nil {
			continue
		}
		return newRecord(rule, fields, topic, line, receivedAt), nil
	}

	return nil, ErrNoMatch
}
