package parsing

import (
	"fmt"
	"regexp"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
)

// Rule is a compiled parsing rule.
//
// The pattern is anchored at the start of the line, so a rule matches when
// its expression matches from the first character onward. Rules that need to
// match the whole line should end their pattern with $.
type Rule struct {
	Name    string
	LogType string

	pattern  *regexp.Regexp
	fieldMap map[string]string
}

// CompileRule compiles a rule definition into a Rule.
//
// Parameters:
//   - cfg: The rule definition (name, pattern, optional field map)
//
// Returns:
//   - Rule: The compiled rule
//   - error: ErrInvalidRule if the pattern does not compile or has no
//     named capture groups
func CompileRule(cfg config.RuleConfig) (Rule, error) {
	if cfg.Name == "" {
		return Rule{}, fmt.Errorf("%w: rule has no name", ErrInvalidRule)
	}

	// Anchor at the start of the line. The non-capturing group keeps
	// top-level alternation in the pattern intact.
	pattern, err := regexp.Compile(`\A(?:` + cfg.Pattern + `)`)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, cfg.Name, err)
	}

	named := 0
	for _, name := range pattern.SubexpNames() {
		if name != "" {
			named++
		}
	}
	if named == 0 {
		return Rule{}, fmt.Errorf("%w: rule %q has no named capture groups", ErrInvalidRule, cfg.Name)
	}

	return Rule{
		Name:     cfg.Name,
		LogType:  cfg.LogType,
		pattern:  pattern,
		fieldMap: cfg.FieldMap,
	}, nil
}

// match applies the rule to a line and returns the mapped capture groups,
// or nil if the rule does not match.
func (r Rule) match(line string) map[string]string {
	m := r.pattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	fields := make(map[string]string)
	for i, name := range r.pattern.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		if len(r.fieldMap) == 0 {
			fields[name] = m[i]
			continue
		}
		if mapped, ok := r.fieldMap[name]; ok {
			fields[mapped] = m[i]
		}
		// Groups absent from the field map are dropped.
	}

	return fields
}
