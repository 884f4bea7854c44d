package analysis

import (
	"fmt"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
)

// Factory constructs an analyzer from its configuration block.
type Factory func(options map[string]any, logger *logging.Logger) (Analyzer, error)

// Registry maps analyzer names to factories.
//
// NewRegistry pre-registers the built-in analyzers; additional factories
// can be added with Register before Build is called.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in analyzers registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	// Built-ins. Registration cannot collide here, so errors are impossible.
	_ = r.Register(eventCounterName, newEventCounter)
	_ = r.Register(rateThresholdName, newRateThreshold)

	return r
}

// Register adds a factory under the given name.
//
// Parameters:
//   - name: Unique analyzer name used in configuration
//   - factory: Constructor for the analyzer
//
// Returns:
//   - error: ErrDuplicateAnalyzer if the name is already registered
func (r *Registry) Register(name string, factory Factory) error {
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAnalyzer, name)
	}
	r.factories[name] = factory
	return nil
}

// Build constructs the enabled analyzers in configuration order.
//
// Unknown names are rejected fail-fast so a typo in configuration is
// caught at startup rather than silently disabling an analyzer.
//
// Parameters:
//   - cfg: Analyzer selection and per-analyzer option blocks
//   - logger: Logger passed to each constructed analyzer
//
// Returns:
//   - []Analyzer: Constructed analyzers in the order they were enabled
//   - error: ErrUnknownAnalyzer for unregistered names, or a factory error
func (r *Registry) Build(cfg config.AnalyzersConfig, logger *logging.Logger) ([]Analyzer, error) {
	analyzers := make([]Analyzer, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, name)
		}

		analyzer, err := factory(cfg.Configs[name], logger)
		if err != nil {
			return nil, fmt.Errorf("building analyzer %s: %w", name, err)
		}
		analyzers = append(analyzers, analyzer)
	}
	return analyzers, nil
}

// intOption reads an integer option, tolerating the numeric types YAML
// decoding produces.
func intOption(options map[string]any, key string, fallback int) (int, error) {
	raw, ok := options[key]
	if !ok {
		return fallback, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidOption, key, raw)
	}
}

// stringOption reads a string option.
func stringOption(options map[string]any, key, fallback string) (string, error) {
	raw, ok := options[key]
	if !ok {
		return fallback, nil
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidOption, key, raw)
	}
	return s, nil
}

// stringListOption reads a list-of-strings option.
func stringListOption(options map[string]any, key string) ([]string, error) {
	raw, ok := options[key]
	if !ok {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", ErrInvalidOption, key, raw)
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s contains a non-string entry %v", ErrInvalidOption, key, item)
		}
		out = append(out, s)
	}
	return out, nil
}
