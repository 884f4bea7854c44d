package analysis

import (
	"fmt"
	"sync"
	"time"

	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

const rateThresholdName = "rate_threshold"

const (
	defaultRateThreshold = 10
	defaultRateWindow    = 60 * time.Second
)

// RateThreshold watches one parsing rule and fires a configuration change
// when a device produces too many matching records within a sliding window.
//
// A typical use is reacting to repeated authentication failures from one
// device by tightening its configuration. After firing for a device the
// analyzer stays quiet for a cooldown period so a sustained burst produces
// one command batch, not one per record.
type RateThreshold struct {
	rule          string
	threshold     int
	window        time.Duration
	cooldown      time.Duration
	commands      []string
	defaultTarget string
	logger        *logging.Logger

	now func() time.Time

	mu        sync.Mutex
	seen      map[string][]time.Time
	lastFired map[string]time.Time
}

// newRateThreshold is the registry factory for RateThreshold.
//
// Options:
//   - rule: name of the parsing rule to watch (required)
//   - threshold: occurrences within the window that trigger a fire (default 10)
//   - window_seconds: sliding window length (default 60)
//   - cooldown_seconds: quiet period per device after firing (default: window)
//   - commands: command strings to emit when fired (required)
//   - target_device: fallback device ID for records without one
func newRateThreshold(options map[string]any, logger *logging.Logger) (Analyzer, error) {
	rule, err := stringOption(options, "rule", "")
	if err != nil {
		return nil, err
	}
	if rule == "" {
		return nil, fmt.Errorf("%w: rate_threshold requires a rule", ErrInvalidOption)
	}

	threshold, err := intOption(options, "threshold", defaultRateThreshold)
	if err != nil {
		return nil, err
	}
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be positive", ErrInvalidOption)
	}

	windowSecs, err := intOption(options, "window_seconds", int(defaultRateWindow.Seconds()))
	if err != nil {
		return nil, err
	}
	if windowSecs < 1 {
		return nil, fmt.Errorf("%w: window_seconds must be positive", ErrInvalidOption)
	}
	window := time.Duration(windowSecs) * time.Second

	cooldownSecs, err := intOption(options, "cooldown_seconds", windowSecs)
	if err != nil {
		return nil, err
	}
	cooldown := time.Duration(cooldownSecs) * time.Second

	commands, err := stringListOption(options, "commands")
	if err != nil {
		return nil, err
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("%w: rate_threshold requires at least one command", ErrInvalidOption)
	}

	target, err := stringOption(options, "target_device", "")
	if err != nil {
		return nil, err
	}

	return &RateThreshold{
		rule:          rule,
		threshold:     threshold,
		window:        window,
		cooldown:      cooldown,
		commands:      commands,
		defaultTarget: target,
		logger:        logger,
		now:           time.Now,
		seen:          make(map[string][]time.Time),
		lastFired:     make(map[string]time.Time),
	}, nil
}

// Name returns the analyzer's configuration name.
func (a *RateThreshold) Name() string {
	return rateThresholdName
}

// Analyze records the occurrence and fires a SetConfig result when the
// device crosses the configured rate.
func (a *RateThreshold) Analyze(record *parsing.Record) (*ActionResult, error) {
	if record.Rule != a.rule {
		return nil, nil
	}

	device := record.DeviceID
	if device == "" {
		device = a.defaultTarget
	}
	if device == "" {
		// Nothing to target; counting without a device would only
		// produce unroutable commands.
		return nil, nil
	}

	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if fired, ok := a.lastFired[device]; ok && now.Sub(fired) < a.cooldown {
		return nil, nil
	}

	cutoff := now.Add(-a.window)
	recent := a.seen[device][:0]
	for _, t := range a.seen[device] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	a.seen[device] = recent

	if len(recent) < a.threshold {
		return nil, nil
	}

	a.lastFired[device] = now
	a.seen[device] = nil

	if a.logger != nil {
		a.logger.Warn("rate threshold exceeded",
			"rule", a.rule,
			"device_id", device,
			"count", len(recent),
			"window", a.window.String(),
		)
	}

	return &ActionResult{
		Action:         ActionSetConfig,
		TargetDeviceID: device,
		Commands:       append([]string(nil), a.commands...),
		Data: map[string]any{
			"rule":  a.rule,
			"count": len(recent),
		},
	}, nil
}
