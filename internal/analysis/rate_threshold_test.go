package analysis

import (
	"errors"
	"testing"
	"time"

	"github.com/wardenlabs/logwarden/internal/parsing"
)

func newTestRateThreshold(t *testing.T, options map[string]any) (*RateThreshold, *time.Time) {
	t.Helper()

	analyzer, err := newRateThreshold(options, testLogger())
	if err != nil {
		t.Fatalf("newRateThreshold() error = %v", err)
	}

	rt := analyzer.(*RateThreshold)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rt.now = func() time.Time { return now }
	return rt, &now
}

func TestRateThreshold_FiresAtThreshold(t *testing.T) {
	rt, _ := newTestRateThreshold(t, map[string]any{
		"rule":      "sshd_auth_failure",
		"threshold": 3,
		"commands":  []any{"set firewall.ssh_block=1", "set system.alert=1"},
	})

	record := &parsing.Record{Rule: "sshd_auth_failure", DeviceID: "gw-01"}

	for i := 1; i <= 2; i++ {
		result, err := rt.Analyze(record)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result != nil {
			t.Fatalf("fired after %d records, want threshold 3", i)
		}
	}

	result, err := rt.Analyze(record)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result == nil {
		t.Fatal("expected fire at threshold")
	}
	if result.Action != ActionSetConfig {
		t.Errorf("Action = %q, want ActionSetConfig", result.Action)
	}
	if result.TargetDeviceID != "gw-01" {
		t.Errorf("TargetDeviceID = %q, want \"gw-01\"", result.TargetDeviceID)
	}
	if len(result.Commands) != 2 || result.Commands[0] != "set firewall.ssh_block=1" {
		t.Errorf("Commands = %v", result.Commands)
	}
}

func TestRateThreshold_CooldownSuppressesRefire(t *testing.T) {
	rt, now := newTestRateThreshold(t, map[string]any{
		"rule":             "sshd_auth_failure",
		"threshold":        2,
		"window_seconds":   60,
		"cooldown_seconds": 120,
		"commands":         []any{"set firewall.ssh_block=1"},
	})

	record := &parsing.Record{Rule: "sshd_auth_failure", DeviceID: "gw-01"}

	rt.Analyze(record)
	result, _ := rt.Analyze(record)
	if result == nil {
		t.Fatal("expected initial fire")
	}

	// Burst continues inside the cooldown.
	for i := 0; i < 5; i++ {
		*now = now.Add(10 * time.Second)
		if result, _ := rt.Analyze(record); result != nil {
			t.Fatal("fired during cooldown")
		}
	}

	// Past the cooldown a fresh burst fires again.
	*now = now.Add(120 * time.Second)
	rt.Analyze(record)
	result, _ = rt.Analyze(record)
	if result == nil {
		t.Fatal("expected fire after cooldown elapsed")
	}
}

func TestRateThreshold_WindowExpiresOldEvents(t *testing.T) {
	rt, now := newTestRateThreshold(t, map[string]any{
		"rule":           "sshd_auth_failure",
		"threshold":      3,
		"window_seconds": 30,
		"commands":       []any{"set firewall.ssh_block=1"},
	})

	record := &parsing.Record{Rule: "sshd_auth_failure", DeviceID: "gw-01"}

	rt.Analyze(record)
	*now = now.Add(20 * time.Second)
	rt.Analyze(record)

	// The first event falls out of the window before the third arrives.
	*now = now.Add(20 * time.Second)
	if result, _ := rt.Analyze(record); result != nil {
		t.Fatal("fired although oldest event left the window")
	}
}

func TestRateThreshold_TracksDevicesIndependently(t *testing.T) {
	rt, _ := newTestRateThreshold(t, map[string]any{
		"rule":      "sshd_auth_failure",
		"threshold": 2,
		"commands":  []any{"set firewall.ssh_block=1"},
	})

	gw1 := &parsing.Record{Rule: "sshd_auth_failure", DeviceID: "gw-01"}
	gw2 := &parsing.Record{Rule: "sshd_auth_failure", DeviceID: "gw-02"}

	rt.Analyze(gw1)
	if result, _ := rt.Analyze(gw2); result != nil {
		t.Fatal("gw-02 fired from gw-01's events")
	}

	result, _ := rt.Analyze(gw1)
	if result == nil || result.TargetDeviceID != "gw-01" {
		t.Errorf("expected gw-01 to fire, got %v", result)
	}
}

func TestRateThreshold_IgnoresOtherRules(t *testing.T) {
	rt, _ := newTestRateThreshold(t, map[string]any{
		"rule":      "sshd_auth_failure",
		"threshold": 1,
		"commands":  []any{"set firewall.ssh_block=1"},
	})

	result, err := rt.Analyze(&parsing.Record{Rule: "syslog_generic", DeviceID: "gw-01"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result != nil {
		t.Errorf("fired on unrelated rule")
	}
}

func TestRateThreshold_FallsBackToConfiguredTarget(t *testing.T) {
	rt, _ := newTestRateThreshold(t, map[string]any{
		"rule":          "sshd_auth_failure",
		"threshold":     1,
		"commands":      []any{"set firewall.ssh_block=1"},
		"target_device": "edge-fw",
	})

	result, _ := rt.Analyze(&parsing.Record{Rule: "sshd_auth_failure"})
	if result == nil || result.TargetDeviceID != "edge-fw" {
		t.Errorf("expected fallback target \"edge-fw\", got %v", result)
	}
}

func TestNewRateThreshold_InvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"missing rule", map[string]any{"commands": []any{"set a=1"}}},
		{"missing commands", map[string]any{"rule": "r"}},
		{"non-string command", map[string]any{"rule": "r", "commands": []any{1}}},
		{"zero threshold", map[string]any{"rule": "r", "threshold": 0, "commands": []any{"set a=1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newRateThreshold(tt.options, testLogger()); !errors.Is(err, ErrInvalidOption) {
				t.Errorf("newRateThreshold() error = %v, want ErrInvalidOption", err)
			}
		})
	}
}
