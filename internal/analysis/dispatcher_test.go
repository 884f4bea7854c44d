package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardenlabs/logwarden/internal/parsing"
)

func newTestDispatcher(t *testing.T, analyzers []Analyzer, workers int) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(DispatcherDeps{
		Analyzers:    analyzers,
		Workers:      workers,
		InCapacity:   16,
		OutCapacity:  16,
		EnqueueWait:  10 * time.Millisecond,
		DrainTimeout: 2 * time.Second,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func collectResults(d *Dispatcher) []*ActionResult {
	var results []*ActionResult
	for r := range d.Results() {
		results = append(results, r)
	}
	return results
}

func TestNewDispatcher_InvalidDeps(t *testing.T) {
	tests := []struct {
		name string
		deps DispatcherDeps
	}{
		{"zero workers", DispatcherDeps{Workers: 0, InCapacity: 1, OutCapacity: 1}},
		{"zero in capacity", DispatcherDeps{Workers: 1, InCapacity: 0, OutCapacity: 1}},
		{"zero out capacity", DispatcherDeps{Workers: 1, InCapacity: 1, OutCapacity: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDispatcher(tt.deps); err == nil {
				t.Error("NewDispatcher() expected error")
			}
		})
	}
}

func TestDispatcher_ResultsFlowThrough(t *testing.T) {
	fire := &stubAnalyzer{
		name: "always_fire",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			return &ActionResult{
				Action:         ActionSetConfig,
				TargetDeviceID: r.DeviceID,
				Commands:       []string{"set system.hostname=x"},
			}, nil
		},
	}

	d := newTestDispatcher(t, []Analyzer{fire}, 2)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !d.Enqueue(&parsing.Record{Rule: "r", DeviceID: "dev1"}) {
			t.Fatal("Enqueue() rejected record")
		}
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	results := collectResults(d)
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for _, r := range results {
		if r.Analyzer != "always_fire" {
			t.Errorf("Analyzer = %q, want \"always_fire\"", r.Analyzer)
		}
		if r.TargetDeviceID != "dev1" {
			t.Errorf("TargetDeviceID = %q, want \"dev1\"", r.TargetDeviceID)
		}
	}
}

func TestDispatcher_NthRecordFires(t *testing.T) {
	var calls atomic.Int64
	every3 := &stubAnalyzer{
		name: "counter",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			if calls.Add(1)%3 == 0 {
				return &ActionResult{
					Action:         ActionSetConfig,
					TargetDeviceID: "dev1",
					Commands:       []string{"set system.hostname=x"},
				}, nil
			}
			return nil, nil
		},
	}

	// One worker keeps the invocation count deterministic.
	d := newTestDispatcher(t, []Analyzer{every3}, 1)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		d.Enqueue(&parsing.Record{Rule: "r"})
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if results := collectResults(d); len(results) != 1 {
		t.Errorf("got %d results, want exactly 1", len(results))
	}
}

func TestDispatcher_AnalyzerErrorIsolated(t *testing.T) {
	failing := &stubAnalyzer{
		name: "failing",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			return nil, errors.New("model unavailable")
		},
	}
	var survived atomic.Int64
	healthy := &stubAnalyzer{
		name: "healthy",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			survived.Add(1)
			return nil, nil
		},
	}

	d := newTestDispatcher(t, []Analyzer{failing, healthy}, 1)
	d.Start(context.Background())

	for i := 0; i < 4; i++ {
		d.Enqueue(&parsing.Record{Rule: "r"})
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if survived.Load() != 4 {
		t.Errorf("healthy analyzer ran %d times, want 4", survived.Load())
	}
}

func TestDispatcher_AnalyzerPanicIsolated(t *testing.T) {
	panicking := &stubAnalyzer{
		name: "panicking",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			panic("nil map write")
		},
	}
	var survived atomic.Int64
	healthy := &stubAnalyzer{
		name: "healthy",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			survived.Add(1)
			return nil, nil
		},
	}

	d := newTestDispatcher(t, []Analyzer{panicking, healthy}, 1)
	d.Start(context.Background())

	d.Enqueue(&parsing.Record{Rule: "r"})
	d.Enqueue(&parsing.Record{Rule: "r"})

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if survived.Load() != 2 {
		t.Errorf("healthy analyzer ran %d times, want 2", survived.Load())
	}
}

func TestDispatcher_EnqueueDropsWhenFull(t *testing.T) {
	d, err := NewDispatcher(DispatcherDeps{
		Analyzers:    nil,
		Workers:      1,
		InCapacity:   2,
		OutCapacity:  2,
		EnqueueWait:  5 * time.Millisecond,
		DrainTimeout: time.Second,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	// Not started: nothing consumes the queue, so it fills at capacity.

	if !d.Enqueue(&parsing.Record{}) || !d.Enqueue(&parsing.Record{}) {
		t.Fatal("Enqueue() rejected record below capacity")
	}
	if d.Enqueue(&parsing.Record{}) {
		t.Error("Enqueue() accepted record beyond capacity")
	}

	in, _ := d.QueueDepths()
	if in != 2 {
		t.Errorf("inbound depth = %d, want 2", in)
	}

	d.Start(context.Background())
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestDispatcher_ResultSendWaitsForSpace(t *testing.T) {
	fire := &stubAnalyzer{
		name: "always_fire",
		analyze: func(r *parsing.Record) (*ActionResult, error) {
			return &ActionResult{
				Action:         ActionSetConfig,
				TargetDeviceID: "dev1",
				Commands:       []string{"set system.hostname=x"},
			}, nil
		},
	}

	d, err := NewDispatcher(DispatcherDeps{
		Analyzers:    []Analyzer{fire},
		Workers:      1,
		InCapacity:   4,
		OutCapacity:  1,
		EnqueueWait:  500 * time.Millisecond,
		DrainTimeout: 2 * time.Second,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	d.Start(context.Background())

	// The first result fills the outbound queue; the second must wait for
	// the slow consumer instead of being dropped on the spot.
	d.Enqueue(&parsing.Record{Rule: "r"})
	d.Enqueue(&parsing.Record{Rule: "r"})

	delivered := make(chan int)
	go func() {
		time.Sleep(100 * time.Millisecond)
		n := 0
		for range d.Results() {
			n++
		}
		delivered <- n
	}()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := <-delivered; n != 2 {
		t.Errorf("delivered %d results, want 2", n)
	}
}

func TestDispatcher_ConcurrentEnqueueAndClose(t *testing.T) {
	d := newTestDispatcher(t, nil, 2)
	d.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Enqueue(&parsing.Record{Rule: "r"})
			}
		}()
	}

	// Close races the producers; accepted-or-rejected is fine, a panic on
	// the closed inbound queue is not.
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()

	if d.Enqueue(&parsing.Record{}) {
		t.Error("Enqueue() accepted record after Close()")
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := newTestDispatcher(t, nil, 1)
	d.Start(context.Background())

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if d.Enqueue(&parsing.Record{}) {
		t.Error("Enqueue() accepted record after Close()")
	}
}

func TestDispatcher_CloseIdempotent(t *testing.T) {
	d := newTestDispatcher(t, nil, 2)
	d.Start(context.Background())

	if err := d.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestDispatcher_CloseRunsAnalyzerShutdown(t *testing.T) {
	analyzer, err := newEventCounter(nil, testLogger())
	if err != nil {
		t.Fatalf("newEventCounter() error = %v", err)
	}

	d := newTestDispatcher(t, []Analyzer{analyzer}, 1)
	d.Start(context.Background())

	d.Enqueue(&parsing.Record{Rule: "r"})

	// Close must drain the in-flight record before analyzer shutdown.
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ec := analyzer.(*EventCounter)
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.counts["r"] != 1 {
		t.Errorf("count = %d, want 1 (record lost during drain)", ec.counts["r"])
	}
}
