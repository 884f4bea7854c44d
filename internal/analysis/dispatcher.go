package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// DispatcherDeps holds the dependencies required by the Dispatcher.
type DispatcherDeps struct {
	// Analyzers are run against every record in this order.
	Analyzers []Analyzer

	// Workers is the worker pool size. Must be at least 1.
	Workers int

	// InCapacity and OutCapacity bound the parsed-record and result queues.
	InCapacity  int
	OutCapacity int

	// EnqueueWait is how long Enqueue blocks on a full queue before
	// dropping the record.
	EnqueueWait time.Duration

	// DrainTimeout bounds how long Close waits for in-flight records.
	DrainTimeout time.Duration

	Logger  *logging.Logger
	Metrics metrics.Collector
}

// Dispatcher fans parsed records out to a pool of analyzer workers.
//
// Records enter through Enqueue and results leave through Results. Both
// queues are bounded; when a queue stays full past the configured wait the
// item is dropped and counted rather than blocking the producer.
//
// Lifecycle: NewDispatcher, Start, then Close exactly once. Enqueue is
// safe to call concurrently with Close; records offered after Close are
// rejected.
type Dispatcher struct {
	analyzers    []Analyzer
	in           chan *parsing.Record
	out          chan *ActionResult
	workers      int
	enqueueWait  time.Duration
	drainTimeout time.Duration
	logger       *logging.Logger
	metrics      metrics.Collector

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	closeErr error
	once     sync.Once
}

// NewDispatcher creates a dispatcher with bounded queues and a worker pool.
//
// The dispatcher is idle until Start() is called.
//
// Parameters:
//   - deps: Analyzers, pool sizing and queue bounds
//
// Returns:
//   - *Dispatcher: Dispatcher ready to start
//   - error: If the dependencies are invalid
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", deps.Workers)
	}
	if deps.InCapacity < 1 || deps.OutCapacity < 1 {
		return nil, fmt.Errorf("queue capacities must be at least 1, got %d/%d", deps.InCapacity, deps.OutCapacity)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	return &Dispatcher{
		analyzers:    deps.Analyzers,
		in:           make(chan *parsing.Record, deps.InCapacity),
		out:          make(chan *ActionResult, deps.OutCapacity),
		workers:      deps.Workers,
		enqueueWait:  deps.EnqueueWait,
		drainTimeout: deps.DrainTimeout,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
	}, nil
}

// Start launches the worker pool.
//
// Parameters:
//   - ctx: Reserved for lifecycle symmetry with other components; workers
//     stop when the inbound queue is closed by Close(), not on ctx
//     cancellation, so records already accepted are not lost
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	if d.logger != nil {
		d.logger.Info("analysis dispatcher started",
			"workers", d.workers,
			"analyzers", len(d.analyzers),
		)
	}
}

// Enqueue offers a record to the worker pool.
//
// If the inbound queue is full, Enqueue waits up to the configured bound
// and then drops the record, incrementing the backpressure counter. It
// never blocks indefinitely; a blocked transport callback can get the
// client disconnected broker-side.
//
// Parameters:
//   - record: The parsed record to analyze
//
// Returns:
//   - bool: true if the record was accepted, false if it was dropped
func (d *Dispatcher) Enqueue(record *parsing.Record) bool {
	// The read lock pairs with Close() holding the write lock across
	// close(d.in), so a send can never race the close.
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.in <- record:
		return true
	default:
	}

	if d.enqueueWait > 0 {
		timer := time.NewTimer(d.enqueueWait)
		defer timer.Stop()

		select {
		case d.in <- record:
			return true
		case <-timer.C:
		}
	}

	d.metrics.LogFailed("queue_full")
	if d.logger != nil {
		d.logger.Warn("parsed record dropped, inbound queue full",
			"rule", record.Rule,
			"topic", record.Topic,
		)
	}
	return false
}

// Results returns the outbound queue of analyzer results.
//
// The channel is closed after Close() has drained the workers, so
// consumers can simply range over it.
func (d *Dispatcher) Results() <-chan *ActionResult {
	return d.out
}

// QueueDepths reports the current inbound and outbound queue depths.
func (d *Dispatcher) QueueDepths() (in int, out int) {
	return len(d.in), len(d.out)
}

// worker consumes records until the inbound queue closes.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for record := range d.in {
		for _, analyzer := range d.analyzers {
			d.runAnalyzer(analyzer, record)
		}
	}

	if d.logger != nil {
		d.logger.Debug("analysis worker stopped", "worker", id)
	}
}

// runAnalyzer invokes one analyzer on one record, isolating errors and
// panics so the remaining analyzers still run.
func (d *Dispatcher) runAnalyzer(analyzer Analyzer, record *parsing.Record) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Error("analyzer panicked",
					"analyzer", analyzer.Name(),
					"rule", record.Rule,
					"panic", fmt.Sprintf("%v", r),
				)
			}
		}
	}()

	result, err := analyzer.Analyze(record)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("analyzer failed",
				"analyzer", analyzer.Name(),
				"rule", record.Rule,
				"error", err,
			)
		}
		return
	}
	if result == nil {
		return
	}

	result.Analyzer = analyzer.Name()
	d.metrics.AnalysisResult(result.Analyzer)

	select {
	case d.out <- result:
		return
	default:
	}

	// Same backpressure policy as Enqueue: wait the configured bound for
	// space, then drop and count.
	if d.enqueueWait > 0 {
		timer := time.NewTimer(d.enqueueWait)
		defer timer.Stop()

		select {
		case d.out <- result:
			return
		case <-timer.C:
		}
	}

	d.metrics.LogFailed("result_queue_full")
	if d.logger != nil {
		d.logger.Warn("analysis result dropped, outbound queue full",
			"analyzer", result.Analyzer,
		)
	}
}

// Close stops the dispatcher.
//
// It closes the inbound queue to new records, waits up to the drain
// timeout for workers to finish in-flight records, closes the outbound
// queue, and finally shuts down analyzers that implement Closer.
//
// Returns:
//   - error: ErrDrainTimeout if workers did not finish within the grace
//     period; analyzer shutdown errors are logged, not returned
func (d *Dispatcher) Close() error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.in)
		d.mu.Unlock()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		if d.drainTimeout > 0 {
			select {
			case <-done:
				close(d.out)
			case <-time.After(d.drainTimeout):
				d.closeErr = ErrDrainTimeout
				// Workers are still mid-record; closing the outbound
				// queue under them would panic their result send.
				go func() {
					<-done
					close(d.out)
				}()
			}
		} else {
			<-done
			close(d.out)
		}

		for _, analyzer := range d.analyzers {
			closer, ok := analyzer.(Closer)
			if !ok {
				continue
			}
			if err := closer.Close(); err != nil && d.logger != nil {
				d.logger.Error("analyzer shutdown failed",
					"analyzer", analyzer.Name(),
					"error", err,
				)
			}
		}

		if d.logger != nil {
			d.logger.Info("analysis dispatcher stopped")
		}
	})

	return d.closeErr
}
