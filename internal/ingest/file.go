package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nxadm/tail"

	"github.com/wardenlabs/logwarden/internal/infrastructure/config"
	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// defaultFileTopic is the synthetic topic attached to records from a
// tailed file when none is configured.
const defaultFileTopic = "logwarden/file"

// FileSourceDeps holds the dependencies required by the FileSource.
type FileSourceDeps struct {
	Config config.FileIngestConfig

	// TopicPrefix enables device extraction when the configured topic
	// follows the <prefix>/<device_id> convention. Optional.
	TopicPrefix string

	Engine  *parsing.Engine
	Sink    Sink
	Logger  *logging.Logger
	Metrics metrics.Collector
}

// FileSource tails a local log file into the pipeline.
//
// It follows the file across rotation and waits for it to appear if it
// does not exist yet, making it usable for replaying captured logs in
// development without a broker.
type FileSource struct {
	cfg    config.FileIngestConfig
	intake intake
	logger *logging.Logger
	topic  string
	tailer *tail.Tail
	done   chan struct{}
}

// NewFileSource creates a file ingestion source.
//
// Parameters:
//   - deps: File path and topic, parsing engine, record sink
//
// Returns:
//   - *FileSource: Source ready to start
//   - error: If required dependencies are missing
func NewFileSource(deps FileSourceDeps) (*FileSource, error) {
	if deps.Config.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("parsing engine is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("record sink is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	topic := deps.Config.Topic
	if topic == "" {
		topic = defaultFileTopic
	}

	return &FileSource{
		cfg: deps.Config,
		intake: intake{
			engine:      deps.Engine,
			sink:        deps.Sink,
			metrics:     deps.Metrics,
			logger:      deps.Logger,
			topicPrefix: deps.TopicPrefix,
		},
		logger: deps.Logger,
		topic:  topic,
		done:   make(chan struct{}),
	}, nil
}

// Start begins tailing the file in a background goroutine.
//
// Parameters:
//   - ctx: Cancels the tail loop
//
// Returns:
//   - error: If the tailer cannot be created
func (f *FileSource) Start(ctx context.Context) error {
	tailer, err := tail.TailFile(f.cfg.Path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true, // inotify is unreliable on some mounts
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("tailing %s: %w", f.cfg.Path, err)
	}
	f.tailer = tailer

	go f.run(ctx)

	if f.logger != nil {
		f.logger.Info("file ingestion started", "path", f.cfg.Path, "topic", f.topic)
	}
	return nil
}

// run consumes tailed lines until the context is cancelled or the tailer
// stops.
func (f *FileSource) run(ctx context.Context) {
	defer close(f.done)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-f.tailer.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				if f.logger != nil {
					f.logger.Warn("tail error", "path", f.cfg.Path, "error", line.Err)
				}
				continue
			}
			f.intake.process(f.topic, []byte(line.Text), time.Now())
		}
	}
}

// Close stops the tailer and waits for the consume loop to exit.
//
// Returns:
//   - error: If stopping the tailer fails
func (f *FileSource) Close() error {
	if f.tailer == nil {
		return nil
	}

	err := f.tailer.Stop()
	f.tailer.Cleanup()
	<-f.done

	if f.logger != nil {
		f.logger.Info("file ingestion stopped", "path", f.cfg.Path)
	}
	return err
}
