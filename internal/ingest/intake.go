package ingest

import (
	"errors"
	"time"

	"github.com/wardenlabs/logwarden/internal/infrastructure/logging"
	"github.com/wardenlabs/logwarden/internal/infrastructure/metrics"
	"github.com/wardenlabs/logwarden/internal/infrastructure/mqtt"
	"github.com/wardenlabs/logwarden/internal/parsing"
)

// Sink accepts parsed records for analysis. *analysis.Dispatcher
// satisfies it. Enqueue reports whether the record was accepted; the
// sink counts its own drops.
type Sink interface {
	Enqueue(record *parsing.Record) bool
}

// intake is the shared parse-and-forward path behind every ingestion
// source.
type intake struct {
	engine      *parsing.Engine
	sink        Sink
	metrics     metrics.Collector
	logger      *logging.Logger
	topicPrefix string
}

// process parses one raw payload and forwards the record to the sink.
// Failures are counted and dropped; the pipeline continues.
func (in *intake) process(topic string, payload []byte, receivedAt time.Time) {
	in.metrics.LogReceived(topic)

	record, err := in.engine.Parse(payload, topic, receivedAt)
	if err != nil {
		switch {
		case errors.Is(err, parsing.ErrDecode):
			in.metrics.LogFailed("decode_error")
			if in.logger != nil {
				in.logger.Debug("payload is not valid UTF-8", "topic", topic, "bytes", len(payload))
			}
		case errors.Is(err, parsing.ErrNoMatch):
			in.metrics.LogFailed("no_match")
			if in.logger != nil {
				in.logger.Debug("no rule matched", "topic", topic)
			}
		default:
			in.metrics.LogFailed("parse_error")
			if in.logger != nil {
				in.logger.Error("parse failed", "topic", topic, "error", err)
			}
		}
		return
	}

	if in.topicPrefix != "" {
		if deviceID, ok := (mqtt.Topics{}).DeviceFromTopic(in.topicPrefix, topic); ok {
			record.DeviceID = deviceID
		}
	}

	in.metrics.LogParsed(record.Rule)
	in.sink.Enqueue(record)
}
