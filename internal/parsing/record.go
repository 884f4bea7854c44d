package parsing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known field names promoted from capture groups onto the Record struct.
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldHost      = "host"
	FieldProcess   = "process"
	FieldMessage   = "message"
)

// Metadata keys attached to the JSON form of every record.
const (
	metaRawLog     = "_raw_log"
	metaTopic      = "_topic"
	metaParserRule = "_parser_rule"
	metaDeviceID   = "_device_id"
	metaReceivedAt = "_received_at"
	metaLogType    = "_log_type"
)

// Record is a structured log line produced by the parsing engine.
//
// Fields holds every mapped capture group. The well-known groups
// (timestamp, level, host, process, message) are additionally promoted
// onto the struct for convenient access. Rule, Topic and Raw are always
// set so a record stays traceable to its origin. DeviceID is filled in
// by the ingestion adapter when the topic carries a device segment.
type Record struct {
	Timestamp string
	Level     string
	Host      string
	Process   string
	Message   string

	Rule       string
	LogType    string
	Topic      string
	Raw        string
	DeviceID   string
	ReceivedAt time.Time

	Fields map[string]string
}

// newRecord builds a Record from the mapped capture groups of a rule match.
func newRecord(rule Rule, fields map[string]string, topic, raw string, receivedAt time.Time) *Record {
	return &Record{
		Timestamp:  fields[FieldTimestamp],
		Level:      fields[FieldLevel],
		Host:       fields[FieldHost],
		Process:    fields[FieldProcess],
		Message:    fields[FieldMessage],
		Rule:       rule.Name,
		LogType:    rule.LogType,
		Topic:      topic,
		Raw:        raw,
		ReceivedAt: receivedAt,
		Fields:     fields,
	}
}

// ToJSON serializes the record as a flat JSON object.
//
// Every mapped capture group appears under its field name, and the record
// metadata appears under underscore-prefixed keys (_raw_log, _topic,
// _parser_rule, _received_at, and _device_id/_log_type when set).
// Object keys are emitted in sorted order, so the encoding is deterministic
// for structurally identical records.
//
// Returns:
//   - string: The JSON encoding
//   - error: If serialization fails
func (r *Record) ToJSON() (string, error) {
	flat := make(map[string]string, len(r.Fields)+6)
	for k, v := range r.Fields {
		flat[k] = v
	}

	flat[metaRawLog] = r.Raw
	flat[metaTopic] = r.Topic
	flat[metaParserRule] = r.Rule
	flat[metaReceivedAt] = r.ReceivedAt.UTC().Format(time.RFC3339Nano)
	if r.DeviceID != "" {
		flat[metaDeviceID] = r.DeviceID
	}
	if r.LogType != "" {
		flat[metaLogType] = r.LogType
	}

	data, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("serializing record: %w", err)
	}
	return string(data), nil
}
