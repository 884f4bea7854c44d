package mqtt

import "errors"

// Sentinel errors for broker operations. Callers branch with errors.Is;
// the ingestion adapter and the command gate both treat these as
// retryable, never fatal to the pipeline.
var (
	// ErrNotConnected is returned when the broker link is down. The paho
	// client reconnects in the background and restores subscriptions, so
	// callers just count the failure and carry on.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt
	// fails. Seen at startup before the ingest subscribe goes out.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a command or status publish fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the ingest subscription could
	// not be established.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when tearing down a subscription
	// fails during shutdown.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided, which
	// usually means a topic prefix was left unset in configuration.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when a broker operation exceeds its wait.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
