// Package output publishes validated configuration commands to devices.
//
// The Gate consumes analyzer results and forwards only those carrying the
// set_config action. Every command in a result is checked against the
// configured allow-list of command prefixes; validation fails closed, so a
// single disallowed command rejects the whole batch and nothing from that
// result is published.
//
// Validated commands are published one payload per command, in order, to
// the device's command topic (<prefix>/<device_id>). Per-command framing
// lets the consumer apply commands sequentially and stop mid-sequence
// without losing ordering information.
//
// A single goroutine consumes the result queue, so the commands of one
// result are never interleaved with another's.
package output
