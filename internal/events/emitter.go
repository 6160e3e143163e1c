package events

import "github.com/edgecomet/telemetry/pkg/types"

// EventEmitter defines the interface for recorded-event log backends.
// Implementations should be fire-and-forget, non-blocking.
type EventEmitter interface {
	// Emit sends an event. Errors are logged internally, never returned to caller.
	// The event must not be modified or retained after Emit returns.
	Emit(event *types.RecordedEvent)

	// Close gracefully shuts down the emitter.
	Close() error
}

// FailureFunc is told which backend failed to deliver an event
type FailureFunc func(backend string)

// NoopEmitter is a no-op implementation for tests and disabled logging.
type NoopEmitter struct{}

func (n *NoopEmitter) Emit(event *types.RecordedEvent) {}

func (n *NoopEmitter) Close() error { return nil }
