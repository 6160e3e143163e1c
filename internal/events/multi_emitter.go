package events

import (
	"errors"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/pkg/types"
)

// MultiEmitter dispatches events to multiple backends.
type MultiEmitter struct {
	emitters []EventEmitter
	logger   *zap.Logger
}

// NewMultiEmitter creates a new multi-emitter that dispatches to all provided emitters.
func NewMultiEmitter(emitters []EventEmitter, logger *zap.Logger) *MultiEmitter {
	return &MultiEmitter{
		emitters: emitters,
		logger:   logger,
	}
}

// Emit sends the event to all registered emitters, in registration order.
func (m *MultiEmitter) Emit(event *types.RecordedEvent) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

// Len returns the number of backends
func (m *MultiEmitter) Len() int {
	return len(m.emitters)
}

// Close closes all emitters and returns any errors combined.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		m.logger.Warn("Failed to close event emitters", zap.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}
