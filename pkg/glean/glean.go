// Package glean exposes the two recording entry points a host runtime calls,
// backed by one process-wide registry.
package glean

import (
	"sync/atomic"

	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

const notInitialized = "glean: recording before Initialize"

var current atomic.Pointer[registry.Registry]

// Initialize installs the registry every entry point forwards to.
// Calling it again replaces the registry.
func Initialize(reg *registry.Registry) {
	current.Store(reg)
}

// Registry returns the installed registry, or nil
func Registry() *registry.Registry {
	return current.Load()
}

func mustRegistry() *registry.Registry {
	reg := current.Load()
	if reg == nil {
		panic(notInitialized)
	}
	return reg
}

// RecordEvent records the event with the given id.
// An unknown id panics. An undeclared extra key drops the event and is only
// visible through EventTestGetError.
func RecordEvent(id uint32, extras map[string]string) {
	mustRegistry().Record(types.EventID(id), extras)
}

// EventTestGetError reports whether the last recording of id failed
func EventTestGetError(id uint32) bool {
	_, present := mustRegistry().TestGetError(types.EventID(id))
	return present
}

// SetUploadEnabled toggles recording for the whole process
func SetUploadEnabled(enabled bool) {
	mustRegistry().SetUploadEnabled(enabled)
}

// EventMetric is the handle generated code holds for one event
type EventMetric struct {
	ID types.EventID
}

// NewEventMetric wraps a generated id
func NewEventMetric(id types.EventID) EventMetric {
	return EventMetric{ID: id}
}

// Record records the event, optionally with extras
func (m EventMetric) Record(extras map[string]string) {
	RecordEvent(uint32(m.ID), extras)
}

// TestGetError reports whether the last recording failed
func (m EventMetric) TestGetError() bool {
	return EventTestGetError(uint32(m.ID))
}

// TestGetValue returns the events buffered for ping ("" selects the first ping)
func (m EventMetric) TestGetValue(ping string) []types.RecordedEvent {
	return mustRegistry().TestGetValue(m.ID, ping)
}
