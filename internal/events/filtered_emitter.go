package events

import (
	"fmt"

	"github.com/edgecomet/telemetry/internal/common/configtypes"
	"github.com/edgecomet/telemetry/pkg/pattern"
	"github.com/edgecomet/telemetry/pkg/types"
)

// FilteredEmitter forwards only events whose metric name passes the filter
type FilteredEmitter struct {
	next    EventEmitter
	include pattern.Set
	exclude pattern.Set
}

// NewFilteredEmitter wraps next. With an empty filter next is returned unchanged.
func NewFilteredEmitter(next EventEmitter, filter configtypes.EventFilterConfig) (EventEmitter, error) {
	if len(filter.Include) == 0 && len(filter.Exclude) == 0 {
		return next, nil
	}

	include, err := pattern.CompileAll(filter.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include filter: %w", err)
	}
	exclude, err := pattern.CompileAll(filter.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude filter: %w", err)
	}

	return &FilteredEmitter{next: next, include: include, exclude: exclude}, nil
}

// Allows reports whether an event named metric passes the filter
func (f *FilteredEmitter) Allows(metric string) bool {
	if f.exclude.MatchAny(metric) {
		return false
	}
	return len(f.include) == 0 || f.include.MatchAny(metric)
}

func (f *FilteredEmitter) Emit(event *types.RecordedEvent) {
	if f.Allows(event.FullName()) {
		f.next.Emit(event)
	}
}

func (f *FilteredEmitter) Close() error {
	return f.next.Close()
}
