package registry

import (
	"sync"
	"sync/atomic"

	"github.com/edgecomet/telemetry/pkg/types"
)

// Diagnostics keeps per-id test error slots and error counts.
// Production recording only writes to it; reads exist for tests and the debug API.
type Diagnostics struct {
	slots []atomic.Pointer[ErrorInfo]

	mu     sync.Mutex
	counts map[errorCountKey]int
}

type errorCountKey struct {
	id      types.EventID
	errType ErrorType
}

// NewDiagnostics creates slots for ids 0..maxID
func NewDiagnostics(maxID types.EventID) *Diagnostics {
	return &Diagnostics{
		slots:  make([]atomic.Pointer[ErrorInfo], int(maxID)+1),
		counts: make(map[errorCountKey]int),
	}
}

func (d *Diagnostics) slot(id types.EventID) *atomic.Pointer[ErrorInfo] {
	if int(id) >= len(d.slots) {
		return nil
	}
	return &d.slots[id]
}

// SetError overwrites the slot of id and bumps the error count
func (d *Diagnostics) SetError(id types.EventID, info ErrorInfo) {
	s := d.slot(id)
	if s == nil {
		return
	}
	s.Store(&info)

	d.mu.Lock()
	d.counts[errorCountKey{id: id, errType: info.Type}]++
	d.mu.Unlock()
}

// Clear empties the slot of id
func (d *Diagnostics) Clear(id types.EventID) {
	if s := d.slot(id); s != nil {
		s.Store(nil)
	}
}

// Error returns the slot content of id. Unknown ids are reported as empty.
func (d *Diagnostics) Error(id types.EventID) (ErrorInfo, bool) {
	s := d.slot(id)
	if s == nil {
		return ErrorInfo{}, false
	}
	info := s.Load()
	if info == nil {
		return ErrorInfo{}, false
	}
	return *info, true
}

// Count returns how many errors of errType were recorded for id
func (d *Diagnostics) Count(id types.EventID, errType ErrorType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[errorCountKey{id: id, errType: errType}]
}

// Reset clears every slot and count
func (d *Diagnostics) Reset() {
	for i := range d.slots {
		d.slots[i].Store(nil)
	}
	d.mu.Lock()
	d.counts = make(map[errorCountKey]int)
	d.mu.Unlock()
}
