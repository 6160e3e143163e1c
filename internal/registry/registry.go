// Package registry resolves generated event ids to descriptors, validates extra
// keys, commits recordings and keeps per-id error slots for test introspection.
//
// The descriptor table is built once by New and never mutated, so lookups need no
// locking. Error slots are updated atomically per id.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/events"
	"github.com/edgecomet/telemetry/pkg/types"
)

// Discard reasons reported to the Observer
const (
	DiscardUploadDisabled = "upload_disabled"
	DiscardInvalidExtra   = "invalid_extra_key"
)

// Observer receives recording outcomes, typically a metrics collector
type Observer interface {
	EventRecorded(metric string)
	RecordingFailed(metric string, errType ErrorType)
	EventDiscarded(reason string)
	UploadEnabledChanged(enabled bool)
}

// Clock supplies the time used for event timestamps
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Registry is the event recording engine
type Registry struct {
	descriptors []*Descriptor // indexed by id, [0] is always nil
	byName      map[string]*Descriptor

	diagnostics   *Diagnostics
	store         *events.Store
	emitter       events.EventEmitter
	observer      Observer
	uploadEnabled atomic.Bool
	// held shared from the upload check to the commit, exclusively by SetUploadEnabled
	uploadMu sync.RWMutex

	clock   Clock
	started time.Time
	fatal   func(error)
	logger  *zap.Logger

	fingerprint      uint64
	checkFingerprint bool
	handlers         map[types.EventID]Handler
}

// Option configures a Registry
type Option func(*Registry)

// WithFingerprint makes New verify the table against the generated fingerprint
func WithFingerprint(fp uint64) Option {
	return func(r *Registry) {
		r.fingerprint = fp
		r.checkFingerprint = true
	}
}

// WithUploadEnabled sets the initial upload switch (default true)
func WithUploadEnabled(enabled bool) Option {
	return func(r *Registry) { r.uploadEnabled.Store(enabled) }
}

// WithStore replaces the default in-memory store
func WithStore(store *events.Store) Option {
	return func(r *Registry) { r.store = store }
}

// WithEmitter mirrors every committed event to emitter
func WithEmitter(emitter events.EventEmitter) Option {
	return func(r *Registry) { r.emitter = emitter }
}

func WithObserver(observer Observer) Option {
	return func(r *Registry) { r.observer = observer }
}

func WithClock(clock Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithHandler replaces the default commit handler of one id.
// Handlers run under the upload lock and must not call Record or SetUploadEnabled.
func WithHandler(id types.EventID, h Handler) Option {
	return func(r *Registry) {
		if r.handlers == nil {
			r.handlers = make(map[types.EventID]Handler)
		}
		r.handlers[id] = h
	}
}

// WithFatalHandler replaces the reaction to an unknown id. The default panics.
// A replacement must not let the caller continue as if the event was recorded.
func WithFatalHandler(fn func(error)) Option {
	return func(r *Registry) { r.fatal = fn }
}

// New builds the registry from a generated definition table.
// Definitions must carry ids 1..len(defs) in order and unique names.
func New(defs []Definition, opts ...Option) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Descriptor, len(defs)),
		clock:  systemClock{},
		fatal:  func(err error) { panic(err) },
		logger: zap.NewNop(),
	}
	r.uploadEnabled.Store(true)

	for _, opt := range opts {
		opt(r)
	}

	if r.checkFingerprint {
		if got := Fingerprint(defs); got != r.fingerprint {
			return nil, fmt.Errorf("%w: expected %016x, got %016x", ErrTableMismatch, r.fingerprint, got)
		}
	}

	r.descriptors = make([]*Descriptor, len(defs)+1)
	for i, def := range defs {
		if def.ID != types.EventID(i+1) {
			return nil, fmt.Errorf("definition %d (%s): id %d breaks dense numbering, expected %d",
				i, def.FullName(), def.ID, i+1)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("definition %d: name is required", def.ID)
		}

		handler := r.handlers[def.ID]
		if handler == nil {
			handler = r.commit
		}

		d := newDescriptor(def, handler)
		if _, dup := r.byName[d.fullName]; dup {
			return nil, fmt.Errorf("duplicate event definition %s", d.fullName)
		}
		r.descriptors[def.ID] = d
		r.byName[d.fullName] = d
	}

	for id := range r.handlers {
		if _, ok := r.Lookup(id); !ok {
			return nil, fmt.Errorf("handler registered for unknown event id %d", id)
		}
	}

	if r.store == nil {
		r.store = events.NewStore(events.DefaultMaxEventsPerPing, nil)
	}
	r.diagnostics = NewDiagnostics(types.EventID(len(defs)))
	r.started = r.clock.Now()

	if r.observer != nil {
		r.observer.UploadEnabledChanged(r.uploadEnabled.Load())
	}

	r.logger.Debug("Event registry initialized",
		zap.Int("definitions", len(defs)),
		zap.Bool("upload_enabled", r.uploadEnabled.Load()))

	return r, nil
}

// Lookup resolves id to its descriptor
func (r *Registry) Lookup(id types.EventID) (*Descriptor, bool) {
	if id == 0 || int(id) >= len(r.descriptors) {
		return nil, false
	}
	return r.descriptors[id], true
}

// LookupName resolves "category.name" to its descriptor
func (r *Registry) LookupName(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Len returns the number of definitions
func (r *Registry) Len() int {
	return len(r.descriptors) - 1
}

// Definitions returns the table in id order
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, r.Len())
	for _, d := range r.descriptors[1:] {
		defs = append(defs, d.Definition())
	}
	return defs
}

// Record records one event. It reports nothing to the caller:
// an unknown id is fatal, an undeclared extra key drops the event and is only
// visible through TestGetError and the error counters.
func (r *Registry) Record(id types.EventID, extras types.Extras) {
	err := r.record(id, extras)
	if err == nil {
		return
	}

	if errors.Is(err, ErrInvalidIdentifier) {
		r.logger.Error("Recording with unknown event id", zap.Uint32("id", uint32(id)))
		r.fatal(err)
	}
}

func (r *Registry) record(id types.EventID, extras types.Extras) error {
	d, ok := r.Lookup(id)
	if !ok {
		return &InvalidIdentifierError{ID: id}
	}

	r.uploadMu.RLock()
	defer r.uploadMu.RUnlock()

	if !r.uploadEnabled.Load() {
		r.discarded(DiscardUploadDisabled)
		return nil
	}

	if invalid := d.invalidKeys(extras); len(invalid) > 0 {
		err := &InvalidExtraKeyError{Metric: d.fullName, Keys: invalid}
		r.diagnostics.SetError(id, errorInfoFrom(err))
		if r.observer != nil {
			r.observer.RecordingFailed(d.fullName, ErrorTypeInvalidExtraKey)
		}
		r.discarded(DiscardInvalidExtra)

		r.logger.Debug("Dropped event with undeclared extra keys",
			zap.String("metric", d.fullName),
			zap.Strings("keys", invalid))
		return err
	}

	ev := types.RecordedEvent{
		Timestamp: r.elapsedMillis(),
		Category:  d.def.Category,
		Name:      d.def.Name,
		Extra:     extras.Clone(),
		ID:        id,
	}
	d.handler(d, ev)

	r.diagnostics.Clear(id)
	if r.observer != nil {
		r.observer.EventRecorded(d.fullName)
	}
	return nil
}

// commit is the default handler: buffer for every ping, then mirror to the emitter
func (r *Registry) commit(d *Descriptor, ev types.RecordedEvent) {
	for _, ping := range d.pings {
		r.store.Append(ping, ev)
	}
	if r.emitter != nil {
		r.emitter.Emit(&ev)
	}
}

func (r *Registry) discarded(reason string) {
	if r.observer != nil {
		r.observer.EventDiscarded(reason)
	}
}

func (r *Registry) elapsedMillis() uint64 {
	elapsed := r.clock.Now().Sub(r.started)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / time.Millisecond)
}

// TestGetError reports the error of the most recent recording attempt for id.
// Never fails: unknown and never-recorded ids report no error.
func (r *Registry) TestGetError(id types.EventID) (ErrorInfo, bool) {
	return r.diagnostics.Error(id)
}

// TestGetNumRecordedErrors returns how many errors of errType id accumulated
func (r *Registry) TestGetNumRecordedErrors(id types.EventID, errType ErrorType) int {
	return r.diagnostics.Count(id, errType)
}

// TestGetValue returns the buffered events of id for ping, oldest first.
// An empty ping selects the first ping of the definition.
func (r *Registry) TestGetValue(id types.EventID, ping string) []types.RecordedEvent {
	d, ok := r.Lookup(id)
	if !ok {
		return nil
	}
	if ping == "" {
		ping = d.pings[0]
	}

	var out []types.RecordedEvent
	for _, ev := range r.store.Get(ping) {
		if ev.ID == id {
			out = append(out, ev)
		}
	}
	return out
}

// Store exposes the event buffer
func (r *Registry) Store() *events.Store {
	return r.store
}

// UploadEnabled reports the upload switch
func (r *Registry) UploadEnabled() bool {
	return r.uploadEnabled.Load()
}

// SetUploadEnabled flips the upload switch. Disabling drops all buffered events;
// it waits for in-flight recordings so none lands after the clear.
func (r *Registry) SetUploadEnabled(enabled bool) {
	r.uploadMu.Lock()
	changed := r.uploadEnabled.Swap(enabled) != enabled
	if changed && !enabled {
		r.store.Clear()
	}
	r.uploadMu.Unlock()

	if !changed {
		return
	}
	if r.observer != nil {
		r.observer.UploadEnabledChanged(enabled)
	}
	r.logger.Info("Event upload switched", zap.Bool("enabled", enabled))
}

// ResetForTesting clears error slots, error counts and buffered events
func (r *Registry) ResetForTesting() {
	r.diagnostics.Reset()
	r.store.Clear()
}
