package events

import (
	"sync"

	"github.com/edgecomet/telemetry/pkg/types"
)

// DefaultMaxEventsPerPing is the number of buffered events that triggers a ping flush
const DefaultMaxEventsPerPing = 500

// FlushFunc receives a full ping buffer. The batch is owned by the callee.
type FlushFunc func(ping string, batch []types.RecordedEvent)

// Store buffers recorded events per ping in memory.
// Once a ping holds maxPerPing events it is drained into the flush callback;
// without a callback the drained batch is discarded.
type Store struct {
	mu         sync.Mutex
	pings      map[string][]types.RecordedEvent
	maxPerPing int
	onFull     FlushFunc
}

// NewStore creates a store. maxPerPing <= 0 disables the limit.
func NewStore(maxPerPing int, onFull FlushFunc) *Store {
	return &Store{
		pings:      make(map[string][]types.RecordedEvent),
		maxPerPing: maxPerPing,
		onFull:     onFull,
	}
}

// Append buffers ev under ping
func (s *Store) Append(ping string, ev types.RecordedEvent) {
	s.mu.Lock()
	buf := append(s.pings[ping], ev)
	if s.maxPerPing <= 0 || len(buf) < s.maxPerPing {
		s.pings[ping] = buf
		s.mu.Unlock()
		return
	}
	delete(s.pings, ping)
	s.mu.Unlock()

	// callback runs unlocked so it may read the store
	if s.onFull != nil {
		s.onFull(ping, buf)
	}
}

// Get returns a copy of the events buffered for ping, oldest first
func (s *Store) Get(ping string) []types.RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.pings[ping]
	if len(buf) == 0 {
		return nil
	}
	return append([]types.RecordedEvent(nil), buf...)
}

// Take drains and returns the events buffered for ping
func (s *Store) Take(ping string) []types.RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.pings[ping]
	delete(s.pings, ping)
	return buf
}

// Len returns the number of events buffered for ping
func (s *Store) Len(ping string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pings[ping])
}

// Pings returns the names of pings with buffered events
func (s *Store) Pings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pings))
	for name := range s.pings {
		names = append(names, name)
	}
	return names
}

// Clear drops every buffered event
func (s *Store) Clear() {
	s.mu.Lock()
	s.pings = make(map[string][]types.RecordedEvent)
	s.mu.Unlock()
}
