package types

import (
	"fmt"
	"sort"
	"strings"
)

// EventID identifies one generated event definition.
// Ids are assigned densely starting at 1; 0 is never a valid id.
type EventID uint32

// DefaultPing is the ping an event is stored in when its definition names none
const DefaultPing = "events"

// Extras carries the optional extra key/value pairs of a single recording
type Extras map[string]string

// Keys returns the extra keys in sorted order
func (e Extras) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy that shares nothing with e. A nil or empty map clones to nil.
func (e Extras) Clone() Extras {
	if len(e) == 0 {
		return nil
	}
	out := make(Extras, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// String renders extras as "k1=v1,k2=v2" in key order
func (e Extras) String() string {
	if len(e) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e))
	for _, k := range e.Keys() {
		parts = append(parts, k+"="+e[k])
	}
	return strings.Join(parts, ",")
}

// RecordedEvent is one committed recording as it is stored for a ping
type RecordedEvent struct {
	// Milliseconds since the registry started
	Timestamp uint64 `json:"timestamp"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	Extra     Extras `json:"extra,omitempty"`

	ID EventID `json:"id,omitempty"`
	// Stamped by emitters, empty in the in-memory store
	SessionID string `json:"session_id,omitempty"`
}

// FullName returns "category.name"
func (e *RecordedEvent) FullName() string {
	return FullName(e.Category, e.Name)
}

// FullName joins a category and metric name the way definitions name them
func FullName(category, name string) string {
	if category == "" {
		return name
	}
	return category + "." + name
}

func (id EventID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}
