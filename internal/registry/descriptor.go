package registry

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/edgecomet/telemetry/pkg/types"
)

// Definition is the generated, build-time description of one event
type Definition struct {
	ID          types.EventID `json:"id" yaml:"id"`
	Category    string        `json:"category" yaml:"category"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	ExtraKeys   []string      `json:"extra_keys,omitempty" yaml:"extra_keys,omitempty"`
	SendInPings []string      `json:"send_in_pings,omitempty" yaml:"send_in_pings,omitempty"`
}

// FullName returns "category.name"
func (d Definition) FullName() string {
	return types.FullName(d.Category, d.Name)
}

// Handler commits a validated recording
type Handler func(d *Descriptor, ev types.RecordedEvent)

// Descriptor is the immutable runtime form of a Definition
type Descriptor struct {
	def      Definition
	fullName string
	allowed  map[string]struct{}
	pings    []string
	handler  Handler
}

func newDescriptor(def Definition, handler Handler) *Descriptor {
	allowed := make(map[string]struct{}, len(def.ExtraKeys))
	for _, k := range def.ExtraKeys {
		allowed[k] = struct{}{}
	}

	pings := append([]string(nil), def.SendInPings...)
	if len(pings) == 0 {
		pings = []string{types.DefaultPing}
	}

	def.ExtraKeys = append([]string(nil), def.ExtraKeys...)
	def.SendInPings = append([]string(nil), def.SendInPings...)

	return &Descriptor{
		def:      def,
		fullName: def.FullName(),
		allowed:  allowed,
		pings:    pings,
		handler:  handler,
	}
}

func (d *Descriptor) ID() types.EventID { return d.def.ID }

func (d *Descriptor) FullName() string { return d.fullName }

// Allows reports whether key is a declared extra key
func (d *Descriptor) Allows(key string) bool {
	_, ok := d.allowed[key]
	return ok
}

// Pings returns the pings recordings are stored in. Never empty.
func (d *Descriptor) Pings() []string {
	return append([]string(nil), d.pings...)
}

// Definition returns a copy of the source definition
func (d *Descriptor) Definition() Definition {
	def := d.def
	def.ExtraKeys = append([]string(nil), d.def.ExtraKeys...)
	def.SendInPings = append([]string(nil), d.def.SendInPings...)
	return def
}

// invalidKeys returns the undeclared keys of extras in sorted order
func (d *Descriptor) invalidKeys(extras types.Extras) []string {
	var invalid []string
	for k := range extras {
		if _, ok := d.allowed[k]; !ok {
			invalid = append(invalid, k)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// Fingerprint hashes the identity-relevant parts of a definition table.
// The generator stamps it into generated code and New verifies it.
func Fingerprint(defs []Definition) uint64 {
	h := xxhash.New()
	var idBuf [4]byte
	for _, def := range defs {
		binary.BigEndian.PutUint32(idBuf[:], uint32(def.ID))
		_, _ = h.Write(idBuf[:])
		_, _ = h.WriteString(def.Category)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(def.Name)
		_, _ = h.Write([]byte{0})

		keys := append([]string(nil), def.ExtraKeys...)
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = h.WriteString(k)
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{0})

		for _, p := range def.SendInPings {
			_, _ = h.WriteString(p)
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
