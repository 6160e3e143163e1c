// Package definitions loads event definitions from a Glean style metrics.yaml
// and assigns the dense ids the registry is built from.
//
// Layout:
//
//	$schema: moz://mozilla.org/schemas/glean/metrics/2-0-0
//	vpn:
//	  session_end:
//	    type: event
//	    description: The VPN session ended.
//	    extra_keys:
//	      reason:
//	        description: Why it ended.
//	    send_in_pings: [events]
package definitions

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgecomet/telemetry/internal/common/yamlutil"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

const (
	// MetricTypeEvent is the only metric type the recorder knows
	MetricTypeEvent = "event"

	// MaxExtraKeys is the most extra keys one event may declare
	MaxExtraKeys = 15

	schemaKey = "$schema"
)

var (
	nameRe     = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	categoryRe = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)
	pingRe     = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

var validExtraTypes = map[string]bool{
	"":         true,
	"string":   true,
	"boolean":  true,
	"quantity": true,
}

// metricSpec is one metric entry of metrics.yaml
type metricSpec struct {
	Type               string                  `yaml:"type"`
	Description        string                  `yaml:"description"`
	ExtraKeys          map[string]extraKeySpec `yaml:"extra_keys"`
	SendInPings        []string                `yaml:"send_in_pings"`
	Lifetime           string                  `yaml:"lifetime"`
	Expires            string                  `yaml:"expires"`
	Bugs               []string                `yaml:"bugs"`
	DataReviews        []string                `yaml:"data_reviews"`
	NotificationEmails []string                `yaml:"notification_emails"`
}

type extraKeySpec struct {
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
}

// Load reads and parses a metrics.yaml file
func Load(path string) ([]registry.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Parse validates a metrics.yaml document and returns its events with ids
// assigned from 1 in "category.name" order
func Parse(data []byte) ([]registry.Definition, error) {
	var root yaml.Node
	if err := yamlutil.UnmarshalStrict(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping of categories")
	}
	top := root.Content[0]

	var defs []registry.Definition
	for i := 0; i < len(top.Content); i += 2 {
		keyNode, valueNode := top.Content[i], top.Content[i+1]
		category := keyNode.Value

		if category == schemaKey {
			if valueNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: %s must be a string", keyNode.Line, schemaKey)
			}
			continue
		}

		if !categoryRe.MatchString(category) {
			return nil, fmt.Errorf("line %d: invalid category name %q", keyNode.Line, category)
		}
		if valueNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: category %s must be a mapping of metrics", keyNode.Line, category)
		}

		categoryDefs, err := parseCategory(category, valueNode)
		if err != nil {
			return nil, err
		}
		defs = append(defs, categoryDefs...)
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no event metrics defined")
	}

	return AssignIDs(defs)
}

func parseCategory(category string, node *yaml.Node) ([]registry.Definition, error) {
	var defs []registry.Definition
	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value
		fullName := types.FullName(category, name)

		if !nameRe.MatchString(name) {
			return nil, fmt.Errorf("line %d: invalid metric name %q", keyNode.Line, fullName)
		}

		spec, err := decodeMetric(valueNode)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", keyNode.Line, fullName, err)
		}

		def, err := spec.definition(category, name)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", keyNode.Line, fullName, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// decodeMetric decodes with unknown field checking, which Node.Decode lacks
func decodeMetric(node *yaml.Node) (*metricSpec, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("metric must be a mapping")
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return nil, err
	}
	var spec metricSpec
	if err := yamlutil.UnmarshalStrict(raw, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *metricSpec) definition(category, name string) (registry.Definition, error) {
	if s.Type != MetricTypeEvent {
		return registry.Definition{}, fmt.Errorf("unsupported metric type %q, only %q is recorded", s.Type, MetricTypeEvent)
	}
	if s.Description == "" {
		return registry.Definition{}, fmt.Errorf("description is required")
	}
	if s.Lifetime != "" && s.Lifetime != "ping" {
		return registry.Definition{}, fmt.Errorf("event lifetime must be \"ping\", got %q", s.Lifetime)
	}
	if err := validateExpires(s.Expires); err != nil {
		return registry.Definition{}, err
	}

	if len(s.ExtraKeys) > MaxExtraKeys {
		return registry.Definition{}, fmt.Errorf("%d extra keys declared, at most %d allowed", len(s.ExtraKeys), MaxExtraKeys)
	}
	keys := make([]string, 0, len(s.ExtraKeys))
	for key, extra := range s.ExtraKeys {
		if !nameRe.MatchString(key) {
			return registry.Definition{}, fmt.Errorf("invalid extra key name %q", key)
		}
		if !validExtraTypes[extra.Type] {
			return registry.Definition{}, fmt.Errorf("extra key %s: unsupported type %q", key, extra.Type)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(s.SendInPings))
	for _, ping := range s.SendInPings {
		if !pingRe.MatchString(ping) {
			return registry.Definition{}, fmt.Errorf("invalid ping name %q", ping)
		}
		if seen[ping] {
			return registry.Definition{}, fmt.Errorf("ping %q listed twice", ping)
		}
		seen[ping] = true
	}

	def := registry.Definition{
		Category:    category,
		Name:        name,
		Description: s.Description,
		SendInPings: append([]string(nil), s.SendInPings...),
	}
	if len(keys) > 0 {
		def.ExtraKeys = keys
	}
	return def, nil
}

// validateExpires accepts "never", "expired" and a YYYY-MM-DD date
func validateExpires(expires string) error {
	switch expires {
	case "", "never", "expired":
		return nil
	}
	if _, err := time.Parse(time.DateOnly, expires); err != nil {
		return fmt.Errorf("expires must be never, expired or YYYY-MM-DD, got %q", expires)
	}
	return nil
}

// AssignIDs sorts definitions by full name and numbers them from 1.
// Duplicate full names are rejected.
func AssignIDs(defs []registry.Definition) ([]registry.Definition, error) {
	out := append([]registry.Definition(nil), defs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FullName() < out[j].FullName()
	})

	for i := range out {
		if i > 0 && out[i].FullName() == out[i-1].FullName() {
			return nil, fmt.Errorf("duplicate event %s", out[i].FullName())
		}
		out[i].ID = types.EventID(i + 1)
	}
	return out, nil
}
