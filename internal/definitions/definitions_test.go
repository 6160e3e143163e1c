package definitions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/types"
)

const validYAML = `
$schema: moz://mozilla.org/schemas/glean/metrics/2-0-0
vpn:
  session_start:
    type: event
    description: Session started.
  session_end:
    type: event
    description: Session ended.
    extra_keys:
      reason:
        description: Why.
      code:
        description: Error code.
        type: quantity
    send_in_pings: [events, vpnsession]
    expires: "2027-01-31"
app.ui:
  clicked:
    type: event
    description: Something was clicked.
    extra_keys:
      target:
        description: Element id.
`

func TestParse_AssignsDenseSortedIDs(t *testing.T) {
	defs, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, registry.Definition{
		ID:          1,
		Category:    "app.ui",
		Name:        "clicked",
		Description: "Something was clicked.",
		ExtraKeys:   []string{"target"},
	}, defs[0])
	assert.Equal(t, registry.Definition{
		ID:          2,
		Category:    "vpn",
		Name:        "session_end",
		Description: "Session ended.",
		ExtraKeys:   []string{"code", "reason"},
		SendInPings: []string{"events", "vpnsession"},
	}, defs[1])
	assert.Equal(t, types.EventID(3), defs[2].ID)
	assert.Equal(t, "vpn.session_start", defs[2].FullName())
	assert.Nil(t, defs[2].ExtraKeys)

	_, err = registry.New(defs)
	assert.NoError(t, err, "parsed tables are accepted by the registry")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name          string
		yaml          string
		errorContains string
	}{
		{
			name:          "empty",
			yaml:          "",
			errorContains: "empty YAML document",
		},
		{
			name:          "not a mapping",
			yaml:          "- a\n- b\n",
			errorContains: "top level must be a mapping",
		},
		{
			name:          "schema only",
			yaml:          "$schema: x\n",
			errorContains: "no event metrics defined",
		},
		{
			name:          "bad category",
			yaml:          "Vpn:\n  a:\n    type: event\n    description: d\n",
			errorContains: `invalid category name "Vpn"`,
		},
		{
			name:          "bad metric name",
			yaml:          "vpn:\n  1st:\n    type: event\n    description: d\n",
			errorContains: `invalid metric name "vpn.1st"`,
		},
		{
			name:          "unsupported type",
			yaml:          "vpn:\n  count:\n    type: counter\n    description: d\n",
			errorContains: `unsupported metric type "counter"`,
		},
		{
			name:          "missing description",
			yaml:          "vpn:\n  a:\n    type: event\n",
			errorContains: "description is required",
		},
		{
			name:          "unknown field",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    extra_key: {}\n",
			errorContains: "unknown field",
		},
		{
			name:          "bad extra key",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    extra_keys:\n      Reason:\n        description: r\n",
			errorContains: `invalid extra key name "Reason"`,
		},
		{
			name:          "bad extra type",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    extra_keys:\n      r:\n        type: object\n",
			errorContains: `unsupported type "object"`,
		},
		{
			name:          "duplicate ping",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    send_in_pings: [events, events]\n",
			errorContains: `ping "events" listed twice`,
		},
		{
			name:          "bad expires",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    expires: soon\n",
			errorContains: "expires must be never",
		},
		{
			name:          "bad lifetime",
			yaml:          "vpn:\n  a:\n    type: event\n    description: d\n    lifetime: user\n",
			errorContains: "lifetime",
		},
		{
			name:          "metric not a mapping",
			yaml:          "vpn:\n  a: event\n",
			errorContains: "metric must be a mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Nil(t, defs)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestParse_TooManyExtraKeys(t *testing.T) {
	doc := "vpn:\n  a:\n    type: event\n    description: d\n    extra_keys:\n"
	for i := 0; i <= MaxExtraKeys; i++ {
		doc += "      k" + string(rune('a'+i)) + ":\n        description: x\n"
	}

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 15 allowed")
}

func TestAssignIDs_RejectsDuplicates(t *testing.T) {
	_, err := AssignIDs([]registry.Definition{
		{Category: "vpn", Name: "a"},
		{Category: "vpn", Name: "a"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate event vpn.a")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	defs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, defs, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RepositoryDefinitions(t *testing.T) {
	defs, err := Load("../../configs/metrics.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, defs)

	for i, def := range defs {
		assert.Equal(t, types.EventID(i+1), def.ID)
	}
}
