package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDeliveryConfigRouteOverridesDefaults(t *testing.T) {
	defaults := map[string]any{"channel": "#general", "timeout_ms": 5000}
	route := map[string]any{"channel": "#incidents"}

	out, err := MergeDeliveryConfig(defaults, route)
	require.NoError(t, err)
	assert.Equal(t, "#incidents", out["channel"])
	assert.Equal(t, 5000, out["timeout_ms"])
}

func TestMergeDeliveryConfigNilRouteKeepsDefaults(t *testing.T) {
	defaults := map[string]any{"channel": "#general"}
	out, err := MergeDeliveryConfig(defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, "#general", out["channel"])
}

func TestMergeDeliveryConfigNilDefaultsUsesRouteOnly(t *testing.T) {
	route := map[string]any{"channel": "#incidents"}
	out, err := MergeDeliveryConfig(nil, route)
	require.NoError(t, err)
	assert.Equal(t, "#incidents", out["channel"])
}

func TestMergeDeliveryConfigAddsNewRouteKeys(t *testing.T) {
	defaults := map[string]any{"channel": "#general"}
	route := map[string]any{"mention": "@oncall"}

	out, err := MergeDeliveryConfig(defaults, route)
	require.NoError(t, err)
	assert.Equal(t, "#general", out["channel"])
	assert.Equal(t, "@oncall", out["mention"])
}
