package orgevent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIDsFillsMissingFields(t *testing.T) {
	e := EnsureIDs(Event{})
	assert.True(t, strings.HasPrefix(e.ID, "evt_"))
	assert.True(t, strings.HasPrefix(e.TraceID, "trc_"))
	assert.False(t, e.Timestamp.IsZero())
}

func TestEnsureIDsPreservesExistingFields(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := EnsureIDs(Event{ID: "evt_fixed", TraceID: "trc_fixed", Timestamp: ts})
	assert.Equal(t, "evt_fixed", e.ID)
	assert.Equal(t, "trc_fixed", e.TraceID)
	assert.Equal(t, ts, e.Timestamp)
}

func TestNewIDAndTraceIDAreUnique(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "evt_"))

	ta, tb := NewTraceID(), NewTraceID()
	assert.NotEqual(t, ta, tb)
	assert.True(t, strings.HasPrefix(ta, "trc_"))
}

func TestEventGetDotPath(t *testing.T) {
	e := Event{
		ID:     "evt_1",
		Source: "github",
		Type:   TypeResourceChanged,
		Provenance: Provenance{
			Platform: "github",
			Author:   "alice",
			Extra:    map[string]any{"repo": "orgloop/orgloop"},
		},
		Payload: map[string]any{
			"action": "opened",
			"issue": map[string]any{
				"number": 42,
			},
		},
	}

	v, ok := e.Get("payload.action")
	require.True(t, ok)
	assert.Equal(t, "opened", v)

	v, ok = e.Get("payload.issue.number")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = e.Get("provenance.author")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	v, ok = e.Get("provenance.repo")
	require.True(t, ok)
	assert.Equal(t, "orgloop/orgloop", v)

	v, ok = e.Get("source")
	require.True(t, ok)
	assert.Equal(t, "github", v)
}

func TestEventGetMissingPathReturnsFalse(t *testing.T) {
	e := Event{Payload: map[string]any{"action": "opened"}}

	_, ok := e.Get("payload.nonexistent")
	assert.False(t, ok)

	_, ok = e.Get("payload.action.too.deep")
	assert.False(t, ok)

	_, ok = e.Get("nonexistent.path.entirely")
	assert.False(t, ok)
}
