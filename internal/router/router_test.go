package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgevent"
)

func route(name, source string, events []string, filter map[string]string) config.Route {
	return config.Route{
		Name: name,
		When: config.RouteWhen{Source: source, Events: events, Filter: filter},
		Then: config.RouteThen{Actor: "noop"},
	}
}

func TestMatchBySourceAndType(t *testing.T) {
	routes := []config.Route{
		route("r1", "github", []string{orgevent.TypeResourceChanged}, nil),
		route("r2", "slack", []string{orgevent.TypeMessageReceived}, nil),
	}
	ev := orgevent.Event{Source: "github", Type: orgevent.TypeResourceChanged}

	matched := Match(ev, routes)
	require.Len(t, matched, 1)
	assert.Equal(t, "r1", matched[0].Name)
}

func TestMatchRequiresEventTypeMembership(t *testing.T) {
	routes := []config.Route{
		route("r1", "github", []string{orgevent.TypeActorStopped}, nil),
	}
	ev := orgevent.Event{Source: "github", Type: orgevent.TypeResourceChanged}

	assert.Empty(t, Match(ev, routes))
}

func TestMatchAppliesFilterPredicates(t *testing.T) {
	routes := []config.Route{
		route("r1", "github", []string{orgevent.TypeResourceChanged}, map[string]string{
			"payload.action": "opened",
		}),
	}

	opened := orgevent.Event{
		Source: "github", Type: orgevent.TypeResourceChanged,
		Payload: map[string]any{"action": "opened"},
	}
	closed := orgevent.Event{
		Source: "github", Type: orgevent.TypeResourceChanged,
		Payload: map[string]any{"action": "closed"},
	}

	assert.Len(t, Match(opened, routes), 1)
	assert.Empty(t, Match(closed, routes))
}

func TestMatchFilterMissingPathNeverMatches(t *testing.T) {
	routes := []config.Route{
		route("r1", "github", []string{orgevent.TypeResourceChanged}, map[string]string{
			"payload.missing": "anything",
		}),
	}
	ev := orgevent.Event{Source: "github", Type: orgevent.TypeResourceChanged, Payload: map[string]any{}}
	assert.Empty(t, Match(ev, routes))
}

func TestMatchNumericAndBoolLiteralComparison(t *testing.T) {
	routes := []config.Route{
		route("r1", "github", []string{orgevent.TypeResourceChanged}, map[string]string{
			"payload.number": "42",
			"payload.flag":   "true",
		}),
	}
	ev := orgevent.Event{
		Source: "github", Type: orgevent.TypeResourceChanged,
		Payload: map[string]any{"number": 42, "flag": true},
	}
	assert.Len(t, Match(ev, routes), 1)

	evFloat := orgevent.Event{
		Source: "github", Type: orgevent.TypeResourceChanged,
		Payload: map[string]any{"number": float64(42), "flag": true},
	}
	assert.Len(t, Match(evFloat, routes), 1)
}

func TestMatchPreservesDeclarationOrderAndAllowsMultiple(t *testing.T) {
	routes := []config.Route{
		route("first", "github", []string{orgevent.TypeResourceChanged}, nil),
		route("second", "github", []string{orgevent.TypeResourceChanged}, nil),
	}
	ev := orgevent.Event{Source: "github", Type: orgevent.TypeResourceChanged}

	matched := Match(ev, routes)
	require.Len(t, matched, 2)
	assert.Equal(t, "first", matched[0].Name)
	assert.Equal(t, "second", matched[1].Name)
}
