// Package router matches events to declared routes by source id, event
// type, and dot-path filter predicates (§4.5). It performs no I/O.
package router

import (
	"strconv"

	"github.com/orgloop/orgloop/internal/config"
	"github.com/orgloop/orgloop/internal/orgevent"
)

// Match returns every route whose when-clause matches event, in the
// order the routes were declared. An event may match multiple routes.
func Match(event orgevent.Event, routes []config.Route) []config.Route {
	var matched []config.Route
	for _, route := range routes {
		if matches(event, route) {
			matched = append(matched, route)
		}
	}
	return matched
}

func matches(event orgevent.Event, route config.Route) bool {
	if event.Source != route.When.Source {
		return false
	}
	if !containsEventType(route.When.Events, event.Type) {
		return false
	}
	for path, want := range route.When.Filter {
		got, ok := event.Get(path)
		if !ok {
			return false
		}
		if !equalLiteral(got, want) {
			return false
		}
	}
	return true
}

func containsEventType(events []string, t string) bool {
	for _, e := range events {
		if e == t {
			return true
		}
	}
	return false
}

// equalLiteral compares a dot-path value pulled from an event (which
// may be any JSON-decoded scalar type) against the filter's literal
// string value, using a strict string comparison of each side's
// canonical text form.
func equalLiteral(got any, want string) bool {
	switch v := got.(type) {
	case string:
		return v == want
	case nil:
		return false
	default:
		return stringify(v) == want
	}
}

func stringify(v any) string {
	switch n := v.(type) {
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return ""
	}
}
