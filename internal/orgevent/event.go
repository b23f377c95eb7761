// Package orgevent defines the Event type that flows from sources
// through the bus, router, transform pipeline, and delivery stage. It
// is kept free of dependencies on internal/config so that every other
// package can import it without a cycle.
package orgevent

import (
	"time"

	"github.com/google/uuid"
)

// Fixed event types the router and transform pipeline understand.
const (
	TypeResourceChanged = "resource.changed"
	TypeActorStopped    = "actor.stopped"
	TypeMessageReceived = "message.received"
)

// Provenance carries structured origin metadata about an event.
type Provenance struct {
	Platform      string         `json:"platform"`
	PlatformEvent string         `json:"platform_event"`
	Author        string         `json:"author"`
	AuthorType    string         `json:"author_type"`
	Extra         map[string]any `json:"-"`
}

// Event is immutable once emitted by a source connector.
type Event struct {
	ID         string         `json:"id"`
	TraceID    string         `json:"trace_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     string         `json:"source"`
	Type       string         `json:"type"`
	Provenance Provenance     `json:"provenance"`
	Payload    map[string]any `json:"payload"`
}

// NewID returns a globally unique event id prefixed "evt_".
func NewID() string { return "evt_" + uuid.NewString() }

// NewTraceID returns a trace id prefixed "trc_".
func NewTraceID() string { return "trc_" + uuid.NewString() }

// EnsureIDs assigns an id and trace id to e if absent, and a timestamp
// if zero. It returns the (possibly mutated) event for convenience.
func EnsureIDs(e Event) Event {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.TraceID == "" {
		e.TraceID = NewTraceID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}

// Get performs a dot-path lookup into the event's payload/provenance
// representation. Missing segments return (nil, false) rather than a
// null value, so filter comparisons never treat "missing" as "equal to
// null".
func (e Event) Get(dotPath string) (any, bool) {
	root := map[string]any{
		"id":         e.ID,
		"trace_id":   e.TraceID,
		"source":     e.Source,
		"type":       e.Type,
		"payload":    e.Payload,
		"provenance": e.Provenance.asMap(),
	}
	return walk(root, splitPath(dotPath))
}

func (p Provenance) asMap() map[string]any {
	m := map[string]any{
		"platform":       p.Platform,
		"platform_event": p.PlatformEvent,
		"author":         p.Author,
		"author_type":    p.AuthorType,
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return m
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

func walk(node any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return node, true
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	v, present := m[segs[0]]
	if !present {
		return nil, false
	}
	return walk(v, segs[1:])
}
