// Package bus implements the publish/ack abstraction events flow
// through between ingestion and routing. Two implementations are
// provided: an in-memory store, and a file-backed write-ahead log. A
// distributed, queue-backed Bus is a forward-compatible interface, not
// an implementation (§1 Non-goals).
package bus

import (
	"context"
	"time"

	"github.com/orgloop/orgloop/internal/orgevent"
)

// Entry is one journaled event plus its ack state.
type Entry struct {
	ID        string         `json:"id"`
	Event     orgevent.Event `json:"event"`
	WrittenAt time.Time      `json:"written_at"`
	Acked     bool           `json:"acked"`
}

// Bus is the event store abstraction. Publish, Ack and Unacked must be
// safe for concurrent use; the runtime calls handlers directly rather
// than through a subscription, so no Subscribe method is required.
type Bus interface {
	Publish(ctx context.Context, event orgevent.Event) error
	Ack(ctx context.Context, eventID string) error
	Unacked(ctx context.Context) ([]Entry, error)
	Close() error
}
