package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orgloop/orgloop/internal/orgevent"
)

// walRecord is one JSONL line of the WAL file; its Type field
// distinguishes the two record shapes interleaved there.
type walRecord struct {
	Type string `json:"type,omitempty"` // "" for an event record, "ack" for an ack marker

	// Event record fields.
	ID        string          `json:"id,omitempty"`
	Event     *orgevent.Event `json:"event,omitempty"`
	WrittenAt time.Time       `json:"written_at,omitempty"`

	// Ack marker fields.
	AckedAt time.Time `json:"acked_at,omitempty"`
}

// WAL is an append-only JSONL journal of events and ack markers. It
// claims no atomicity across multiple writes; each write is an
// independent append-and-flush, matching §4.1. The open-flags idiom
// mirrors the teacher's openLogFile helper (cmd/logging.go).
type WAL struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenWAL opens (creating if necessary) the JSONL file at path for
// appending.
func OpenWAL(path string) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{path: path, file: f}, nil
}

func (w *WAL) append(rec walRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *WAL) Publish(_ context.Context, event orgevent.Event) error {
	e := event
	return w.append(walRecord{ID: event.ID, Event: &e, WrittenAt: time.Now().UTC()})
}

func (w *WAL) Ack(_ context.Context, eventID string) error {
	return w.append(walRecord{Type: "ack", ID: eventID, AckedAt: time.Now().UTC()})
}

// Unacked scans the journal from the beginning, building the set of
// written entries and the set of acked ids, then returns entries not in
// the acked set. Malformed lines are skipped rather than aborting the
// scan, per §4.1.
func (w *WAL) Unacked(_ context.Context) ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(); err != nil {
		return nil, err
	}
	f, err := os.Open(w.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries := make(map[string]Entry)
	acked := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec walRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Type {
		case "ack":
			acked[rec.ID] = true
		case "":
			if rec.Event == nil {
				continue
			}
			entries[rec.ID] = Entry{ID: rec.ID, Event: *rec.Event, WrittenAt: rec.WrittenAt}
		}
	}

	var out []Entry
	for id, e := range entries {
		if !acked[id] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
