package core

// gateway.go persists the item store to a durable slot so an interrupted
// audit can be resumed.
//
// Persistence is best-effort: write failures are logged and swallowed, and an
// unreadable snapshot is treated as absent. A snapshot read at startup is only
// offered as a Candidate; it replaces the store when the user confirms it.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SnapshotStore is a single durable key-value slot.
type SnapshotStore interface {
	// Save overwrites the slot.
	Save(ctx context.Context, payload []byte) error
	// Load returns the slot contents, or ErrNoSnapshot when empty.
	Load(ctx context.Context) ([]byte, error)
	// Clear empties the slot.
	Clear(ctx context.Context) error
	Close() error
}

// snapshotFormatVersion is bumped when the snapshot document changes shape.
const snapshotFormatVersion = 1

type snapshotDoc struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
	Count     int       `json:"count"`
	Items     []Item    `json:"items"`
}

// Candidate is a snapshot read from storage that has not been committed to
// the store yet.
type Candidate struct {
	doc snapshotDoc
}

// Count returns the number of items in the candidate.
func (c *Candidate) Count() int { return c.doc.Count }

// SavedAt returns when the snapshot was written.
func (c *Candidate) SavedAt() time.Time { return c.doc.SavedAt }

// SessionID returns the id of the session that wrote the snapshot.
func (c *Candidate) SessionID() string { return c.doc.SessionID }

// Gateway snapshots an ItemStore into a SnapshotStore and restores it.
type Gateway struct {
	slot      SnapshotStore
	sessionID string
	now       func() time.Time
}

// NewGateway creates a gateway writing to slot under a fresh session id.
func NewGateway(slot SnapshotStore) *Gateway {
	return &Gateway{
		slot:      slot,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// SessionID returns the id stamped on snapshots written by this gateway.
func (g *Gateway) SessionID() string {
	return g.sessionID
}

// Snapshot writes the full store to the slot. Failures are logged only.
func (g *Gateway) Snapshot(ctx context.Context, store *ItemStore) {
	items := store.All()
	doc := snapshotDoc{
		Version:   snapshotFormatVersion,
		SessionID: g.sessionID,
		SavedAt:   g.now().UTC(),
		Count:     len(items),
		Items:     items,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		logPersistence(ctx, &PersistenceError{Op: "encode snapshot", Err: err})
		return
	}
	if err := g.slot.Save(ctx, payload); err != nil {
		logPersistence(ctx, &PersistenceError{Op: "save snapshot", Err: err})
		return
	}
	slog.DebugContext(ctx, "session snapshot saved",
		"session_id", g.sessionID,
		"items", len(items),
		"bytes", len(payload),
	)
}

// TryRestore reads the slot. It returns false when the slot is empty or the
// snapshot cannot be decoded or holds items the store would reject.
func (g *Gateway) TryRestore(ctx context.Context) (*Candidate, bool) {
	payload, err := g.slot.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			logPersistence(ctx, &PersistenceError{Op: "load snapshot", Err: err})
		}
		return nil, false
	}

	doc, err := decodeSnapshot(payload)
	if err != nil {
		logPersistence(ctx, &PersistenceError{Op: "decode snapshot", Err: err})
		return nil, false
	}
	return &Candidate{doc: doc}, true
}

func decodeSnapshot(payload []byte) (snapshotDoc, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return doc, err
	}
	if doc.Version != snapshotFormatVersion {
		return doc, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}
	if doc.Count != len(doc.Items) {
		return doc, fmt.Errorf("snapshot count %d does not match %d items", doc.Count, len(doc.Items))
	}
	if doc.Count == 0 {
		return doc, errors.New("snapshot holds no items")
	}
	if err := validateItems(doc.Items); err != nil {
		return doc, err
	}
	return doc, nil
}

// ConfirmRestore replaces the store contents with the candidate's items.
func (g *Gateway) ConfirmRestore(c *Candidate, store *ItemStore) error {
	if c == nil {
		return ErrNoRestoreCandidate
	}
	if err := store.Replace(c.doc.Items); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

// DeclineRestore discards the candidate and empties the slot so it is not
// offered again.
func (g *Gateway) DeclineRestore(ctx context.Context, c *Candidate) {
	if c == nil {
		return
	}
	g.Clear(ctx)
}

// Clear empties the slot. Failures are logged only.
func (g *Gateway) Clear(ctx context.Context) {
	if err := g.slot.Clear(ctx); err != nil {
		logPersistence(ctx, &PersistenceError{Op: "clear snapshot", Err: err})
	}
}

// Close releases the slot.
func (g *Gateway) Close() error {
	return g.slot.Close()
}

func logPersistence(ctx context.Context, err *PersistenceError) {
	slog.WarnContext(ctx, "session persistence failed", "op", err.Op, "error", err.Err)
}
