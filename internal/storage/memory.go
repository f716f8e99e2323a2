// Package storage provides the durable single-slot backends behind the
// session gateway: a JSON file guarded by a lock file, an SQLite database, a
// PostgreSQL row, and an in-memory slot for tests and throwaway sessions.
package storage

import (
	"context"
	"sync"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty slot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStore) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, core.ErrNoSnapshot
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ core.SnapshotStore = (*MemoryStore)(nil)
