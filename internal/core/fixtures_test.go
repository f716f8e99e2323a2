package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// sampleCSV is a small inventory with one description that needs quoting.
const sampleCSV = `nr_tombo,Descrica07,nome
T001,Mesa de escritório,Alice
T002,Cadeira giratória,Bob
T003,Notebook Dell,Alice
T004,,
T005,"Monitor LG 24""",Charlie
`

// inventoryCSV builds a CSV with n rows, tombos T001..Tnnn.
func inventoryCSV(n int) string {
	var b strings.Builder
	b.WriteString("nr_tombo,Descrica07,nome\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "T%03d,Item %d,Responsavel %d\n", i, i, i%7)
	}
	return b.String()
}

func mustParse(t *testing.T, text string) []RawRecord {
	t.Helper()
	records, err := ParseCSV(text, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	return records
}

func loadedStore(t *testing.T, text string) *ItemStore {
	t.Helper()
	store := NewItemStore()
	store.now = fixedClock
	store.Load(mustParse(t, text))
	return store
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
}

// memorySlot is a SnapshotStore used by core tests.
type memorySlot struct {
	data    []byte
	saves   int
	saveErr error
	loadErr error
	closed  bool
}

func (m *memorySlot) Save(_ context.Context, payload []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = append([]byte(nil), payload...)
	return nil
}

func (m *memorySlot) Load(context.Context) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memorySlot) Clear(context.Context) error {
	m.data = nil
	return nil
}

func (m *memorySlot) Close() error {
	m.closed = true
	return nil
}
