package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ItemStore is the authoritative tombo -> Item mapping. Iteration follows
// insertion order. All writes go through Load, Replace, UpsertStatus and
// Clear; callers only ever receive copies.
type ItemStore struct {
	mu      sync.RWMutex
	order   []string
	items   map[string]*Item
	version uint64

	now func() time.Time
}

// NewItemStore creates an empty store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items: make(map[string]*Item),
		now:   time.Now,
	}
}

// Load clears the store and inserts every record with a non-empty trimmed
// nr_tombo. Duplicate tombos overwrite earlier entries but keep the position
// of the first occurrence. Returns the number of items stored.
func (s *ItemStore) Load(records []RawRecord) int {
	order := make([]string, 0, len(records))
	items := make(map[string]*Item, len(records))

	for _, rec := range records {
		id := strings.TrimSpace(rec[ColumnID])
		if id == "" {
			continue
		}
		if _, seen := items[id]; !seen {
			order = append(order, id)
		}
		responsible := rec[ColumnResponsible]
		items[id] = &Item{
			ID:                  id,
			Description:         rec[ColumnDescription],
			Responsible:         responsible,
			OriginalResponsible: responsible,
			Status:              StatusPending,
		}
	}

	s.mu.Lock()
	s.order = order
	s.items = items
	s.version++
	s.mu.Unlock()

	return len(order)
}

// Replace swaps the store contents for items taken from a snapshot. Items
// keep their saved status, responsible and original responsible.
func (s *ItemStore) Replace(items []Item) error {
	order := make([]string, 0, len(items))
	byID := make(map[string]*Item, len(items))

	if err := validateItems(items); err != nil {
		return err
	}
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		copied := it
		copied.ID = id
		byID[id] = &copied
	}

	s.mu.Lock()
	s.order = order
	s.items = byID
	s.version++
	s.mu.Unlock()

	return nil
}

// validateItems checks saved items before they can reach the store.
func validateItems(items []Item) error {
	for i, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return fmt.Errorf("item %d: empty id", i)
		}
		if !it.Status.Valid() {
			return fmt.Errorf("item %q: unknown status %q", id, it.Status)
		}
	}
	return nil
}

// Clear removes every item.
func (s *ItemStore) Clear() {
	s.mu.Lock()
	s.order = nil
	s.items = make(map[string]*Item)
	s.version++
	s.mu.Unlock()
}

// Get returns the item stored under id.
func (s *ItemStore) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// UpsertStatus sets the status of an existing item, and its responsible
// when newResponsible is non-nil. Leaving Pending stamps CheckedAt.
func (s *ItemStore) UpsertStatus(id string, status Status, newResponsible *string) (Item, error) {
	if !status.Valid() {
		return Item{}, fmt.Errorf("upsert %q: unknown status %q", id, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, &LookupError{ID: id}
	}
	it.Status = status
	if newResponsible != nil {
		it.Responsible = *newResponsible
	}
	if status != StatusPending {
		it.CheckedAt = s.now()
	}
	s.version++
	return *it, nil
}

// All returns copies of every item in insertion order.
func (s *ItemStore) All() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.order))
	for i, id := range s.order {
		out[i] = *s.items[id]
	}
	return out
}

// Len returns the number of items.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Counts returns the total and per-status counts.
func (s *ItemStore) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{
		Total:    len(s.order),
		ByStatus: make(map[Status]int, len(Statuses)),
	}
	for _, st := range Statuses {
		c.ByStatus[st] = 0
	}
	for _, it := range s.items {
		c.ByStatus[it.Status]++
	}
	return c
}

// Version changes on every mutation. Derived views compare it to detect
// staleness.
func (s *ItemStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
