package core

import "testing"

func TestSearchIndex_ExactLookup(t *testing.T) {
	idx := NewSearchIndex(loadedStore(t, sampleCSV), DefaultSearchThreshold)

	tests := []struct {
		input  string
		wantOK bool
	}{
		{"T003", true},
		{"  T003 ", true},
		{"t003", false},
		{"T00", false},
		{"", false},
	}
	for _, tt := range tests {
		it, ok := idx.ExactLookup(tt.input)
		if ok != tt.wantOK {
			t.Errorf("ExactLookup(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
		}
		if ok && it.ID != "T003" {
			t.Errorf("ExactLookup(%q) = %s", tt.input, it.ID)
		}
	}
}

func TestSearchIndex_Query(t *testing.T) {
	idx := NewSearchIndex(loadedStore(t, sampleCSV), DefaultSearchThreshold)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "empty returns all in order", query: "", wantIDs: []string{"T001", "T002", "T003", "T004", "T005"}},
		{name: "whitespace returns all", query: "   ", wantIDs: []string{"T001", "T002", "T003", "T004", "T005"}},
		{name: "by description", query: "Dell", wantIDs: []string{"T003"}},
		{name: "by responsible", query: "Charlie", wantIDs: []string{"T005"}},
		{name: "no match", query: "zzzz", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Query(tt.query)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Query(%q) returned %d items, want %d", tt.query, len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("Query(%q)[%d] = %s, want %s", tt.query, i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSearchIndex_ExactTomboRanksFirst(t *testing.T) {
	idx := NewSearchIndex(loadedStore(t, inventoryCSV(60)), DefaultSearchThreshold)

	got := idx.Query("T042")
	if len(got) == 0 || got[0].ID != "T042" {
		t.Fatalf("Query(T042) first result = %v, want T042", got)
	}
}

func TestSearchIndex_TracksStore(t *testing.T) {
	store := loadedStore(t, sampleCSV)
	idx := NewSearchIndex(store, DefaultSearchThreshold)

	if got := idx.Query("Dell"); len(got) != 1 {
		t.Fatalf("Query(Dell) = %d items, want 1", len(got))
	}

	// Status changes are read through without a rebuild.
	store.UpsertStatus("T003", StatusFound, nil)
	if got := idx.Query("Dell"); got[0].Status != StatusFound {
		t.Errorf("status = %q, want Encontrado", got[0].Status)
	}

	// A new load is picked up on the next query.
	store.Load([]RawRecord{{ColumnID: "N1", ColumnDescription: "Projetor Epson"}})
	if got := idx.Query("Dell"); len(got) != 0 {
		t.Errorf("stale results after Load: %v", got)
	}
	if got := idx.Query("Epson"); len(got) != 1 || got[0].ID != "N1" {
		t.Errorf("Query(Epson) = %v, want N1", got)
	}
}

func TestSearchIndex_Threshold(t *testing.T) {
	store := loadedStore(t, inventoryCSV(60))

	// "Item 3" fits Item 3 and Item 30..39 exactly and Item 13/23/43/53 with
	// one skipped digit. Items that only share a "3" in the responsible
	// column are too loose.
	got := NewSearchIndex(store, DefaultSearchThreshold).Query("Item 3")
	if len(got) != 15 {
		ids := make([]string, len(got))
		for i, it := range got {
			ids[i] = it.ID
		}
		t.Fatalf("Query(Item 3) = %d items %v, want 15", len(got), ids)
	}
	if got[0].ID != "T003" {
		t.Errorf("first result = %s, want T003", got[0].ID)
	}

	loose := NewSearchIndex(store, 1).Query("Item 3")
	if len(loose) <= len(got) {
		t.Errorf("threshold 1 returned %d items, want more than %d", len(loose), len(got))
	}
}

func TestSpread(t *testing.T) {
	tests := []struct {
		key     string
		pattern string
		want    float64
	}{
		{"Mesa de escritório", "mesa", 0},
		{"T013 Item 13", "item 3", 1.0 / 6.0},
		{"T009 Cadeira Alice", "ali", 0},
		{"Notebook Dell", "nbk", 5.0 / 3.0},
		{"abc", "abd", 2},
		{"anything", "", 0},
	}
	for _, tt := range tests {
		if got := spread(tt.key, []rune(tt.pattern)); got != tt.want {
			t.Errorf("spread(%q, %q) = %v, want %v", tt.key, tt.pattern, got, tt.want)
		}
	}
}
