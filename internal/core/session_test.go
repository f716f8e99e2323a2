package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSession(t *testing.T, slot *memorySlot, opts SessionOptions) *Session {
	t.Helper()
	parser := NewParseService(ParseOptions{}, time.Second)
	t.Cleanup(parser.Close)
	s := NewSession(NewGateway(slot), parser, opts)
	t.Cleanup(s.Close)
	return s
}

func TestSession_ImportActExport(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &memorySlot{}, SessionOptions{})

	n, err := s.Import(ctx, sampleCSV)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("Import() = %d, want 5", n)
	}

	if _, err := s.Apply(ctx, ActionTransfer, []string{"T005"}, StaticInput("Novo Responsavel")); err != nil {
		t.Fatalf("transfer error = %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.Export(&buf, SerializeOptions{BOM: true}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\uFEFFnr_tombo,Descrica07,nome,status,original_responsavel\n") {
		t.Errorf("unexpected header in %q", out)
	}
	wantRow := `T005,"Monitor LG 24""",Novo Responsavel,Transferência Solicitada,Charlie`
	if !strings.Contains(out, wantRow) {
		t.Errorf("export missing %s\n%s", wantRow, out)
	}
}

func TestSession_ImportFailureKeepsStore(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &memorySlot{}, SessionOptions{})

	if _, err := s.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "missing column", text: "codigo\n1\n"},
		{name: "malformed", text: "nr_tombo\n\"T1\n"},
		{name: "no tombos", text: "nr_tombo,nome\n,Alice\n", want: ErrEmptyImport},
		{name: "header only", text: "nr_tombo,nome\n", want: ErrEmptyImport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Import(ctx, tt.text)
			if err == nil {
				t.Fatal("Import() succeeded")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if s.Counts().Total != 5 {
				t.Errorf("store has %d items after failed import, want 5", s.Counts().Total)
			}
		})
	}
}

func TestSession_ImportReader(t *testing.T) {
	s := newTestSession(t, &memorySlot{}, SessionOptions{})

	latin1 := []byte("nr_tombo,Descrica07,nome\nT1,Cadeira,Jo\xe3o\n")
	if _, err := s.ImportReader(context.Background(), bytes.NewReader(latin1), "iso-8859-1"); err != nil {
		t.Fatalf("ImportReader() error = %v", err)
	}
	it, err := s.Lookup("T1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if it.Responsible != "João" {
		t.Errorf("responsible = %q, want João", it.Responsible)
	}
}

func TestSession_ViewAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &memorySlot{}, SessionOptions{})
	if _, err := s.Import(ctx, inventoryCSV(60)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	p, err := s.View("", 2)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(p.Items) != 10 {
		t.Fatalf("page 2 has %d items, want 10", len(p.Items))
	}
	if p.Items[0].ID != "T051" {
		t.Errorf("page 2 starts at %s, want T051", p.Items[0].ID)
	}
	if s.CurrentPage() != 2 {
		t.Errorf("CurrentPage() = %d, want 2", s.CurrentPage())
	}

	// A new query ignores the requested page.
	p, err = s.View("T042", 2)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if p.Page != 1 || s.CurrentPage() != 1 {
		t.Errorf("page after query change = %d, want 1", p.Page)
	}
	if len(p.Items) == 0 || p.Items[0].ID != "T042" {
		t.Errorf("first result = %v, want T042", p.Items)
	}

	if p, _ := s.View("T042", 5); len(p.Items) != 0 {
		t.Errorf("out-of-range page returned %d items", len(p.Items))
	}

	s.SetQuery("")
	if s.CurrentPage() != 1 || s.Query() != "" {
		t.Error("SetQuery did not reset page")
	}
}

func TestSession_Processed(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &memorySlot{}, SessionOptions{})
	if _, err := s.Import(ctx, inventoryCSV(30)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	ids := make([]string, 0, 12)
	for _, it := range s.Items()[:12] {
		ids = append(ids, it.ID)
	}
	if _, err := s.Apply(ctx, ActionFound, ids, nil); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	p, err := s.Processed(2)
	if err != nil {
		t.Fatalf("Processed() error = %v", err)
	}
	if p.TotalItems != 12 || p.TotalPages != 2 || len(p.Items) != 2 {
		t.Errorf("processed page = %+v", p)
	}
}

func TestSession_SelectionApply(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &memorySlot{}, SessionOptions{})
	if _, err := s.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	s.Select("T001", "T002", "T001")
	s.Select(" T003 ")
	s.Unselect("T002")

	if got := s.Selection(); len(got) != 2 || got[0] != "T001" || got[1] != "T003" {
		t.Fatalf("Selection() = %v, want [T001 T003]", got)
	}

	// Cancelled transfer keeps the selection and the items.
	_, err := s.Apply(ctx, ActionTransfer, nil, NoInput)
	var ae *ActionError
	if !errors.As(err, &ae) || ae.Reason != ReasonInputCancelled {
		t.Fatalf("Apply() error = %v, want input cancelled", err)
	}
	if len(s.Selection()) != 2 {
		t.Error("selection cleared after failed action")
	}

	updated, err := s.Apply(ctx, ActionDispose, nil, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(updated) != 2 {
		t.Errorf("updated %d items, want 2", len(updated))
	}
	if len(s.Selection()) != 0 {
		t.Error("selection not cleared after success")
	}
	if c := s.Counts(); c.Of(StatusDisposalRequested) != 2 {
		t.Errorf("disposal count = %d, want 2", c.Of(StatusDisposalRequested))
	}

	if _, err := s.Apply(ctx, ActionFound, nil, nil); !errors.As(err, &ae) || ae.Reason != ReasonNoTargets {
		t.Errorf("Apply() with empty selection = %v, want no targets", err)
	}
}

func TestSession_Lookup(t *testing.T) {
	s := newTestSession(t, &memorySlot{}, SessionOptions{})
	if _, err := s.Import(context.Background(), sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if _, err := s.Lookup(" T002 "); err != nil {
		t.Errorf("Lookup() error = %v", err)
	}
	_, err := s.Lookup("T404")
	var le *LookupError
	if !errors.As(err, &le) || le.ID != "T404" {
		t.Errorf("Lookup(T404) = %v, want LookupError", err)
	}
}

func TestSession_RestoreHandshake(t *testing.T) {
	ctx := context.Background()
	slot := &memorySlot{}

	first := newTestSession(t, slot, SessionOptions{})
	if _, err := first.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if _, err := first.Apply(ctx, ActionFound, []string{"T003"}, nil); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	t.Run("accept", func(t *testing.T) {
		s := newTestSession(t, slot, SessionOptions{})
		count, pending := s.Start(ctx)
		if !pending || count != 5 {
			t.Fatalf("Start() = %d, %v; want 5, true", count, pending)
		}

		if _, err := s.View("", 1); !errors.Is(err, ErrRestorePending) {
			t.Errorf("View() while pending = %v, want ErrRestorePending", err)
		}
		if _, err := s.Import(ctx, sampleCSV); !errors.Is(err, ErrRestorePending) {
			t.Errorf("Import() while pending = %v, want ErrRestorePending", err)
		}
		if _, err := s.Apply(ctx, ActionFound, []string{"T001"}, nil); !errors.Is(err, ErrRestorePending) {
			t.Errorf("Apply() while pending = %v, want ErrRestorePending", err)
		}

		n, err := s.ResolveRestore(ctx, true)
		if err != nil || n != 5 {
			t.Fatalf("ResolveRestore(true) = %d, %v", n, err)
		}
		it, err := s.Lookup("T003")
		if err != nil || it.Status != StatusFound {
			t.Errorf("restored T003 = %+v, %v", it, err)
		}
		if _, err := s.ResolveRestore(ctx, true); !errors.Is(err, ErrNoRestoreCandidate) {
			t.Errorf("second ResolveRestore = %v, want ErrNoRestoreCandidate", err)
		}
	})

	t.Run("decline", func(t *testing.T) {
		s := newTestSession(t, slot, SessionOptions{})
		if _, pending := s.Start(ctx); !pending {
			t.Fatal("no restore offered")
		}
		n, err := s.ResolveRestore(ctx, false)
		if err != nil || n != 0 {
			t.Fatalf("ResolveRestore(false) = %d, %v; want 0, nil", n, err)
		}
		if s.Counts().Total != 0 {
			t.Error("store not empty after decline")
		}

		again := newTestSession(t, slot, SessionOptions{})
		if _, pending := again.Start(ctx); pending {
			t.Error("declined session offered again")
		}
	})
}

func TestSession_StartWithoutSnapshot(t *testing.T) {
	s := newTestSession(t, &memorySlot{}, SessionOptions{})
	if _, pending := s.Start(context.Background()); pending {
		t.Error("Start() reported a pending restore on an empty slot")
	}
	if _, pending := s.PendingRestore(); pending {
		t.Error("PendingRestore() = true")
	}
}

func TestSession_StartIgnoresUnusableSnapshot(t *testing.T) {
	ctx := context.Background()
	slot := &memorySlot{data: []byte(`{"version":1,"count":1,"items":[{"id":"T1","status":"Transferido"}]}`)}
	s := newTestSession(t, slot, SessionOptions{})

	if count, pending := s.Start(ctx); pending {
		t.Fatalf("Start() = (%d, true), want no restore offer", count)
	}
	if _, err := s.ResolveRestore(ctx, true); !errors.Is(err, ErrNoRestoreCandidate) {
		t.Errorf("ResolveRestore() = %v, want ErrNoRestoreCandidate", err)
	}
	if _, err := s.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() after ignored snapshot: %v", err)
	}
}

func TestSession_DebouncedSnapshots(t *testing.T) {
	ctx := context.Background()
	slot := &memorySlot{}
	s := newTestSession(t, slot, SessionOptions{SnapshotDebounce: time.Hour})

	if _, err := s.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	for _, id := range []string{"T001", "T002", "T003"} {
		if _, err := s.Apply(ctx, ActionFound, []string{id}, nil); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if slot.saves != 0 {
		t.Fatalf("saves = %d before flush, want 0", slot.saves)
	}

	s.Close()
	if slot.saves != 1 {
		t.Errorf("saves = %d after Close, want 1", slot.saves)
	}
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	slot := &memorySlot{}
	s := newTestSession(t, slot, SessionOptions{})
	if _, err := s.Import(ctx, sampleCSV); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	s.Reset(ctx)

	if s.Counts().Total != 0 {
		t.Error("store not empty after Reset")
	}
	if slot.data != nil {
		t.Error("slot not cleared after Reset")
	}
	if _, err := s.Export(&bytes.Buffer{}, SerializeOptions{}); !errors.Is(err, ErrNoItems) {
		t.Errorf("Export() after Reset = %v, want ErrNoItems", err)
	}
}
