package core

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Engine EngineOptions

	// PageSize is the main table page size (default DefaultPageSize).
	PageSize int

	// ProcessedPageSize is the processed-items page size (default ProcessedPageSize).
	ProcessedPageSize int

	// SnapshotDebounce delays snapshots until mutations go quiet. Zero
	// snapshots synchronously after every mutation.
	SnapshotDebounce time.Duration

	// SearchThreshold bounds fuzzy matches; see NewSearchIndex.
	SearchThreshold float64
}

// Session is the single audit session: the item store and everything
// derived from it, plus the user's current query, page and selection.
//
// All writes are serialized by the session lock, so an import commit,
// an action and a restore never interleave. Parsing runs outside the lock.
type Session struct {
	opts    SessionOptions
	store   *ItemStore
	index   *SearchIndex
	engine  *Engine
	gateway *Gateway
	parser  *ParseService

	snapshots *Debouncer[struct{}]

	mu        sync.Mutex
	query     string
	page      int
	selection []string
	candidate *Candidate
}

// NewSession wires a session around gateway and parser.
func NewSession(gateway *Gateway, parser *ParseService, opts SessionOptions) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ProcessedPageSize <= 0 {
		opts.ProcessedPageSize = ProcessedPageSize
	}

	store := NewItemStore()
	s := &Session{
		opts:    opts,
		store:   store,
		index:   NewSearchIndex(store, opts.SearchThreshold),
		engine:  NewEngine(store, opts.Engine),
		gateway: gateway,
		parser:  parser,
		page:    1,
	}
	if opts.SnapshotDebounce > 0 {
		s.snapshots = NewDebouncer(opts.SnapshotDebounce, func(struct{}) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.gateway.Snapshot(context.Background(), s.store)
		})
	}
	return s
}

// Start reads the durable slot. When a saved session exists it is held as a
// restore candidate and item operations fail with ErrRestorePending until
// ResolveRestore is called. It returns the candidate's item count.
func (s *Session) Start(ctx context.Context) (count int, pending bool) {
	c, ok := s.gateway.TryRestore(ctx)
	if !ok {
		return 0, false
	}

	s.mu.Lock()
	s.candidate = c
	s.mu.Unlock()

	slog.InfoContext(ctx, "saved session found",
		"items", c.Count(),
		"saved_at", c.SavedAt(),
		"session_id", c.SessionID(),
	)
	return c.Count(), true
}

// PendingRestore reports whether a restore decision is outstanding.
func (s *Session) PendingRestore() (count int, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate == nil {
		return 0, false
	}
	return s.candidate.Count(), true
}

// ResolveRestore accepts or declines the pending candidate. Accepting
// replaces the store entirely. It returns the number of items in the store
// afterwards.
func (s *Session) ResolveRestore(ctx context.Context, accept bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.candidate
	if c == nil {
		return 0, ErrNoRestoreCandidate
	}
	s.candidate = nil

	if !accept {
		s.gateway.DeclineRestore(ctx, c)
		slog.InfoContext(ctx, "saved session declined", "items", c.Count())
		return s.store.Len(), nil
	}

	if err := s.gateway.ConfirmRestore(c, s.store); err != nil {
		// A snapshot that cannot be applied must not be offered again.
		s.gateway.Clear(ctx)
		return 0, err
	}
	s.resetViewLocked()
	slog.InfoContext(ctx, "saved session restored", "items", s.store.Len())
	return s.store.Len(), nil
}

// ImportReader decodes r with the named encoding and imports it.
func (s *Session) ImportReader(ctx context.Context, r io.Reader, encoding string) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	text, err := DecodeText(r, encoding)
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, text)
}

// Import parses text on the worker and, on success, replaces the store.
// On any error the previous store is left untouched.
func (s *Session) Import(ctx context.Context, text string) (int, error) {
	return s.importWith(ctx, text, s.parser.Parse)
}

// ImportWait is Import but queues behind an outstanding parse instead of
// failing with ErrParseInFlight.
func (s *Session) ImportWait(ctx context.Context, text string) (int, error) {
	return s.importWith(ctx, text, s.parser.ParseWait)
}

func (s *Session) importWith(ctx context.Context, text string, parse func(context.Context, string) ([]RawRecord, error)) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}

	records, err := parse(ctx, text)
	if err != nil {
		return 0, err
	}
	if !hasAcceptedRecord(records) {
		return 0, ErrEmptyImport
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidate != nil {
		return 0, ErrRestorePending
	}
	n := s.store.Load(records)
	s.resetViewLocked()
	s.snapshotLocked(ctx)

	slog.InfoContext(ctx, "items imported", "rows", len(records), "items", n)
	return n, nil
}

func hasAcceptedRecord(records []RawRecord) bool {
	for _, rec := range records {
		if strings.TrimSpace(rec[ColumnID]) != "" {
			return true
		}
	}
	return false
}

// Lookup finds an item by exact tombo.
func (s *Session) Lookup(id string) (Item, error) {
	if err := s.checkReady(); err != nil {
		return Item{}, err
	}
	it, ok := s.index.ExactLookup(id)
	if !ok {
		return Item{}, &LookupError{ID: strings.TrimSpace(id)}
	}
	return it, nil
}

// SetQuery changes the active filter. A different query resets the page to 1.
func (s *Session) SetQuery(q string) {
	q = strings.TrimSpace(q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if q != s.query {
		s.query = q
		s.page = 1
	}
}

// Query returns the active filter.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Results returns every item matching the active filter, ranked.
func (s *Session) Results() ([]Item, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return s.index.Query(s.Query()), nil
}

// Page returns page n of the active filter's results and makes it current.
func (s *Session) Page(n int) (Page, error) {
	results, err := s.Results()
	if err != nil {
		return Page{}, err
	}

	s.mu.Lock()
	s.page = n
	s.mu.Unlock()

	return Paginate(results, n, s.opts.PageSize), nil
}

// View applies query and returns the requested page. When the query differs
// from the active one the requested page is ignored and page 1 is returned.
func (s *Session) View(query string, page int) (Page, error) {
	if err := s.checkReady(); err != nil {
		return Page{}, err
	}

	query = strings.TrimSpace(query)
	s.mu.Lock()
	if query != s.query {
		s.query = query
		page = 1
	}
	s.mu.Unlock()

	return s.Page(page)
}

// CurrentPage returns the current page number.
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Processed returns a page of items that have left Pending, in store order.
func (s *Session) Processed(page int) (Page, error) {
	if err := s.checkReady(); err != nil {
		return Page{}, err
	}
	all := s.store.All()
	done := make([]Item, 0, len(all))
	for _, it := range all {
		if it.Processed() {
			done = append(done, it)
		}
	}
	return Paginate(done, page, s.opts.ProcessedPageSize), nil
}

// Select adds ids to the current selection.
func (s *Session) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = normalizeIDs(append(s.selection, ids...))
}

// Unselect removes ids from the current selection.
func (s *Session) Unselect(ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[strings.TrimSpace(id)] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.selection[:0]
	for _, id := range s.selection {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.selection = kept
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Selection returns the selected tombos in selection order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection...)
}

// Apply runs action on ids, or on the current selection when ids is empty.
// On success the selection is cleared and the store snapshotted.
func (s *Session) Apply(ctx context.Context, action Action, ids []string, input TextInput) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidate != nil {
		return nil, ErrRestorePending
	}

	fromSelection := len(ids) == 0
	if fromSelection {
		ids = s.selection
	}

	updated, err := s.engine.Apply(ctx, action, ids, input)
	if err != nil {
		return nil, err
	}
	if fromSelection {
		s.selection = nil
	}
	s.snapshotLocked(ctx)

	slog.InfoContext(ctx, "action applied",
		"action", string(action),
		"items", len(updated),
		"status", string(action.Target()),
	)
	return updated, nil
}

// Counts returns the store totals.
func (s *Session) Counts() Counts {
	return s.store.Counts()
}

// Items returns every item in store order.
func (s *Session) Items() []Item {
	return s.store.All()
}

// Export writes the current store as CSV.
func (s *Session) Export(w io.Writer, opts SerializeOptions) (int, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	items := s.store.All()
	if len(items) == 0 {
		return 0, ErrNoItems
	}
	return len(items), SerializeCSV(w, items, opts)
}

// Reset clears the store, the view state and the durable slot.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshots != nil {
		s.snapshots.Stop()
	}
	s.candidate = nil
	s.store.Clear()
	s.resetViewLocked()
	s.gateway.Clear(ctx)
	slog.InfoContext(ctx, "session reset")
}

// Close flushes a pending debounced snapshot.
func (s *Session) Close() {
	if s.snapshots != nil {
		s.snapshots.Flush()
	}
}

func (s *Session) checkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate != nil {
		return ErrRestorePending
	}
	return nil
}

func (s *Session) resetViewLocked() {
	s.query = ""
	s.page = 1
	s.selection = nil
}

func (s *Session) snapshotLocked(ctx context.Context) {
	if s.snapshots != nil {
		s.snapshots.Trigger(struct{}{})
		return
	}
	s.gateway.Snapshot(ctx, s.store)
}
